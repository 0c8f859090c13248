// Package client is the Go SDK for the coordinator: a typed session channel,
// room sessions on top of it, and pion-based broadcast/viewer helpers for
// livestream media.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"vroom/internal/core/domain"
	"vroom/pkg/retry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrAuthRejected means the coordinator refused the token. Reconnecting with
// the same token cannot succeed, so it is never retried.
var ErrAuthRejected = errors.New("authentication rejected")

// ErrChannelClosed is returned by operations on a channel after Close.
var ErrChannelClosed = errors.New("channel closed")

// Handler receives a decoded event envelope. Handlers run on the channel's
// read goroutine; do not block in them.
type Handler func(ev domain.Envelope)

// Options configures a Channel.
type Options struct {
	// URL is the channel endpoint, for example ws://host:8080/channel.
	URL   string
	Token string

	// ReconnectAttempts bounds automatic reconnection after a dropped
	// connection. Zero selects the default of five attempts.
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration

	Logger *zap.SugaredLogger
}

func (o *Options) withDefaults() {
	if o.ReconnectAttempts == 0 {
		o.ReconnectAttempts = 5
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 2 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
}

// Channel is one authenticated connection to the coordinator. Events are
// dispatched to typed subscriptions; commands go out through Emit.
type Channel struct {
	opts Options

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	handlers   map[domain.EventType]map[int]Handler
	nextHandle int

	onConnect    func()
	onDisconnect func(err error)

	closed bool
	done   chan struct{}
}

func NewChannel(opts Options) *Channel {
	opts.withDefaults()
	return &Channel{
		opts:     opts,
		handlers: make(map[domain.EventType]map[int]Handler),
		done:     make(chan struct{}),
	}
}

// OnConnect registers a callback invoked after every successful connect,
// initial and reconnects alike. Set before calling Connect.
func (c *Channel) OnConnect(fn func()) {
	c.onConnect = fn
}

// OnDisconnect registers a callback invoked when the connection is lost and
// reconnection has been exhausted or the channel closed.
func (c *Channel) OnDisconnect(fn func(err error)) {
	c.onDisconnect = fn
}

// Handle subscribes fn to an event type and returns a handle for Unhandle.
func (c *Channel) Handle(t domain.EventType, fn Handler) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextHandle++
	id := c.nextHandle
	if c.handlers[t] == nil {
		c.handlers[t] = make(map[int]Handler)
	}
	c.handlers[t][id] = fn
	return id
}

// Unhandle removes a subscription added with Handle.
func (c *Channel) Unhandle(t domain.EventType, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if set, ok := c.handlers[t]; ok {
		delete(set, id)
	}
}

// Connect dials the coordinator and starts the read loop. A rejected token
// fails immediately with ErrAuthRejected; transport errors are retried with
// the configured fixed backoff.
func (c *Channel) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}

	go c.readLoop()

	if c.onConnect != nil {
		c.onConnect()
	}
	return nil
}

func (c *Channel) dial(ctx context.Context) error {
	cfg := retry.FixedConfig(c.opts.ReconnectAttempts, c.opts.ReconnectDelay)
	cfg.NonRetryableErrors = []error{ErrAuthRejected}

	return retry.Do(ctx, cfg, func() error {
		dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
		header := http.Header{"Authorization": []string{"Bearer " + c.opts.Token}}

		conn, resp, err := dialer.DialContext(ctx, c.opts.URL, header)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return ErrAuthRejected
			}
			c.opts.Logger.Warnw("channel dial failed", "url", c.opts.URL, "error", err)
			return fmt.Errorf("dial %s: %w", c.opts.URL, err)
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return nil
	})
}

func (c *Channel) readLoop() {
	for {
		c.mu.RLock()
		conn := c.conn
		closed := c.closed
		c.mu.RUnlock()
		if closed || conn == nil {
			return
		}

		var ev domain.Envelope
		if err := conn.ReadJSON(&ev); err != nil {
			if c.reconnect(err) {
				continue
			}
			return
		}

		c.dispatch(ev)
	}
}

// reconnect re-dials after a read error. Reports whether the loop should
// resume reading.
func (c *Channel) reconnect(cause error) bool {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return false
	}

	c.opts.Logger.Warnw("channel connection lost, reconnecting", "error", cause)

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(c.opts.ReconnectAttempts+1)*(c.opts.ReconnectDelay+c.opts.HandshakeTimeout))
	defer cancel()

	if err := c.dial(ctx); err != nil {
		c.opts.Logger.Errorw("channel reconnect failed", "error", err)
		if c.onDisconnect != nil {
			c.onDisconnect(err)
		}
		return false
	}

	if c.onConnect != nil {
		c.onConnect()
	}
	return true
}

func (c *Channel) dispatch(ev domain.Envelope) {
	c.mu.RLock()
	set := c.handlers[ev.Type]
	fns := make([]Handler, 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Emit sends one command to the coordinator.
func (c *Channel) Emit(commandType string, payload interface{}) error {
	c.mu.RLock()
	conn := c.conn
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return ErrChannelClosed
	}
	if conn == nil {
		return errors.New("channel not connected")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	msg := struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{Type: commandType, Payload: data}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return conn.WriteJSON(msg)
}

// waitFor blocks until an event of type t arrives and accept returns true,
// the context expires, or the channel closes.
func (c *Channel) waitFor(ctx context.Context, t domain.EventType, accept func(domain.Envelope) bool) (domain.Envelope, error) {
	result := make(chan domain.Envelope, 1)

	id := c.Handle(t, func(ev domain.Envelope) {
		if accept != nil && !accept(ev) {
			return
		}
		select {
		case result <- ev:
		default:
		}
	})
	defer c.Unhandle(t, id)

	select {
	case ev := <-result:
		return ev, nil
	case <-ctx.Done():
		return domain.Envelope{}, ctx.Err()
	case <-c.done:
		return domain.Envelope{}, ErrChannelClosed
	}
}

// Close shuts the channel down. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	close(c.done)

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}
