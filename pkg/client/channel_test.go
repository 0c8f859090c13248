package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vroom/internal/core/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{}

// newChannelServer runs handler on every accepted channel connection and
// returns a ws:// URL for it.
func newChannelServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func pushEvent(t *testing.T, conn *websocket.Conn, ev domain.Envelope) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ev))
}

func TestChannel_DispatchesEvents(t *testing.T) {
	payload, err := json.Marshal(domain.UserJoinedPayload{Participant: &domain.Participant{UserID: "bob"}})
	require.NoError(t, err)

	url := newChannelServer(t, func(conn *websocket.Conn) {
		pushEvent(t, conn, domain.Envelope{Type: domain.EventUserJoined, Payload: payload})
		conn.ReadMessage() // hold the connection until the client closes
	})

	ch := NewChannel(Options{URL: url, Token: "t"})
	defer ch.Close()

	got := make(chan domain.Envelope, 1)
	ch.Handle(domain.EventUserJoined, func(ev domain.Envelope) {
		got <- ev
	})

	require.NoError(t, ch.Connect(context.Background()))

	select {
	case ev := <-got:
		var p domain.UserJoinedPayload
		require.NoError(t, ev.Decode(&p))
		assert.Equal(t, domain.UserID("bob"), p.Participant.UserID)
	case <-time.After(3 * time.Second):
		t.Fatal("event never dispatched")
	}
}

func TestChannel_Unhandle(t *testing.T) {
	ch := NewChannel(Options{URL: "ws://unused", Token: "t"})

	called := false
	id := ch.Handle(domain.EventUserJoined, func(domain.Envelope) { called = true })
	ch.Unhandle(domain.EventUserJoined, id)

	ch.dispatch(domain.Envelope{Type: domain.EventUserJoined})
	assert.False(t, called)
}

func TestChannel_AuthRejectedNotRetried(t *testing.T) {
	dials := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials++
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	ch := NewChannel(Options{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:          "bad",
		ReconnectDelay: time.Millisecond,
	})

	err := ch.Connect(context.Background())
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Equal(t, 1, dials)
}

func TestChannel_EmitSendsCommand(t *testing.T) {
	type wireCommand struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	got := make(chan wireCommand, 1)

	url := newChannelServer(t, func(conn *websocket.Conn) {
		var cmd wireCommand
		if err := conn.ReadJSON(&cmd); err == nil {
			got <- cmd
		}
	})

	ch := NewChannel(Options{URL: url, Token: "t"})
	defer ch.Close()
	require.NoError(t, ch.Connect(context.Background()))

	require.NoError(t, ch.Emit("join_room", map[string]string{"room_id": "r1"}))

	select {
	case cmd := <-got:
		assert.Equal(t, "join_room", cmd.Type)
		assert.JSONEq(t, `{"room_id":"r1"}`, string(cmd.Payload))
	case <-time.After(3 * time.Second):
		t.Fatal("command never arrived")
	}
}

func TestChannel_WaitFor(t *testing.T) {
	payload, err := json.Marshal(domain.ViewerPayload{StreamID: "s1", UserID: "v1", ViewerCount: 1})
	require.NoError(t, err)

	url := newChannelServer(t, func(conn *websocket.Conn) {
		pushEvent(t, conn, domain.Envelope{Type: domain.EventViewerJoined, Payload: payload})
		conn.ReadMessage()
	})

	ch := NewChannel(Options{URL: url, Token: "t"})
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Subscribe before connecting so the event cannot race past us.
	type waited struct {
		ev  domain.Envelope
		err error
	}
	res := make(chan waited, 1)
	go func() {
		ev, err := ch.waitFor(ctx, domain.EventViewerJoined, func(ev domain.Envelope) bool {
			var p domain.ViewerPayload
			return ev.Decode(&p) == nil && p.StreamID == "s1"
		})
		res <- waited{ev, err}
	}()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ch.Connect(ctx))

	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, domain.EventViewerJoined, r.ev.Type)
}

func TestChannel_CloseIsIdempotent(t *testing.T) {
	url := newChannelServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})

	ch := NewChannel(Options{URL: url, Token: "t"})
	require.NoError(t, ch.Connect(context.Background()))

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	assert.ErrorIs(t, ch.Emit("join_room", nil), ErrChannelClosed)
}
