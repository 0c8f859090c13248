package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
	"vroom/internal/core/services"
	apperrors "vroom/pkg/errors"
	"vroom/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Command types accepted from clients. Everything the coordinator emits uses
// domain.EventType; these name the client-to-server direction only.
const (
	cmdJoinRoom        = "join_room"
	cmdLeaveRoom       = "leave_room"
	cmdPositionUpdate  = "position_update"
	cmdVRInteraction   = "vr_interaction"
	cmdInteractAsset   = "interact_asset"
	cmdJoinLivestream  = "join_livestream"
	cmdLeaveLivestream = "leave_livestream"
	cmdRTCSignal       = "rtc_signal"
)

type command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinRoomRequest struct {
	RoomID     domain.RoomID `json:"room_id"`
	AccessCode string        `json:"access_code,omitempty"`
}

type leaveRoomRequest struct {
	RoomID domain.RoomID `json:"room_id"`
}

type positionUpdateRequest struct {
	RoomID   domain.RoomID `json:"room_id"`
	Position domain.Vec3   `json:"position"`
	Rotation domain.Vec3   `json:"rotation"`
}

type interactionRequest struct {
	RoomID domain.RoomID          `json:"room_id"`
	Type   domain.InteractionType `json:"interaction_type"`
	Data   json.RawMessage        `json:"data,omitempty"`
}

type interactAssetRequest struct {
	RoomID          domain.RoomID   `json:"room_id"`
	AssetID         domain.AssetID  `json:"asset_id"`
	InteractionType string          `json:"interaction_type"`
	Data            json.RawMessage `json:"data,omitempty"`
}

type livestreamRequest struct {
	StreamID domain.StreamID `json:"stream_id"`
}

// HubOptions carries the channel tuning knobs from configuration.
type HubOptions struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	MaxMessageBytes int64

	RateLimitEnabled  bool
	MessagesPerSecond float64
	Burst             int
}

// ChannelMetrics counts connection lifecycle and signaling traffic.
type ChannelMetrics interface {
	RecordConnectionOpened()
	RecordConnectionClosed()
	RecordSignalRelayed()
}

// Hub owns the session channel endpoint: it authenticates the upgrade,
// registers the connection, and dispatches inbound commands to the services.
type Hub struct {
	registry *Registry
	metrics  ChannelMetrics

	authService       services.AuthService
	roomService       ports.RoomService
	presenceService   ports.PresenceService
	assetService      ports.AssetService
	livestreamService ports.LivestreamService

	opts   HubOptions
	logger *zap.SugaredLogger
}

func NewHub(
	registry *Registry,
	authService services.AuthService,
	roomService ports.RoomService,
	presenceService ports.PresenceService,
	assetService ports.AssetService,
	livestreamService ports.LivestreamService,
	opts HubOptions,
	logger *zap.SugaredLogger,
) *Hub {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 64 * 1024
	}
	return &Hub{
		registry:          registry,
		authService:       authService,
		roomService:       roomService,
		presenceService:   presenceService,
		assetService:      assetService,
		livestreamService: livestreamService,
		opts:              opts,
		logger:            logger,
	}
}

// SetMetrics attaches a traffic counter. Call before serving connections.
func (h *Hub) SetMetrics(m ChannelMetrics) {
	h.metrics = m
}

// HandleChannel upgrades the request to a websocket session channel. The
// token is required before any state exists, so a bad one is an HTTP 401,
// never an in-band error event.
func (h *Hub) HandleChannel(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		h.logger.Warnw("channel auth failed", "error", err)
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(h.opts.MaxMessageBytes)

	sess := h.registry.register(userID, conn)
	if h.metrics != nil {
		h.metrics.RecordConnectionOpened()
	}
	h.logger.Infow("user connected", "user_id", userID)

	conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(h.opts.PingInterval)
	defer pingTicker.Stop()

	var limiter *rate.Limiter
	if h.opts.RateLimitEnabled {
		limiter = rate.NewLimiter(rate.Limit(h.opts.MessagesPerSecond), h.opts.Burst)
	}

	commandChan := make(chan command, 16)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var cmd command
			if err := conn.ReadJSON(&cmd); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
			commandChan <- cmd
		}
	}()

	for {
		select {
		case cmd := <-commandChan:
			if limiter != nil && !limiter.Allow() {
				h.sendError(sess, apperrors.ErrCodeRateLimit, "message rate limit exceeded")
				continue
			}
			if err := h.handleCommand(context.Background(), sess, cmd); err != nil {
				h.logger.Infow("command failed",
					"user_id", userID,
					"type", cmd.Type,
					"error", err)
				app := apperrors.FromDomain(err)
				h.sendError(sess, app.Code, app.Message)
			}

		case <-pingTicker.C:
			if err := sess.ping(); err != nil {
				h.logger.Infow("ping failed", "user_id", userID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Infow("read error", "user_id", userID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	wasCurrent := h.registry.unregister(sess)
	if h.metrics != nil {
		h.metrics.RecordConnectionClosed()
	}

	// A reconnect may already have replaced this session; then the user is
	// still here on the new connection and must keep its rooms and streams.
	if !wasCurrent {
		h.logger.Infow("stale connection closed", "user_id", userID)
		return
	}

	// Implicit leave: the drop ends any session the user streams, removes it
	// from any session it views, then leaves its rooms.
	ctx := context.Background()
	h.livestreamService.HandleDisconnect(ctx, userID)
	h.roomService.HandleDisconnect(ctx, userID)

	h.logger.Infow("user disconnected", "user_id", userID)
}

func (h *Hub) handleCommand(ctx context.Context, sess *session, cmd command) error {
	if cmd.Type == "" {
		return fmt.Errorf("command type is required")
	}

	ctx, span := tracing.TraceChannelCommand(ctx, cmd.Type, string(sess.userID))
	defer span.End()

	var err error
	switch cmd.Type {
	case cmdJoinRoom:
		err = h.handleJoinRoom(ctx, sess, cmd)
	case cmdLeaveRoom:
		err = h.handleLeaveRoom(ctx, sess, cmd)
	case cmdPositionUpdate:
		err = h.handlePositionUpdate(ctx, sess, cmd)
	case cmdVRInteraction:
		err = h.handleInteraction(ctx, sess, cmd)
	case cmdInteractAsset:
		err = h.handleInteractAsset(ctx, sess, cmd)
	case cmdJoinLivestream:
		err = h.handleJoinLivestream(ctx, sess, cmd)
	case cmdLeaveLivestream:
		err = h.handleLeaveLivestream(ctx, sess, cmd)
	case cmdRTCSignal:
		err = h.handleRTCSignal(ctx, sess, cmd)
	default:
		err = fmt.Errorf("unknown command type: %s", cmd.Type)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return err
}

func (h *Hub) handleJoinRoom(ctx context.Context, sess *session, cmd command) error {
	var req joinRoomRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil {
		return fmt.Errorf("invalid join_room payload: %w", err)
	}
	if req.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}

	snapshot, err := h.roomService.JoinRoom(ctx, req.RoomID, sess.userID, req.AccessCode)
	if err != nil {
		return err
	}

	return sess.write(domain.NewRoomJoinedEvent(snapshot))
}

func (h *Hub) handleLeaveRoom(ctx context.Context, sess *session, cmd command) error {
	var req leaveRoomRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil {
		return fmt.Errorf("invalid leave_room payload: %w", err)
	}
	if req.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}

	return h.roomService.LeaveRoom(ctx, req.RoomID, sess.userID)
}

func (h *Hub) handlePositionUpdate(ctx context.Context, sess *session, cmd command) error {
	var req positionUpdateRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil {
		return fmt.Errorf("invalid position_update payload: %w", err)
	}
	if req.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}

	pose := domain.Pose{Position: req.Position, Rotation: req.Rotation}
	return h.presenceService.UpdatePose(ctx, req.RoomID, sess.userID, pose)
}

func (h *Hub) handleInteraction(ctx context.Context, sess *session, cmd command) error {
	var req interactionRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil {
		return fmt.Errorf("invalid vr_interaction payload: %w", err)
	}
	if req.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if req.Type == "" {
		return fmt.Errorf("interaction_type is required")
	}

	ev := domain.InteractionEvent{
		Type:    req.Type,
		Payload: req.Data,
	}
	return h.presenceService.SendInteraction(ctx, req.RoomID, sess.userID, ev)
}

func (h *Hub) handleInteractAsset(ctx context.Context, sess *session, cmd command) error {
	var req interactAssetRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil {
		return fmt.Errorf("invalid interact_asset payload: %w", err)
	}
	if req.RoomID == "" || req.AssetID == "" {
		return fmt.Errorf("room_id and asset_id are required")
	}

	return h.assetService.InteractWithAsset(ctx, req.RoomID, req.AssetID, sess.userID, req.InteractionType, req.Data)
}

func (h *Hub) handleJoinLivestream(ctx context.Context, sess *session, cmd command) error {
	var req livestreamRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil {
		return fmt.Errorf("invalid join_livestream payload: %w", err)
	}
	if req.StreamID == "" {
		return fmt.Errorf("stream_id is required")
	}

	session, rtcID, err := h.livestreamService.Join(ctx, req.StreamID, sess.userID)
	if err != nil {
		return err
	}

	return sess.write(domain.NewLivestreamJoinedEvent(session, rtcID))
}

func (h *Hub) handleLeaveLivestream(ctx context.Context, sess *session, cmd command) error {
	var req livestreamRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil {
		return fmt.Errorf("invalid leave_livestream payload: %w", err)
	}
	if req.StreamID == "" {
		return fmt.Errorf("stream_id is required")
	}

	return h.livestreamService.Leave(ctx, req.StreamID, sess.userID)
}

func (h *Hub) handleRTCSignal(ctx context.Context, sess *session, cmd command) error {
	var sig domain.RTCSignal
	if err := json.Unmarshal(cmd.Payload, &sig); err != nil {
		return fmt.Errorf("invalid rtc_signal payload: %w", err)
	}
	if sig.StreamID == "" {
		return fmt.Errorf("stream_id is required")
	}
	switch sig.Kind {
	case domain.SignalOffer, domain.SignalAnswer:
		if sig.SDP == "" {
			return fmt.Errorf("sdp is required for %s", sig.Kind)
		}
	case domain.SignalICECandidate:
		if sig.Candidate == "" {
			return fmt.Errorf("candidate is required")
		}
	default:
		return fmt.Errorf("unknown signal kind: %s", sig.Kind)
	}

	relayCtx, span := tracing.TraceSignalRelay(ctx, string(sig.Kind), string(sig.StreamID))
	err := h.livestreamService.RelaySignal(relayCtx, sess.userID, sig)
	span.End()
	if err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordSignalRelayed()
	}
	return nil
}

func (h *Hub) sendError(sess *session, code apperrors.ErrorCode, message string) {
	if err := sess.write(domain.NewErrorEvent(string(code), message)); err != nil {
		h.logger.Warnw("failed to send error event", "user_id", sess.userID, "error", err)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
