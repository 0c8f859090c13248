package distributed

import (
	"context"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"

	"go.uber.org/zap"
)

// RelayNotifier wraps the process-local notifier and mirrors every delivery
// onto the event bus, so members of the same room connected to other
// coordinator instances receive it too. Each user holds exactly one channel
// connection, so an event arriving both locally and over the bus never
// reaches the same user twice.
type RelayNotifier struct {
	local  ports.Notifier
	bus    *EventBus
	logger *zap.SugaredLogger
}

func NewRelayNotifier(local ports.Notifier, bus *EventBus, logger *zap.SugaredLogger) *RelayNotifier {
	return &RelayNotifier{
		local:  local,
		bus:    bus,
		logger: logger,
	}
}

// Start consumes bus events from other instances and replays them against
// the local notifier. Returns when the context is cancelled.
func (n *RelayNotifier) Start(ctx context.Context) {
	err := n.bus.Subscribe(ctx, func(event *Event) {
		switch event.Type {
		case EventRoomBroadcast:
			n.local.BroadcastToRoom(ctx, event.RoomID, event.Exclude, event.Envelope)
		case EventUserSend:
			if err := n.local.SendToUser(ctx, event.UserID, event.Envelope); err != nil {
				// The user may be connected to yet another instance.
				n.logger.Debugw("relayed event not deliverable locally",
					"user_id", event.UserID,
					"type", event.Envelope.Type)
			}
		default:
			n.logger.Warnw("unknown bus event type", "type", event.Type)
		}
	})
	if err != nil && ctx.Err() == nil {
		n.logger.Errorw("event bus subscription ended", "error", err)
	}
}

func (n *RelayNotifier) SendToUser(ctx context.Context, userID domain.UserID, ev domain.Envelope) error {
	if n.local.IsConnected(userID) {
		return n.local.SendToUser(ctx, userID, ev)
	}

	// Not here: hand the event to whichever instance holds the connection.
	return n.bus.Publish(ctx, &Event{
		Type:     EventUserSend,
		UserID:   userID,
		Envelope: ev,
	})
}

func (n *RelayNotifier) SendToUsers(ctx context.Context, userIDs []domain.UserID, ev domain.Envelope) {
	remote := make([]domain.UserID, 0)
	for _, userID := range userIDs {
		if n.local.IsConnected(userID) {
			if err := n.local.SendToUser(ctx, userID, ev); err != nil {
				n.logger.Warnw("failed local delivery", "user_id", userID, "error", err)
			}
			continue
		}
		remote = append(remote, userID)
	}

	for _, userID := range remote {
		if err := n.bus.Publish(ctx, &Event{
			Type:     EventUserSend,
			UserID:   userID,
			Envelope: ev,
		}); err != nil {
			n.logger.Warnw("failed to publish user event", "user_id", userID, "error", err)
		}
	}
}

func (n *RelayNotifier) BroadcastToRoom(ctx context.Context, roomID domain.RoomID, exclude domain.UserID, ev domain.Envelope) {
	n.local.BroadcastToRoom(ctx, roomID, exclude, ev)

	if err := n.bus.Publish(ctx, &Event{
		Type:     EventRoomBroadcast,
		RoomID:   roomID,
		Exclude:  exclude,
		Envelope: ev,
	}); err != nil {
		n.logger.Warnw("failed to publish room broadcast", "room_id", roomID, "error", err)
	}
}

// IsConnected reports local connectivity only. Remote instances answer for
// their own connections.
func (n *RelayNotifier) IsConnected(userID domain.UserID) bool {
	return n.local.IsConnected(userID)
}

var _ ports.Notifier = (*RelayNotifier)(nil)
