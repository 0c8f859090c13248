package ports

import (
	"context"

	"vroom/internal/core/domain"
)

// Notifier fans typed events out to connected session channels. Delivery is
// best-effort: a recipient that is not connected is skipped, never queued.
type Notifier interface {
	SendToUser(ctx context.Context, userID domain.UserID, ev domain.Envelope) error
	SendToUsers(ctx context.Context, userIDs []domain.UserID, ev domain.Envelope)
	BroadcastToRoom(ctx context.Context, roomID domain.RoomID, exclude domain.UserID, ev domain.Envelope)
	IsConnected(userID domain.UserID) bool
}
