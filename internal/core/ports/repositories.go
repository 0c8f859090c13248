package ports

import (
	"context"

	"vroom/internal/core/domain"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, id domain.RoomID) error
	ListOpen(ctx context.Context) ([]*domain.Room, error)
}

// ParticipantRepository holds the authoritative membership and pose state.
// Upsert replaces any existing record for the same (room, user) pair.
type ParticipantRepository interface {
	Upsert(ctx context.Context, p *domain.Participant) error
	Get(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Participant, error)
	Remove(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	ListByRoom(ctx context.Context, roomID domain.RoomID) ([]*domain.Participant, error)
	RoomsByUser(ctx context.Context, userID domain.UserID) ([]domain.RoomID, error)
	UpdatePose(ctx context.Context, roomID domain.RoomID, userID domain.UserID, pose domain.Pose) error
}

type AssetRepository interface {
	Add(ctx context.Context, asset *domain.RoomAsset) error
	GetByID(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID) (*domain.RoomAsset, error)
	Update(ctx context.Context, asset *domain.RoomAsset) error
	Remove(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID) error
	ListByRoom(ctx context.Context, roomID domain.RoomID) ([]*domain.RoomAsset, error)
}

type LivestreamRepository interface {
	Create(ctx context.Context, s *domain.LivestreamSession) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.LivestreamSession, error)
	Update(ctx context.Context, s *domain.LivestreamSession) error
	// ActiveByRoom returns the room's preparing or live session, or
	// domain.ErrStreamNotFound when the room has none.
	ActiveByRoom(ctx context.Context, roomID domain.RoomID) (*domain.LivestreamSession, error)
}
