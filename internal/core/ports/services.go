package ports

import (
	"context"
	"encoding/json"

	"vroom/internal/core/domain"
)

type RoomService interface {
	CreateRoom(ctx context.Context, ownerID domain.UserID, name string, capacity int, private bool, accessCode string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID domain.RoomID) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]*domain.Room, error)
	UpdateSettings(ctx context.Context, roomID domain.RoomID, userID domain.UserID, patch domain.RoomSettingsPatch) (*domain.Room, error)
	JoinRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID, accessCode string) (*domain.RoomSnapshot, error)
	LeaveRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	Members(ctx context.Context, roomID domain.RoomID) ([]*domain.Participant, error)
	// HandleDisconnect performs an implicit leave of every room the user is a
	// member of. Transport-level drops call this exactly once per connection.
	HandleDisconnect(ctx context.Context, userID domain.UserID)
}

type PresenceService interface {
	UpdatePose(ctx context.Context, roomID domain.RoomID, userID domain.UserID, pose domain.Pose) error
	SendInteraction(ctx context.Context, roomID domain.RoomID, userID domain.UserID, ev domain.InteractionEvent) error
}

type AssetService interface {
	AddAsset(ctx context.Context, roomID domain.RoomID, userID domain.UserID, asset *domain.RoomAsset) (*domain.RoomAsset, error)
	UpdateAsset(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID, userID domain.UserID, patch domain.AssetPatch) (*domain.RoomAsset, error)
	RemoveAsset(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID, userID domain.UserID) error
	InteractWithAsset(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID, userID domain.UserID, interactionType string, data json.RawMessage) error
}

type LivestreamService interface {
	Start(ctx context.Context, roomID domain.RoomID, streamerID domain.UserID) (*domain.LivestreamSession, error)
	GoLive(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*domain.LivestreamSession, error)
	End(ctx context.Context, streamID domain.StreamID, userID domain.UserID) error
	Get(ctx context.Context, streamID domain.StreamID) (*domain.LivestreamSession, error)
	// Join registers the user as a viewer and returns the session plus an
	// rtc session id identifying this viewer's peer connection attempt.
	Join(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*domain.LivestreamSession, string, error)
	Leave(ctx context.Context, streamID domain.StreamID, userID domain.UserID) error
	RelaySignal(ctx context.Context, fromID domain.UserID, sig domain.RTCSignal) error
	// HandleDisconnect ends every session the user is streaming and removes
	// the user from every session it is viewing.
	HandleDisconnect(ctx context.Context, userID domain.UserID)
}
