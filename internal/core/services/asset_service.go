package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
	"vroom/pkg/utils"

	"go.uber.org/zap"
)

type assetService struct {
	assetRepo       ports.AssetRepository
	participantRepo ports.ParticipantRepository
	roomRepo        ports.RoomRepository
	notifier        ports.Notifier
	metrics         *MetricsService
	logger          *zap.SugaredLogger

	// Serializes the read-merge-write update path; last writer wins is
	// defined by arrival order here.
	updateMu sync.Mutex
}

func NewAssetService(
	assetRepo ports.AssetRepository,
	participantRepo ports.ParticipantRepository,
	roomRepo ports.RoomRepository,
	notifier ports.Notifier,
	metrics *MetricsService,
	logger *zap.SugaredLogger,
) ports.AssetService {
	return &assetService{
		assetRepo:       assetRepo,
		participantRepo: participantRepo,
		roomRepo:        roomRepo,
		notifier:        notifier,
		metrics:         metrics,
		logger:          logger,
	}
}

func (s *assetService) requireMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	_, err := s.participantRepo.Get(ctx, roomID, userID)
	return err
}

func (s *assetService) AddAsset(ctx context.Context, roomID domain.RoomID, userID domain.UserID, asset *domain.RoomAsset) (*domain.RoomAsset, error) {
	if _, err := s.roomRepo.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	asset.ID = domain.AssetID(utils.GenerateAssetID())
	asset.RoomID = roomID
	asset.UpdatedAt = time.Now()

	// Transform fields are always fully populated once the asset exists; a
	// zero scale would make the object invisible, so default it to identity.
	if asset.Transform.Scale == (domain.Vec3{}) {
		asset.Transform.Scale = domain.Vec3{X: 1, Y: 1, Z: 1}
	}

	if err := s.assetRepo.Add(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to add asset: %w", err)
	}

	s.metrics.IncrementAssets(roomID)
	s.notifier.BroadcastToRoom(ctx, roomID, userID, domain.NewAssetAddedEvent(asset))

	return asset, nil
}

func (s *assetService) UpdateAsset(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID, userID domain.UserID, patch domain.AssetPatch) (*domain.RoomAsset, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, fmt.Errorf("empty asset patch")
	}

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	asset, err := s.assetRepo.GetByID(ctx, roomID, assetID)
	if err != nil {
		return nil, err
	}

	asset.Apply(patch)

	if err := s.assetRepo.Update(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to update asset: %w", err)
	}

	// Peers receive only the fields that changed, plus the identifier.
	s.notifier.BroadcastToRoom(ctx, roomID, userID, domain.NewAssetUpdatedEvent(roomID, assetID, patch))

	return asset, nil
}

func (s *assetService) RemoveAsset(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID, userID domain.UserID) error {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return err
	}

	if err := s.assetRepo.Remove(ctx, roomID, assetID); err != nil {
		return err
	}

	s.metrics.DecrementAssets(roomID)
	s.notifier.BroadcastToRoom(ctx, roomID, userID, domain.NewAssetRemovedEvent(roomID, assetID))

	return nil
}

func (s *assetService) InteractWithAsset(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID, userID domain.UserID, interactionType string, data json.RawMessage) error {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return err
	}

	// Interactions are relayed, not persisted: the asset's stored transform
	// never changes here.
	if _, err := s.assetRepo.GetByID(ctx, roomID, assetID); err != nil {
		return err
	}

	payload, err := json.Marshal(struct {
		AssetID         domain.AssetID  `json:"asset_id"`
		InteractionType string          `json:"interaction_type"`
		Data            json.RawMessage `json:"data,omitempty"`
	}{AssetID: assetID, InteractionType: interactionType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode interaction: %w", err)
	}

	ev := domain.InteractionEvent{
		Type:      domain.InteractionCustom,
		SenderID:  userID,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	s.metrics.RecordEventRelayed(roomID)
	s.notifier.BroadcastToRoom(ctx, roomID, userID, domain.NewInteractionEvent(roomID, ev))

	return nil
}
