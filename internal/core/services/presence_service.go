package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"

	"go.uber.org/zap"
)

type presenceService struct {
	participantRepo ports.ParticipantRepository
	notifier        ports.Notifier
	metrics         *MetricsService
	logger          *zap.SugaredLogger
}

func NewPresenceService(
	participantRepo ports.ParticipantRepository,
	notifier ports.Notifier,
	metrics *MetricsService,
	logger *zap.SugaredLogger,
) ports.PresenceService {
	return &presenceService{
		participantRepo: participantRepo,
		notifier:        notifier,
		metrics:         metrics,
		logger:          logger,
	}
}

func (s *presenceService) UpdatePose(ctx context.Context, roomID domain.RoomID, userID domain.UserID, pose domain.Pose) error {
	if err := s.participantRepo.UpdatePose(ctx, roomID, userID, pose); err != nil {
		return err
	}

	s.metrics.RecordEventRelayed(roomID)
	s.notifier.BroadcastToRoom(ctx, roomID, userID, domain.NewPositionUpdateEvent(roomID, userID, pose))
	return nil
}

func (s *presenceService) SendInteraction(ctx context.Context, roomID domain.RoomID, userID domain.UserID, ev domain.InteractionEvent) error {
	if _, err := s.participantRepo.Get(ctx, roomID, userID); err != nil {
		return err
	}

	ev.SenderID = userID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	// A teleport jumps the authoritative pose as a side effect, unlike the
	// continuous position stream.
	if ev.Type == domain.InteractionTeleport {
		var tp domain.TeleportPayload
		if err := json.Unmarshal(ev.Payload, &tp); err != nil {
			return fmt.Errorf("invalid teleport payload: %w", err)
		}
		if err := s.participantRepo.UpdatePose(ctx, roomID, userID, tp.Pose); err != nil {
			return err
		}
	}

	s.metrics.RecordEventRelayed(roomID)
	s.notifier.BroadcastToRoom(ctx, roomID, userID, domain.NewInteractionEvent(roomID, ev))
	return nil
}
