package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
	"vroom/pkg/utils"

	"go.uber.org/zap"
)

// RoomLimits bounds room capacities as configured for the deployment.
type RoomLimits struct {
	DefaultCapacity int
	MaxCapacity     int
}

type roomService struct {
	roomRepo        ports.RoomRepository
	participantRepo ports.ParticipantRepository
	assetRepo       ports.AssetRepository
	livestreamRepo  ports.LivestreamRepository
	notifier        ports.Notifier
	metrics         *MetricsService
	limits          RoomLimits
	logger          *zap.SugaredLogger
}

func NewRoomService(
	roomRepo ports.RoomRepository,
	participantRepo ports.ParticipantRepository,
	assetRepo ports.AssetRepository,
	livestreamRepo ports.LivestreamRepository,
	notifier ports.Notifier,
	metrics *MetricsService,
	limits RoomLimits,
	logger *zap.SugaredLogger,
) ports.RoomService {
	return &roomService{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
		assetRepo:       assetRepo,
		livestreamRepo:  livestreamRepo,
		notifier:        notifier,
		metrics:         metrics,
		limits:          limits,
		logger:          logger,
	}
}

func (s *roomService) CreateRoom(ctx context.Context, ownerID domain.UserID, name string, capacity int, private bool, accessCode string) (*domain.Room, error) {
	if capacity <= 0 {
		capacity = s.limits.DefaultCapacity
	}
	if capacity > s.limits.MaxCapacity {
		capacity = s.limits.MaxCapacity
	}

	room := &domain.Room{
		ID:         domain.RoomID(utils.GenerateRoomID()),
		Name:       name,
		OwnerID:    ownerID,
		Capacity:   capacity,
		Private:    private,
		AccessCode: accessCode,
		State:      domain.RoomStateOpen,
		CreatedAt:  time.Now(),
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	s.metrics.RoomCreated()
	s.logger.Infow("room created", "room_id", room.ID, "owner_id", ownerID, "capacity", capacity)

	return room, nil
}

func (s *roomService) GetRoom(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	return s.roomRepo.GetByID(ctx, roomID)
}

func (s *roomService) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	return s.roomRepo.ListOpen(ctx)
}

func (s *roomService) UpdateSettings(ctx context.Context, roomID domain.RoomID, userID domain.UserID, patch domain.RoomSettingsPatch) (*domain.Room, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.OwnerID != userID {
		return nil, domain.ErrForbidden
	}

	if patch.Capacity != nil && *patch.Capacity > s.limits.MaxCapacity {
		capped := s.limits.MaxCapacity
		patch.Capacity = &capped
	}

	if changed := room.Apply(patch); !changed {
		return room, nil
	}

	if err := s.roomRepo.Update(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	s.notifier.BroadcastToRoom(ctx, roomID, "", domain.NewRoomUpdatedEvent(room))

	if room.State == domain.RoomStateClosed {
		s.metrics.Forget(roomID)
		s.logger.Infow("room closed", "room_id", roomID)
	}

	return room, nil
}

func (s *roomService) JoinRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID, accessCode string) (*domain.RoomSnapshot, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.State != domain.RoomStateOpen {
		return nil, domain.ErrRoomClosed
	}

	if room.Private && room.AccessCode != "" && accessCode != room.AccessCode {
		return nil, domain.ErrForbidden
	}

	members, err := s.participantRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	rejoining := false
	for _, m := range members {
		if m.UserID == userID {
			rejoining = true
			break
		}
	}
	if !rejoining && len(members) >= room.Capacity {
		return nil, domain.ErrRoomFull
	}

	role := domain.RoleMember
	if room.OwnerID == userID {
		role = domain.RoleHost
	}

	// Re-joining replaces the previous record; the pose resets to origin
	// either way.
	participant := &domain.Participant{
		RoomID:   roomID,
		UserID:   userID,
		Role:     role,
		Pose:     domain.Pose{},
		JoinedAt: time.Now(),
	}

	if err := s.participantRepo.Upsert(ctx, participant); err != nil {
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}

	if !rejoining {
		s.metrics.IncrementOccupancy(roomID)
	}

	s.notifier.BroadcastToRoom(ctx, roomID, userID, domain.NewUserJoinedEvent(participant))

	snapshot, err := s.buildSnapshot(ctx, room, participant)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("user joined room",
		"room_id", roomID,
		"user_id", userID,
		"role", role,
		"occupancy", len(snapshot.Participants),
	)

	return snapshot, nil
}

func (s *roomService) buildSnapshot(ctx context.Context, room *domain.Room, self *domain.Participant) (*domain.RoomSnapshot, error) {
	participants, err := s.participantRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	assets, err := s.assetRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	snapshot := &domain.RoomSnapshot{
		Room:         room,
		Participant:  self,
		Participants: participants,
		Assets:       assets,
	}

	if stream, err := s.livestreamRepo.ActiveByRoom(ctx, room.ID); err == nil {
		snapshot.Livestream = stream
	} else if !errors.Is(err, domain.ErrStreamNotFound) {
		return nil, fmt.Errorf("failed to look up active livestream: %w", err)
	}

	return snapshot, nil
}

func (s *roomService) LeaveRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	err := s.participantRepo.Remove(ctx, roomID, userID)
	if errors.Is(err, domain.ErrNotMember) {
		// Leaving a room you are not in is a no-op.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	s.metrics.DecrementOccupancy(roomID)
	s.notifier.BroadcastToRoom(ctx, roomID, userID, domain.NewUserLeftEvent(roomID, userID))

	s.logger.Infow("user left room", "room_id", roomID, "user_id", userID)
	return nil
}

func (s *roomService) Members(ctx context.Context, roomID domain.RoomID) ([]*domain.Participant, error) {
	if _, err := s.roomRepo.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.participantRepo.ListByRoom(ctx, roomID)
}

func (s *roomService) HandleDisconnect(ctx context.Context, userID domain.UserID) {
	rooms, err := s.participantRepo.RoomsByUser(ctx, userID)
	if err != nil {
		s.logger.Errorw("failed to resolve rooms on disconnect", "user_id", userID, "error", err)
		return
	}

	for _, roomID := range rooms {
		if err := s.LeaveRoom(ctx, roomID, userID); err != nil {
			s.logger.Errorw("failed to leave room on disconnect",
				"room_id", roomID,
				"user_id", userID,
				"error", err,
			)
		}
	}
}
