package services

import (
	"context"
	"fmt"
	"time"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
	"vroom/pkg/cache"
)

// CachedRoomService wraps RoomService with read caching. Writes pass through
// and invalidate the affected keys.
type CachedRoomService struct {
	base    ports.RoomService
	cache   *cache.Cache
	roomTTL time.Duration
	listTTL time.Duration
}

func NewCachedRoomService(base ports.RoomService, roomTTL, listTTL time.Duration) *CachedRoomService {
	return &CachedRoomService{
		base:    base,
		cache:   cache.NewCache(roomTTL),
		roomTTL: roomTTL,
		listTTL: listTTL,
	}
}

func roomKey(roomID domain.RoomID) string {
	return fmt.Sprintf("room:%s", roomID)
}

func (s *CachedRoomService) CreateRoom(ctx context.Context, ownerID domain.UserID, name string, capacity int, private bool, accessCode string) (*domain.Room, error) {
	room, err := s.base.CreateRoom(ctx, ownerID, name, capacity, private, accessCode)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate("rooms:list:")

	return room, nil
}

func (s *CachedRoomService) GetRoom(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	value, err := s.cache.GetOrSet(ctx, roomKey(roomID), func(ctx context.Context) (interface{}, error) {
		return s.base.GetRoom(ctx, roomID)
	}, s.roomTTL)
	if err != nil {
		return nil, err
	}

	return value.(*domain.Room), nil
}

func (s *CachedRoomService) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	value, err := s.cache.GetOrSet(ctx, "rooms:list:open", func(ctx context.Context) (interface{}, error) {
		return s.base.ListRooms(ctx)
	}, s.listTTL)
	if err != nil {
		return nil, err
	}

	return value.([]*domain.Room), nil
}

func (s *CachedRoomService) UpdateSettings(ctx context.Context, roomID domain.RoomID, userID domain.UserID, patch domain.RoomSettingsPatch) (*domain.Room, error) {
	room, err := s.base.UpdateSettings(ctx, roomID, userID, patch)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(roomKey(roomID))
	s.cache.Invalidate("rooms:list:")

	return room, nil
}

func (s *CachedRoomService) JoinRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID, accessCode string) (*domain.RoomSnapshot, error) {
	// Membership is never cached: the snapshot must reflect the join that
	// just happened.
	return s.base.JoinRoom(ctx, roomID, userID, accessCode)
}

func (s *CachedRoomService) LeaveRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	return s.base.LeaveRoom(ctx, roomID, userID)
}

func (s *CachedRoomService) Members(ctx context.Context, roomID domain.RoomID) ([]*domain.Participant, error) {
	return s.base.Members(ctx, roomID)
}

func (s *CachedRoomService) HandleDisconnect(ctx context.Context, userID domain.UserID) {
	s.base.HandleDisconnect(ctx, userID)
}

// Stop releases the cache's cleanup goroutine.
func (s *CachedRoomService) Stop() {
	s.cache.Stop()
}
