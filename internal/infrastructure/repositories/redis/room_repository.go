package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisRoomRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RedisRoomRepository{
		client: client,
		prefix: "vroom:room:",
	}
}

func (r *RedisRoomRepository) roomKey(id domain.RoomID) string {
	return r.prefix + string(id)
}

func (r *RedisRoomRepository) openRoomsKey() string {
	return r.prefix + "open"
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	if err := r.client.Set(ctx, r.roomKey(room.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set room in Redis: %w", err)
	}

	if room.State == domain.RoomStateOpen {
		if err := r.client.SAdd(ctx, r.openRoomsKey(), string(room.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add room to open set: %w", err)
		}
	}

	return nil
}

func (r *RedisRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	data, err := r.client.Get(ctx, r.roomKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", err)
	}

	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

func (r *RedisRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	if _, err := r.GetByID(ctx, room.ID); err != nil {
		return err
	}

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	if err := r.client.Set(ctx, r.roomKey(room.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update room in Redis: %w", err)
	}

	if room.State == domain.RoomStateOpen {
		if err := r.client.SAdd(ctx, r.openRoomsKey(), string(room.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add room to open set: %w", err)
		}
	} else {
		if err := r.client.SRem(ctx, r.openRoomsKey(), string(room.ID)).Err(); err != nil {
			return fmt.Errorf("failed to remove room from open set: %w", err)
		}
	}

	return nil
}

func (r *RedisRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	if err := r.client.SRem(ctx, r.openRoomsKey(), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove room from open set: %w", err)
	}

	if err := r.client.Del(ctx, r.roomKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete room from Redis: %w", err)
	}

	return nil
}

func (r *RedisRoomRepository) ListOpen(ctx context.Context) ([]*domain.Room, error) {
	roomIDs, err := r.client.SMembers(ctx, r.openRoomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get open rooms from Redis: %w", err)
	}

	var rooms []*domain.Room
	for _, idStr := range roomIDs {
		room, err := r.GetByID(ctx, domain.RoomID(idStr))
		if err != nil {
			// Skip rooms that no longer exist
			continue
		}
		if room.State == domain.RoomStateOpen {
			rooms = append(rooms, room)
		}
	}

	return rooms, nil
}
