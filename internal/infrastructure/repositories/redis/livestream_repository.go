package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisLivestreamRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisLivestreamRepository(client *redis.Client) ports.LivestreamRepository {
	return &RedisLivestreamRepository{
		client: client,
		prefix: "vroom:livestream:",
	}
}

func (r *RedisLivestreamRepository) sessionKey(id domain.StreamID) string {
	return r.prefix + string(id)
}

// activeRoomKey maps a room to its single preparing/live session id.
func (r *RedisLivestreamRepository) activeRoomKey(roomID domain.RoomID) string {
	return fmt.Sprintf("%sactive:%s", r.prefix, roomID)
}

func (r *RedisLivestreamRepository) Create(ctx context.Context, s *domain.LivestreamSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal livestream: %w", err)
	}

	if err := r.client.Set(ctx, r.sessionKey(s.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set livestream in Redis: %w", err)
	}

	if s.Active() {
		if err := r.client.Set(ctx, r.activeRoomKey(s.RoomID), string(s.ID), 0).Err(); err != nil {
			return fmt.Errorf("failed to set active livestream for room: %w", err)
		}
	}

	return nil
}

func (r *RedisLivestreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.LivestreamSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get livestream from Redis: %w", err)
	}

	var s domain.LivestreamSession
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal livestream: %w", err)
	}

	return &s, nil
}

func (r *RedisLivestreamRepository) Update(ctx context.Context, s *domain.LivestreamSession) error {
	if _, err := r.GetByID(ctx, s.ID); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal livestream: %w", err)
	}

	if err := r.client.Set(ctx, r.sessionKey(s.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update livestream in Redis: %w", err)
	}

	if s.Active() {
		if err := r.client.Set(ctx, r.activeRoomKey(s.RoomID), string(s.ID), 0).Err(); err != nil {
			return fmt.Errorf("failed to set active livestream for room: %w", err)
		}
	} else {
		if err := r.client.Del(ctx, r.activeRoomKey(s.RoomID)).Err(); err != nil {
			return fmt.Errorf("failed to clear active livestream for room: %w", err)
		}
	}

	return nil
}

func (r *RedisLivestreamRepository) ActiveByRoom(ctx context.Context, roomID domain.RoomID) (*domain.LivestreamSession, error) {
	idStr, err := r.client.Get(ctx, r.activeRoomKey(roomID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active livestream for room: %w", err)
	}

	s, err := r.GetByID(ctx, domain.StreamID(idStr))
	if err != nil {
		return nil, err
	}
	if !s.Active() {
		return nil, domain.ErrStreamNotFound
	}

	return s, nil
}
