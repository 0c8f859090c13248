package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisParticipantRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisParticipantRepository(client *redis.Client) ports.ParticipantRepository {
	return &RedisParticipantRepository{
		client: client,
		prefix: "vroom:participant:",
	}
}

func (r *RedisParticipantRepository) participantKey(roomID domain.RoomID, userID domain.UserID) string {
	return r.prefix + string(roomID) + ":" + string(userID)
}

func (r *RedisParticipantRepository) roomIndexKey(roomID domain.RoomID) string {
	return r.prefix + "room:" + string(roomID)
}

func (r *RedisParticipantRepository) userIndexKey(userID domain.UserID) string {
	return r.prefix + "user:" + string(userID)
}

func (r *RedisParticipantRepository) Upsert(ctx context.Context, p *domain.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal participant: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.participantKey(p.RoomID, p.UserID), data, 0)
	pipe.SAdd(ctx, r.roomIndexKey(p.RoomID), string(p.UserID))
	pipe.SAdd(ctx, r.userIndexKey(p.UserID), string(p.RoomID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store participant in Redis: %w", err)
	}

	return nil
}

func (r *RedisParticipantRepository) Get(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Participant, error) {
	data, err := r.client.Get(ctx, r.participantKey(roomID, userID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant from Redis: %w", err)
	}

	var p domain.Participant
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participant: %w", err)
	}

	return &p, nil
}

func (r *RedisParticipantRepository) Remove(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	deleted, err := r.client.Del(ctx, r.participantKey(roomID, userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete participant from Redis: %w", err)
	}
	if deleted == 0 {
		return domain.ErrNotMember
	}

	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, r.roomIndexKey(roomID), string(userID))
	pipe.SRem(ctx, r.userIndexKey(userID), string(roomID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update participant indexes: %w", err)
	}

	return nil
}

func (r *RedisParticipantRepository) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]*domain.Participant, error) {
	userIDs, err := r.client.SMembers(ctx, r.roomIndexKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room members from Redis: %w", err)
	}

	participants := make([]*domain.Participant, 0, len(userIDs))
	for _, idStr := range userIDs {
		p, err := r.Get(ctx, roomID, domain.UserID(idStr))
		if err != nil {
			// Skip records removed between the index read and now
			continue
		}
		participants = append(participants, p)
	}

	return participants, nil
}

func (r *RedisParticipantRepository) RoomsByUser(ctx context.Context, userID domain.UserID) ([]domain.RoomID, error) {
	roomIDs, err := r.client.SMembers(ctx, r.userIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user rooms from Redis: %w", err)
	}

	rooms := make([]domain.RoomID, 0, len(roomIDs))
	for _, idStr := range roomIDs {
		rooms = append(rooms, domain.RoomID(idStr))
	}

	return rooms, nil
}

func (r *RedisParticipantRepository) UpdatePose(ctx context.Context, roomID domain.RoomID, userID domain.UserID, pose domain.Pose) error {
	p, err := r.Get(ctx, roomID, userID)
	if err != nil {
		return err
	}

	p.Pose = pose

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal participant: %w", err)
	}

	if err := r.client.Set(ctx, r.participantKey(roomID, userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update participant in Redis: %w", err)
	}

	return nil
}
