package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisAssetRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisAssetRepository(client *redis.Client) ports.AssetRepository {
	return &RedisAssetRepository{
		client: client,
		prefix: "vroom:asset:",
	}
}

func (r *RedisAssetRepository) assetKey(roomID domain.RoomID, assetID domain.AssetID) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, roomID, assetID)
}

func (r *RedisAssetRepository) roomAssetsKey(roomID domain.RoomID) string {
	return fmt.Sprintf("%sroom:%s", r.prefix, roomID)
}

func (r *RedisAssetRepository) Add(ctx context.Context, asset *domain.RoomAsset) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("failed to marshal asset: %w", err)
	}

	if err := r.client.Set(ctx, r.assetKey(asset.RoomID, asset.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set asset in Redis: %w", err)
	}

	if err := r.client.SAdd(ctx, r.roomAssetsKey(asset.RoomID), string(asset.ID)).Err(); err != nil {
		return fmt.Errorf("failed to add asset to room set: %w", err)
	}

	return nil
}

func (r *RedisAssetRepository) GetByID(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID) (*domain.RoomAsset, error) {
	data, err := r.client.Get(ctx, r.assetKey(roomID, assetID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset from Redis: %w", err)
	}

	var asset domain.RoomAsset
	if err := json.Unmarshal([]byte(data), &asset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}

	return &asset, nil
}

func (r *RedisAssetRepository) Update(ctx context.Context, asset *domain.RoomAsset) error {
	if _, err := r.GetByID(ctx, asset.RoomID, asset.ID); err != nil {
		return err
	}

	data, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("failed to marshal asset: %w", err)
	}

	if err := r.client.Set(ctx, r.assetKey(asset.RoomID, asset.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update asset in Redis: %w", err)
	}

	return nil
}

func (r *RedisAssetRepository) Remove(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID) error {
	if _, err := r.GetByID(ctx, roomID, assetID); err != nil {
		return err
	}

	if err := r.client.SRem(ctx, r.roomAssetsKey(roomID), string(assetID)).Err(); err != nil {
		return fmt.Errorf("failed to remove asset from room set: %w", err)
	}

	if err := r.client.Del(ctx, r.assetKey(roomID, assetID)).Err(); err != nil {
		return fmt.Errorf("failed to delete asset from Redis: %w", err)
	}

	return nil
}

func (r *RedisAssetRepository) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]*domain.RoomAsset, error) {
	assetIDs, err := r.client.SMembers(ctx, r.roomAssetsKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room assets from Redis: %w", err)
	}

	var assets []*domain.RoomAsset
	for _, idStr := range assetIDs {
		asset, err := r.GetByID(ctx, roomID, domain.AssetID(idStr))
		if err != nil {
			continue
		}
		assets = append(assets, asset)
	}

	return assets, nil
}
