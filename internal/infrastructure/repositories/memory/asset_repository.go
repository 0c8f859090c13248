package memory

import (
	"context"
	"fmt"
	"sync"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
)

type assetKey struct {
	roomID  domain.RoomID
	assetID domain.AssetID
}

type MemoryAssetRepository struct {
	assets map[assetKey]*domain.RoomAsset
	mu     sync.RWMutex
}

func NewMemoryAssetRepository() ports.AssetRepository {
	return &MemoryAssetRepository{
		assets: make(map[assetKey]*domain.RoomAsset),
	}
}

func (r *MemoryAssetRepository) Add(ctx context.Context, asset *domain.RoomAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := assetKey{asset.RoomID, asset.ID}
	if _, exists := r.assets[key]; exists {
		return fmt.Errorf("asset already exists: %s", asset.ID)
	}

	cp := *asset
	r.assets[key] = &cp
	return nil
}

func (r *MemoryAssetRepository) GetByID(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID) (*domain.RoomAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, exists := r.assets[assetKey{roomID, assetID}]
	if !exists {
		return nil, domain.ErrAssetNotFound
	}

	cp := *asset
	return &cp, nil
}

func (r *MemoryAssetRepository) Update(ctx context.Context, asset *domain.RoomAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := assetKey{asset.RoomID, asset.ID}
	if _, exists := r.assets[key]; !exists {
		return domain.ErrAssetNotFound
	}

	cp := *asset
	r.assets[key] = &cp
	return nil
}

func (r *MemoryAssetRepository) Remove(ctx context.Context, roomID domain.RoomID, assetID domain.AssetID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := assetKey{roomID, assetID}
	if _, exists := r.assets[key]; !exists {
		return domain.ErrAssetNotFound
	}

	delete(r.assets, key)
	return nil
}

func (r *MemoryAssetRepository) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]*domain.RoomAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var assets []*domain.RoomAsset
	for key, asset := range r.assets {
		if key.roomID == roomID {
			cp := *asset
			assets = append(assets, &cp)
		}
	}

	return assets, nil
}
