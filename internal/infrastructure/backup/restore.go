package backup

import (
	"context"
	"fmt"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"

	"go.uber.org/zap"
)

// Restorer loads a snapshot back into the repositories, typically at startup
// of an in-memory deployment.
type Restorer struct {
	store     *Store
	roomRepo  ports.RoomRepository
	assetRepo ports.AssetRepository
	logger    *zap.SugaredLogger
}

func NewRestorer(
	store *Store,
	roomRepo ports.RoomRepository,
	assetRepo ports.AssetRepository,
	logger *zap.SugaredLogger,
) *Restorer {
	return &Restorer{
		store:     store,
		roomRepo:  roomRepo,
		assetRepo: assetRepo,
		logger:    logger,
	}
}

// RestoreLatest replays the newest snapshot. Rooms that already exist are
// left untouched, so restoring into a partially populated repository is safe.
// A missing snapshot is not an error.
func (r *Restorer) RestoreLatest(ctx context.Context) error {
	name, err := r.store.Latest()
	if err != nil {
		return err
	}
	if name == "" {
		r.logger.Debug("no snapshot to restore")
		return nil
	}
	return r.Restore(ctx, name)
}

func (r *Restorer) Restore(ctx context.Context, name string) error {
	snap, err := r.store.Read(name)
	if err != nil {
		return err
	}

	restored := 0
	for _, room := range snap.Rooms {
		if _, err := r.roomRepo.GetByID(ctx, room.ID); err == nil {
			r.logger.Debugw("skipping existing room", "room_id", room.ID)
			continue
		} else if err != domain.ErrRoomNotFound {
			return fmt.Errorf("failed to check room %s: %w", room.ID, err)
		}

		if err := r.roomRepo.Create(ctx, room); err != nil {
			return fmt.Errorf("failed to restore room %s: %w", room.ID, err)
		}
		restored++

		for _, asset := range snap.Assets[room.ID] {
			if err := r.assetRepo.Add(ctx, asset); err != nil {
				return fmt.Errorf("failed to restore asset %s: %w", asset.ID, err)
			}
		}
	}

	r.logger.Infow("snapshot restored",
		"name", name,
		"rooms_restored", restored,
		"rooms_skipped", len(snap.Rooms)-restored)
	return nil
}
