package backup

import (
	"context"
	"fmt"
	"time"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"

	"go.uber.org/zap"
)

// Scheduler writes periodic room-state snapshots, keeping the most recent
// MaxSnapshots on disk.
type Scheduler struct {
	store     *Store
	roomRepo  ports.RoomRepository
	assetRepo ports.AssetRepository
	interval  time.Duration
	keep      int
	logger    *zap.SugaredLogger
	stopChan  chan struct{}
}

type SchedulerConfig struct {
	Interval     time.Duration
	MaxSnapshots int
}

func NewScheduler(
	store *Store,
	roomRepo ports.RoomRepository,
	assetRepo ports.AssetRepository,
	cfg SchedulerConfig,
	logger *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		store:     store,
		roomRepo:  roomRepo,
		assetRepo: assetRepo,
		interval:  cfg.Interval,
		keep:      cfg.MaxSnapshots,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start runs the snapshot loop until Stop is called or the context ends.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runSnapshot(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSnapshot(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) runSnapshot(ctx context.Context) {
	snap, err := s.collect(ctx)
	if err != nil {
		s.logger.Errorw("failed to collect snapshot data", "error", err)
		return
	}

	name, err := s.store.Write(snap)
	if err != nil {
		s.logger.Errorw("failed to write snapshot", "error", err)
		return
	}
	s.logger.Infow("snapshot written",
		"name", name,
		"rooms", len(snap.Rooms))

	if err := s.store.Prune(s.keep); err != nil {
		s.logger.Warnw("failed to prune old snapshots", "error", err)
	}
}

func (s *Scheduler) collect(ctx context.Context) (*Snapshot, error) {
	rooms, err := s.roomRepo.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	snap := &Snapshot{
		CreatedAt: time.Now(),
		Rooms:     rooms,
		Assets:    make(map[domain.RoomID][]*domain.RoomAsset),
	}

	for _, room := range rooms {
		assets, err := s.assetRepo.ListByRoom(ctx, room.ID)
		if err != nil {
			s.logger.Warnw("failed to list room assets", "room_id", room.ID, "error", err)
			continue
		}
		if len(assets) > 0 {
			snap.Assets[room.ID] = assets
		}
	}

	return snap, nil
}
