package memory

import (
	"context"
	"fmt"
	"sync"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
)

type MemoryLivestreamRepository struct {
	sessions map[domain.StreamID]*domain.LivestreamSession
	mu       sync.RWMutex
}

func NewMemoryLivestreamRepository() ports.LivestreamRepository {
	return &MemoryLivestreamRepository{
		sessions: make(map[domain.StreamID]*domain.LivestreamSession),
	}
}

func (r *MemoryLivestreamRepository) Create(ctx context.Context, s *domain.LivestreamSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("livestream already exists: %s", s.ID)
	}

	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *MemoryLivestreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.LivestreamSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}

	cp := *s
	return &cp, nil
}

func (r *MemoryLivestreamRepository) Update(ctx context.Context, s *domain.LivestreamSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; !exists {
		return domain.ErrStreamNotFound
	}

	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *MemoryLivestreamRepository) ActiveByRoom(ctx context.Context, roomID domain.RoomID) (*domain.LivestreamSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.RoomID == roomID && s.Active() {
			cp := *s
			return &cp, nil
		}
	}

	return nil, domain.ErrStreamNotFound
}
