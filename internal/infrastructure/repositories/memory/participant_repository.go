package memory

import (
	"context"
	"sync"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
)

type participantKey struct {
	roomID domain.RoomID
	userID domain.UserID
}

// MemoryParticipantRepository keeps membership and last-known poses in
// process memory. Participants are ephemeral: the record exists only while
// the user is joined, so there is nothing to persist.
type MemoryParticipantRepository struct {
	participants map[participantKey]*domain.Participant
	mu           sync.RWMutex
}

func NewMemoryParticipantRepository() ports.ParticipantRepository {
	return &MemoryParticipantRepository{
		participants: make(map[participantKey]*domain.Participant),
	}
}

func (r *MemoryParticipantRepository) Upsert(ctx context.Context, p *domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *p
	r.participants[participantKey{p.RoomID, p.UserID}] = &cp
	return nil
}

func (r *MemoryParticipantRepository) Get(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.participants[participantKey{roomID, userID}]
	if !exists {
		return nil, domain.ErrNotMember
	}

	cp := *p
	return &cp, nil
}

func (r *MemoryParticipantRepository) Remove(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := participantKey{roomID, userID}
	if _, exists := r.participants[key]; !exists {
		return domain.ErrNotMember
	}

	delete(r.participants, key)
	return nil
}

func (r *MemoryParticipantRepository) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var members []*domain.Participant
	for key, p := range r.participants {
		if key.roomID == roomID {
			cp := *p
			members = append(members, &cp)
		}
	}

	return members, nil
}

func (r *MemoryParticipantRepository) RoomsByUser(ctx context.Context, userID domain.UserID) ([]domain.RoomID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rooms []domain.RoomID
	for key := range r.participants {
		if key.userID == userID {
			rooms = append(rooms, key.roomID)
		}
	}

	return rooms, nil
}

func (r *MemoryParticipantRepository) UpdatePose(ctx context.Context, roomID domain.RoomID, userID domain.UserID, pose domain.Pose) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[participantKey{roomID, userID}]
	if !exists {
		return domain.ErrNotMember
	}

	p.Pose = pose
	return nil
}
