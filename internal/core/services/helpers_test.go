package services

import (
	"context"
	"sync"
	"testing"

	"vroom/internal/core/domain"
	"vroom/internal/infrastructure/repositories/memory"

	"go.uber.org/zap"
)

// fakeNotifier records every delivery so tests can assert on the event flow.
type fakeNotifier struct {
	mu         sync.Mutex
	broadcasts []broadcastRecord
	direct     map[domain.UserID][]domain.Envelope
	offline    map[domain.UserID]bool
}

type broadcastRecord struct {
	roomID  domain.RoomID
	exclude domain.UserID
	ev      domain.Envelope
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		direct:  make(map[domain.UserID][]domain.Envelope),
		offline: make(map[domain.UserID]bool),
	}
}

func (f *fakeNotifier) SendToUser(ctx context.Context, userID domain.UserID, ev domain.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline[userID] {
		return domain.ErrNotConnected
	}
	f.direct[userID] = append(f.direct[userID], ev)
	return nil
}

func (f *fakeNotifier) SendToUsers(ctx context.Context, userIDs []domain.UserID, ev domain.Envelope) {
	for _, userID := range userIDs {
		f.SendToUser(ctx, userID, ev)
	}
}

func (f *fakeNotifier) BroadcastToRoom(ctx context.Context, roomID domain.RoomID, exclude domain.UserID, ev domain.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, broadcastRecord{roomID: roomID, exclude: exclude, ev: ev})
}

func (f *fakeNotifier) IsConnected(userID domain.UserID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.offline[userID]
}

func (f *fakeNotifier) setOffline(userID domain.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline[userID] = true
}

func (f *fakeNotifier) broadcastsOfType(t domain.EventType) []broadcastRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []broadcastRecord
	for _, b := range f.broadcasts {
		if b.ev.Type == t {
			out = append(out, b)
		}
	}
	return out
}

func (f *fakeNotifier) directOfType(userID domain.UserID, t domain.EventType) []domain.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Envelope
	for _, ev := range f.direct[userID] {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// testEnv wires the full service stack onto in-memory repositories.
type testEnv struct {
	notifier   *fakeNotifier
	metrics    *MetricsService
	rooms      *roomService
	presence   *presenceService
	assets     *assetService
	livestream *livestreamService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	roomRepo := memory.NewMemoryRoomRepository()
	participantRepo := memory.NewMemoryParticipantRepository()
	assetRepo := memory.NewMemoryAssetRepository()
	livestreamRepo := memory.NewMemoryLivestreamRepository()

	notifier := newFakeNotifier()
	metrics := NewMetricsService()
	log := zap.NewNop().Sugar()
	limits := RoomLimits{DefaultCapacity: 4, MaxCapacity: 8}

	return &testEnv{
		notifier:   notifier,
		metrics:    metrics,
		rooms:      NewRoomService(roomRepo, participantRepo, assetRepo, livestreamRepo, notifier, metrics, limits, log).(*roomService),
		presence:   NewPresenceService(participantRepo, notifier, metrics, log).(*presenceService),
		assets:     NewAssetService(assetRepo, participantRepo, roomRepo, notifier, metrics, log).(*assetService),
		livestream: NewLivestreamService(livestreamRepo, roomRepo, participantRepo, notifier, metrics, log).(*livestreamService),
	}
}

// createRoomWithMembers creates an open room and joins the given users.
func (e *testEnv) createRoomWithMembers(t *testing.T, owner domain.UserID, members ...domain.UserID) *domain.Room {
	t.Helper()

	ctx := context.Background()
	room, err := e.rooms.CreateRoom(ctx, owner, "test room", 8, false, "")
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	for _, userID := range append([]domain.UserID{owner}, members...) {
		if _, err := e.rooms.JoinRoom(ctx, room.ID, userID, ""); err != nil {
			t.Fatalf("failed to join room as %s: %v", userID, err)
		}
	}
	return room
}
