package memory

import (
	"context"
	"testing"
	"time"

	"vroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantRepository_UpsertReplaces(t *testing.T) {
	repo := NewMemoryParticipantRepository()
	ctx := context.Background()

	first := &domain.Participant{
		RoomID:   "room-1",
		UserID:   "user-1",
		Role:     domain.RoleMember,
		Pose:     domain.Pose{Position: domain.Vec3{X: 5}},
		JoinedAt: time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &domain.Participant{
		RoomID:   "room-1",
		UserID:   "user-1",
		Role:     domain.RoleHost,
		JoinedAt: time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, second))

	got, err := repo.Get(ctx, "room-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, got.Role)
	assert.Equal(t, domain.Pose{}, got.Pose)

	members, err := repo.ListByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestParticipantRepository_GetReturnsCopy(t *testing.T) {
	repo := NewMemoryParticipantRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Participant{RoomID: "r", UserID: "u"}))

	got, err := repo.Get(ctx, "r", "u")
	require.NoError(t, err)
	got.Pose.Position.X = 42

	fresh, err := repo.Get(ctx, "r", "u")
	require.NoError(t, err)
	assert.Equal(t, float64(0), fresh.Pose.Position.X)
}

func TestParticipantRepository_Remove(t *testing.T) {
	repo := NewMemoryParticipantRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Participant{RoomID: "r", UserID: "u"}))
	require.NoError(t, repo.Remove(ctx, "r", "u"))

	_, err := repo.Get(ctx, "r", "u")
	assert.ErrorIs(t, err, domain.ErrNotMember)

	assert.ErrorIs(t, repo.Remove(ctx, "r", "u"), domain.ErrNotMember)
}

func TestParticipantRepository_RoomsByUser(t *testing.T) {
	repo := NewMemoryParticipantRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Participant{RoomID: "r1", UserID: "u"}))
	require.NoError(t, repo.Upsert(ctx, &domain.Participant{RoomID: "r2", UserID: "u"}))
	require.NoError(t, repo.Upsert(ctx, &domain.Participant{RoomID: "r1", UserID: "other"}))

	rooms, err := repo.RoomsByUser(ctx, "u")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.RoomID{"r1", "r2"}, rooms)
}

func TestParticipantRepository_UpdatePose(t *testing.T) {
	repo := NewMemoryParticipantRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Participant{RoomID: "r", UserID: "u"}))

	pose := domain.Pose{Position: domain.Vec3{X: 1, Y: 2, Z: 3}}
	require.NoError(t, repo.UpdatePose(ctx, "r", "u", pose))

	got, err := repo.Get(ctx, "r", "u")
	require.NoError(t, err)
	assert.Equal(t, pose, got.Pose)

	assert.ErrorIs(t, repo.UpdatePose(ctx, "r", "ghost", pose), domain.ErrNotMember)
}
