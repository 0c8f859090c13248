package services

import (
	"context"
	"encoding/json"
	"testing"

	"vroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetService_AddAsset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "owner")

	asset, err := env.assets.AddAsset(ctx, room.ID, "owner", &domain.RoomAsset{
		AssetRef: "models/lamp.glb",
		Transform: domain.Transform{
			Position: domain.Vec3{X: 1, Y: 0, Z: -2},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, asset.ID)
	assert.Equal(t, room.ID, asset.RoomID)
	assert.Equal(t, domain.Vec3{X: 1, Y: 1, Z: 1}, asset.Transform.Scale)

	added := env.notifier.broadcastsOfType(domain.EventAssetAdded)
	require.Len(t, added, 1)
	assert.Equal(t, domain.UserID("owner"), added[0].exclude)
}

func TestAssetService_AddAsset_NonMember(t *testing.T) {
	env := newTestEnv(t)

	room := env.createRoomWithMembers(t, "owner")

	_, err := env.assets.AddAsset(context.Background(), room.ID, "stranger", &domain.RoomAsset{AssetRef: "x"})
	assert.ErrorIs(t, err, domain.ErrNotMember)
}

func TestAssetService_UpdateAsset_PartialMerge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "owner", "guest")

	asset, err := env.assets.AddAsset(ctx, room.ID, "owner", &domain.RoomAsset{
		AssetRef: "models/table.glb",
		Transform: domain.Transform{
			Position: domain.Vec3{X: 5},
			Rotation: domain.Vec3{Y: 90},
		},
	})
	require.NoError(t, err)

	newPos := domain.Vec3{X: 7, Y: 1}
	updated, err := env.assets.UpdateAsset(ctx, room.ID, asset.ID, "guest", domain.AssetPatch{Position: &newPos})
	require.NoError(t, err)

	assert.Equal(t, newPos, updated.Transform.Position)
	// Fields absent from the patch keep their values.
	assert.Equal(t, domain.Vec3{Y: 90}, updated.Transform.Rotation)
	assert.Equal(t, domain.Vec3{X: 1, Y: 1, Z: 1}, updated.Transform.Scale)

	events := env.notifier.broadcastsOfType(domain.EventAssetUpdated)
	require.Len(t, events, 1)

	var p domain.AssetUpdatedPayload
	require.NoError(t, events[0].ev.Decode(&p))
	assert.Equal(t, asset.ID, p.AssetID)
	require.NotNil(t, p.Patch.Position)
	assert.Nil(t, p.Patch.Rotation)
}

func TestAssetService_UpdateAsset_EmptyPatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "owner")
	asset, err := env.assets.AddAsset(ctx, room.ID, "owner", &domain.RoomAsset{AssetRef: "x"})
	require.NoError(t, err)

	_, err = env.assets.UpdateAsset(ctx, room.ID, asset.ID, "owner", domain.AssetPatch{})
	assert.Error(t, err)
}

func TestAssetService_UpdateAsset_LastWriterWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "owner", "guest")
	asset, err := env.assets.AddAsset(ctx, room.ID, "owner", &domain.RoomAsset{AssetRef: "x"})
	require.NoError(t, err)

	first := domain.Vec3{X: 1}
	second := domain.Vec3{X: 2}
	_, err = env.assets.UpdateAsset(ctx, room.ID, asset.ID, "owner", domain.AssetPatch{Position: &first})
	require.NoError(t, err)
	updated, err := env.assets.UpdateAsset(ctx, room.ID, asset.ID, "guest", domain.AssetPatch{Position: &second})
	require.NoError(t, err)

	assert.Equal(t, second, updated.Transform.Position)
}

func TestAssetService_RemoveAsset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "owner")
	asset, err := env.assets.AddAsset(ctx, room.ID, "owner", &domain.RoomAsset{AssetRef: "x"})
	require.NoError(t, err)

	require.NoError(t, env.assets.RemoveAsset(ctx, room.ID, asset.ID, "owner"))

	_, err = env.assets.UpdateAsset(ctx, room.ID, asset.ID, "owner", domain.AssetPatch{Position: &domain.Vec3{}})
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)

	removed := env.notifier.broadcastsOfType(domain.EventAssetRemoved)
	require.Len(t, removed, 1)
}

func TestAssetService_InteractWithAsset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "owner", "guest")
	asset, err := env.assets.AddAsset(ctx, room.ID, "owner", &domain.RoomAsset{
		AssetRef:        "models/door.glb",
		Interactive:     true,
		InteractionType: "toggle",
	})
	require.NoError(t, err)

	err = env.assets.InteractWithAsset(ctx, room.ID, asset.ID, "guest", "toggle", json.RawMessage(`{"open":true}`))
	require.NoError(t, err)

	// The interaction is relayed without touching the stored transform.
	current, err := env.assets.UpdateAsset(ctx, room.ID, asset.ID, "owner", domain.AssetPatch{Position: &domain.Vec3{X: 1}})
	require.NoError(t, err)
	assert.Equal(t, domain.Vec3{X: 1}, current.Transform.Position)

	events := env.notifier.broadcastsOfType(domain.EventVRInteraction)
	require.Len(t, events, 1)

	var p domain.InteractionPayload
	require.NoError(t, events[0].ev.Decode(&p))
	assert.Equal(t, domain.InteractionCustom, p.Event.Type)
	assert.Equal(t, domain.UserID("guest"), p.Event.SenderID)
}

func TestAssetService_InteractWithAsset_UnknownAsset(t *testing.T) {
	env := newTestEnv(t)

	room := env.createRoomWithMembers(t, "owner")

	err := env.assets.InteractWithAsset(context.Background(), room.ID, "missing", "owner", "toggle", nil)
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)
}
