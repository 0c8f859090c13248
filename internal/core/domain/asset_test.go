package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssetPatch_IsEmpty(t *testing.T) {
	assert.True(t, AssetPatch{}.IsEmpty())

	pos := Vec3{X: 1}
	assert.False(t, AssetPatch{Position: &pos}.IsEmpty())
	assert.False(t, AssetPatch{InteractionData: json.RawMessage(`{}`)}.IsEmpty())
}

func TestRoomAsset_Apply(t *testing.T) {
	asset := &RoomAsset{
		ID:       "a1",
		AssetRef: "chair.glb",
		Transform: Transform{
			Position: Vec3{X: 1, Y: 2, Z: 3},
			Rotation: Vec3{Y: 90},
			Scale:    Vec3{X: 1, Y: 1, Z: 1},
		},
	}

	newPos := Vec3{X: 5, Y: 0, Z: -2}
	interactive := true
	asset.Apply(AssetPatch{Position: &newPos, Interactive: &interactive})

	assert.Equal(t, newPos, asset.Transform.Position)
	assert.Equal(t, Vec3{Y: 90}, asset.Transform.Rotation)
	assert.Equal(t, Vec3{X: 1, Y: 1, Z: 1}, asset.Transform.Scale)
	assert.True(t, asset.Interactive)
	assert.False(t, asset.UpdatedAt.IsZero())
}

func TestRoomAsset_ApplyInteractionFields(t *testing.T) {
	asset := &RoomAsset{ID: "a1"}

	kind := "toggle"
	data := json.RawMessage(`{"state":"on"}`)
	asset.Apply(AssetPatch{InteractionType: &kind, InteractionData: data})

	assert.Equal(t, "toggle", asset.InteractionType)
	assert.JSONEq(t, `{"state":"on"}`, string(asset.InteractionData))

	// A later patch without these fields leaves them in place.
	pos := Vec3{X: 1}
	asset.Apply(AssetPatch{Position: &pos})
	assert.Equal(t, "toggle", asset.InteractionType)
}
