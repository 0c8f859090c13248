package domain

import (
	"encoding/json"
	"time"
)

type Transform struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}

// RoomAsset is a placed, shared 3D object instance. Its lifetime is bound to
// the room; any member may mutate it, with conflicts resolved last-writer-wins
// in coordinator arrival order.
type RoomAsset struct {
	ID              AssetID         `json:"id"`
	RoomID          RoomID          `json:"room_id"`
	AssetRef        string          `json:"asset_ref"`
	Transform       Transform       `json:"transform"`
	Interactive     bool            `json:"interactive"`
	InteractionType string          `json:"interaction_type,omitempty"`
	InteractionData json.RawMessage `json:"interaction_data,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AssetPatch is a partial asset update. Only non-nil fields are merged;
// transform components supplied here fully replace the corresponding
// component but never clear the ones left out.
type AssetPatch struct {
	Position        *Vec3           `json:"position,omitempty"`
	Rotation        *Vec3           `json:"rotation,omitempty"`
	Scale           *Vec3           `json:"scale,omitempty"`
	Interactive     *bool           `json:"interactive,omitempty"`
	InteractionType *string         `json:"interaction_type,omitempty"`
	InteractionData json.RawMessage `json:"interaction_data,omitempty"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p AssetPatch) IsEmpty() bool {
	return p.Position == nil && p.Rotation == nil && p.Scale == nil &&
		p.Interactive == nil && p.InteractionType == nil && len(p.InteractionData) == 0
}

// Apply merges the patch onto the asset. Fields absent from the patch keep
// their current values.
func (a *RoomAsset) Apply(p AssetPatch) {
	if p.Position != nil {
		a.Transform.Position = *p.Position
	}
	if p.Rotation != nil {
		a.Transform.Rotation = *p.Rotation
	}
	if p.Scale != nil {
		a.Transform.Scale = *p.Scale
	}
	if p.Interactive != nil {
		a.Interactive = *p.Interactive
	}
	if p.InteractionType != nil {
		a.InteractionType = *p.InteractionType
	}
	if len(p.InteractionData) > 0 {
		a.InteractionData = p.InteractionData
	}
	a.UpdatedAt = time.Now()
}
