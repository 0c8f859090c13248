package domain

import "time"

type RoomID string
type UserID string
type AssetID string
type StreamID string

type RoomState string

const (
	RoomStateOpen   RoomState = "open"
	RoomStateClosed RoomState = "closed"
)

type Room struct {
	ID         RoomID    `json:"id"`
	Name       string    `json:"name"`
	OwnerID    UserID    `json:"owner_id"`
	Capacity   int       `json:"capacity"`
	Private    bool      `json:"private"`
	AccessCode string    `json:"-"`
	State      RoomState `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
}

// RoomSettingsPatch carries a partial settings update. Nil fields are left
// untouched.
type RoomSettingsPatch struct {
	Name       *string    `json:"name,omitempty"`
	Capacity   *int       `json:"capacity,omitempty"`
	Private    *bool      `json:"private,omitempty"`
	AccessCode *string    `json:"access_code,omitempty"`
	State      *RoomState `json:"state,omitempty"`
}

// Apply merges the patch onto the room and reports whether anything changed.
func (r *Room) Apply(p RoomSettingsPatch) bool {
	changed := false
	if p.Name != nil && *p.Name != r.Name {
		r.Name = *p.Name
		changed = true
	}
	if p.Capacity != nil && *p.Capacity != r.Capacity {
		r.Capacity = *p.Capacity
		changed = true
	}
	if p.Private != nil && *p.Private != r.Private {
		r.Private = *p.Private
		changed = true
	}
	if p.AccessCode != nil && *p.AccessCode != r.AccessCode {
		r.AccessCode = *p.AccessCode
		changed = true
	}
	if p.State != nil && *p.State != r.State {
		r.State = *p.State
		changed = true
	}
	return changed
}

// RoomSnapshot is handed to a client on join: its own participant record plus
// the room state it missed while absent.
type RoomSnapshot struct {
	Room         *Room               `json:"room"`
	Participant  *Participant        `json:"participant"`
	Participants []*Participant      `json:"participants"`
	Assets       []*RoomAsset        `json:"assets"`
	Livestream   *LivestreamSession  `json:"livestream,omitempty"`
}
