package domain

import "time"

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose is a participant's position and rotation in room space. The zero value
// (origin, no rotation) is the pose every participant starts with.
type Pose struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
}

type ParticipantRole string

const (
	RoleHost   ParticipantRole = "host"
	RoleMember ParticipantRole = "member"
)

// Participant is a user's membership record within one room. There is exactly
// one per (room, user) pair; re-joining replaces the previous record.
type Participant struct {
	RoomID   RoomID          `json:"room_id"`
	UserID   UserID          `json:"user_id"`
	Role     ParticipantRole `json:"role"`
	Pose     Pose            `json:"pose"`
	JoinedAt time.Time       `json:"joined_at"`
}
