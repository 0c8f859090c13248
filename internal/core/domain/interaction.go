package domain

import (
	"encoding/json"
	"time"
)

type InteractionType string

const (
	InteractionChat      InteractionType = "chat"
	InteractionGrab      InteractionType = "grab"
	InteractionRelease   InteractionType = "release"
	InteractionTransform InteractionType = "transform"
	InteractionTeleport  InteractionType = "teleport"
	InteractionCustom    InteractionType = "custom"
)

// InteractionEvent is transient room traffic: delivered at most once to the
// members connected at send time, never queued for absent peers.
type InteractionEvent struct {
	Type      InteractionType `json:"type"`
	SenderID  UserID          `json:"sender_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// TeleportPayload is the payload of a teleport interaction. Unlike the
// continuous position stream, a teleport also overwrites the sender's
// authoritative pose.
type TeleportPayload struct {
	Pose Pose `json:"pose"`
}
