package domain

import "time"

type StreamStatus string

const (
	StreamPreparing StreamStatus = "preparing"
	StreamLive      StreamStatus = "live"
	StreamEnded     StreamStatus = "ended"
)

// LivestreamSession is one broadcast unit within a room: exactly one streamer,
// any number of viewers. ViewerCount is maintained by the coordinator from
// join/leave events and is derived state, not authoritative membership.
type LivestreamSession struct {
	ID          StreamID     `json:"id"`
	RoomID      RoomID       `json:"room_id"`
	StreamerID  UserID       `json:"streamer_id"`
	Status      StreamStatus `json:"status"`
	ViewerCount int          `json:"viewer_count"`
	CreatedAt   time.Time    `json:"created_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
}

// Active reports whether the session still accepts viewers and signaling.
func (s *LivestreamSession) Active() bool {
	return s.Status == StreamPreparing || s.Status == StreamLive
}

type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice_candidate"
)

// RTCSignal is relayed verbatim between the streamer and viewers. The
// coordinator never interprets SDP or candidate payloads. ToID may be empty:
// for streamer-originated signals that means broadcast to all viewers, for
// viewer-originated signals the target is always the streamer.
type RTCSignal struct {
	Kind      SignalKind `json:"kind"`
	StreamID  StreamID   `json:"stream_id"`
	FromID    UserID     `json:"from_id"`
	ToID      UserID     `json:"to_id,omitempty"`
	SDP       string     `json:"sdp,omitempty"`
	Candidate string     `json:"candidate,omitempty"`
}
