package domain

import "encoding/json"

// EventType tags every message broadcast over the session channel. Each type
// has exactly one payload shape, defined below, so handlers never branch on
// loosely typed maps.
type EventType string

const (
	EventRoomJoined          EventType = "room_joined"
	EventUserJoined          EventType = "user_joined"
	EventUserLeft            EventType = "user_left"
	EventRoomUpdated         EventType = "room_updated"
	EventPositionUpdate      EventType = "position_update"
	EventVRInteraction       EventType = "vr_interaction"
	EventAssetAdded          EventType = "asset_added"
	EventAssetUpdated        EventType = "asset_updated"
	EventAssetRemoved        EventType = "asset_removed"
	EventLivestreamPreparing EventType = "livestream_preparing"
	EventLivestreamLive      EventType = "livestream_live"
	EventLivestreamJoined    EventType = "livestream_joined"
	EventViewerJoined        EventType = "viewer_joined"
	EventViewerLeft          EventType = "viewer_left"
	EventRTCSignaling        EventType = "rtc_signaling"
	EventRTCICECandidate     EventType = "rtc_ice_candidate"
	EventLivestreamEnded     EventType = "livestream_ended"
	EventError               EventType = "error"
)

// Envelope is the wire form of every channel message.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

func mustEnvelope(t EventType, payload interface{}) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload types are plain structs defined in this package; marshal
		// cannot fail for them.
		panic(err)
	}
	return Envelope{Type: t, Payload: data}
}

type UserJoinedPayload struct {
	Participant *Participant `json:"participant"`
}

type UserLeftPayload struct {
	RoomID RoomID `json:"room_id"`
	UserID UserID `json:"user_id"`
}

type RoomUpdatedPayload struct {
	Room *Room `json:"room"`
}

type PositionUpdatePayload struct {
	RoomID   RoomID `json:"room_id"`
	UserID   UserID `json:"user_id"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
}

type InteractionPayload struct {
	RoomID RoomID           `json:"room_id"`
	Event  InteractionEvent `json:"event"`
}

type AssetAddedPayload struct {
	Asset *RoomAsset `json:"asset"`
}

// AssetUpdatedPayload carries only the changed fields plus the identifier.
type AssetUpdatedPayload struct {
	RoomID  RoomID     `json:"room_id"`
	AssetID AssetID    `json:"asset_id"`
	Patch   AssetPatch `json:"patch"`
}

type AssetRemovedPayload struct {
	RoomID  RoomID  `json:"room_id"`
	AssetID AssetID `json:"asset_id"`
}

type LivestreamPayload struct {
	Session *LivestreamSession `json:"session"`
}

// LivestreamJoinedPayload acknowledges a viewer's join. The rtc session id
// identifies this viewer's peer connection attempt in subsequent signaling.
type LivestreamJoinedPayload struct {
	Session      *LivestreamSession `json:"session"`
	RTCSessionID string             `json:"rtc_session_id"`
}

type ViewerPayload struct {
	StreamID    StreamID `json:"stream_id"`
	UserID      UserID   `json:"user_id"`
	ViewerCount int      `json:"viewer_count"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewRoomJoinedEvent(snapshot *RoomSnapshot) Envelope {
	return mustEnvelope(EventRoomJoined, snapshot)
}

func NewUserJoinedEvent(p *Participant) Envelope {
	return mustEnvelope(EventUserJoined, UserJoinedPayload{Participant: p})
}

func NewUserLeftEvent(roomID RoomID, userID UserID) Envelope {
	return mustEnvelope(EventUserLeft, UserLeftPayload{RoomID: roomID, UserID: userID})
}

func NewRoomUpdatedEvent(room *Room) Envelope {
	return mustEnvelope(EventRoomUpdated, RoomUpdatedPayload{Room: room})
}

func NewPositionUpdateEvent(roomID RoomID, userID UserID, pose Pose) Envelope {
	return mustEnvelope(EventPositionUpdate, PositionUpdatePayload{
		RoomID:   roomID,
		UserID:   userID,
		Position: pose.Position,
		Rotation: pose.Rotation,
	})
}

func NewInteractionEvent(roomID RoomID, ev InteractionEvent) Envelope {
	return mustEnvelope(EventVRInteraction, InteractionPayload{RoomID: roomID, Event: ev})
}

func NewAssetAddedEvent(asset *RoomAsset) Envelope {
	return mustEnvelope(EventAssetAdded, AssetAddedPayload{Asset: asset})
}

func NewAssetUpdatedEvent(roomID RoomID, assetID AssetID, patch AssetPatch) Envelope {
	return mustEnvelope(EventAssetUpdated, AssetUpdatedPayload{RoomID: roomID, AssetID: assetID, Patch: patch})
}

func NewAssetRemovedEvent(roomID RoomID, assetID AssetID) Envelope {
	return mustEnvelope(EventAssetRemoved, AssetRemovedPayload{RoomID: roomID, AssetID: assetID})
}

func NewLivestreamPreparingEvent(s *LivestreamSession) Envelope {
	return mustEnvelope(EventLivestreamPreparing, LivestreamPayload{Session: s})
}

func NewLivestreamLiveEvent(s *LivestreamSession) Envelope {
	return mustEnvelope(EventLivestreamLive, LivestreamPayload{Session: s})
}

func NewLivestreamJoinedEvent(s *LivestreamSession, rtcSessionID string) Envelope {
	return mustEnvelope(EventLivestreamJoined, LivestreamJoinedPayload{Session: s, RTCSessionID: rtcSessionID})
}

func NewViewerJoinedEvent(streamID StreamID, userID UserID, viewerCount int) Envelope {
	return mustEnvelope(EventViewerJoined, ViewerPayload{StreamID: streamID, UserID: userID, ViewerCount: viewerCount})
}

func NewViewerLeftEvent(streamID StreamID, userID UserID, viewerCount int) Envelope {
	return mustEnvelope(EventViewerLeft, ViewerPayload{StreamID: streamID, UserID: userID, ViewerCount: viewerCount})
}

func NewRTCSignalingEvent(sig RTCSignal) Envelope {
	return mustEnvelope(EventRTCSignaling, sig)
}

func NewRTCICECandidateEvent(sig RTCSignal) Envelope {
	return mustEnvelope(EventRTCICECandidate, sig)
}

func NewLivestreamEndedEvent(s *LivestreamSession) Envelope {
	return mustEnvelope(EventLivestreamEnded, LivestreamPayload{Session: s})
}

func NewErrorEvent(code, message string) Envelope {
	return mustEnvelope(EventError, ErrorPayload{Code: code, Message: message})
}
