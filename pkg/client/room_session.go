package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vroom/internal/core/domain"
)

// RoomSession is a client's live view of one room. It mirrors the snapshot
// received on join and keeps it current from the event stream.
type RoomSession struct {
	ch     *Channel
	roomID domain.RoomID

	mu           sync.RWMutex
	room         *domain.Room
	self         *domain.Participant
	participants map[domain.UserID]*domain.Participant
	assets       map[domain.AssetID]*domain.RoomAsset
	livestream   *domain.LivestreamSession

	subs []subscription
}

type subscription struct {
	t  domain.EventType
	id int
}

// JoinRoom enters the room and returns a session primed with the snapshot.
// The context bounds how long to wait for the coordinator's response.
func JoinRoom(ctx context.Context, ch *Channel, roomID domain.RoomID, accessCode string) (*RoomSession, error) {
	s := &RoomSession{
		ch:           ch,
		roomID:       roomID,
		participants: make(map[domain.UserID]*domain.Participant),
		assets:       make(map[domain.AssetID]*domain.RoomAsset),
	}
	s.subscribe()

	err := ch.Emit("join_room", struct {
		RoomID     domain.RoomID `json:"room_id"`
		AccessCode string        `json:"access_code,omitempty"`
	}{RoomID: roomID, AccessCode: accessCode})
	if err != nil {
		s.unsubscribe()
		return nil, err
	}

	ev, err := ch.waitFor(ctx, domain.EventRoomJoined, func(ev domain.Envelope) bool {
		var snap domain.RoomSnapshot
		if ev.Decode(&snap) != nil || snap.Room == nil {
			return false
		}
		return snap.Room.ID == roomID
	})
	if err != nil {
		s.unsubscribe()
		return nil, fmt.Errorf("join room %s: %w", roomID, err)
	}

	var snap domain.RoomSnapshot
	if err := ev.Decode(&snap); err != nil {
		s.unsubscribe()
		return nil, fmt.Errorf("bad room snapshot: %w", err)
	}

	s.mu.Lock()
	s.room = snap.Room
	s.self = snap.Participant
	for _, p := range snap.Participants {
		s.participants[p.UserID] = p
	}
	for _, a := range snap.Assets {
		s.assets[a.ID] = a
	}
	s.livestream = snap.Livestream
	s.mu.Unlock()

	return s, nil
}

func (s *RoomSession) subscribe() {
	sub := func(t domain.EventType, fn Handler) {
		s.subs = append(s.subs, subscription{t: t, id: s.ch.Handle(t, fn)})
	}

	sub(domain.EventUserJoined, func(ev domain.Envelope) {
		var p domain.UserJoinedPayload
		if ev.Decode(&p) != nil || p.Participant == nil || p.Participant.RoomID != s.roomID {
			return
		}
		s.mu.Lock()
		s.participants[p.Participant.UserID] = p.Participant
		s.mu.Unlock()
	})

	sub(domain.EventUserLeft, func(ev domain.Envelope) {
		var p domain.UserLeftPayload
		if ev.Decode(&p) != nil || p.RoomID != s.roomID {
			return
		}
		s.mu.Lock()
		delete(s.participants, p.UserID)
		s.mu.Unlock()
	})

	sub(domain.EventRoomUpdated, func(ev domain.Envelope) {
		var p domain.RoomUpdatedPayload
		if ev.Decode(&p) != nil || p.Room == nil || p.Room.ID != s.roomID {
			return
		}
		s.mu.Lock()
		s.room = p.Room
		s.mu.Unlock()
	})

	sub(domain.EventPositionUpdate, func(ev domain.Envelope) {
		var p domain.PositionUpdatePayload
		if ev.Decode(&p) != nil || p.RoomID != s.roomID {
			return
		}
		s.mu.Lock()
		if participant, ok := s.participants[p.UserID]; ok {
			participant.Pose = domain.Pose{Position: p.Position, Rotation: p.Rotation}
		}
		s.mu.Unlock()
	})

	sub(domain.EventAssetAdded, func(ev domain.Envelope) {
		var p domain.AssetAddedPayload
		if ev.Decode(&p) != nil || p.Asset == nil || p.Asset.RoomID != s.roomID {
			return
		}
		s.mu.Lock()
		s.assets[p.Asset.ID] = p.Asset
		s.mu.Unlock()
	})

	sub(domain.EventAssetUpdated, func(ev domain.Envelope) {
		var p domain.AssetUpdatedPayload
		if ev.Decode(&p) != nil || p.RoomID != s.roomID {
			return
		}
		s.mu.Lock()
		if asset, ok := s.assets[p.AssetID]; ok {
			asset.Apply(p.Patch)
		}
		s.mu.Unlock()
	})

	sub(domain.EventAssetRemoved, func(ev domain.Envelope) {
		var p domain.AssetRemovedPayload
		if ev.Decode(&p) != nil || p.RoomID != s.roomID {
			return
		}
		s.mu.Lock()
		delete(s.assets, p.AssetID)
		s.mu.Unlock()
	})

	streamUpdate := func(ev domain.Envelope) {
		var p domain.LivestreamPayload
		if ev.Decode(&p) != nil || p.Session == nil || p.Session.RoomID != s.roomID {
			return
		}
		s.mu.Lock()
		s.livestream = p.Session
		s.mu.Unlock()
	}
	sub(domain.EventLivestreamPreparing, streamUpdate)
	sub(domain.EventLivestreamLive, streamUpdate)

	sub(domain.EventLivestreamEnded, func(ev domain.Envelope) {
		var p domain.LivestreamPayload
		if ev.Decode(&p) != nil || p.Session == nil || p.Session.RoomID != s.roomID {
			return
		}
		s.mu.Lock()
		s.livestream = nil
		s.mu.Unlock()
	})
}

func (s *RoomSession) unsubscribe() {
	for _, sub := range s.subs {
		s.ch.Unhandle(sub.t, sub.id)
	}
	s.subs = nil
}

// Room returns the current room settings.
func (s *RoomSession) Room() *domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

// Self returns this client's participant record.
func (s *RoomSession) Self() *domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self
}

// Participants returns the current room membership.
func (s *RoomSession) Participants() []*domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	return out
}

// Assets returns the room's shared assets.
func (s *RoomSession) Assets() []*domain.RoomAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.RoomAsset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	return out
}

// Livestream returns the room's active livestream session, or nil.
func (s *RoomSession) Livestream() *domain.LivestreamSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.livestream
}

// UpdatePose sends this client's pose. The update is optimistic: the local
// view changes immediately and is never rolled back on failure, the next
// successful update simply supersedes it.
func (s *RoomSession) UpdatePose(pose domain.Pose) error {
	s.mu.Lock()
	if s.self != nil {
		s.self.Pose = pose
	}
	s.mu.Unlock()

	return s.ch.Emit("position_update", struct {
		RoomID   domain.RoomID `json:"room_id"`
		Position domain.Vec3   `json:"position"`
		Rotation domain.Vec3   `json:"rotation"`
	}{RoomID: s.roomID, Position: pose.Position, Rotation: pose.Rotation})
}

// SendInteraction relays an interaction event to the other members.
func (s *RoomSession) SendInteraction(t domain.InteractionType, data json.RawMessage) error {
	return s.ch.Emit("vr_interaction", struct {
		RoomID domain.RoomID          `json:"room_id"`
		Type   domain.InteractionType `json:"interaction_type"`
		Data   json.RawMessage        `json:"data,omitempty"`
	}{RoomID: s.roomID, Type: t, Data: data})
}

// Teleport jumps this client to a new pose and announces it as a teleport
// interaction, so peers can suppress movement interpolation.
func (s *RoomSession) Teleport(pose domain.Pose) error {
	payload, err := json.Marshal(domain.TeleportPayload{Pose: pose})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.self != nil {
		s.self.Pose = pose
	}
	s.mu.Unlock()

	return s.SendInteraction(domain.InteractionTeleport, payload)
}

// InteractAsset relays an interaction with a shared asset.
func (s *RoomSession) InteractAsset(assetID domain.AssetID, interactionType string, data json.RawMessage) error {
	return s.ch.Emit("interact_asset", struct {
		RoomID          domain.RoomID   `json:"room_id"`
		AssetID         domain.AssetID  `json:"asset_id"`
		InteractionType string          `json:"interaction_type"`
		Data            json.RawMessage `json:"data,omitempty"`
	}{RoomID: s.roomID, AssetID: assetID, InteractionType: interactionType, Data: data})
}

// Leave exits the room and releases the session's subscriptions.
func (s *RoomSession) Leave(ctx context.Context) error {
	defer s.unsubscribe()

	err := s.ch.Emit("leave_room", struct {
		RoomID domain.RoomID `json:"room_id"`
	}{RoomID: s.roomID})
	if err != nil {
		return err
	}

	// Give the write time to flush before the caller tears the channel down.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}
	return nil
}
