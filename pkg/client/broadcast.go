package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"vroom/internal/core/domain"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// Broadcaster is the streamer side of a livestream: one peer connection per
// viewer, all fed from a shared pair of RTP tracks. Media flows directly to
// viewers; only signaling passes through the coordinator.
type Broadcaster struct {
	ch       *Channel
	streamID domain.StreamID
	rtcConf  webrtc.Configuration

	videoTrack *webrtc.TrackLocalStaticRTP
	audioTrack *webrtc.TrackLocalStaticRTP

	mu      sync.Mutex
	viewers map[domain.UserID]*webrtc.PeerConnection
	closed  bool

	subs []subscription
}

// StartBroadcast wires a Broadcaster onto the channel for the given stream.
// The caller must have started the livestream and gone live already. Close
// tears down every viewer connection; it runs even when setup of individual
// viewers fails, so no peer connection outlives the broadcast.
func StartBroadcast(ch *Channel, streamID domain.StreamID, iceServers []webrtc.ICEServer) (*Broadcaster, error) {
	videoTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video",
		"vroom-video",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}

	audioTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"vroom-audio",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}

	b := &Broadcaster{
		ch:         ch,
		streamID:   streamID,
		rtcConf:    webrtc.Configuration{ICEServers: iceServers},
		videoTrack: videoTrack,
		audioTrack: audioTrack,
		viewers:    make(map[domain.UserID]*webrtc.PeerConnection),
	}
	b.subscribe()

	return b, nil
}

func (b *Broadcaster) subscribe() {
	sub := func(t domain.EventType, fn Handler) {
		b.subs = append(b.subs, subscription{t: t, id: b.ch.Handle(t, fn)})
	}

	sub(domain.EventViewerJoined, func(ev domain.Envelope) {
		var p domain.ViewerPayload
		if ev.Decode(&p) != nil || p.StreamID != b.streamID {
			return
		}
		if err := b.offerTo(p.UserID); err != nil {
			b.ch.opts.Logger.Errorw("failed to offer to viewer",
				"stream_id", b.streamID,
				"viewer_id", p.UserID,
				"error", err)
		}
	})

	sub(domain.EventViewerLeft, func(ev domain.Envelope) {
		var p domain.ViewerPayload
		if ev.Decode(&p) != nil || p.StreamID != b.streamID {
			return
		}
		b.dropViewer(p.UserID)
	})

	sub(domain.EventRTCSignaling, func(ev domain.Envelope) {
		var sig domain.RTCSignal
		if ev.Decode(&sig) != nil || sig.StreamID != b.streamID || sig.Kind != domain.SignalAnswer {
			return
		}
		b.handleAnswer(sig)
	})

	sub(domain.EventRTCICECandidate, func(ev domain.Envelope) {
		var sig domain.RTCSignal
		if ev.Decode(&sig) != nil || sig.StreamID != b.streamID {
			return
		}
		b.handleRemoteCandidate(sig)
	})

	sub(domain.EventLivestreamEnded, func(ev domain.Envelope) {
		var p domain.LivestreamPayload
		if ev.Decode(&p) != nil || p.Session == nil || p.Session.ID != b.streamID {
			return
		}
		b.Close()
	})
}

// offerTo builds the viewer's peer connection and sends the offer. Any
// failure closes the half-built connection before returning.
func (b *Broadcaster) offerTo(viewerID domain.UserID) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrChannelClosed
	}
	if old, ok := b.viewers[viewerID]; ok {
		old.Close()
		delete(b.viewers, viewerID)
	}
	b.mu.Unlock()

	pc, err := webrtc.NewPeerConnection(b.rtcConf)
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}

	cleanup := func(err error) error {
		pc.Close()
		return err
	}

	if _, err := pc.AddTrack(b.videoTrack); err != nil {
		return cleanup(fmt.Errorf("failed to add video track: %w", err))
	}
	if _, err := pc.AddTrack(b.audioTrack); err != nil {
		return cleanup(fmt.Errorf("failed to add audio track: %w", err))
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		b.sendCandidate(viewerID, c)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			b.dropViewer(viewerID)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return cleanup(fmt.Errorf("failed to create offer: %w", err))
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return cleanup(fmt.Errorf("failed to set local description: %w", err))
	}

	b.mu.Lock()
	b.viewers[viewerID] = pc
	b.mu.Unlock()

	return b.ch.Emit("rtc_signal", domain.RTCSignal{
		Kind:     domain.SignalOffer,
		StreamID: b.streamID,
		ToID:     viewerID,
		SDP:      offer.SDP,
	})
}

func (b *Broadcaster) handleAnswer(sig domain.RTCSignal) {
	b.mu.Lock()
	pc := b.viewers[sig.FromID]
	b.mu.Unlock()
	if pc == nil {
		return
	}

	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sig.SDP}
	if err := pc.SetRemoteDescription(desc); err != nil {
		b.ch.opts.Logger.Errorw("failed to apply answer",
			"stream_id", b.streamID,
			"viewer_id", sig.FromID,
			"error", err)
	}
}

func (b *Broadcaster) handleRemoteCandidate(sig domain.RTCSignal) {
	b.mu.Lock()
	pc := b.viewers[sig.FromID]
	b.mu.Unlock()
	if pc == nil {
		return
	}

	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(sig.Candidate), &init); err != nil {
		b.ch.opts.Logger.Warnw("bad ICE candidate", "viewer_id", sig.FromID, "error", err)
		return
	}
	if err := pc.AddICECandidate(init); err != nil {
		b.ch.opts.Logger.Warnw("failed to add ICE candidate", "viewer_id", sig.FromID, "error", err)
	}
}

func (b *Broadcaster) sendCandidate(viewerID domain.UserID, c *webrtc.ICECandidate) {
	data, err := json.Marshal(c.ToJSON())
	if err != nil {
		return
	}
	if err := b.ch.Emit("rtc_signal", domain.RTCSignal{
		Kind:      domain.SignalICECandidate,
		StreamID:  b.streamID,
		ToID:      viewerID,
		Candidate: string(data),
	}); err != nil {
		b.ch.opts.Logger.Warnw("failed to send ICE candidate", "viewer_id", viewerID, "error", err)
	}
}

func (b *Broadcaster) dropViewer(viewerID domain.UserID) {
	b.mu.Lock()
	pc, ok := b.viewers[viewerID]
	if ok {
		delete(b.viewers, viewerID)
	}
	b.mu.Unlock()

	if ok {
		pc.Close()
	}
}

// WriteVideo feeds one RTP packet to every connected viewer's video track.
func (b *Broadcaster) WriteVideo(pkt *rtp.Packet) error {
	return b.videoTrack.WriteRTP(pkt)
}

// WriteAudio feeds one RTP packet to every connected viewer's audio track.
func (b *Broadcaster) WriteAudio(pkt *rtp.Packet) error {
	return b.audioTrack.WriteRTP(pkt)
}

// ViewerCount returns the number of peer connections currently held.
func (b *Broadcaster) ViewerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.viewers)
}

// Close releases every viewer connection and the channel subscriptions.
// Idempotent.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	viewers := b.viewers
	b.viewers = make(map[domain.UserID]*webrtc.PeerConnection)
	b.mu.Unlock()

	for _, pc := range viewers {
		pc.Close()
	}
	for _, sub := range b.subs {
		b.ch.Unhandle(sub.t, sub.id)
	}
}
