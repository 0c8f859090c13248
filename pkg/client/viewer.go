package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"vroom/internal/core/domain"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
)

const pliInterval = 3 * time.Second

// TrackHandler receives every depacketized RTP read from a remote track.
// mimeType distinguishes audio from video.
type TrackHandler func(mimeType string, payload []byte)

// StreamViewer is the receiving side of a livestream: a single peer
// connection answering the streamer's offer, with media arriving on remote
// tracks.
type StreamViewer struct {
	ch           *Channel
	streamID     domain.StreamID
	rtcSessionID string
	rtcConf      webrtc.Configuration
	onTrack      TrackHandler

	mu     sync.Mutex
	pc     *webrtc.PeerConnection
	closed bool
	done   chan struct{}

	session *domain.LivestreamSession
	subs    []subscription
}

// JoinStream subscribes to the livestream and waits for the coordinator's
// acknowledgment. The peer connection is created lazily when the streamer's
// offer arrives; onTrack fires for every media packet after that.
func JoinStream(ctx context.Context, ch *Channel, streamID domain.StreamID, iceServers []webrtc.ICEServer, onTrack TrackHandler) (*StreamViewer, error) {
	v := &StreamViewer{
		ch:       ch,
		streamID: streamID,
		rtcConf:  webrtc.Configuration{ICEServers: iceServers},
		onTrack:  onTrack,
		done:     make(chan struct{}),
	}
	v.subscribe()

	if err := ch.Emit("join_livestream", map[string]interface{}{"stream_id": streamID}); err != nil {
		v.unsubscribe()
		return nil, err
	}

	ev, err := ch.waitFor(ctx, domain.EventLivestreamJoined, func(ev domain.Envelope) bool {
		var p domain.LivestreamJoinedPayload
		return ev.Decode(&p) == nil && p.Session != nil && p.Session.ID == streamID
	})
	if err != nil {
		v.unsubscribe()
		return nil, fmt.Errorf("join livestream %s: %w", streamID, err)
	}

	var ack domain.LivestreamJoinedPayload
	if err := ev.Decode(&ack); err != nil {
		v.unsubscribe()
		return nil, fmt.Errorf("decode livestream ack: %w", err)
	}
	v.mu.Lock()
	v.session = ack.Session
	v.rtcSessionID = ack.RTCSessionID
	v.mu.Unlock()

	return v, nil
}

func (v *StreamViewer) subscribe() {
	sub := func(t domain.EventType, fn Handler) {
		v.subs = append(v.subs, subscription{t: t, id: v.ch.Handle(t, fn)})
	}

	sub(domain.EventRTCSignaling, func(ev domain.Envelope) {
		var sig domain.RTCSignal
		if ev.Decode(&sig) != nil || sig.StreamID != v.streamID || sig.Kind != domain.SignalOffer {
			return
		}
		if err := v.answer(sig); err != nil {
			v.ch.opts.Logger.Errorw("failed to answer offer",
				"stream_id", v.streamID,
				"error", err)
		}
	})

	sub(domain.EventRTCICECandidate, func(ev domain.Envelope) {
		var sig domain.RTCSignal
		if ev.Decode(&sig) != nil || sig.StreamID != v.streamID {
			return
		}
		v.handleRemoteCandidate(sig)
	})

	sub(domain.EventLivestreamEnded, func(ev domain.Envelope) {
		var p domain.LivestreamPayload
		if ev.Decode(&p) != nil || p.Session == nil || p.Session.ID != v.streamID {
			return
		}
		v.teardown()
	})
}

func (v *StreamViewer) unsubscribe() {
	for _, sub := range v.subs {
		v.ch.Unhandle(sub.t, sub.id)
	}
	v.subs = nil
}

// answer builds the peer connection, applies the streamer's offer and sends
// the answer back. A repeated offer replaces the previous connection.
func (v *StreamViewer) answer(sig domain.RTCSignal) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrChannelClosed
	}
	if v.pc != nil {
		v.pc.Close()
		v.pc = nil
	}
	v.mu.Unlock()

	pc, err := webrtc.NewPeerConnection(v.rtcConf)
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}

	cleanup := func(err error) error {
		pc.Close()
		return err
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		v.sendCandidate(c)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		go v.readTrack(pc, track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed {
			v.ch.opts.Logger.Warnw("stream peer connection failed", "stream_id", v.streamID)
		}
	})

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sig.SDP}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return cleanup(fmt.Errorf("failed to set remote description: %w", err))
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return cleanup(fmt.Errorf("failed to create answer: %w", err))
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return cleanup(fmt.Errorf("failed to set local description: %w", err))
	}

	v.mu.Lock()
	v.pc = pc
	v.mu.Unlock()

	return v.ch.Emit("rtc_signal", domain.RTCSignal{
		Kind:     domain.SignalAnswer,
		StreamID: v.streamID,
		SDP:      answer.SDP,
	})
}

// readTrack pumps one remote track into the handler. Video tracks get a
// periodic PLI so the streamer resends a keyframe after loss.
func (v *StreamViewer) readTrack(pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	mimeType := track.Codec().MimeType

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		go v.sendPLI(pc, track)
	}

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				v.ch.opts.Logger.Warnw("track read ended", "mime_type", mimeType, "error", err)
			}
			return
		}
		if v.onTrack != nil {
			v.onTrack(mimeType, pkt.Payload)
		}
	}
}

func (v *StreamViewer) sendPLI(pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()

	for {
		select {
		case <-v.done:
			return
		case <-ticker.C:
			err := pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
			})
			if err != nil {
				return
			}
		}
	}
}

func (v *StreamViewer) handleRemoteCandidate(sig domain.RTCSignal) {
	v.mu.Lock()
	pc := v.pc
	v.mu.Unlock()
	if pc == nil {
		return
	}

	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(sig.Candidate), &init); err != nil {
		v.ch.opts.Logger.Warnw("bad ICE candidate", "stream_id", v.streamID, "error", err)
		return
	}
	if err := pc.AddICECandidate(init); err != nil {
		v.ch.opts.Logger.Warnw("failed to add ICE candidate", "stream_id", v.streamID, "error", err)
	}
}

// sendCandidate trickles a local candidate upstream. The coordinator routes
// viewer signals to the streamer, so no target is set.
func (v *StreamViewer) sendCandidate(c *webrtc.ICECandidate) {
	data, err := json.Marshal(c.ToJSON())
	if err != nil {
		return
	}
	if err := v.ch.Emit("rtc_signal", domain.RTCSignal{
		Kind:      domain.SignalICECandidate,
		StreamID:  v.streamID,
		Candidate: string(data),
	}); err != nil {
		v.ch.opts.Logger.Warnw("failed to send ICE candidate", "stream_id", v.streamID, "error", err)
	}
}

// Session returns the session state from the join acknowledgment.
func (v *StreamViewer) Session() *domain.LivestreamSession {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

// RTCSessionID identifies this viewer's peer connection attempt.
func (v *StreamViewer) RTCSessionID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rtcSessionID
}

// Leave tells the coordinator to drop this viewer and releases local
// resources.
func (v *StreamViewer) Leave() error {
	err := v.ch.Emit("leave_livestream", map[string]interface{}{"stream_id": v.streamID})
	v.teardown()
	return err
}

// Close releases the peer connection and subscriptions without notifying the
// coordinator. Idempotent.
func (v *StreamViewer) Close() {
	v.teardown()
}

func (v *StreamViewer) teardown() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	pc := v.pc
	v.pc = nil
	close(v.done)
	v.mu.Unlock()

	if pc != nil {
		pc.Close()
	}
	v.unsubscribe()
}
