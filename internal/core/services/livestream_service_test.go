package services

import (
	"context"
	"testing"

	"vroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLiveSession(t *testing.T, env *testEnv, room *domain.Room, streamer domain.UserID) *domain.LivestreamSession {
	t.Helper()

	ctx := context.Background()
	session, err := env.livestream.Start(ctx, room.ID, streamer)
	require.NoError(t, err)
	session, err = env.livestream.GoLive(ctx, session.ID, streamer)
	require.NoError(t, err)
	return session
}

func TestLivestreamService_Start(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "owner", "streamer")

	session, err := env.livestream.Start(ctx, room.ID, "streamer")
	require.NoError(t, err)
	assert.Equal(t, domain.StreamPreparing, session.Status)
	assert.Equal(t, domain.UserID("streamer"), session.StreamerID)

	preparing := env.notifier.broadcastsOfType(domain.EventLivestreamPreparing)
	require.Len(t, preparing, 1)
	assert.Equal(t, domain.UserID("streamer"), preparing[0].exclude)
}

func TestLivestreamService_Start_OnePerRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "owner", "other")

	_, err := env.livestream.Start(ctx, room.ID, "owner")
	require.NoError(t, err)

	_, err = env.livestream.Start(ctx, room.ID, "other")
	assert.ErrorIs(t, err, domain.ErrStreamConflict)
}

func TestLivestreamService_Start_NonMember(t *testing.T) {
	env := newTestEnv(t)

	room := env.createRoomWithMembers(t, "owner")

	_, err := env.livestream.Start(context.Background(), room.ID, "stranger")
	assert.ErrorIs(t, err, domain.ErrNotMember)
}

func TestLivestreamService_GoLive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "owner", "viewer")

	session, err := env.livestream.Start(ctx, room.ID, "owner")
	require.NoError(t, err)

	_, err = env.livestream.GoLive(ctx, session.ID, "viewer")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	live, err := env.livestream.GoLive(ctx, session.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.StreamLive, live.Status)

	// Going live twice conflicts, the session is no longer preparing.
	_, err = env.livestream.GoLive(ctx, session.ID, "owner")
	assert.ErrorIs(t, err, domain.ErrStreamConflict)
}

func TestLivestreamService_Join(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "viewer")
	session := startLiveSession(t, env, room, "streamer")

	joined, rtcID, err := env.livestream.Join(ctx, session.ID, "viewer")
	require.NoError(t, err)
	assert.NotEmpty(t, rtcID)
	assert.Equal(t, 1, joined.ViewerCount)

	// The streamer gets a direct notification.
	direct := env.notifier.directOfType("streamer", domain.EventViewerJoined)
	require.Len(t, direct, 1)

	var p domain.ViewerPayload
	require.NoError(t, direct[0].Decode(&p))
	assert.Equal(t, domain.UserID("viewer"), p.UserID)
	assert.Equal(t, 1, p.ViewerCount)
}

func TestLivestreamService_Join_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "viewer")
	session := startLiveSession(t, env, room, "streamer")

	_, firstID, err := env.livestream.Join(ctx, session.ID, "viewer")
	require.NoError(t, err)
	joined, secondID, err := env.livestream.Join(ctx, session.ID, "viewer")
	require.NoError(t, err)

	assert.Equal(t, firstID, secondID)
	assert.Equal(t, 1, joined.ViewerCount)
	assert.Len(t, env.notifier.directOfType("streamer", domain.EventViewerJoined), 1)
}

func TestLivestreamService_Join_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "viewer")

	session, err := env.livestream.Start(ctx, room.ID, "streamer")
	require.NoError(t, err)

	// The streamer cannot view its own session.
	_, _, err = env.livestream.Join(ctx, session.ID, "streamer")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Viewers must be room members.
	_, _, err = env.livestream.Join(ctx, session.ID, "stranger")
	assert.ErrorIs(t, err, domain.ErrNotMember)

	// An ended session refuses joins.
	_, err = env.livestream.GoLive(ctx, session.ID, "streamer")
	require.NoError(t, err)
	require.NoError(t, env.livestream.End(ctx, session.ID, "streamer"))
	_, _, err = env.livestream.Join(ctx, session.ID, "viewer")
	assert.ErrorIs(t, err, domain.ErrStreamNotLive)
}

func TestLivestreamService_Join_WhilePreparing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "viewer")

	session, err := env.livestream.Start(ctx, room.ID, "streamer")
	require.NoError(t, err)
	require.Equal(t, domain.StreamPreparing, session.Status)

	// Early viewers can attach before the streamer goes live, so signaling
	// can complete during preparation.
	joined, rtcID, err := env.livestream.Join(ctx, session.ID, "viewer")
	require.NoError(t, err)
	assert.NotEmpty(t, rtcID)
	assert.Equal(t, 1, joined.ViewerCount)
}

func TestLivestreamService_Leave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "viewer")
	session := startLiveSession(t, env, room, "streamer")

	_, _, err := env.livestream.Join(ctx, session.ID, "viewer")
	require.NoError(t, err)

	require.NoError(t, env.livestream.Leave(ctx, session.ID, "viewer"))

	direct := env.notifier.directOfType("streamer", domain.EventViewerLeft)
	require.Len(t, direct, 1)

	var p domain.ViewerPayload
	require.NoError(t, direct[0].Decode(&p))
	assert.Equal(t, 0, p.ViewerCount)

	// Leaving a stream never watched is a no-op.
	require.NoError(t, env.livestream.Leave(ctx, session.ID, "viewer"))
	assert.Len(t, env.notifier.directOfType("streamer", domain.EventViewerLeft), 1)
}

func TestLivestreamService_End(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "viewer")
	session := startLiveSession(t, env, room, "streamer")

	_, _, err := env.livestream.Join(ctx, session.ID, "viewer")
	require.NoError(t, err)

	assert.ErrorIs(t, env.livestream.End(ctx, session.ID, "viewer"), domain.ErrForbidden)
	require.NoError(t, env.livestream.End(ctx, session.ID, "streamer"))

	ended, err := env.livestream.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamEnded, ended.Status)
	assert.Equal(t, 0, ended.ViewerCount)
	assert.NotNil(t, ended.EndedAt)

	// The whole room hears the end, viewers included.
	events := env.notifier.broadcastsOfType(domain.EventLivestreamEnded)
	require.Len(t, events, 1)
	assert.Equal(t, domain.UserID(""), events[0].exclude)

	// Ending twice is idempotent.
	require.NoError(t, env.livestream.End(ctx, session.ID, "streamer"))
	assert.Len(t, env.notifier.broadcastsOfType(domain.EventLivestreamEnded), 1)

	// The room is free for a new session.
	_, err = env.livestream.Start(ctx, room.ID, "viewer")
	assert.NoError(t, err)
}

func TestLivestreamService_End_RoomHostCanEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "host", "streamer", "viewer")
	session := startLiveSession(t, env, room, "streamer")

	assert.ErrorIs(t, env.livestream.End(ctx, session.ID, "viewer"), domain.ErrForbidden)
	require.NoError(t, env.livestream.End(ctx, session.ID, "host"))

	ended, err := env.livestream.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamEnded, ended.Status)
}

func TestLivestreamService_RelaySignal_StreamerToViewer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "v1", "v2")
	session := startLiveSession(t, env, room, "streamer")

	_, _, err := env.livestream.Join(ctx, session.ID, "v1")
	require.NoError(t, err)
	_, _, err = env.livestream.Join(ctx, session.ID, "v2")
	require.NoError(t, err)

	// Addressed signal reaches exactly the addressed viewer.
	err = env.livestream.RelaySignal(ctx, "streamer", domain.RTCSignal{
		Kind:     domain.SignalOffer,
		StreamID: session.ID,
		ToID:     "v1",
		SDP:      "offer-sdp",
	})
	require.NoError(t, err)
	require.Len(t, env.notifier.directOfType("v1", domain.EventRTCSignaling), 1)
	assert.Empty(t, env.notifier.directOfType("v2", domain.EventRTCSignaling))

	var sig domain.RTCSignal
	require.NoError(t, env.notifier.directOfType("v1", domain.EventRTCSignaling)[0].Decode(&sig))
	assert.Equal(t, domain.UserID("streamer"), sig.FromID)

	// Unaddressed signal goes to every viewer.
	err = env.livestream.RelaySignal(ctx, "streamer", domain.RTCSignal{
		Kind:     domain.SignalOffer,
		StreamID: session.ID,
		SDP:      "offer-sdp",
	})
	require.NoError(t, err)
	assert.Len(t, env.notifier.directOfType("v1", domain.EventRTCSignaling), 2)
	assert.Len(t, env.notifier.directOfType("v2", domain.EventRTCSignaling), 1)

	// Addressing a non-viewer fails.
	err = env.livestream.RelaySignal(ctx, "streamer", domain.RTCSignal{
		Kind:     domain.SignalOffer,
		StreamID: session.ID,
		ToID:     "stranger",
		SDP:      "offer-sdp",
	})
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestLivestreamService_RelaySignal_ViewerToStreamer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "v1", "v2")
	session := startLiveSession(t, env, room, "streamer")

	_, _, err := env.livestream.Join(ctx, session.ID, "v1")
	require.NoError(t, err)

	// Viewer signals terminate at the streamer, whatever ToID claims.
	err = env.livestream.RelaySignal(ctx, "v1", domain.RTCSignal{
		Kind:     domain.SignalAnswer,
		StreamID: session.ID,
		ToID:     "v2",
		SDP:      "answer-sdp",
	})
	require.NoError(t, err)

	direct := env.notifier.directOfType("streamer", domain.EventRTCSignaling)
	require.Len(t, direct, 1)

	var sig domain.RTCSignal
	require.NoError(t, direct[0].Decode(&sig))
	assert.Equal(t, domain.UserID("streamer"), sig.ToID)
	assert.Equal(t, domain.UserID("v1"), sig.FromID)

	// A room member that never joined the stream cannot signal into it.
	err = env.livestream.RelaySignal(ctx, "v2", domain.RTCSignal{
		Kind:     domain.SignalAnswer,
		StreamID: session.ID,
		SDP:      "answer-sdp",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestLivestreamService_RelaySignal_ICECandidateEnvelope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "v1")
	session := startLiveSession(t, env, room, "streamer")

	_, _, err := env.livestream.Join(ctx, session.ID, "v1")
	require.NoError(t, err)

	err = env.livestream.RelaySignal(ctx, "v1", domain.RTCSignal{
		Kind:      domain.SignalICECandidate,
		StreamID:  session.ID,
		Candidate: `{"candidate":"candidate:1"}`,
	})
	require.NoError(t, err)

	assert.Len(t, env.notifier.directOfType("streamer", domain.EventRTCICECandidate), 1)
}

func TestLivestreamService_RelaySignal_EndedSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "v1")
	session := startLiveSession(t, env, room, "streamer")

	require.NoError(t, env.livestream.End(ctx, session.ID, "streamer"))

	err := env.livestream.RelaySignal(ctx, "streamer", domain.RTCSignal{
		Kind:     domain.SignalOffer,
		StreamID: session.ID,
		SDP:      "offer-sdp",
	})
	assert.ErrorIs(t, err, domain.ErrStreamNotLive)
}

func TestLivestreamService_HandleDisconnect_Streamer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "viewer")
	session := startLiveSession(t, env, room, "streamer")

	_, _, err := env.livestream.Join(ctx, session.ID, "viewer")
	require.NoError(t, err)

	env.livestream.HandleDisconnect(ctx, "streamer")

	ended, err := env.livestream.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamEnded, ended.Status)
	assert.Len(t, env.notifier.broadcastsOfType(domain.EventLivestreamEnded), 1)
}

func TestLivestreamService_HandleDisconnect_StreamerInSeveralRooms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	roomA := env.createRoomWithMembers(t, "streamer")
	roomB := env.createRoomWithMembers(t, "streamer")

	first, err := env.livestream.Start(ctx, roomA.ID, "streamer")
	require.NoError(t, err)
	second := startLiveSession(t, env, roomB, "streamer")

	env.livestream.HandleDisconnect(ctx, "streamer")

	// Every session the user was broadcasting ends, not just the latest,
	// so neither room is left permanently blocked by a ghost session.
	for _, id := range []domain.StreamID{first.ID, second.ID} {
		ended, err := env.livestream.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StreamEnded, ended.Status)
	}

	_, err = env.livestream.Start(ctx, roomA.ID, "streamer")
	assert.NoError(t, err)
}

func TestLivestreamService_HandleDisconnect_Viewer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.createRoomWithMembers(t, "streamer", "viewer")
	session := startLiveSession(t, env, room, "streamer")

	_, _, err := env.livestream.Join(ctx, session.ID, "viewer")
	require.NoError(t, err)

	env.livestream.HandleDisconnect(ctx, "viewer")

	current, err := env.livestream.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamLive, current.Status)
	assert.Equal(t, 0, current.ViewerCount)
	assert.Len(t, env.notifier.directOfType("streamer", domain.EventViewerLeft), 1)
}
