package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"
	"vroom/pkg/utils"

	"go.uber.org/zap"
)

type livestreamService struct {
	streamRepo      ports.LivestreamRepository
	roomRepo        ports.RoomRepository
	participantRepo ports.ParticipantRepository
	notifier        ports.Notifier
	metrics         *MetricsService
	logger          *zap.SugaredLogger

	mu sync.Mutex
	// viewers maps each stream to its viewer set; the value is the rtc
	// session id handed out when the viewer joined.
	viewers map[domain.StreamID]map[domain.UserID]string
	// byStreamer tracks the non-ended sessions each user is broadcasting,
	// so a dropped connection can end them without a repository scan. A
	// streamer holds at most one session per room but may broadcast into
	// several rooms at once.
	byStreamer map[domain.UserID]map[domain.StreamID]struct{}
	// viewing is the reverse index of viewers, used on disconnect.
	viewing map[domain.UserID]map[domain.StreamID]struct{}
}

func NewLivestreamService(
	streamRepo ports.LivestreamRepository,
	roomRepo ports.RoomRepository,
	participantRepo ports.ParticipantRepository,
	notifier ports.Notifier,
	metrics *MetricsService,
	logger *zap.SugaredLogger,
) ports.LivestreamService {
	return &livestreamService{
		streamRepo:      streamRepo,
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
		notifier:        notifier,
		metrics:         metrics,
		logger:          logger,
		viewers:         make(map[domain.StreamID]map[domain.UserID]string),
		byStreamer:      make(map[domain.UserID]map[domain.StreamID]struct{}),
		viewing:         make(map[domain.UserID]map[domain.StreamID]struct{}),
	}
}

func (s *livestreamService) Start(ctx context.Context, roomID domain.RoomID, streamerID domain.UserID) (*domain.LivestreamSession, error) {
	if _, err := s.roomRepo.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	if _, err := s.participantRepo.Get(ctx, roomID, streamerID); err != nil {
		return nil, err
	}

	// One non-ended session per room.
	if _, err := s.streamRepo.ActiveByRoom(ctx, roomID); err == nil {
		return nil, domain.ErrStreamConflict
	} else if err != domain.ErrStreamNotFound {
		return nil, err
	}

	session := &domain.LivestreamSession{
		ID:         domain.StreamID(utils.GenerateStreamID()),
		RoomID:     roomID,
		StreamerID: streamerID,
		Status:     domain.StreamPreparing,
		CreatedAt:  time.Now(),
	}

	if err := s.streamRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create livestream session: %w", err)
	}

	s.mu.Lock()
	s.viewers[session.ID] = make(map[domain.UserID]string)
	if s.byStreamer[streamerID] == nil {
		s.byStreamer[streamerID] = make(map[domain.StreamID]struct{})
	}
	s.byStreamer[streamerID][session.ID] = struct{}{}
	s.mu.Unlock()

	s.metrics.SetStreamActive(roomID, true)
	s.notifier.BroadcastToRoom(ctx, roomID, streamerID, domain.NewLivestreamPreparingEvent(session))

	s.logger.Infow("livestream session created",
		"stream_id", session.ID,
		"room_id", roomID,
		"streamer_id", streamerID)

	return session, nil
}

func (s *livestreamService) GoLive(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*domain.LivestreamSession, error) {
	session, err := s.streamRepo.GetByID(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if session.StreamerID != userID {
		return nil, domain.ErrForbidden
	}
	if session.Status != domain.StreamPreparing {
		return nil, domain.ErrStreamConflict
	}

	session.Status = domain.StreamLive
	if err := s.streamRepo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update livestream session: %w", err)
	}

	s.notifier.BroadcastToRoom(ctx, session.RoomID, userID, domain.NewLivestreamLiveEvent(session))

	return session, nil
}

func (s *livestreamService) Get(ctx context.Context, streamID domain.StreamID) (*domain.LivestreamSession, error) {
	return s.streamRepo.GetByID(ctx, streamID)
}

func (s *livestreamService) Join(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (*domain.LivestreamSession, string, error) {
	session, err := s.streamRepo.GetByID(ctx, streamID)
	if err != nil {
		return nil, "", err
	}
	// Viewers may join while the streamer is still preparing; only an ended
	// session refuses them.
	if !session.Active() {
		return nil, "", domain.ErrStreamNotLive
	}
	if _, err := s.participantRepo.Get(ctx, session.RoomID, userID); err != nil {
		return nil, "", err
	}
	if session.StreamerID == userID {
		return nil, "", domain.ErrForbidden
	}

	s.mu.Lock()
	set, ok := s.viewers[streamID]
	if !ok {
		set = make(map[domain.UserID]string)
		s.viewers[streamID] = set
	}
	rtcID, rejoining := set[userID]
	if !rejoining {
		rtcID = utils.GenerateRTCSessionID()
		set[userID] = rtcID
		streams, ok := s.viewing[userID]
		if !ok {
			streams = make(map[domain.StreamID]struct{})
			s.viewing[userID] = streams
		}
		streams[streamID] = struct{}{}
	}
	count := len(set)
	s.mu.Unlock()

	// Joining twice is idempotent: the viewer keeps its rtc session id and
	// the count does not move, so no event is published.
	if !rejoining {
		session.ViewerCount = count
		if err := s.streamRepo.Update(ctx, session); err != nil {
			s.logger.Errorw("failed to persist viewer count", "stream_id", streamID, "error", err)
		}
		s.metrics.SetViewerCount(session.RoomID, count)

		ev := domain.NewViewerJoinedEvent(streamID, userID, count)
		if err := s.notifier.SendToUser(ctx, session.StreamerID, ev); err != nil {
			s.logger.Warnw("streamer unreachable for viewer_joined", "stream_id", streamID, "error", err)
		}
		s.notifier.BroadcastToRoom(ctx, session.RoomID, session.StreamerID, ev)
	}

	return session, rtcID, nil
}

func (s *livestreamService) Leave(ctx context.Context, streamID domain.StreamID, userID domain.UserID) error {
	session, err := s.streamRepo.GetByID(ctx, streamID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	set := s.viewers[streamID]
	_, present := set[userID]
	if present {
		delete(set, userID)
		if streams := s.viewing[userID]; streams != nil {
			delete(streams, streamID)
			if len(streams) == 0 {
				delete(s.viewing, userID)
			}
		}
	}
	count := len(set)
	s.mu.Unlock()

	// Leaving a stream never watched is a no-op.
	if !present {
		return nil
	}

	if session.Active() {
		session.ViewerCount = count
		if err := s.streamRepo.Update(ctx, session); err != nil {
			s.logger.Errorw("failed to persist viewer count", "stream_id", streamID, "error", err)
		}
		s.metrics.SetViewerCount(session.RoomID, count)

		ev := domain.NewViewerLeftEvent(streamID, userID, count)
		if err := s.notifier.SendToUser(ctx, session.StreamerID, ev); err != nil {
			s.logger.Warnw("streamer unreachable for viewer_left", "stream_id", streamID, "error", err)
		}
		s.notifier.BroadcastToRoom(ctx, session.RoomID, session.StreamerID, ev)
	}

	return nil
}

func (s *livestreamService) End(ctx context.Context, streamID domain.StreamID, userID domain.UserID) error {
	session, err := s.streamRepo.GetByID(ctx, streamID)
	if err != nil {
		return err
	}
	if session.StreamerID != userID {
		room, err := s.roomRepo.GetByID(ctx, session.RoomID)
		if err != nil {
			return err
		}
		// The room host can pull the plug on someone else's stream.
		if room.OwnerID != userID {
			return domain.ErrForbidden
		}
	}
	// Ending twice is idempotent.
	if session.Status == domain.StreamEnded {
		return nil
	}

	return s.end(ctx, session)
}

func (s *livestreamService) end(ctx context.Context, session *domain.LivestreamSession) error {
	now := time.Now()
	session.Status = domain.StreamEnded
	session.ViewerCount = 0
	session.EndedAt = &now

	if err := s.streamRepo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to end livestream session: %w", err)
	}

	s.mu.Lock()
	for userID := range s.viewers[session.ID] {
		if streams := s.viewing[userID]; streams != nil {
			delete(streams, session.ID)
			if len(streams) == 0 {
				delete(s.viewing, userID)
			}
		}
	}
	delete(s.viewers, session.ID)
	if streams := s.byStreamer[session.StreamerID]; streams != nil {
		delete(streams, session.ID)
		if len(streams) == 0 {
			delete(s.byStreamer, session.StreamerID)
		}
	}
	s.mu.Unlock()

	s.metrics.SetStreamActive(session.RoomID, false)
	s.metrics.SetViewerCount(session.RoomID, 0)

	// Everyone in the room hears the end, viewers included, so clients can
	// tear their peer connections down.
	s.notifier.BroadcastToRoom(ctx, session.RoomID, "", domain.NewLivestreamEndedEvent(session))

	s.logger.Infow("livestream session ended",
		"stream_id", session.ID,
		"room_id", session.RoomID)

	return nil
}

func (s *livestreamService) RelaySignal(ctx context.Context, fromID domain.UserID, sig domain.RTCSignal) error {
	session, err := s.streamRepo.GetByID(ctx, sig.StreamID)
	if err != nil {
		return err
	}
	if !session.Active() {
		return domain.ErrStreamNotLive
	}

	sig.FromID = fromID

	var ev domain.Envelope
	if sig.Kind == domain.SignalICECandidate {
		ev = domain.NewRTCICECandidateEvent(sig)
	} else {
		ev = domain.NewRTCSignalingEvent(sig)
	}

	if fromID == session.StreamerID {
		// Streamer signals go to one viewer when addressed, otherwise to
		// every current viewer.
		if sig.ToID != "" {
			s.mu.Lock()
			_, isViewer := s.viewers[sig.StreamID][sig.ToID]
			s.mu.Unlock()
			if !isViewer {
				return domain.ErrNotConnected
			}
			return s.notifier.SendToUser(ctx, sig.ToID, ev)
		}
		s.mu.Lock()
		targets := make([]domain.UserID, 0, len(s.viewers[sig.StreamID]))
		for userID := range s.viewers[sig.StreamID] {
			targets = append(targets, userID)
		}
		s.mu.Unlock()
		s.notifier.SendToUsers(ctx, targets, ev)
		return nil
	}

	// Viewer signals always terminate at the streamer, whatever ToID says.
	s.mu.Lock()
	_, isViewer := s.viewers[sig.StreamID][fromID]
	s.mu.Unlock()
	if !isViewer {
		return domain.ErrForbidden
	}
	sig.ToID = session.StreamerID
	return s.notifier.SendToUser(ctx, session.StreamerID, ev)
}

func (s *livestreamService) HandleDisconnect(ctx context.Context, userID domain.UserID) {
	s.mu.Lock()
	streamed := make([]domain.StreamID, 0, len(s.byStreamer[userID]))
	for streamID := range s.byStreamer[userID] {
		streamed = append(streamed, streamID)
	}
	viewed := make([]domain.StreamID, 0, len(s.viewing[userID]))
	for streamID := range s.viewing[userID] {
		viewed = append(viewed, streamID)
	}
	s.mu.Unlock()

	for _, streamID := range viewed {
		if err := s.Leave(ctx, streamID, userID); err != nil {
			s.logger.Errorw("failed to remove disconnected viewer",
				"stream_id", streamID,
				"user_id", userID,
				"error", err)
		}
	}

	for _, streamID := range streamed {
		session, err := s.streamRepo.GetByID(ctx, streamID)
		if err != nil {
			s.logger.Errorw("failed to load session for disconnected streamer",
				"stream_id", streamID,
				"error", err)
			continue
		}
		if session.Status != domain.StreamEnded {
			if err := s.end(ctx, session); err != nil {
				s.logger.Errorw("failed to end session for disconnected streamer",
					"stream_id", streamID,
					"error", err)
			}
		}
	}
}
