package signal

import (
	"context"
	"sync"
	"time"

	"vroom/internal/core/domain"
	"vroom/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// session is one registered channel connection. Writes go through the
// session's own mutex so concurrent fan-outs never interleave frames.
type session struct {
	userID domain.UserID
	conn   *websocket.Conn

	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func (s *session) write(ev domain.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteJSON(ev)
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// Registry tracks connected users and fans events out to them. It is the
// process-local delivery plane behind ports.Notifier: a user not present in
// the registry is simply skipped.
type Registry struct {
	participantRepo ports.ParticipantRepository

	mu       sync.RWMutex
	sessions map[domain.UserID]*session

	writeTimeout time.Duration
	logger       *zap.SugaredLogger
}

func NewRegistry(participantRepo ports.ParticipantRepository, writeTimeout time.Duration, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		participantRepo: participantRepo,
		sessions:        make(map[domain.UserID]*session),
		writeTimeout:    writeTimeout,
		logger:          logger,
	}
}

// register binds a connection to a user. When the user already has a live
// session the old connection is closed and replaced.
func (r *Registry) register(userID domain.UserID, conn *websocket.Conn) *session {
	sess := &session{
		userID:       userID,
		conn:         conn,
		writeTimeout: r.writeTimeout,
	}

	r.mu.Lock()
	old, replacing := r.sessions[userID]
	r.sessions[userID] = sess
	r.mu.Unlock()

	if replacing {
		old.conn.Close()
		r.logger.Infow("closed stale connection for reconnecting user", "user_id", userID)
	}

	return sess
}

// unregister removes the session if it is still the current one for the
// user and reports whether it was. A reconnect that already replaced it is
// left alone, and the caller must not treat the user as gone.
func (r *Registry) unregister(sess *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[sess.userID]; ok && current == sess {
		delete(r.sessions, sess.userID)
		return true
	}
	return false
}

func (r *Registry) get(userID domain.UserID) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[userID]
	return sess, ok
}

func (r *Registry) IsConnected(userID domain.UserID) bool {
	_, ok := r.get(userID)
	return ok
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

func (r *Registry) SendToUser(ctx context.Context, userID domain.UserID, ev domain.Envelope) error {
	sess, ok := r.get(userID)
	if !ok {
		return domain.ErrNotConnected
	}

	if err := sess.write(ev); err != nil {
		r.logger.Warnw("failed to write to user", "user_id", userID, "type", ev.Type, "error", err)
		return err
	}
	return nil
}

func (r *Registry) SendToUsers(ctx context.Context, userIDs []domain.UserID, ev domain.Envelope) {
	for _, userID := range userIDs {
		sess, ok := r.get(userID)
		if !ok {
			continue
		}
		if err := sess.write(ev); err != nil {
			r.logger.Warnw("failed to write to user", "user_id", userID, "type", ev.Type, "error", err)
		}
	}
}

func (r *Registry) BroadcastToRoom(ctx context.Context, roomID domain.RoomID, exclude domain.UserID, ev domain.Envelope) {
	members, err := r.participantRepo.ListByRoom(ctx, roomID)
	if err != nil {
		r.logger.Errorw("failed to list room members for broadcast", "room_id", roomID, "type", ev.Type, "error", err)
		return
	}

	for _, member := range members {
		if member.UserID == exclude {
			continue
		}
		sess, ok := r.get(member.UserID)
		if !ok {
			continue
		}
		if err := sess.write(ev); err != nil {
			r.logger.Warnw("failed to write to room member",
				"room_id", roomID,
				"user_id", member.UserID,
				"type", ev.Type,
				"error", err)
		}
	}
}

var _ ports.Notifier = (*Registry)(nil)
