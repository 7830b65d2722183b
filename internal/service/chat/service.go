package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	// lock 是容量为 1 的信号量，保证同一会话的轮次串行执行，且等待可被 ctx 取消。
	lock    chan struct{}
	session *chat.Session
}

// Service keeps intake sessions in memory. Sessions never share state; turns on one
// session are serialized through Do.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewService bootstraps the in-memory session registry.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// CreateSession provisions a new active session and returns a snapshot of it.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.NewSession(uuid.NewString(), s.now())

	s.mu.Lock()
	s.sessions[session.ID] = &entry{
		lock:    make(chan struct{}, 1),
		session: session,
	}
	s.mu.Unlock()

	return *session.Clone(), nil
}

// GetSession retrieves a snapshot of a session by identifier.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	var snapshot chat.Session
	err := s.Do(ctx, sessionID, func(session *chat.Session) error {
		snapshot = *session.Clone()
		return nil
	})
	return snapshot, err
}

// Do runs fn with exclusive access to the live session. Changes fn makes to the session are kept.
func (s *Service) Do(ctx context.Context, sessionID string, fn func(*chat.Session) error) error {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.lock }()

	return fn(e.session)
}

// DeleteSession drops a session. Deleting an unknown id is not an error.
func (s *Service) DeleteSession(_ context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Len returns the number of sessions held.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
