package memory

import (
	"context"
	"sync"

	"quizki/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository. It keeps
// at most one active session per quiz.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

var _ app.SessionRepository = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

// Put registers session as the active one for its quiz and returns the session it replaced.
func (s *SessionStore) Put(session *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	quizID := session.Quiz().ID
	previous := s.sessions[quizID]
	s.sessions[quizID] = session
	return previous
}

// Active returns the ID of the session registered for quizID in this process.
func (s *SessionStore) Active(_ context.Context, quizID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[quizID]
	if !ok {
		return "", false, nil
	}
	return session.ID(), true, nil
}

// Remove forgets session if it is still the active one for its quiz.
func (s *SessionStore) Remove(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quizID := session.Quiz().ID
	if current, ok := s.sessions[quizID]; ok && current == session {
		delete(s.sessions, quizID)
	}
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
