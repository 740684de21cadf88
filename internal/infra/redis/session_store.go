package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"quizki/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions themselves stay in a local map; Redis only carries a liveness marker
// per quiz so another process can see that an attempt is under way.
type SessionStore struct {
	client   *redis.Client
	prefix   string
	slack    time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

var _ app.SessionRepository = (*SessionStore)(nil)

// NewSessionStore creates a store whose markers outlive a session's time budget by slack.
func NewSessionStore(client *redis.Client, prefix string, slack time.Duration) *SessionStore {
	if prefix == "" {
		prefix = "quizki"
	}
	return &SessionStore{
		client:   client,
		prefix:   prefix,
		slack:    slack,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	quizID := session.Quiz().ID
	previous := s.sessions[quizID]
	s.sessions[quizID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(quizID), session.ID(), session.TimeBudget()+s.slack).Err()
	return previous
}

func (s *SessionStore) Remove(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quizID := session.Quiz().ID
	current, ok := s.sessions[quizID]
	if !ok || current != session {
		return
	}
	delete(s.sessions, quizID)
	ctx := context.Background()
	if marker, err := s.client.Get(ctx, s.key(quizID)).Result(); err == nil && marker == session.ID() {
		_ = s.client.Del(ctx, s.key(quizID)).Err()
	}
}

// Active returns the session ID holding the liveness marker for quizID, if any.
func (s *SessionStore) Active(ctx context.Context, quizID string) (string, bool, error) {
	id, err := s.client.Get(ctx, s.key(quizID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *SessionStore) key(quizID string) string {
	return s.prefix + ":session:" + quizID
}
