package memory

import (
	"context"
	"sync"

	"quizki/internal/app"
	"quizki/internal/domain"
)

// AnswerKeyCache keeps correct choices in a map. Each session gets its own.
type AnswerKeyCache struct {
	mu   sync.RWMutex
	keys map[string]domain.AnswerKey
}

var _ app.AnswerKeyCache = (*AnswerKeyCache)(nil)

func NewAnswerKeyCache() *AnswerKeyCache {
	return &AnswerKeyCache{keys: make(map[string]domain.AnswerKey)}
}

// AnswerKeyFactory builds a fresh cache per session.
func AnswerKeyFactory() app.AnswerKeyFactory {
	return func(string) app.AnswerKeyCache {
		return NewAnswerKeyCache()
	}
}

func (c *AnswerKeyCache) Put(_ context.Context, questionID string, key domain.AnswerKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[questionID] = key
	return nil
}

func (c *AnswerKeyCache) Get(_ context.Context, questionID string) (domain.AnswerKey, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.keys[questionID]
	return key, ok, nil
}
