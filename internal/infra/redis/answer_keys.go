package redis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"quizki/internal/app"
	"quizki/internal/domain"
)

// AnswerKeyCache keeps correct choices in Redis so they survive between runs and
// are shared by every session using the same prefix.
// Choices are stored as: HSET {prefix}:answers     {questionID} {choiceID}
// Texts are stored as:   HSET {prefix}:answer_text {questionID} {text}
type AnswerKeyCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

var _ app.AnswerKeyCache = (*AnswerKeyCache)(nil)

func NewAnswerKeyCache(client *redis.Client, prefix string, ttl time.Duration) *AnswerKeyCache {
	if prefix == "" {
		prefix = "quizki"
	}
	return &AnswerKeyCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AnswerKeyFactory hands every session the same Redis-backed cache.
func AnswerKeyFactory(cache *AnswerKeyCache) app.AnswerKeyFactory {
	return func(string) app.AnswerKeyCache {
		return cache
	}
}

func (c *AnswerKeyCache) Put(ctx context.Context, questionID string, key domain.AnswerKey) error {
	answersKey := c.answersKey()
	textKey := c.textKey()

	ttl := c.ttlWithJitter()
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, answersKey, questionID, key.ChoiceID)
	pipe.HSet(ctx, textKey, questionID, key.Text)
	if ttl > 0 {
		pipe.Expire(ctx, answersKey, ttl)
		pipe.Expire(ctx, textKey, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *AnswerKeyCache) Get(ctx context.Context, questionID string) (domain.AnswerKey, bool, error) {
	pipe := c.client.Pipeline()
	choiceCmd := pipe.HGet(ctx, c.answersKey(), questionID)
	textCmd := pipe.HGet(ctx, c.textKey(), questionID)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.AnswerKey{}, false, err
	}

	choiceID, err := choiceCmd.Result()
	if errors.Is(err, redis.Nil) {
		return domain.AnswerKey{}, false, nil
	}
	if err != nil {
		return domain.AnswerKey{}, false, err
	}
	// text is optional
	text, _ := textCmd.Result()
	return domain.AnswerKey{ChoiceID: choiceID, Text: text}, true, nil
}

func (c *AnswerKeyCache) answersKey() string {
	return c.prefix + ":answers"
}

func (c *AnswerKeyCache) textKey() string {
	return c.prefix + ":answer_text"
}

func (c *AnswerKeyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
