package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"quizki/internal/domain"
)

func TestAnswerKeyCacheStoresInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewAnswerKeyCache(newClient(mr), "test", time.Minute)
	ctx := context.Background()

	if err := cache.Put(ctx, "101", domain.AnswerKey{ChoiceID: "1001", Text: "Paris"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := mr.HGet("test:answers", "101"); got != "1001" {
		t.Fatalf("expected choice hash entry, got %q", got)
	}
	if ttl := mr.TTL("test:answers"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with jitter, got %v", ttl)
	}

	key, ok, err := cache.Get(ctx, "101")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if key.ChoiceID != "1001" || key.Text != "Paris" {
		t.Fatalf("unexpected key %+v", key)
	}
}

func TestAnswerKeyCacheMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewAnswerKeyCache(newClient(mr), "", 0)
	key, ok, err := cache.Get(context.Background(), "404")
	if err != nil {
		t.Fatalf("expected miss without error, got %v", err)
	}
	if ok {
		t.Fatalf("expected miss, got %+v", key)
	}

	if err := cache.Put(context.Background(), "1", domain.AnswerKey{ChoiceID: "2"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ttl := mr.TTL("quizki:answers"); ttl != 0 {
		t.Fatalf("expected no expiry without ttl, got %v", ttl)
	}
}

func TestAnswerKeyFactorySharesCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	factory := AnswerKeyFactory(NewAnswerKeyCache(newClient(mr), "shared", time.Minute))
	ctx := context.Background()
	if err := factory("s1").Put(ctx, "7", domain.AnswerKey{ChoiceID: "70", Text: "seventy"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if key, ok, _ := factory("s2").Get(ctx, "7"); !ok || key.ChoiceID != "70" {
		t.Fatalf("expected second session to see the key, got %+v ok=%v", key, ok)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
