package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newRedisCache usa o Redis de TEST_REDIS_ADDR (banco 15, limpo no início); sem a variável o teste é pulado.
func newRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()
	if err := c.Del(ctx, keyActiveEvents, keyActiveEventsVersion).Err(); err != nil {
		t.Fatalf("redis: %v", err)
	}
	return NewRedisCache(c, time.Minute)
}

func TestRedisCacheMissSetHit(t *testing.T) {
	r := newRedisCache(t)
	ctx := context.Background()

	_, v, hit, err := r.ActiveEvents(ctx)
	if err != nil || hit {
		t.Fatalf("want miss, got hit=%v err=%v", hit, err)
	}
	stored, err := r.SetActiveEvents(ctx, []string{"E1", "E2"}, v)
	if err != nil || !stored {
		t.Fatalf("set: stored=%v err=%v", stored, err)
	}
	ids, _, hit, err := r.ActiveEvents(ctx)
	if err != nil || !hit || len(ids) != 2 || ids[1] != "E2" {
		t.Fatalf("want hit, got %v %v %v", ids, hit, err)
	}
}

func TestRedisCacheInvalidateRejectsStaleSet(t *testing.T) {
	r := newRedisCache(t)
	ctx := context.Background()

	_, v, _, err := r.ActiveEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if stored, err := r.SetActiveEvents(ctx, []string{"old"}, v); err != nil || stored {
		t.Fatalf("stale set stored=%v err=%v", stored, err)
	}
	if _, _, hit, _ := r.ActiveEvents(ctx); hit {
		t.Fatal("stale listing must not be cached")
	}

	_, v, _, _ = r.ActiveEvents(ctx)
	if stored, err := r.SetActiveEvents(ctx, []string{"new"}, v); err != nil || !stored {
		t.Fatalf("fresh set stored=%v err=%v", stored, err)
	}
}
