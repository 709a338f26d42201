package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})

	store, err := NewRedisStore(rdb)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestRedisStore_GetSetRemove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "budget", `{"max_budget":500}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, err := store.Get(ctx, "budget")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != `{"max_budget":500}` {
		t.Fatalf("unexpected value %q", val)
	}

	if err := store.Remove(ctx, "budget"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.Get(ctx, "budget"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestRedisStore_RemoveMissingIsNoop(t *testing.T) {
	store := newTestStore(t)
	if err := store.Remove(context.Background(), "never-set"); err != nil {
		t.Fatalf("remove missing key: %v", err)
	}
}
