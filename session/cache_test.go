package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewCache(rdb, "test", time.Hour)
}

func TestCachePutPeekRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	in := &Identity{ID: 5, Email: "alice@example.com", Username: "alice", Roles: []string{"admin"}, Active: true}
	if err := cache.Put(ctx, 3, in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	out, gen, err := cache.Peek(ctx)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if gen != 3 {
		t.Fatalf("generation = %d", gen)
	}
	if out.ID != 5 || out.Email != "alice@example.com" || !out.HasRole("admin") {
		t.Fatalf("identity = %+v", out)
	}
}

func TestCachePeekMiss(t *testing.T) {
	cache := newTestCache(t)
	if _, _, err := cache.Peek(context.Background()); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestCacheRefusesGenerationRegression(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, 5, &Identity{ID: 1, Email: "newer@example.com"}); err != nil {
		t.Fatalf("Put gen 5 failed: %v", err)
	}
	// A stale writer from another instance must not clobber the newer record.
	if err := cache.Put(ctx, 3, &Identity{ID: 2, Email: "older@example.com"}); err != nil {
		t.Fatalf("Put gen 3 failed: %v", err)
	}

	out, gen, err := cache.Peek(ctx)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if gen != 5 || out.Email != "newer@example.com" {
		t.Fatalf("stale write clobbered the cache: gen=%d identity=%+v", gen, out)
	}

	// A genuinely newer generation replaces it.
	if err := cache.Put(ctx, 7, &Identity{ID: 3, Email: "newest@example.com"}); err != nil {
		t.Fatalf("Put gen 7 failed: %v", err)
	}
	_, gen, err = cache.Peek(ctx)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if gen != 7 {
		t.Fatalf("expected gen 7, got %d", gen)
	}
}

func TestCacheEqualGenerationIsDropped(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, 4, &Identity{ID: 1, Email: "first@example.com"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Put(ctx, 4, &Identity{ID: 2, Email: "second@example.com"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	out, _, err := cache.Peek(ctx)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if out.Email != "first@example.com" {
		t.Fatalf("equal generation must not overwrite, got %+v", out)
	}
}

func TestCacheDelete(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, 1, &Identity{ID: 1, Email: "a@b.c"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Delete(ctx); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := cache.Peek(ctx); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}

	// Idempotent on an empty key.
	if err := cache.Delete(ctx); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
}

func TestCacheNilIdentityIsNoOp(t *testing.T) {
	cache := newTestCache(t)
	if err := cache.Put(context.Background(), 9, nil); err != nil {
		t.Fatalf("nil identity Put must be a no-op, got %v", err)
	}
	if _, _, err := cache.Peek(context.Background()); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}
