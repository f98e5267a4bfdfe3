package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/culturalbot/eventbot/internal/model"
)

var _ MediaCache = (*RedisMediaCache)(nil)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *RedisMediaCache) {
	t.Helper()

	// Start in-memory Redis
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, NewRedisMediaCache(rdb)
}

func TestRedisMediaCache_PutGet(t *testing.T) {
	t.Parallel()

	mr, c := newTestCache(t)
	ctx := context.Background()

	now := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	entry := model.MediaEntry{
		SourceURL: "https://images.ctfassets.net/x/poster.jpg",
		MediaID:   "wa-media-1",
		ExpiresAt: now.Add(25 * 24 * time.Hour),
	}
	if err := c.Put(ctx, entry); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	key := "media:https://images.ctfassets.net/x/poster.jpg"
	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if ttl := mr.TTL(key); ttl != 25*24*time.Hour {
		t.Fatalf("expected TTL of 25 days, got %v", ttl)
	}

	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", key, err)
	}
	var stored mediaValue
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if stored.MediaID != "wa-media-1" {
		t.Fatalf("unexpected stored media id %q", stored.MediaID)
	}

	got, ok, err := c.Get(ctx, entry.SourceURL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !ok || got.MediaID != "wa-media-1" {
		t.Fatalf("expected cache hit, got ok=%v entry=%+v", ok, got)
	}
	if !got.ExpiresAt.Equal(entry.ExpiresAt) {
		t.Fatalf("expected expiresAt %v, got %v", entry.ExpiresAt, got.ExpiresAt)
	}
}

func TestRedisMediaCache_Miss(t *testing.T) {
	t.Parallel()

	_, c := newTestCache(t)

	_, ok, err := c.Get(context.Background(), "https://nope")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Fatalf("expected miss")
	}
}

func TestRedisMediaCache_ExpiredEntryNeverReturnedAndSwept(t *testing.T) {
	t.Parallel()

	mr, c := newTestCache(t)
	ctx := context.Background()

	now := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Put(ctx, model.MediaEntry{SourceURL: "a", MediaID: "1", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := c.Put(ctx, model.MediaEntry{SourceURL: "b", MediaID: "2", ExpiresAt: now.Add(48 * time.Hour)}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	// Clock moves past the first deadline while Redis has not expired the key.
	now = now.Add(2 * time.Hour)

	if _, ok, err := c.Get(ctx, "a"); err != nil || ok {
		t.Fatalf("expired entry must not be returned, ok=%v err=%v", ok, err)
	}
	if !mr.Exists("media:a") {
		t.Fatalf("expected lazy reclamation, key should still exist before sweep")
	}

	n, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if mr.Exists("media:a") {
		t.Fatalf("expected media:a swept")
	}
	if !mr.Exists("media:b") {
		t.Fatalf("expected media:b kept")
	}
}

func TestRedisMediaCache_PutAlreadyExpiredIsNoop(t *testing.T) {
	t.Parallel()

	mr, c := newTestCache(t)

	if err := c.Put(context.Background(), model.MediaEntry{SourceURL: "x", MediaID: "1", ExpiresAt: time.Now().Add(-time.Second)}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if mr.Exists("media:x") {
		t.Fatalf("expired entry should not be stored")
	}
}

func TestRedisMediaCache_ContextCanceled(t *testing.T) {
	t.Parallel()

	_, c := newTestCache(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Put(ctx, model.MediaEntry{SourceURL: "x", MediaID: "1", ExpiresAt: time.Now().Add(time.Hour)})
	if err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}
