package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/culturalbot/eventbot/internal/model"
)

const mediaKeyPrefix = "media:"

type RedisMediaCache struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisMediaCache(rdb *redis.Client) *RedisMediaCache {
	return &RedisMediaCache{rdb: rdb, now: time.Now}
}

type mediaValue struct {
	MediaID   string    `json:"mediaId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func mediaKey(sourceURL string) string {
	return mediaKeyPrefix + sourceURL
}

func (c *RedisMediaCache) Get(ctx context.Context, sourceURL string) (model.MediaEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, mediaKey(sourceURL)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.MediaEntry{}, false, nil
	}
	if err != nil {
		return model.MediaEntry{}, false, err
	}

	var v mediaValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.MediaEntry{}, false, err
	}
	// Redis expiry is not trusted alone; the stored deadline decides.
	if !v.ExpiresAt.After(c.now()) {
		return model.MediaEntry{}, false, nil
	}
	return model.MediaEntry{SourceURL: sourceURL, MediaID: v.MediaID, ExpiresAt: v.ExpiresAt}, true, nil
}

func (c *RedisMediaCache) Put(ctx context.Context, e model.MediaEntry) error {
	ttl := e.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	b, err := json.Marshal(mediaValue{
		MediaID:   e.MediaID,
		ExpiresAt: e.ExpiresAt.UTC(),
	})
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, mediaKey(e.SourceURL), b, ttl).Err()
}

// Sweep deletes entries whose stored deadline passed but whose key has not
// expired in Redis yet.
func (c *RedisMediaCache) Sweep(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	now := c.now()

	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, mediaKeyPrefix+"*", 100).Result()
		if err != nil {
			return removed, err
		}

		for _, key := range keys {
			raw, err := c.rdb.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return removed, err
			}

			var v mediaValue
			if err := json.Unmarshal(raw, &v); err == nil && v.ExpiresAt.After(now) {
				continue
			}
			n, err := c.rdb.Del(ctx, key).Result()
			if err != nil {
				return removed, err
			}
			removed += n
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
