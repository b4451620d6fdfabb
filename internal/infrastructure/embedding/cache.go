package embedding

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes vectors in Redis keyed by a hash of the input text. A nil
// Cache and every Redis failure degrade to recomputing the embedding; the
// cache is never allowed to fail a request.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, text string) ([]float32, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("embedding_cache_get_failed", "error", err)
		}
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil, false
	}
	return vector, true
}

func (c *Cache) Put(ctx context.Context, text string, vector []float32) {
	if c == nil || c.rdb == nil || vector == nil {
		return
	}
	raw, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(text), raw, c.ttl).Err(); err != nil {
		slog.Debug("embedding_cache_put_failed", "error", err)
	}
}

func cacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return "emb:" + hex.EncodeToString(sum[:])
}
