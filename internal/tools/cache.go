// internal/tools/cache.go
package tools

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// PageCache stores cleaned pages keyed by URL. Implementations fail soft:
// a broken cache behaves like an empty one.
type PageCache interface {
	Get(ctx context.Context, url string) (*Page, bool)
	Put(ctx context.Context, page *Page)
}

// RedisCache keeps pages in Redis with a fixed TTL
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache wraps rdb; a non-positive ttl defaults to 30 minutes
func NewRedisCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{rdb: rdb, ttl: ttl, logger: logger.With("component", "page-cache")}
}

func pageKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "jarvis:page:" + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, url string) (*Page, bool) {
	raw, err := c.rdb.Get(ctx, pageKey(url)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("cache get failed", "url", url, "err", err)
		}
		return nil, false
	}
	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, false
	}
	return &page, true
}

func (c *RedisCache) Put(ctx context.Context, page *Page) {
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, pageKey(page.URL), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("cache put failed", "url", page.URL, "err", err)
	}
}
