package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// ResultCache implements domain.ResultCache with plain string keys.
//
// Key schema:
//
//	{prefix}result:{key} - opaque JSON payload with a TTL
type ResultCache struct {
	c *Client
}

// NewResultCache creates a ResultCache backed by the given Client.
func NewResultCache(c *Client) *ResultCache {
	return &ResultCache{c: c}
}

// Get returns the cached payload for key, or domain.ErrNotFound.
func (rc *ResultCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := rc.c.rdb.Get(ctx, rc.c.key("result", key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get result %s: %w", key, err)
	}
	return data, nil
}

// Set stores value under key for ttl. A non-positive ttl is a no-op so
// results are never cached forever.
func (rc *ResultCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := rc.c.rdb.Set(ctx, rc.c.key("result", key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set result %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResultCache = (*ResultCache)(nil)
