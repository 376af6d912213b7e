package redis

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

//go:embed scripts/unlock.lua
var unlockLua string

// releaseTimeout bounds the unlock round trip; release runs after the
// caller's context may already be done.
const releaseTimeout = 5 * time.Second

// LockManager hands out expiring locks keyed by name. Each holder is
// identified by a random token so a holder whose lock expired cannot release
// the next holder's lock.
type LockManager struct {
	c      *Client
	unlock *redis.Script
	logger *slog.Logger
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client, logger *slog.Logger) *LockManager {
	return &LockManager{
		c:      c,
		unlock: redis.NewScript(unlockLua),
		logger: logger.With(slog.String("component", "redis_lock")),
	}
}

// Acquire takes the lock for key without waiting. It returns
// domain.ErrLockHeld when someone else holds it. The returned release
// function is idempotent.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("redis: lock %s: ttl must be positive", key)
	}
	token := uuid.NewString()
	lk := lm.c.key("lock", key)

	ok, err := lm.c.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := lm.unlock.Run(ctx, lm.c.rdb, []string{lk}, token).Err(); err != nil {
				lm.logger.Warn("release lock failed, it will expire on its own",
					slog.String("key", key),
					slog.Duration("ttl", ttl),
					slog.String("error", err.Error()),
				)
			}
		})
	}
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
