package domain

import (
	"context"
	"time"
)

// ResultCache stores serialized upstream results for a short time.
// Get returns ErrNotFound on a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides short-lived distributed locks. Acquire returns
// ErrLockHeld when another holder owns key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
