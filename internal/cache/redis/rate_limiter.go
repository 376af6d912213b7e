package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// SlidingWindow is a per-key request limiter. Every admitted request is a
// member of a sorted set scored by its arrival time in milliseconds; members
// older than the window are trimmed before counting.
type SlidingWindow struct {
	c      *Client
	script *redis.Script
	now    func() time.Time
}

// NewSlidingWindow creates a SlidingWindow backed by the given Client.
func NewSlidingWindow(c *Client) *SlidingWindow {
	return &SlidingWindow{
		c:      c,
		script: redis.NewScript(slidingWindowLua),
		now:    time.Now,
	}
}

// Allow admits and counts one request for key unless limit requests already
// arrived within window.
func (s *SlidingWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args, err := windowArgs(s.now(), limit, window)
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}

	// The hash tag keeps both keys in one cluster slot.
	set := s.c.key("ratelimit", "{"+key+"}")
	res, err := s.script.Run(ctx, s.c.rdb, []string{set, set + ":seq"}, args...).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("redis: rate limit %s: script returned %d values", key, len(res))
	}
	return res[0] == 1, nil
}

// windowArgs builds the script arguments: now, window length (both in
// milliseconds) and limit.
func windowArgs(now time.Time, limit int, window time.Duration) ([]any, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if window < time.Millisecond {
		return nil, fmt.Errorf("window must be at least 1ms, got %s", window)
	}
	return []any{now.UnixMilli(), window.Milliseconds(), limit}, nil
}

var _ domain.RateLimiter = (*SlidingWindow)(nil)
