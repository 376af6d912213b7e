// Package redis implements the domain cache, rate limit and lock interfaces
// using go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// KeyPrefix namespaces every key written by this package.
	KeyPrefix string
}

// Client wraps a go-redis Client and provides connectivity helpers.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New creates a new Redis Client, pings it to verify connectivity, and returns
// the wrapper. It returns an error if the connection cannot be established.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Client{rdb: rdb, prefix: normalizePrefix(cfg.KeyPrefix)}, nil
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// key applies the configured namespace.
func (c *Client) key(parts ...string) string {
	return c.prefix + strings.Join(parts, ":")
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasSuffix(p, ":") {
		return p
	}
	return p + ":"
}
