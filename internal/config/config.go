// Package config defines the top-level configuration for the search service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DEXSEARCH_* environment variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Subgraph  SubgraphConfig  `toml:"subgraph"`
	Chains    []ChainConfig   `toml:"chains"`
	Search    SearchConfig    `toml:"search"`
	Orderbook OrderbookConfig `toml:"orderbook"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Registry  RegistryConfig  `toml:"registry"`
	LogLevel  string          `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
	// AdminToken protects /metrics. Empty disables the check.
	AdminToken string `toml:"admin_token"`
}

// SubgraphConfig holds the indexer gateway credential shared by all chains.
type SubgraphConfig struct {
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// ChainConfig describes one network. A chain without subgraph_url is still
// searchable through the local registry.
type ChainConfig struct {
	ID          int64  `toml:"id"`
	Name        string `toml:"name"`
	SubgraphURL string `toml:"subgraph_url"`
	ExplorerURL string `toml:"explorer_url"`
}

// SearchConfig holds search surface tuning.
type SearchConfig struct {
	Debounce   duration `toml:"debounce"`
	LocalLimit int      `toml:"local_limit"`
	// CacheTTL applies to indexer results cached in Redis. Zero disables.
	CacheTTL duration `toml:"cache_ttl"`
	// RateLimit is the number of search requests a client may make per
	// RateWindow. Zero disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// OrderbookConfig holds the orderbook API used by the liquidity monitor.
type OrderbookConfig struct {
	Enabled      bool     `toml:"enabled"`
	ChainID      int64    `toml:"chain_id"`
	BaseURL      string   `toml:"base_url"`
	PollInterval duration `toml:"poll_interval"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Registry sources.
const (
	RegistryEmbedded = "embedded"
	RegistryPostgres = "postgres"
)

// RegistryConfig selects where local token metadata comes from.
type RegistryConfig struct {
	Source string `toml:"source"`
	// Seed writes the embedded token list into Postgres at startup.
	Seed bool `toml:"seed"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// Only mainnet has an indexer endpoint out of the box.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     duration{15 * time.Second},
			WriteTimeout:    duration{30 * time.Second},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Subgraph: SubgraphConfig{
			Timeout: duration{10 * time.Second},
		},
		Chains: []ChainConfig{
			{
				ID:          1,
				Name:        "Ethereum",
				SubgraphURL: "https://gateway.thegraph.com/api/subgraphs/id/5zvR82QoaXYFyDEKLZ9t6v9adgnptxYpKpSbxtgVENFV",
				ExplorerURL: "https://etherscan.io",
			},
			{ID: 10, Name: "Optimism", ExplorerURL: "https://optimistic.etherscan.io"},
			{ID: 8453, Name: "Base", ExplorerURL: "https://basescan.org"},
			{ID: 42161, Name: "Arbitrum One", ExplorerURL: "https://arbiscan.io"},
		},
		Search: SearchConfig{
			Debounce:   duration{400 * time.Millisecond},
			LocalLimit: 5,
			CacheTTL:   duration{30 * time.Second},
			RateLimit:  60,
			RateWindow: duration{time.Minute},
		},
		Orderbook: OrderbookConfig{
			Enabled:      true,
			ChainID:      1,
			BaseURL:      "https://api.cow.fi/mainnet",
			PollInterval: duration{10 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "dexsearch",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "dexsearch",
			User:          "dexsearch",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  0,
			RunMigrations: true,
		},
		Registry: RegistryConfig{
			Source: RegistryEmbedded,
		},
		LogLevel: "info",
	}
}

// IndexedChains reports whether any chain has an indexer endpoint.
func (c *Config) IndexedChains() bool {
	for _, ch := range c.Chains {
		if strings.TrimSpace(ch.SubgraphURL) != "" {
			return true
		}
	}
	return false
}

// Validate checks Config for obviously invalid or missing values and returns a
// single error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if c.IndexedChains() && strings.TrimSpace(c.Subgraph.APIKey) == "" {
		errs = append(errs, "subgraph: api_key is required when any chain has a subgraph_url")
	}
	if c.Subgraph.Timeout.Duration <= 0 {
		errs = append(errs, "subgraph: timeout must be > 0")
	}

	if len(c.Chains) == 0 {
		errs = append(errs, "chains: at least one chain must be configured")
	}
	seen := make(map[int64]bool, len(c.Chains))
	for i, ch := range c.Chains {
		if ch.ID <= 0 {
			errs = append(errs, fmt.Sprintf("chains[%d]: id must be positive", i))
		}
		if seen[ch.ID] {
			errs = append(errs, fmt.Sprintf("chains[%d]: duplicate id %d", i, ch.ID))
		}
		seen[ch.ID] = true
	}

	if c.Search.Debounce.Duration <= 0 {
		errs = append(errs, "search: debounce must be > 0")
	}
	if c.Search.LocalLimit < 1 {
		errs = append(errs, "search: local_limit must be >= 1")
	}
	if c.Search.CacheTTL.Duration < 0 {
		errs = append(errs, "search: cache_ttl must be >= 0")
	}
	if c.Search.RateLimit < 0 {
		errs = append(errs, "search: rate_limit must be >= 0")
	}
	if c.Search.RateLimit > 0 && c.Search.RateWindow.Duration <= 0 {
		errs = append(errs, "search: rate_window must be > 0 when rate_limit is set")
	}

	if c.Orderbook.Enabled {
		if strings.TrimSpace(c.Orderbook.BaseURL) == "" {
			errs = append(errs, "orderbook: base_url must not be empty")
		}
		if c.Orderbook.ChainID <= 0 {
			errs = append(errs, "orderbook: chain_id must be positive")
		}
		if c.Orderbook.PollInterval.Duration <= 0 {
			errs = append(errs, "orderbook: poll_interval must be > 0")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	switch c.Registry.Source {
	case RegistryEmbedded:
		if c.Registry.Seed {
			errs = append(errs, "registry: seed requires source = \"postgres\"")
		}
	case RegistryPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("registry: unknown source %q (valid: embedded, postgres)", c.Registry.Source))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
