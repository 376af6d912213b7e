package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DEXSEARCH_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		// A [[chains]] table in the file replaces the default chain list
		// instead of appending to it.
		cfg.Chains = nil
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, err
		}
		if !md.IsDefined("chains") {
			cfg.Chains = Defaults().Chains
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DEXSEARCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "DEXSEARCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DEXSEARCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminToken, "DEXSEARCH_SERVER_ADMIN_TOKEN")

	// ── Subgraph ──
	setStr(&cfg.Subgraph.APIKey, "DEXSEARCH_SUBGRAPH_API_KEY")
	setDuration(&cfg.Subgraph.Timeout, "DEXSEARCH_SUBGRAPH_TIMEOUT")

	// ── Chains ──
	for i := range cfg.Chains {
		id := cfg.Chains[i].ID
		setStr(&cfg.Chains[i].SubgraphURL, fmt.Sprintf("DEXSEARCH_CHAIN_%d_SUBGRAPH_URL", id))
		setStr(&cfg.Chains[i].ExplorerURL, fmt.Sprintf("DEXSEARCH_CHAIN_%d_EXPLORER_URL", id))
	}

	// ── Search ──
	setDuration(&cfg.Search.Debounce, "DEXSEARCH_SEARCH_DEBOUNCE")
	setInt(&cfg.Search.LocalLimit, "DEXSEARCH_SEARCH_LOCAL_LIMIT")
	setDuration(&cfg.Search.CacheTTL, "DEXSEARCH_SEARCH_CACHE_TTL")
	setInt(&cfg.Search.RateLimit, "DEXSEARCH_SEARCH_RATE_LIMIT")
	setDuration(&cfg.Search.RateWindow, "DEXSEARCH_SEARCH_RATE_WINDOW")

	// ── Orderbook ──
	setBool(&cfg.Orderbook.Enabled, "DEXSEARCH_ORDERBOOK_ENABLED")
	setInt64(&cfg.Orderbook.ChainID, "DEXSEARCH_ORDERBOOK_CHAIN_ID")
	setStr(&cfg.Orderbook.BaseURL, "DEXSEARCH_ORDERBOOK_BASE_URL")
	setDuration(&cfg.Orderbook.PollInterval, "DEXSEARCH_ORDERBOOK_POLL_INTERVAL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DEXSEARCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DEXSEARCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEXSEARCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEXSEARCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DEXSEARCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DEXSEARCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DEXSEARCH_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "DEXSEARCH_REDIS_KEY_PREFIX")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DEXSEARCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "DEXSEARCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DEXSEARCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DEXSEARCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DEXSEARCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DEXSEARCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DEXSEARCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DEXSEARCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DEXSEARCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DEXSEARCH_POSTGRES_RUN_MIGRATIONS")

	// ── Registry ──
	setStr(&cfg.Registry.Source, "DEXSEARCH_REGISTRY_SOURCE")
	setBool(&cfg.Registry.Seed, "DEXSEARCH_REGISTRY_SEED")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "DEXSEARCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
