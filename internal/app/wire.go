package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/dexsearch/internal/cache/redis"
	"github.com/alanyoungcy/dexsearch/internal/config"
	"github.com/alanyoungcy/dexsearch/internal/domain"
	"github.com/alanyoungcy/dexsearch/internal/liquidity"
	"github.com/alanyoungcy/dexsearch/internal/metrics"
	"github.com/alanyoungcy/dexsearch/internal/platform/orderbook"
	"github.com/alanyoungcy/dexsearch/internal/platform/subgraph"
	"github.com/alanyoungcy/dexsearch/internal/registry"
	"github.com/alanyoungcy/dexsearch/internal/service"
	"github.com/alanyoungcy/dexsearch/internal/store/postgres"
)

// seedLockKey serializes registry seeding across replicas.
const seedLockKey = "registry:seed"

// seedLockTTL bounds how long a crashed seeder can block others.
const seedLockTTL = time.Minute

const seedLockRetry = 500 * time.Millisecond

// Dependencies bundles every backend the search service uses. It is
// constructed by Wire and torn down by the returned cleanup function.
// Optional backends are nil when not configured.
type Dependencies struct {
	Chains   *domain.ChainRegistry
	Metrics  *metrics.Metrics
	Registry *registry.Registry

	// Querier is nil when no chain has an indexer endpoint.
	Querier service.Querier
	// Orderbook is nil when the orderbook is disabled.
	Orderbook liquidity.OrderSource

	// Caches
	ResultCache domain.ResultCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Raw clients, kept for health checks.
	Redis    *redis.Client
	Postgres *postgres.Client
}

// chainRegistry converts configured chains into the domain lookup table.
func chainRegistry(cfg *config.Config) *domain.ChainRegistry {
	chains := make([]domain.Chain, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		chains = append(chains, domain.Chain{
			ID:          c.ID,
			Name:        c.Name,
			SubgraphURL: c.SubgraphURL,
			ExplorerURL: c.ExplorerURL,
		})
	}
	return domain.NewChainRegistry(chains)
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Chains:  chainRegistry(cfg),
		Metrics: metrics.New(metrics.DefaultNamespace),
	}

	// --- Indexer ---
	if cfg.IndexedChains() {
		client, err := subgraph.New(deps.Chains, cfg.Subgraph.APIKey,
			subgraph.WithTimeout(cfg.Subgraph.Timeout.Duration),
			subgraph.WithObserver(deps.Metrics),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: subgraph: %w", err)
		}
		deps.Querier = client
	} else {
		logger.WarnContext(ctx, "wire: no chain has a subgraph_url, remote token search is disabled")
	}

	// --- Orderbook ---
	if cfg.Orderbook.Enabled {
		deps.Orderbook = orderbook.NewClient(cfg.Orderbook.BaseURL, cfg.Orderbook.ChainID, logger)
	}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.ResultCache = redis.NewResultCache(redisClient)
		deps.RateLimiter = redis.NewSlidingWindow(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient, logger)
	}

	// --- Token registry ---
	switch cfg.Registry.Source {
	case config.RegistryPostgres:
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)
		deps.Postgres = pgClient

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		store := postgres.NewTokenStore(pgClient.Pool())
		if cfg.Registry.Seed {
			if err := seedRegistry(ctx, store, deps.LockManager, logger); err != nil {
				cleanup()
				return nil, nil, err
			}
		}

		reg, err := registry.FromStore(ctx, store)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		deps.Registry = reg

	default:
		reg, err := registry.Embedded()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		deps.Registry = reg
	}

	logger.InfoContext(ctx, "wire: dependencies ready",
		slog.Int("chains", len(deps.Chains.All())),
		slog.Any("indexed_chains", deps.Chains.SupportedIDs()),
		slog.Int("registry_tokens", deps.Registry.Len()),
		slog.Bool("redis", deps.Redis != nil),
		slog.Bool("orderbook", deps.Orderbook != nil),
	)
	return deps, cleanup, nil
}

// seedRegistry writes the embedded token list into Postgres. With a lock
// manager replicas seed one at a time; the upsert is idempotent, so a replica
// that waited simply seeds again once the lock frees up, and never loads a
// half-written table.
func seedRegistry(ctx context.Context, store domain.TokenStore, locks domain.LockManager, logger *slog.Logger) error {
	if locks != nil {
		unlock, err := acquireWithin(ctx, locks, seedLockKey, seedLockTTL, seedLockRetry)
		if err != nil {
			return fmt.Errorf("wire: registry seed lock: %w", err)
		}
		defer unlock()
	}

	n, err := registry.SeedStore(ctx, store)
	if err != nil {
		return fmt.Errorf("wire: %w", err)
	}
	logger.InfoContext(ctx, "wire: registry seeded", slog.Int("tokens", n))
	return nil
}

// acquireWithin retries a held lock every retry until it is free, ctx ends,
// or ttl has elapsed (a holder that crashed has expired by then).
func acquireWithin(ctx context.Context, locks domain.LockManager, key string, ttl, retry time.Duration) (func(), error) {
	deadline := time.Now().Add(ttl)
	for {
		unlock, err := locks.Acquire(ctx, key, ttl)
		if !errors.Is(err, domain.ErrLockHeld) {
			return unlock, err
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry):
		}
	}
}
