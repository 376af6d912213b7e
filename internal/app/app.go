// Package app provides the top-level application lifecycle management for the
// search service. It wires together the indexer client, caches, the token
// registry and the HTTP/WebSocket server, and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dexsearch/internal/config"
	"github.com/alanyoungcy/dexsearch/internal/search"
	"github.com/alanyoungcy/dexsearch/internal/server"
	"github.com/alanyoungcy/dexsearch/internal/server/handler"
	"github.com/alanyoungcy/dexsearch/internal/server/ws"
	"github.com/alanyoungcy/dexsearch/internal/service"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the HTTP server and the WebSocket hub,
// and blocks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.Int("port", a.cfg.Server.Port),
		slog.String("log_level", a.cfg.LogLevel),
		slog.String("registry", a.cfg.Registry.Source),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	srv, hub := a.buildServer(deps)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// buildServer assembles services, handlers and the WebSocket hub on top of
// deps.
func (a *App) buildServer(deps *Dependencies) (*server.Server, *ws.Hub) {
	cacheTTL := a.cfg.Search.CacheTTL.Duration

	tokens := service.NewTokenSearchService(deps.Querier, deps.ResultCache, cacheTTL, a.logger)
	pools := service.NewPoolService(deps.Querier, deps.ResultCache, cacheTTL, a.logger)
	aggregator := service.NewAggregationService(deps.Chains, tokens, pools, deps.Metrics, a.logger)

	orchestrator := search.NewOrchestrator(deps.Chains, aggregator, deps.Registry, a.logger).
		WithLocalLimit(a.cfg.Search.LocalLimit)

	hub := ws.NewHub(ws.Config{
		Chains:         deps.Chains,
		Searcher:       orchestrator,
		Orderbook:      deps.Orderbook,
		Debounce:       a.cfg.Search.Debounce.Duration,
		PollInterval:   a.cfg.Orderbook.PollInterval.Duration,
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Observer:       deps.Metrics,
	}, a.logger)

	pingers := map[string]handler.Pinger{}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}
	if deps.Postgres != nil {
		pingers["postgres"] = deps.Postgres
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(pingers, a.logger),
		Search:    handler.NewSearchHandler(aggregator, a.logger),
		Pools:     handler.NewPoolHandler(deps.Chains, pools, a.logger),
		Liquidity: handler.NewLiquidityHandler(deps.Orderbook, a.logger),
		Chains:    handler.NewChainHandler(deps.Chains),
		Metrics:   deps.Metrics.Handler(),
		Limiter:   deps.RateLimiter,
		Observer:  deps.Metrics,
	}

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		ReadTimeout:  a.cfg.Server.ReadTimeout.Duration,
		WriteTimeout: a.cfg.Server.WriteTimeout.Duration,
		AdminToken:   a.cfg.Server.AdminToken,
		RateLimit:    a.cfg.Search.RateLimit,
		RateWindow:   a.cfg.Search.RateWindow.Duration,
	}, handlers, hub, a.logger)

	return srv, hub
}

func (a *App) shutdownTimeout() time.Duration {
	if d := a.cfg.Server.ShutdownTimeout.Duration; d > 0 {
		return d
	}
	return 10 * time.Second
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
