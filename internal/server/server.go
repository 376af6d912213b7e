package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/dexsearch/internal/domain"
	"github.com/alanyoungcy/dexsearch/internal/server/handler"
	"github.com/alanyoungcy/dexsearch/internal/server/middleware"
	"github.com/alanyoungcy/dexsearch/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AdminToken guards /metrics; if empty, the endpoint is open.
	AdminToken string

	// RateLimit requests per RateWindow are allowed per client IP on the
	// search endpoints. Ignored when Handlers.Limiter is nil.
	RateLimit  int
	RateWindow time.Duration
}

// Observer collects request metrics.
type Observer interface {
	middleware.HTTPObserver
	middleware.RateLimitObserver
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Search    *handler.SearchHandler
	Pools     *handler.PoolHandler
	Liquidity *handler.LiquidityHandler
	Chains    *handler.ChainHandler

	// Metrics serves the Prometheus exposition. Optional.
	Metrics http.Handler
	// Limiter enables rate limiting when non-nil.
	Limiter domain.RateLimiter
	// Observer receives per-request metrics. Optional.
	Observer Observer
}

// Server is the HTTP + WebSocket API for the search service.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (request id, logging, recovery, CORS) globally and
// rate limiting on the search routes.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http"))
	mux := http.NewServeMux()

	var httpObserver middleware.HTTPObserver
	var limitObserver middleware.RateLimitObserver
	if handlers.Observer != nil {
		httpObserver = handlers.Observer
		limitObserver = handlers.Observer
	}
	limited := middleware.RateLimit(handlers.Limiter, cfg.RateLimit, cfg.RateWindow, limitObserver, logger)

	// --- Register routes ---

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /chains", handlers.Chains.ListChains)

	mux.Handle("POST /search", limited(http.HandlerFunc(handlers.Search.Search)))
	mux.Handle("GET /search", limited(http.HandlerFunc(handlers.Search.SearchGet)))
	mux.Handle("GET /pools", limited(http.HandlerFunc(handlers.Pools.ListPools)))
	mux.Handle("GET /liquidity", limited(http.HandlerFunc(handlers.Liquidity.GetLiquidity)))

	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", middleware.AdminOnly(cfg.AdminToken)(handlers.Metrics))
	}

	if wsHub != nil {
		mux.Handle("GET /ws/search", limited(http.HandlerFunc(wsHub.HandleWS)))
	}

	// Build the middleware chain. The last wrapper applied runs first.
	var h http.Handler = mux
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Recovery(logger)(h)
	h = middleware.Logging(logger, httpObserver)(h)
	h = middleware.RequestID()(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  orDefault(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Handler exposes the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
