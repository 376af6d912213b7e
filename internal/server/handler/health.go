package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	deps   map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. deps maps a name such as "redis"
// to the backend it checks; nil entries are skipped.
func NewHealthHandler(deps map[string]Pinger, logger *slog.Logger) *HealthHandler {
	active := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{deps: active, logger: logHandler(logger, "health")}
}

// HealthCheck reports "ok" when every configured backend answers, and
// "degraded" with a 503 otherwise.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "dependency unhealthy",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			checks[name] = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
