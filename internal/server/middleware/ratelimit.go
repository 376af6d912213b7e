package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// RateLimitObserver is told about every rejected request.
type RateLimitObserver interface {
	ObserveRateLimited()
}

// RateLimit allows each client IP at most limit requests per window on the
// wrapped routes. A nil limiter or non-positive limit disables the check, and
// limiter errors let the request through.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration, observer RateLimitObserver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		retryAfter := strconv.Itoa(int(math.Ceil(window.Seconds())))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), "search:"+ip, limit, window)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable",
					slog.String("client_ip", ip),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if observer != nil {
					observer.ObserveRateLimited()
				}
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
