package middleware

import (
	"net/http"
	"strings"
)

// CORS lets browser clients in allowedOrigins call the search API and read
// the request id header. An empty list or "*" allows any origin. Preflight
// requests are answered here and never reach the mux.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	anyOrigin := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		if o == "*" {
			anyOrigin = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Add("Vary", "Origin")
				if anyOrigin || allowed[strings.ToLower(origin)] {
					h := w.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
					h.Set("Access-Control-Expose-Headers", RequestIDHeader)
					h.Set("Access-Control-Max-Age", "600")
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
