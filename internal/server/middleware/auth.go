package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminTokenHeader is an alternative to a Bearer Authorization header.
const AdminTokenHeader = "X-Admin-Token"

// AdminOnly guards operator endpoints such as /metrics with a static token.
// An empty token disables the check.
func AdminOnly(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := adminToken(r)
			if got == "" {
				writeUnauthorized(w, "missing admin token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				writeUnauthorized(w, "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func adminToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, rest, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get(AdminTokenHeader))
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="dexsearch"`)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
