package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// maxBodyBytes bounds request bodies read by handlers.
const maxBodyBytes = 64 << 10

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseChainID reads a required integer chainId query parameter.
func parseChainID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("chainId"))
	if raw == "" {
		return 0, &domain.MalformedRequestError{Field: "chainId", Reason: "is required"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.MalformedRequestError{Field: "chainId", Reason: "must be an integer"}
	}
	return id, nil
}

// parseLimit reads an optional positive limit, falling back to def.
func parseLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
