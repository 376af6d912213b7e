package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// readThrough serves key from cache when possible and otherwise calls fetch,
// back-filling the cache on success. Cache failures never fail the request.
func readThrough[T any](
	ctx context.Context,
	cache domain.ResultCache,
	ttl time.Duration,
	key string,
	logger *slog.Logger,
	fetch func(context.Context) (T, error),
) (T, error) {
	if cache == nil || ttl <= 0 {
		return fetch(ctx)
	}

	if raw, err := cache.Get(ctx, key); err == nil {
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		logger.WarnContext(ctx, "result cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}

	if raw, jsonErr := json.Marshal(v); jsonErr == nil {
		if setErr := cache.Set(ctx, key, raw, ttl); setErr != nil {
			logger.WarnContext(ctx, "result cache write failed",
				slog.String("key", key),
				slog.String("error", setErr.Error()),
			)
		}
	}
	return v, nil
}
