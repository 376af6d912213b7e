package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// PoolService fetches the pools that contain a token.
type PoolService struct {
	querier  Querier
	cache    domain.ResultCache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewPoolService creates a PoolService. cache may be nil.
func NewPoolService(querier Querier, cache domain.ResultCache, cacheTTL time.Duration, logger *slog.Logger) *PoolService {
	return &PoolService{
		querier:  querier,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With(slog.String("component", "pool_service")),
	}
}

// GetPoolsForToken returns up to limit pools holding tokenAddress, highest
// TVL first. Upstream failures are logged and yield an empty result.
func (s *PoolService) GetPoolsForToken(ctx context.Context, chainID int64, tokenAddress string, limit int) []domain.Pool {
	pools, err := s.FetchPools(ctx, chainID, tokenAddress, limit)
	if err != nil {
		s.logger.WarnContext(ctx, "pool fetch failed",
			slog.Int64("chain_id", chainID),
			slog.String("token", tokenAddress),
			slog.String("error", err.Error()),
		)
		return []domain.Pool{}
	}
	return pools
}

// FetchPools is GetPoolsForToken without local recovery.
func (s *PoolService) FetchPools(ctx context.Context, chainID int64, tokenAddress string, limit int) ([]domain.Pool, error) {
	token := domain.NormalizeAddress(tokenAddress)
	if token == "" {
		return []domain.Pool{}, nil
	}
	limit = clampLimit(limit)

	key := fmt.Sprintf("pools:%d:%d:%s", chainID, limit, token)
	return readThrough(ctx, s.cache, s.cacheTTL, key, s.logger, func(ctx context.Context) ([]domain.Pool, error) {
		return s.query(ctx, chainID, token, limit)
	})
}

func (s *PoolService) query(ctx context.Context, chainID int64, token string, limit int) ([]domain.Pool, error) {
	data, err := s.querier.Execute(ctx, chainID, poolsForTokenQuery, map[string]any{
		"token": token,
		"first": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("pool_service: %w", err)
	}

	var result struct {
		Pools []subgraphPool `json:"pools"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("pool_service: decode pools: %w", err)
	}

	pools := make([]domain.Pool, 0, len(result.Pools))
	for _, p := range result.Pools {
		pool := p.toDomain(chainID)
		if !pool.Contains(token) {
			continue
		}
		pools = append(pools, pool)
	}
	sort.SliceStable(pools, func(i, j int) bool {
		return pools[i].TVLUSD > pools[j].TVLUSD
	})
	if len(pools) > limit {
		pools = pools[:limit]
	}
	return pools, nil
}
