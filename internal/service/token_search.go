package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// TokenSearchService finds tokens on a chain's indexer by free text.
type TokenSearchService struct {
	querier  Querier
	cache    domain.ResultCache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewTokenSearchService creates a TokenSearchService. cache may be nil.
func NewTokenSearchService(querier Querier, cache domain.ResultCache, cacheTTL time.Duration, logger *slog.Logger) *TokenSearchService {
	return &TokenSearchService{
		querier:  querier,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With(slog.String("component", "token_search")),
	}
}

// SearchTokens returns up to limit tokens matching text, highest TVL first.
// Upstream failures are logged and yield an empty result.
func (s *TokenSearchService) SearchTokens(ctx context.Context, chainID int64, text string, limit int) []domain.Token {
	tokens, err := s.FetchTokens(ctx, chainID, text, limit)
	if err != nil {
		s.logger.WarnContext(ctx, "token search failed",
			slog.Int64("chain_id", chainID),
			slog.String("text", text),
			slog.String("error", err.Error()),
		)
		return []domain.Token{}
	}
	return tokens
}

// FetchTokens is SearchTokens without local recovery. Blank text returns an
// empty result without touching the network.
func (s *TokenSearchService) FetchTokens(ctx context.Context, chainID int64, text string, limit int) ([]domain.Token, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []domain.Token{}, nil
	}
	limit = clampLimit(limit)

	key := fmt.Sprintf("tokens:%d:%d:%s", chainID, limit, strings.ToLower(text))
	return readThrough(ctx, s.cache, s.cacheTTL, key, s.logger, func(ctx context.Context) ([]domain.Token, error) {
		return s.query(ctx, chainID, text, limit)
	})
}

func (s *TokenSearchService) query(ctx context.Context, chainID int64, text string, limit int) ([]domain.Token, error) {
	data, err := s.querier.Execute(ctx, chainID, searchTokensQuery, map[string]any{
		"text":  text,
		"first": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("token_search: %w", err)
	}

	var result struct {
		Tokens []subgraphToken `json:"tokens"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("token_search: decode tokens: %w", err)
	}

	tokens := make([]domain.Token, 0, len(result.Tokens))
	for _, t := range result.Tokens {
		tokens = append(tokens, t.toDomain(chainID))
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].TVLUSD > tokens[j].TVLUSD
	})
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens, nil
}
