package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

const (
	// AggregateTokenLimit caps how many tokens are enriched per request.
	AggregateTokenLimit = 10
	// AggregatePoolLimit caps pools attached to each token.
	AggregatePoolLimit = 10

	msgTokenSearchUnavailable = "token search is temporarily unavailable"
)

// TokenFetcher is the propagating token search used by the aggregator.
type TokenFetcher interface {
	FetchTokens(ctx context.Context, chainID int64, text string, limit int) ([]domain.Token, error)
}

// PoolFetcher is the propagating pool lookup used by the aggregator.
type PoolFetcher interface {
	FetchPools(ctx context.Context, chainID int64, tokenAddress string, limit int) ([]domain.Pool, error)
}

// AggregationObserver receives aggregation outcomes. Implementations must be
// safe for concurrent use.
type AggregationObserver interface {
	ObserveAggregation(chainID int64, tokens int, elapsed time.Duration)
	ObserveEnrichmentFailure(chainID int64)
}

type nopAggregationObserver struct{}

func (nopAggregationObserver) ObserveAggregation(int64, int, time.Duration) {}
func (nopAggregationObserver) ObserveEnrichmentFailure(int64)               {}

// AggregationService combines token search and pool enrichment into a single
// token-with-pools payload.
type AggregationService struct {
	chains   *domain.ChainRegistry
	tokens   TokenFetcher
	pools    PoolFetcher
	observer AggregationObserver
	logger   *slog.Logger
}

// NewAggregationService creates an AggregationService. observer may be nil.
func NewAggregationService(
	chains *domain.ChainRegistry,
	tokens TokenFetcher,
	pools PoolFetcher,
	observer AggregationObserver,
	logger *slog.Logger,
) *AggregationService {
	if observer == nil {
		observer = nopAggregationObserver{}
	}
	return &AggregationService{
		chains:   chains,
		tokens:   tokens,
		pools:    pools,
		observer: observer,
		logger:   logger.With(slog.String("component", "aggregation")),
	}
}

// Aggregate searches tokens matching query and attaches each token's top
// pools. The only error returned for client input is *domain.UnsupportedChainError;
// upstream trouble is reported through SearchResponse.Error.
func (s *AggregationService) Aggregate(ctx context.Context, chainID int64, query string) (domain.SearchResponse, error) {
	resp := domain.SearchResponse{ChainID: chainID, Tokens: []domain.TokenWithPools{}}

	if _, err := s.chains.RequireIndexer(chainID); err != nil {
		return resp, err
	}

	start := time.Now()
	tokens, err := s.tokens.FetchTokens(ctx, chainID, query, AggregateTokenLimit)
	if err != nil {
		if domain.IsUnsupportedChain(err) {
			return resp, err
		}
		s.logger.WarnContext(ctx, "token search failed",
			slog.Int64("chain_id", chainID),
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		resp.Error = msgTokenSearchUnavailable
		return resp, nil
	}
	if len(tokens) > AggregateTokenLimit {
		tokens = tokens[:AggregateTokenLimit]
	}

	enriched, failed := s.enrich(ctx, chainID, tokens)
	resp.Tokens = enriched
	if failed > 0 {
		resp.Error = fmt.Sprintf("pool data unavailable for %d of %d tokens", failed, len(tokens))
	}

	s.observer.ObserveAggregation(chainID, len(enriched), time.Since(start))
	return resp, nil
}

// enrich fetches pools for every token concurrently. A failing token keeps an
// empty pool list; output order matches input order.
func (s *AggregationService) enrich(ctx context.Context, chainID int64, tokens []domain.Token) ([]domain.TokenWithPools, int) {
	out := make([]domain.TokenWithPools, len(tokens))
	failures := make([]bool, len(tokens))

	var g errgroup.Group
	for i, tok := range tokens {
		out[i] = domain.TokenWithPools{Token: tok, Pools: []domain.Pool{}}
		g.Go(func() error {
			pools, err := s.fetchPoolsSafe(ctx, chainID, tok.Address)
			if err != nil {
				failures[i] = true
				s.observer.ObserveEnrichmentFailure(chainID)
				s.logger.WarnContext(ctx, "pool enrichment failed",
					slog.Int64("chain_id", chainID),
					slog.String("token", tok.Address),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if len(pools) > AggregatePoolLimit {
				pools = pools[:AggregatePoolLimit]
			}
			out[i].Pools = pools
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}
	return out, failed
}

func (s *AggregationService) fetchPoolsSafe(ctx context.Context, chainID int64, token string) (pools []domain.Pool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregation: pool fetch panic: %v", r)
		}
	}()
	pools, err = s.pools.FetchPools(ctx, chainID, token, AggregatePoolLimit)
	if err == nil && pools == nil {
		pools = []domain.Pool{}
	}
	return pools, err
}
