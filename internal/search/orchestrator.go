package search

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

const (
	// DefaultLocalLimit caps registry matches merged into one result list.
	DefaultLocalLimit = 5
	// commandQueryThreshold is the query length below which command
	// suggestions are appended.
	commandQueryThreshold = 2
	resultCapacityHint    = 20

	msgSearchUnavailable = "search is temporarily unavailable"
)

// Aggregator produces remote token-with-pools results for a query.
type Aggregator interface {
	Aggregate(ctx context.Context, chainID int64, query string) (domain.SearchResponse, error)
}

// TokenSource is the local token registry.
type TokenSource interface {
	TokensForChain(chainID int64) []domain.Token
}

// Outcome is the merged result of one search. Warning is a non-fatal message
// to show next to the results.
type Outcome struct {
	Results []domain.SearchResult `json:"results"`
	Warning string                `json:"warning,omitempty"`
}

// Orchestrator merges address detection, remote aggregation, local registry
// matches and command suggestions into a single ordered result list.
type Orchestrator struct {
	chains     *domain.ChainRegistry
	remote     Aggregator
	local      TokenSource
	localLimit int
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator. remote may be nil, in which case
// only local sources are consulted.
func NewOrchestrator(chains *domain.ChainRegistry, remote Aggregator, local TokenSource, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		chains:     chains,
		remote:     remote,
		local:      local,
		localLimit: DefaultLocalLimit,
		logger:     logger.With(slog.String("component", "search_orchestrator")),
	}
}

// WithLocalLimit caps how many registry matches are merged per search.
// Non-positive values keep the current limit.
func (o *Orchestrator) WithLocalLimit(n int) *Orchestrator {
	if n > 0 {
		o.localLimit = n
	}
	return o
}

// PerformSearch runs one search. It never fails: transport problems become
// Outcome.Warning and whatever results could be produced are still returned.
//
// Result order is: address result (exclusive), remote tokens, local tokens,
// command suggestions. Each bucket keeps its source order.
func (o *Orchestrator) PerformSearch(ctx context.Context, chainID int64, text string) Outcome {
	text = strings.TrimSpace(text)

	if domain.IsAddress(text) {
		return Outcome{Results: []domain.SearchResult{addressResult(o.chains, chainID, text)}}
	}

	var out Outcome
	results := make([]domain.SearchResult, 0, resultCapacityHint)

	seen := make(map[string]struct{})
	if text != "" && o.remote != nil && o.chains.IndexerSupported(chainID) {
		resp, err := o.remote.Aggregate(ctx, chainID, text)
		switch {
		case err != nil:
			o.logger.WarnContext(ctx, "remote aggregation failed",
				slog.Int64("chain_id", chainID),
				slog.String("query", text),
				slog.String("error", err.Error()),
			)
			out.Warning = msgSearchUnavailable
		case resp.Error != "":
			out.Warning = resp.Error
		}
		for _, t := range resp.Tokens {
			seen[identityKey(t.Address)] = struct{}{}
			results = append(results, remoteTokenResult(t))
		}
	}

	if o.local != nil {
		for _, t := range localMatches(o.local.TokensForChain(chainID), text, o.localLimit) {
			if _, dup := seen[identityKey(t.Address)]; dup {
				continue
			}
			results = append(results, localTokenResult(chainID, t))
		}
	}

	if utf8.RuneCountInString(text) < commandQueryThreshold {
		results = append(results, commandResults()...)
	}

	out.Results = results
	return out
}

// identityKey is the address form tokens from both sources are compared by.
func identityKey(address string) string {
	if domain.ValidTokenAddress(address) {
		return domain.CanonicalAddress(address)
	}
	return domain.NormalizeAddress(address)
}
