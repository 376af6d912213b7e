package service

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// Querier executes a GraphQL document against a chain's indexer and returns
// the raw data payload.
type Querier interface {
	Execute(ctx context.Context, chainID int64, query string, variables map[string]any) (json.RawMessage, error)
}

// MaxQueryLimit is the largest page size accepted by the indexer.
const MaxQueryLimit = 100

const searchTokensQuery = `
	query SearchTokens($text: String!, $first: Int!) {
		tokens(
			first: $first
			orderBy: totalValueLockedUSD
			orderDirection: desc
			where: { or: [{ symbol_contains_nocase: $text }, { name_contains_nocase: $text }] }
		) {
			id
			symbol
			name
			decimals
			totalValueLockedUSD
			volumeUSD
		}
	}
`

const poolsForTokenQuery = `
	query PoolsForToken($token: String!, $first: Int!) {
		pools(
			first: $first
			orderBy: totalValueLockedUSD
			orderDirection: desc
			where: { or: [{ token0: $token }, { token1: $token }] }
		) {
			id
			feeTier
			totalValueLockedUSD
			volumeUSD
			token0 { id symbol name decimals }
			token1 { id symbol name decimals }
		}
	}
`

// subgraphToken mirrors the indexer's Token entity. Numeric fields arrive as
// strings (BigInt / BigDecimal).
type subgraphToken struct {
	ID                  string `json:"id"`
	Symbol              string `json:"symbol"`
	Name                string `json:"name"`
	Decimals            string `json:"decimals"`
	TotalValueLockedUSD string `json:"totalValueLockedUSD"`
	VolumeUSD           string `json:"volumeUSD"`
}

func (t subgraphToken) toDomain(chainID int64) domain.Token {
	return domain.Token{
		ChainID:   chainID,
		Address:   domain.NormalizeAddress(t.ID),
		Symbol:    t.Symbol,
		Name:      t.Name,
		Decimals:  parseDecimals(t.Decimals),
		TVLUSD:    parseUSD(t.TotalValueLockedUSD),
		VolumeUSD: parseUSD(t.VolumeUSD),
	}
}

type subgraphPool struct {
	ID                  string        `json:"id"`
	FeeTier             string        `json:"feeTier"`
	TotalValueLockedUSD string        `json:"totalValueLockedUSD"`
	VolumeUSD           string        `json:"volumeUSD"`
	Token0              subgraphToken `json:"token0"`
	Token1              subgraphToken `json:"token1"`
}

func (p subgraphPool) toDomain(chainID int64) domain.Pool {
	fee, _ := strconv.Atoi(strings.TrimSpace(p.FeeTier))
	return domain.Pool{
		Address:    domain.NormalizeAddress(p.ID),
		FeeTierBps: fee,
		TVLUSD:     parseUSD(p.TotalValueLockedUSD),
		VolumeUSD:  parseUSD(p.VolumeUSD),
		Token0:     p.Token0.toDomain(chainID),
		Token1:     p.Token1.toDomain(chainID),
	}
}

// parseUSD parses a BigDecimal string. Garbage and negatives become 0.
func parseUSD(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseDecimals(s string) uint8 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

// clampLimit bounds limit to [1, MaxQueryLimit].
func clampLimit(limit int) int {
	return min(max(limit, 1), MaxQueryLimit)
}
