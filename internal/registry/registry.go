// Package registry holds the static local token list used alongside the
// indexer search. Lookups are pure and synchronous.
package registry

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

//go:embed tokens.json
var embeddedTokens []byte

type tokenList struct {
	Tokens []domain.Token `json:"tokens"`
}

// Registry is an immutable per-chain token list. Registry order is the
// order tokens were supplied in.
type Registry struct {
	byChain map[int64][]domain.Token
}

// New builds a Registry from tokens, storing addresses in lowercase 0x form
// and dropping entries without a valid address.
func New(tokens []domain.Token) *Registry {
	r := &Registry{byChain: make(map[int64][]domain.Token)}
	for _, t := range tokens {
		if !domain.ValidTokenAddress(t.Address) {
			continue
		}
		t.Address = domain.CanonicalAddress(t.Address)
		r.byChain[t.ChainID] = append(r.byChain[t.ChainID], t)
	}
	return r
}

// Embedded returns the registry compiled into the binary.
func Embedded() (*Registry, error) {
	tokens, err := EmbeddedTokens()
	if err != nil {
		return nil, err
	}
	return New(tokens), nil
}

// EmbeddedTokens decodes the compiled-in token list.
func EmbeddedTokens() ([]domain.Token, error) {
	var list tokenList
	if err := json.Unmarshal(embeddedTokens, &list); err != nil {
		return nil, fmt.Errorf("registry: decode embedded tokens: %w", err)
	}
	return list.Tokens, nil
}

// FromStore loads every token in store into a new Registry.
func FromStore(ctx context.Context, store domain.TokenStore) (*Registry, error) {
	tokens, err := store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: load from store: %w", err)
	}
	return New(tokens), nil
}

// SeedStore writes the embedded token list into store.
func SeedStore(ctx context.Context, store domain.TokenStore) (int, error) {
	tokens, err := EmbeddedTokens()
	if err != nil {
		return 0, err
	}
	valid := tokens[:0]
	for _, t := range tokens {
		if !domain.ValidTokenAddress(t.Address) {
			continue
		}
		t.Address = domain.CanonicalAddress(t.Address)
		valid = append(valid, t)
	}
	tokens = valid
	if err := store.UpsertBatch(ctx, tokens); err != nil {
		return 0, fmt.Errorf("registry: seed store: %w", err)
	}
	return len(tokens), nil
}

// TokensForChain returns a copy of the chain's token list.
func (r *Registry) TokensForChain(chainID int64) []domain.Token {
	tokens := r.byChain[chainID]
	out := make([]domain.Token, len(tokens))
	copy(out, tokens)
	return out
}

// Len returns the total number of tokens across all chains.
func (r *Registry) Len() int {
	n := 0
	for _, tokens := range r.byChain {
		n += len(tokens)
	}
	return n
}
