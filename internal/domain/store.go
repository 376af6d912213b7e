package domain

import "context"

// TokenStore persists the local token registry.
type TokenStore interface {
	UpsertBatch(ctx context.Context, tokens []Token) error
	ListByChain(ctx context.Context, chainID int64) ([]Token, error)
	ListAll(ctx context.Context) ([]Token, error)
}
