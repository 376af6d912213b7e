package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// TokenStore implements domain.TokenStore using PostgreSQL. Rows keep the
// order in which they were first written so registry scans stay stable.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore creates a new TokenStore backed by the given connection pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

const upsertTokenQuery = `
	INSERT INTO tokens (
		chain_id, address, symbol, name, decimals, ticker, position, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, NOW()
	)
	ON CONFLICT (chain_id, address) DO UPDATE SET
		symbol     = EXCLUDED.symbol,
		name       = EXCLUDED.name,
		decimals   = EXCLUDED.decimals,
		ticker     = EXCLUDED.ticker,
		updated_at = NOW()`

// UpsertBatch inserts or updates tokens in a single batch. Addresses are
// stored lowercase.
func (s *TokenStore) UpsertBatch(ctx context.Context, tokens []domain.Token) error {
	if len(tokens) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, t := range tokens {
		batch.Queue(upsertTokenQuery,
			t.ChainID, domain.NormalizeAddress(t.Address),
			t.Symbol, t.Name, int16(t.Decimals), t.Ticker, i,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range tokens {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert token batch item %d: %w", i, err)
		}
	}
	return nil
}

const tokenCols = `chain_id, address, symbol, name, decimals, ticker`

func scanToken(row pgx.Row) (domain.Token, error) {
	var (
		t        domain.Token
		decimals int16
	)
	if err := row.Scan(&t.ChainID, &t.Address, &t.Symbol, &t.Name, &decimals, &t.Ticker); err != nil {
		return domain.Token{}, err
	}
	t.Decimals = uint8(decimals)
	return t, nil
}

// ListByChain returns the tokens of one chain in insertion order.
func (s *TokenStore) ListByChain(ctx context.Context, chainID int64) ([]domain.Token, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tokenCols+` FROM tokens WHERE chain_id = $1 ORDER BY position, address`, chainID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tokens for chain %d: %w", chainID, err)
	}
	return collectTokens(rows)
}

// ListAll returns every stored token grouped by chain.
func (s *TokenStore) ListAll(ctx context.Context) ([]domain.Token, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tokenCols+` FROM tokens ORDER BY chain_id, position, address`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tokens: %w", err)
	}
	return collectTokens(rows)
}

func collectTokens(rows pgx.Rows) ([]domain.Token, error) {
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate tokens: %w", err)
	}
	return tokens, nil
}

// Compile-time interface check.
var _ domain.TokenStore = (*TokenStore)(nil)
