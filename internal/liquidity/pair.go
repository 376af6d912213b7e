// Package liquidity tracks two-sided orderbook liquidity for a token pair.
package liquidity

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// Direction labels used in DirectionalLiquidity.
const (
	DirectionAtoB = "A->B"
	DirectionBtoA = "B->A"
)

// OrderSource lists open sell orders on a single network.
type OrderSource interface {
	ChainID() int64
	OpenOrders(ctx context.Context, sellToken, buyToken string) ([]domain.OrderbookOrder, error)
}

// ValidatePair normalizes a token pair. Both addresses must be valid and
// distinct.
func ValidatePair(tokenA, tokenB string) (string, string, error) {
	a := domain.NormalizeAddress(tokenA)
	b := domain.NormalizeAddress(tokenB)
	switch {
	case a == "" || b == "":
		return "", "", fmt.Errorf("%w: both tokens are required", domain.ErrInvalidPair)
	case !domain.ValidTokenAddress(a) || !domain.ValidTokenAddress(b):
		return "", "", fmt.Errorf("%w: malformed token address", domain.ErrInvalidPair)
	}
	a, b = domain.CanonicalAddress(a), domain.CanonicalAddress(b)
	if a == b {
		return "", "", fmt.Errorf("%w: tokens must differ", domain.ErrInvalidPair)
	}
	return a, b, nil
}

// Sum totals the sell amounts of orders. Amounts that are not non-negative
// base-10 integers are skipped and not counted.
func Sum(orders []domain.OrderbookOrder, direction string) domain.DirectionalLiquidity {
	total := new(big.Int)
	var count uint
	for _, o := range orders {
		amount, ok := new(big.Int).SetString(strings.TrimSpace(o.SellAmount), 10)
		if !ok || amount.Sign() < 0 {
			continue
		}
		total.Add(total, amount)
		count++
	}
	return domain.DirectionalLiquidity{
		TotalLiquidity: total,
		OrderCount:     count,
		Direction:      direction,
	}
}

// FetchPair queries both directions of the pair concurrently. Either
// direction failing fails the whole fetch; a nil result always comes with an
// error and never means "no liquidity".
func FetchPair(ctx context.Context, src OrderSource, tokenA, tokenB string) (*domain.PairLiquidity, error) {
	a, b, err := ValidatePair(tokenA, tokenB)
	if err != nil {
		return nil, err
	}

	var aToB, bToA []domain.OrderbookOrder
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orders, err := src.OpenOrders(gctx, a, b)
		if err != nil {
			return fmt.Errorf("liquidity: %s: %w", DirectionAtoB, err)
		}
		aToB = orders
		return nil
	})
	g.Go(func() error {
		orders, err := src.OpenOrders(gctx, b, a)
		if err != nil {
			return fmt.Errorf("liquidity: %s: %w", DirectionBtoA, err)
		}
		bToA = orders
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.PairLiquidity{
		TokenA:    a,
		TokenB:    b,
		AtoB:      Sum(aToB, DirectionAtoB),
		BtoA:      Sum(bToA, DirectionBtoA),
		Timestamp: time.Now().UTC(),
	}, nil
}
