package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// OrderbookOrder is an open sell order on the off-chain orderbook. SellAmount
// is the raw base-unit amount as a decimal string.
type OrderbookOrder struct {
	UID        string `json:"uid"`
	SellToken  string `json:"sellToken"`
	BuyToken   string `json:"buyToken"`
	SellAmount string `json:"sellAmount"`
	BuyAmount  string `json:"buyAmount"`
	ValidTo    int64  `json:"validTo"`
	Status     string `json:"status"`
}

// DirectionalLiquidity aggregates the open orders selling one token for
// another.
type DirectionalLiquidity struct {
	TotalLiquidity *big.Int
	OrderCount     uint
	Direction      string // e.g. "A->B"
}

type directionalLiquidityJSON struct {
	TotalLiquidity string `json:"totalLiquidity"`
	OrderCount     uint   `json:"orderCount"`
	Direction      string `json:"direction"`
}

// MarshalJSON encodes TotalLiquidity as a decimal string so consumers never
// round it through a float.
func (d DirectionalLiquidity) MarshalJSON() ([]byte, error) {
	total := "0"
	if d.TotalLiquidity != nil {
		total = d.TotalLiquidity.String()
	}
	return json.Marshal(directionalLiquidityJSON{
		TotalLiquidity: total,
		OrderCount:     d.OrderCount,
		Direction:      d.Direction,
	})
}

// UnmarshalJSON parses the decimal-string form written by MarshalJSON.
func (d *DirectionalLiquidity) UnmarshalJSON(data []byte) error {
	var raw directionalLiquidityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	total, ok := new(big.Int).SetString(raw.TotalLiquidity, 10)
	if !ok {
		return fmt.Errorf("invalid totalLiquidity %q", raw.TotalLiquidity)
	}
	d.TotalLiquidity = total
	d.OrderCount = raw.OrderCount
	d.Direction = raw.Direction
	return nil
}

// HasLiquidity reports whether any amount is available.
func (d DirectionalLiquidity) HasLiquidity() bool {
	return d.TotalLiquidity != nil && d.TotalLiquidity.Sign() > 0
}

// PairLiquidity is a two-sided liquidity snapshot. It is rebuilt on every poll.
type PairLiquidity struct {
	TokenA    string               `json:"tokenA"`
	TokenB    string               `json:"tokenB"`
	AtoB      DirectionalLiquidity `json:"liquidityAtoB"`
	BtoA      DirectionalLiquidity `json:"liquidityBtoA"`
	Timestamp time.Time            `json:"timestamp"`
}
