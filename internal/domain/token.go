package domain

// Token is an ERC-20 token as reported by an indexer or the local registry.
// Address is always lowercase hex.
type Token struct {
	ChainID   int64   `json:"chainId,omitempty"`
	Address   string  `json:"address"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Decimals  uint8   `json:"decimals"`
	TVLUSD    float64 `json:"tvlUSD"`
	VolumeUSD float64 `json:"volumeUSD"`
	// Ticker is an optional alternate symbol carried by registry entries.
	Ticker string `json:"ticker,omitempty"`
}

// Pool is a two-token liquidity pool. Token0/Token1 keep the indexer's
// ordering.
type Pool struct {
	Address    string  `json:"poolAddress"`
	FeeTierBps int     `json:"feeTier"`
	TVLUSD     float64 `json:"tvlUSD"`
	VolumeUSD  float64 `json:"volumeUSD"`
	Token0     Token   `json:"token0"`
	Token1     Token   `json:"token1"`
}

// Contains reports whether the pool holds the token with the given lowercase
// address.
func (p Pool) Contains(address string) bool {
	return p.Token0.Address == address || p.Token1.Address == address
}

// TokenWithPools is a token enriched with its top pools.
type TokenWithPools struct {
	Token
	Pools []Pool `json:"pools"`
}

// SearchResponse is the payload produced by the aggregation endpoint.
type SearchResponse struct {
	ChainID int64            `json:"chainId"`
	Tokens  []TokenWithPools `json:"tokens"`
	Error   string           `json:"error,omitempty"`
}
