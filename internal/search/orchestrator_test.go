package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexsearch/internal/domain"
	"github.com/alanyoungcy/dexsearch/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAggregator struct {
	calls   []string
	resp    domain.SearchResponse
	err     error
	onQuery func(query string) (domain.SearchResponse, error)
}

func (f *fakeAggregator) Aggregate(ctx context.Context, chainID int64, query string) (domain.SearchResponse, error) {
	f.calls = append(f.calls, query)
	if f.onQuery != nil {
		return f.onQuery(query)
	}
	resp := f.resp
	resp.ChainID = chainID
	return resp, f.err
}

type fakeRegistry struct {
	tokens map[int64][]domain.Token
	calls  int
}

func (f *fakeRegistry) TokensForChain(chainID int64) []domain.Token {
	f.calls++
	return f.tokens[chainID]
}

const (
	usdcAddr = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	usdtAddr = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	daiAddr  = "0x6b175474e89094c44da98b954eedeac495271d0f"
)

func testRegistry() *fakeRegistry {
	return &fakeRegistry{tokens: map[int64][]domain.Token{
		1: {
			{ChainID: 1, Address: usdcAddr, Symbol: "USDC", Name: "USD Coin"},
			{ChainID: 1, Address: usdtAddr, Symbol: "USDT", Name: "Tether USD"},
			{ChainID: 1, Address: daiAddr, Symbol: "DAI", Name: "Dai Stablecoin"},
			{ChainID: 1, Address: "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599", Symbol: "WBTC", Name: "Wrapped BTC", Ticker: "BTC"},
		},
		10: {
			{ChainID: 10, Address: "0x0b2c639c533813f4aa9d7837caf62653d097ff85", Symbol: "USDC", Name: "USD Coin"},
		},
	}}
}

func testChains() *domain.ChainRegistry {
	return domain.NewChainRegistry([]domain.Chain{
		{ID: 1, Name: "Ethereum", SubgraphURL: "https://indexer.example/1", ExplorerURL: "https://etherscan.io"},
		{ID: 10, Name: "Optimism", ExplorerURL: "https://optimistic.etherscan.io"},
	})
}

func ids(results []domain.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ID)
	}
	return out
}

func TestPerformSearch_AddressShortCircuits(t *testing.T) {
	agg := &fakeAggregator{}
	reg := testRegistry()
	o := NewOrchestrator(testChains(), agg, reg, testLogger())

	addr := "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	out := o.PerformSearch(context.Background(), 1, addr)
	require.Len(t, out.Results, 1)
	r := out.Results[0]
	assert.Equal(t, domain.ResultAddress, r.Kind)
	assert.Equal(t, "address-"+usdcAddr, r.ID)
	assert.Equal(t, domain.ActionOpenURL, r.Action.Kind)
	assert.Equal(t, "https://etherscan.io/address/"+addr, r.Action.Target)
	require.NotNil(t, r.Address)
	assert.Empty(t, agg.calls)
	assert.Zero(t, reg.calls)

	out = o.PerformSearch(context.Background(), 10, addr)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "https://optimistic.etherscan.io/address/"+addr, out.Results[0].Action.Target)
}

func TestPerformSearch_NearAddressIsNotShortCircuited(t *testing.T) {
	agg := &fakeAggregator{}
	o := NewOrchestrator(testChains(), agg, testRegistry(), testLogger())

	out := o.PerformSearch(context.Background(), 1, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb4")
	assert.Len(t, agg.calls, 1)
	for _, r := range out.Results {
		assert.NotEqual(t, domain.ResultAddress, r.Kind)
	}
}

func TestPerformSearch_MergesAndDedups(t *testing.T) {
	agg := &fakeAggregator{resp: domain.SearchResponse{Tokens: []domain.TokenWithPools{
		{Token: domain.Token{ChainID: 1, Address: usdcAddr, Symbol: "USDC", Name: "USD Coin (remote)", TVLUSD: 5e8}, Pools: []domain.Pool{{Address: "0xpool"}}},
		{Token: domain.Token{ChainID: 1, Address: "0x0000000000000000000000000000000000000bad", Symbol: "USDX", Name: "Other", TVLUSD: 10}},
	}}}
	o := NewOrchestrator(testChains(), agg, testRegistry(), testLogger())

	out := o.PerformSearch(context.Background(), 1, "usd")
	assert.Empty(t, out.Warning)
	assert.Equal(t, []string{
		"remote-token-" + usdcAddr,
		"remote-token-0x0000000000000000000000000000000000000bad",
		"local-token-" + usdtAddr,
	}, ids(out.Results))

	usdc := out.Results[0]
	require.NotNil(t, usdc.Token)
	assert.Equal(t, domain.SourceRemote, usdc.Token.Source)
	assert.Equal(t, "USD Coin (remote)", usdc.Token.Token.Name)
	assert.Len(t, usdc.Token.Pools, 1)
}

func TestPerformSearch_DedupsUnprefixedRegistryAddress(t *testing.T) {
	agg := &fakeAggregator{resp: domain.SearchResponse{Tokens: []domain.TokenWithPools{
		{Token: domain.Token{ChainID: 1, Address: usdcAddr, Symbol: "USDC", Name: "USD Coin", TVLUSD: 5e8}},
	}}}
	local := registry.New([]domain.Token{
		{ChainID: 1, Address: "A0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Name: "USD Coin"},
	})
	o := NewOrchestrator(testChains(), agg, local, testLogger())

	out := o.PerformSearch(context.Background(), 1, "usdc")
	assert.Equal(t, []string{"remote-token-" + usdcAddr}, ids(out.Results))
}

func TestPerformSearch_LocalMatchFields(t *testing.T) {
	o := NewOrchestrator(testChains(), nil, testRegistry(), testLogger())

	tests := []struct {
		query string
		want  []string
	}{
		{"btc", []string{"local-token-0x2260fac5e5542a773aa44fbcfedf7c193bc2c599"}},
		{"stable", []string{"local-token-" + daiAddr}},
		{"DAC17F", []string{"local-token-" + usdtAddr}},
		{"zzz", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			out := o.PerformSearch(context.Background(), 1, tc.query)
			assert.Equal(t, tc.want, ids(out.Results))
		})
	}
}

func TestPerformSearch_LocalCap(t *testing.T) {
	var many []domain.Token
	for i := 0; i < 8; i++ {
		many = append(many, domain.Token{Address: "0x" + string(rune('a'+i)) + "00", Symbol: "TOK"})
	}
	reg := &fakeRegistry{tokens: map[int64][]domain.Token{1: many}}
	o := NewOrchestrator(testChains(), nil, reg, testLogger())

	out := o.PerformSearch(context.Background(), 1, "tok")
	assert.Len(t, out.Results, DefaultLocalLimit)

	out = o.WithLocalLimit(7).PerformSearch(context.Background(), 1, "tok")
	assert.Len(t, out.Results, 7)
	out = o.WithLocalLimit(0).PerformSearch(context.Background(), 1, "tok")
	assert.Len(t, out.Results, 7)
}

func TestPerformSearch_EmptyQueryReturnsCommandsOnly(t *testing.T) {
	agg := &fakeAggregator{}
	o := NewOrchestrator(testChains(), agg, testRegistry(), testLogger())

	out := o.PerformSearch(context.Background(), 1, "")
	assert.Equal(t, []string{"command-swap", "command-holdings"}, ids(out.Results))
	for _, r := range out.Results {
		assert.Equal(t, domain.ResultCommand, r.Kind)
		assert.Equal(t, domain.ActionScrollTo, r.Action.Kind)
	}
	assert.Empty(t, agg.calls)
}

func TestPerformSearch_ShortQueryAppendsCommands(t *testing.T) {
	o := NewOrchestrator(testChains(), &fakeAggregator{}, testRegistry(), testLogger())

	out := o.PerformSearch(context.Background(), 1, "d")
	got := ids(out.Results)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, []string{"command-swap", "command-holdings"}, got[len(got)-2:])
	assert.Contains(t, got, "local-token-"+daiAddr)

	out = o.PerformSearch(context.Background(), 1, "da")
	assert.NotContains(t, ids(out.Results), "command-swap")
}

func TestPerformSearch_UnsupportedChainSkipsRemote(t *testing.T) {
	agg := &fakeAggregator{}
	o := NewOrchestrator(testChains(), agg, testRegistry(), testLogger())

	out := o.PerformSearch(context.Background(), 10, "usdc")
	assert.Empty(t, agg.calls)
	assert.Equal(t, []string{"local-token-0x0b2c639c533813f4aa9d7837caf62653d097ff85"}, ids(out.Results))
}

func TestPerformSearch_Warnings(t *testing.T) {
	t.Run("soft error keeps tokens", func(t *testing.T) {
		agg := &fakeAggregator{resp: domain.SearchResponse{
			Tokens: []domain.TokenWithPools{{Token: domain.Token{Address: "0x0000000000000000000000000000000000000001", Symbol: "ONE"}}},
			Error:  "pool data unavailable for 1 of 1 tokens",
		}}
		o := NewOrchestrator(testChains(), agg, testRegistry(), testLogger())

		out := o.PerformSearch(context.Background(), 1, "one")
		assert.Equal(t, "pool data unavailable for 1 of 1 tokens", out.Warning)
		assert.Len(t, out.Results, 1)
	})

	t.Run("transport failure keeps local results", func(t *testing.T) {
		agg := &fakeAggregator{err: errors.New("dial tcp: connection refused")}
		o := NewOrchestrator(testChains(), agg, testRegistry(), testLogger())

		out := o.PerformSearch(context.Background(), 1, "dai")
		assert.Equal(t, msgSearchUnavailable, out.Warning)
		assert.Equal(t, []string{"local-token-" + daiAddr}, ids(out.Results))
	})
}

func TestPerformSearch_UniqueIDs(t *testing.T) {
	agg := &fakeAggregator{resp: domain.SearchResponse{Tokens: []domain.TokenWithPools{
		{Token: domain.Token{Address: usdcAddr, Symbol: "USDC"}},
		{Token: domain.Token{Address: usdtAddr, Symbol: "USDT"}},
	}}}
	o := NewOrchestrator(testChains(), agg, testRegistry(), testLogger())

	out := o.PerformSearch(context.Background(), 1, "u")
	seen := map[string]bool{}
	for _, id := range ids(out.Results) {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
