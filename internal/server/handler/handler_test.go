package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexsearch/internal/domain"
	"github.com/alanyoungcy/dexsearch/internal/service"
)

const (
	usdc = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	weth = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChains() *domain.ChainRegistry {
	return domain.NewChainRegistry([]domain.Chain{
		{ID: 1, Name: "Ethereum", SubgraphURL: "https://indexer.example/1", ExplorerURL: "https://etherscan.io"},
		{ID: 10, Name: "Optimism", ExplorerURL: "https://optimistic.etherscan.io"},
		{ID: 8453, Name: "Base", SubgraphURL: "https://indexer.example/8453"},
	})
}

// countingFetcher backs the real aggregation service so the handler is
// exercised against the same validation path production uses.
type countingFetcher struct {
	mu         sync.Mutex
	tokenCalls int
	poolCalls  int
	tokens     []domain.Token
	tokenErr   error
}

func (f *countingFetcher) FetchTokens(ctx context.Context, chainID int64, text string, limit int) ([]domain.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	return f.tokens, f.tokenErr
}

func (f *countingFetcher) FetchPools(ctx context.Context, chainID int64, token string, limit int) ([]domain.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poolCalls++
	return []domain.Pool{{
		Address:    "0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8",
		FeeTierBps: 3000,
		TVLUSD:     1000,
		Token0:     domain.Token{Address: token},
		Token1:     domain.Token{Address: weth},
	}}, nil
}

func (f *countingFetcher) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls, f.poolCalls
}

func newSearchHandler(f *countingFetcher) *SearchHandler {
	agg := service.NewAggregationService(testChains(), f, f, nil, testLogger())
	return NewSearchHandler(agg, testLogger())
}

func decodeSearch(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func postSearch(h *SearchHandler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	h.Search(rec, req)
	return rec
}

func getSearch(h *SearchHandler, rawQuery string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/search?"+rawQuery, nil)
	h.SearchGet(rec, req)
	return rec
}

func TestSearch_UnsupportedChainNeverCallsIndexer(t *testing.T) {
	for _, chainID := range []string{"10", "999"} {
		f := &countingFetcher{}
		h := newSearchHandler(f)

		rec := postSearch(h, `{"chainId":`+chainID+`,"query":"usdc"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decodeSearch(t, rec)
		assert.Equal(t, []any{}, body["tokens"])
		assert.Contains(t, body["error"], "supported chains: 1, 8453")

		tokens, pools := f.calls()
		assert.Zero(t, tokens)
		assert.Zero(t, pools)
	}
}

func TestSearch_MalformedBodies(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"not json":         {`{chainId:`, "JSON object"},
		"array":            {`[1,2]`, "JSON object"},
		"missing chain":    {`{"query":"usdc"}`, "chainId: is required"},
		"null chain":       {`{"chainId":null,"query":"usdc"}`, "chainId: is required"},
		"fractional chain": {`{"chainId":1.5,"query":"usdc"}`, "chainId: must be an integer"},
		"string chain":     {`{"chainId":"1","query":"usdc"}`, "chainId: must be an integer"},
		"missing query":    {`{"chainId":1}`, "query: is required"},
		"numeric query":    {`{"chainId":1,"query":42}`, "query: must be a string"},
		"object query":     {`{"chainId":1,"query":{"text":"usdc"}}`, "query: must be a string"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := &countingFetcher{}
			rec := postSearch(newSearchHandler(f), tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeSearch(t, rec)
			assert.Contains(t, body["error"], tc.want)
			assert.Equal(t, []any{}, body["tokens"])
			tokens, _ := f.calls()
			assert.Zero(t, tokens)
		})
	}
}

func TestSearch_GetMatchesPost(t *testing.T) {
	tokens := []domain.Token{{Address: usdc, Symbol: "USDC", Name: "USD Coin", Decimals: 6, TVLUSD: 100}}

	post := postSearch(newSearchHandler(&countingFetcher{tokens: tokens}), `{"chainId":1,"query":"usdc"}`)
	get := getSearch(newSearchHandler(&countingFetcher{tokens: tokens}), "chainId=1&query=usdc")

	require.Equal(t, http.StatusOK, post.Code)
	require.Equal(t, http.StatusOK, get.Code)
	assert.JSONEq(t, post.Body.String(), get.Body.String())

	body := decodeSearch(t, get)
	list := body["tokens"].([]any)
	require.Len(t, list, 1)
	tok := list[0].(map[string]any)
	assert.Equal(t, usdc, tok["address"])
	assert.Len(t, tok["pools"], 1)
}

func TestSearchGet_Validation(t *testing.T) {
	cases := map[string]string{
		"missing chain": "query=usdc",
		"bad chain":     "chainId=one&query=usdc",
		"missing query": "chainId=1",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			f := &countingFetcher{}
			rec := getSearch(newSearchHandler(f), raw)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			tokens, _ := f.calls()
			assert.Zero(t, tokens)
		})
	}

	// present but empty is a valid query
	rec := getSearch(newSearchHandler(&countingFetcher{}), "chainId=1&query=")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearch_NoMatchIsEmptyNotError(t *testing.T) {
	rec := postSearch(newSearchHandler(&countingFetcher{}), `{"chainId":1,"query":"zzzz"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chainId":1,"tokens":[]}`, rec.Body.String())
}

func TestSearch_UpstreamFailureIsSoft(t *testing.T) {
	f := &countingFetcher{tokenErr: errors.New("gateway timeout")}
	rec := postSearch(newSearchHandler(f), `{"chainId":8453,"query":"usdc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeSearch(t, rec)
	assert.Equal(t, []any{}, body["tokens"])
	assert.NotEmpty(t, body["error"])
}

type brokenAggregator struct {
	panics bool
}

func (b brokenAggregator) Aggregate(ctx context.Context, chainID int64, query string) (domain.SearchResponse, error) {
	if b.panics {
		panic("nil map write in enrichment")
	}
	return domain.SearchResponse{}, errors.New("dial tcp 10.0.0.7:5432: connection refused")
}

func TestSearch_UnclassifiedFailureIsGeneric500(t *testing.T) {
	for _, agg := range []brokenAggregator{{}, {panics: true}} {
		h := NewSearchHandler(agg, testLogger())
		rec := postSearch(h, `{"chainId":1,"query":"usdc"}`)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"chainId":1,"tokens":[],"error":"internal server error"}`, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "10.0.0.7")
	}
}

type stubPools struct {
	pools []domain.Pool
	err   error
	calls int
}

func (s *stubPools) FetchPools(ctx context.Context, chainID int64, token string, limit int) ([]domain.Pool, error) {
	s.calls++
	return s.pools, s.err
}

func TestListPools(t *testing.T) {
	pools := &stubPools{pools: []domain.Pool{{Address: "0xpool", Token0: domain.Token{Address: usdc}}}}
	h := NewPoolHandler(testChains(), pools, testLogger())

	rec := httptest.NewRecorder()
	h.ListPools(rec, httptest.NewRequest(http.MethodGet, "/pools?chainId=1&token=0x"+strings.ToUpper(usdc[2:]), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body poolsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, usdc, body.Token)
	assert.Len(t, body.Pools, 1)
	assert.Empty(t, body.Error)
}

func TestListPools_Validation(t *testing.T) {
	pools := &stubPools{}
	h := NewPoolHandler(testChains(), pools, testLogger())

	for _, raw := range []string{
		"token=" + usdc,
		"chainId=10&token=" + usdc,
		"chainId=1&token=usdc",
	} {
		rec := httptest.NewRecorder()
		h.ListPools(rec, httptest.NewRequest(http.MethodGet, "/pools?"+raw, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}
	assert.Zero(t, pools.calls)
}

func TestListPools_UpstreamFailure(t *testing.T) {
	h := NewPoolHandler(testChains(), &stubPools{err: errors.New("boom")}, testLogger())
	rec := httptest.NewRecorder()
	h.ListPools(rec, httptest.NewRequest(http.MethodGet, "/pools?chainId=1&token="+usdc, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body poolsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Pools)
	assert.NotEmpty(t, body.Error)
}

type fakeOrderbook struct {
	chainID int64
	orders  map[string][]domain.OrderbookOrder
	err     error
}

func (f *fakeOrderbook) ChainID() int64 { return f.chainID }

func (f *fakeOrderbook) OpenOrders(ctx context.Context, sell, buy string) ([]domain.OrderbookOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.orders[sell+">"+buy], nil
}

func getLiquidity(h *LiquidityHandler, raw string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.GetLiquidity(rec, httptest.NewRequest(http.MethodGet, "/liquidity?"+raw, nil))
	return rec
}

func TestGetLiquidity(t *testing.T) {
	src := &fakeOrderbook{chainID: 1, orders: map[string][]domain.OrderbookOrder{
		usdc + ">" + weth: {{SellAmount: "9007199254740993"}, {SellAmount: "1"}},
	}}
	h := NewLiquidityHandler(src, testLogger())

	rec := getLiquidity(h, "chainId=1&tokenA="+usdc+"&tokenB="+weth)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Liquidity struct {
			AtoB struct {
				TotalLiquidity string `json:"totalLiquidity"`
				OrderCount     uint   `json:"orderCount"`
			} `json:"liquidityAtoB"`
			BtoA struct {
				TotalLiquidity string `json:"totalLiquidity"`
			} `json:"liquidityBtoA"`
		} `json:"liquidity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "9007199254740994", body.Liquidity.AtoB.TotalLiquidity)
	assert.Equal(t, uint(2), body.Liquidity.AtoB.OrderCount)
	assert.Equal(t, "0", body.Liquidity.BtoA.TotalLiquidity)
}

func TestGetLiquidity_DormantChainAndFailures(t *testing.T) {
	h := NewLiquidityHandler(&fakeOrderbook{chainID: 1}, testLogger())
	rec := getLiquidity(h, "chainId=8453&tokenA="+usdc+"&tokenB="+weth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chainId":8453,"liquidity":null}`, rec.Body.String())

	h = NewLiquidityHandler(nil, testLogger())
	rec = getLiquidity(h, "chainId=1&tokenA="+usdc+"&tokenB="+weth)
	assert.JSONEq(t, `{"chainId":1,"liquidity":null}`, rec.Body.String())

	h = NewLiquidityHandler(&fakeOrderbook{chainID: 1, err: errors.New("503")}, testLogger())
	rec = getLiquidity(h, "chainId=1&tokenA="+usdc+"&tokenB="+weth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chainId":1,"liquidity":null,"error":"orderbook liquidity is unavailable"}`, rec.Body.String())

	rec = getLiquidity(h, "chainId=1&tokenA="+usdc+"&tokenB="+usdc)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListChains(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChainHandler(testChains()).ListChains(rec, httptest.NewRequest(http.MethodGet, "/chains", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Chains []struct {
			ChainID          int64 `json:"chainId"`
			IndexerSupported bool  `json:"indexerSupported"`
		} `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Chains, 3)
	assert.Equal(t, int64(1), body.Chains[0].ChainID)
	assert.True(t, body.Chains[0].IndexerSupported)
	assert.False(t, body.Chains[1].IndexerSupported)
	assert.NotContains(t, rec.Body.String(), "indexer.example")
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"redis": pinger{}, "postgres": nil}, testLogger()).
		HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)
	assert.NotContains(t, rec.Body.String(), "postgres")

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"redis": pinger{err: errors.New("refused")}}, testLogger()).
		HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}
