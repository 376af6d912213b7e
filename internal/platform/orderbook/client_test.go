package orderbook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	weth = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdc = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenOrders_FiltersAndNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", r.URL.Query().Get("sellToken"))
		assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", r.URL.Query().Get("buyToken"))
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		w.Write([]byte(`[
			{"uid":"a","sellAmount":"100","status":"open"},
			{"uid":"b","sellAmount":"5","status":"fulfilled"},
			{"uid":"c","sellAmount":"7"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 1, testLogger())
	orders, err := c.OpenOrders(context.Background(), weth, usdc)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "a", orders[0].UID)
	assert.Equal(t, "c", orders[1].UID)
}

func TestOpenOrders_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 1, testLogger())

	orders, err := c.OpenOrders(context.Background(), weth, usdc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Nil(t, orders)
}
