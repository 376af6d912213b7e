// Package orderbook is a REST client for an off-chain signed, on-chain
// settled orderbook. It only lists open sell orders for a token pair.
package orderbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// Client talks to the orderbook API of one network.
type Client struct {
	baseURL    string
	chainID    int64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new orderbook client.
//
// baseURL is the API root, e.g. "https://api.cow.fi/mainnet".
func NewClient(baseURL string, chainID int64, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		chainID: chainID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With(slog.String("component", "orderbook_client")),
	}
}

// ChainID returns the only network this client serves.
func (c *Client) ChainID() int64 {
	return c.chainID
}

// OpenOrders returns the open orders selling sellToken for buyToken.
func (c *Client) OpenOrders(ctx context.Context, sellToken, buyToken string) ([]domain.OrderbookOrder, error) {
	params := url.Values{}
	params.Set("sellToken", domain.NormalizeAddress(sellToken))
	params.Set("buyToken", domain.NormalizeAddress(buyToken))
	params.Set("status", "open")

	body, err := c.doGet(ctx, "/api/v1/orders?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("orderbook: open orders: %w", err)
	}

	var orders []domain.OrderbookOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("orderbook: decode orders: %w", err)
	}

	open := orders[:0]
	for _, o := range orders {
		if o.Status == "" || strings.EqualFold(o.Status, "open") {
			open = append(open, o)
		}
	}
	c.logger.DebugContext(ctx, "orderbook: open orders",
		slog.String("sell_token", sellToken),
		slog.String("buy_token", buyToken),
		slog.Int("orders", len(open)),
	)
	return open, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
