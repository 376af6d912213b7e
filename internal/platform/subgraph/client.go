// Package subgraph is a GraphQL client for per-chain indexed on-chain data
// (Uniswap-style subgraphs hosted on The Graph or Goldsky).
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// DefaultTimeout is the hard per-request limit applied to every query.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a non-2xx response body is kept for errors.
const maxErrorBody = 256

// Observer receives one callback per executed query. It is used for metrics.
type Observer interface {
	ObserveQuery(chainID int64, elapsed time.Duration, err error)
}

// Client executes GraphQL documents against the subgraph configured for a
// chain. It never retries; retry policy belongs to the caller.
type Client struct {
	chains     *domain.ChainRegistry
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	observer   Observer
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithObserver registers a query observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a Client. An empty apiKey is a configuration error: the hosted
// indexers reject anonymous requests, so the service must not start without
// one.
func New(chains *domain.ChainRegistry, apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("subgraph: %w: api key is not set", domain.ErrConfiguration)
	}
	if chains == nil {
		return nil, fmt.Errorf("subgraph: %w: chain registry is nil", domain.ErrConfiguration)
	}
	c := &Client{
		chains:  chains,
		apiKey:  apiKey,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Execute runs query on chainID's subgraph and returns the raw "data" field.
// An empty but present data object is a valid result.
func (c *Client) Execute(ctx context.Context, chainID int64, query string, variables map[string]any) (json.RawMessage, error) {
	chain, err := c.chains.RequireIndexer(chainID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := c.doQuery(ctx, chain, query, variables)
	if c.observer != nil {
		c.observer.ObserveQuery(chainID, time.Since(start), err)
	}
	return data, err
}

func (c *Client) doQuery(ctx context.Context, chain domain.Chain, query string, variables map[string]any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	upstreamErr := func(reason string, err error) error {
		return domain.NewUpstreamQueryError(chain.ID, query, reason, err)
	}

	jsonBody, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, upstreamErr("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chain.SubgraphURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, upstreamErr("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, upstreamErr(fmt.Sprintf("timed out after %s", c.timeout), err)
		}
		return nil, upstreamErr("http request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstreamErr("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := string(body)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, upstreamErr(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(excerpt)), nil)
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, upstreamErr("decode response", err)
	}

	if len(gqlResp.Errors) > 0 {
		msgs := make([]string, 0, len(gqlResp.Errors))
		for _, e := range gqlResp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, upstreamErr("graphql errors: "+strings.Join(msgs, "; "), nil)
	}

	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return nil, upstreamErr("response has no data", nil)
	}

	return gqlResp.Data, nil
}
