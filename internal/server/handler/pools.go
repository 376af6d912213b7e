package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

const defaultPoolLimit = 10

// PoolFetcher looks up the pools holding a token.
type PoolFetcher interface {
	FetchPools(ctx context.Context, chainID int64, tokenAddress string, limit int) ([]domain.Pool, error)
}

// PoolHandler serves direct pool lookups.
type PoolHandler struct {
	chains *domain.ChainRegistry
	pools  PoolFetcher
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(chains *domain.ChainRegistry, pools PoolFetcher, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{chains: chains, pools: pools, logger: logHandler(logger, "pools")}
}

type poolsResponse struct {
	ChainID int64         `json:"chainId"`
	Token   string        `json:"token"`
	Pools   []domain.Pool `json:"pools"`
	Error   string        `json:"error,omitempty"`
}

// ListPools returns the top pools for a token.
// GET /pools?chainId=&token=&limit=
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.chains.RequireIndexer(chainID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if !domain.IsAddress(token) {
		writeError(w, http.StatusBadRequest, "token: must be a 0x-prefixed 40 hex character address")
		return
	}

	resp := poolsResponse{
		ChainID: chainID,
		Token:   domain.NormalizeAddress(token),
		Pools:   []domain.Pool{},
	}
	pools, err := h.pools.FetchPools(r.Context(), chainID, token, parseLimit(r, defaultPoolLimit))
	if err != nil {
		h.logger.WarnContext(r.Context(), "pool lookup failed",
			slog.Int64("chain_id", chainID),
			slog.String("token", resp.Token),
			slog.String("error", err.Error()),
		)
		resp.Error = "pool data is temporarily unavailable"
	} else if pools != nil {
		resp.Pools = pools
	}
	writeJSON(w, http.StatusOK, resp)
}
