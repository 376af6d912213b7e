package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/dexsearch/internal/domain"
	"github.com/alanyoungcy/dexsearch/internal/liquidity"
)

// LiquidityHandler serves one-shot orderbook liquidity snapshots.
type LiquidityHandler struct {
	source liquidity.OrderSource
	logger *slog.Logger
}

// NewLiquidityHandler creates a LiquidityHandler. source may be nil when no
// orderbook is configured; every request then reports no liquidity.
func NewLiquidityHandler(source liquidity.OrderSource, logger *slog.Logger) *LiquidityHandler {
	return &LiquidityHandler{source: source, logger: logHandler(logger, "liquidity")}
}

type liquidityResponse struct {
	ChainID   int64                 `json:"chainId"`
	Liquidity *domain.PairLiquidity `json:"liquidity"`
	Error     string                `json:"error,omitempty"`
}

// GetLiquidity aggregates open orders in both directions of a pair.
// GET /liquidity?chainId=&tokenA=&tokenB=
func (h *LiquidityHandler) GetLiquidity(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	tokenA, tokenB, err := liquidity.ValidatePair(q.Get("tokenA"), q.Get("tokenB"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := liquidityResponse{ChainID: chainID}
	if h.source == nil || h.source.ChainID() != chainID {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	pair, err := liquidity.FetchPair(r.Context(), h.source, tokenA, tokenB)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPair) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WarnContext(r.Context(), "liquidity fetch failed",
			slog.Int64("chain_id", chainID),
			slog.String("error", err.Error()),
		)
		resp.Error = "orderbook liquidity is unavailable"
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Liquidity = pair
	writeJSON(w, http.StatusOK, resp)
}
