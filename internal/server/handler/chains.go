package handler

import (
	"net/http"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// ChainHandler lists configured chains.
type ChainHandler struct {
	chains *domain.ChainRegistry
}

// NewChainHandler creates a ChainHandler.
func NewChainHandler(chains *domain.ChainRegistry) *ChainHandler {
	return &ChainHandler{chains: chains}
}

type chainView struct {
	domain.Chain
	IndexerSupported bool `json:"indexerSupported"`
}

// ListChains returns every configured chain ordered by id.
// GET /chains
func (h *ChainHandler) ListChains(w http.ResponseWriter, r *http.Request) {
	all := h.chains.All()
	out := make([]chainView, 0, len(all))
	for _, c := range all {
		out = append(out, chainView{Chain: c, IndexerSupported: c.IndexerSupported()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"chains": out})
}
