package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

const msgInternal = "internal server error"

// Aggregator produces the token-with-pools payload for a query.
type Aggregator interface {
	Aggregate(ctx context.Context, chainID int64, query string) (domain.SearchResponse, error)
}

// SearchHandler serves the aggregation endpoint.
type SearchHandler struct {
	agg    Aggregator
	logger *slog.Logger
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(agg Aggregator, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{agg: agg, logger: logHandler(logger, "search")}
}

// searchRequest keeps fields raw so type mismatches can be reported per
// field instead of as a generic decode failure.
type searchRequest struct {
	ChainID json.RawMessage `json:"chainId"`
	Query   json.RawMessage `json:"query"`
}

// Search handles POST /search with body {"chainId": int, "query": string}.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	chainID, query, err := decodeSearchBody(r)
	if err != nil {
		h.respondError(w, r, chainID, err)
		return
	}
	h.serve(w, r, chainID, query)
}

// SearchGet handles GET /search?chainId=&query= with the same semantics as
// the POST form.
func (h *SearchHandler) SearchGet(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		h.respondError(w, r, 0, err)
		return
	}
	q := r.URL.Query()
	if !q.Has("query") {
		h.respondError(w, r, chainID, &domain.MalformedRequestError{Field: "query", Reason: "is required"})
		return
	}
	h.serve(w, r, chainID, q.Get("query"))
}

func (h *SearchHandler) serve(w http.ResponseWriter, r *http.Request, chainID int64, query string) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.ErrorContext(r.Context(), "aggregation panic",
				slog.Int64("chain_id", chainID),
				slog.Any("panic", rec),
			)
			writeJSON(w, http.StatusInternalServerError, domain.SearchResponse{
				ChainID: chainID,
				Tokens:  []domain.TokenWithPools{},
				Error:   msgInternal,
			})
		}
	}()

	resp, err := h.agg.Aggregate(r.Context(), chainID, query)
	if err != nil {
		h.respondError(w, r, chainID, err)
		return
	}
	if resp.Tokens == nil {
		resp.Tokens = []domain.TokenWithPools{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// respondError maps err onto the response taxonomy: client input errors
// become 400 with their message, anything else a generic 500.
func (h *SearchHandler) respondError(w http.ResponseWriter, r *http.Request, chainID int64, err error) {
	status := http.StatusBadRequest
	msg := err.Error()
	if !domain.IsUnsupportedChain(err) && !domain.IsMalformedRequest(err) {
		h.logger.ErrorContext(r.Context(), "aggregation failed",
			slog.Int64("chain_id", chainID),
			slog.String("error", err.Error()),
		)
		status = http.StatusInternalServerError
		msg = msgInternal
	}
	writeJSON(w, status, domain.SearchResponse{
		ChainID: chainID,
		Tokens:  []domain.TokenWithPools{},
		Error:   msg,
	})
}

var jsonNull = []byte("null")

func decodeSearchBody(r *http.Request) (int64, string, error) {
	var req searchRequest
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return 0, "", &domain.MalformedRequestError{Reason: "request body too large"}
		}
		return 0, "", &domain.MalformedRequestError{Reason: "request body must be a JSON object"}
	}

	if len(req.ChainID) == 0 || bytes.Equal(req.ChainID, jsonNull) {
		return 0, "", &domain.MalformedRequestError{Field: "chainId", Reason: "is required"}
	}
	var chainID int64
	if err := json.Unmarshal(req.ChainID, &chainID); err != nil {
		return 0, "", &domain.MalformedRequestError{Field: "chainId", Reason: "must be an integer"}
	}

	if len(req.Query) == 0 || bytes.Equal(req.Query, jsonNull) {
		return chainID, "", &domain.MalformedRequestError{Field: "query", Reason: "is required"}
	}
	var query string
	if err := json.Unmarshal(req.Query, &query); err != nil {
		return chainID, "", &domain.MalformedRequestError{Field: "query", Reason: "must be a string"}
	}
	return chainID, query, nil
}
