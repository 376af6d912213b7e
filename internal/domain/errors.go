package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrRateLimited   = errors.New("rate limited")
	ErrInvalidPair   = errors.New("invalid token pair")
	ErrLockHeld      = errors.New("lock held")
)

// maxQueryExcerpt bounds how much of a GraphQL document is copied into an
// UpstreamQueryError message.
const maxQueryExcerpt = 120

// UnsupportedChainError is returned when a chain id is unknown or has no
// indexer endpoint configured.
type UnsupportedChainError struct {
	ChainID   int64
	Supported []int64
}

func (e *UnsupportedChainError) Error() string {
	ids := make([]string, 0, len(e.Supported))
	for _, id := range e.Supported {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("chain %d is not supported (supported chains: %s)", e.ChainID, strings.Join(ids, ", "))
}

// UpstreamQueryError describes a failed request to an indexer endpoint.
type UpstreamQueryError struct {
	ChainID int64
	Query   string // already truncated
	Reason  string
	Err     error
}

// NewUpstreamQueryError builds an UpstreamQueryError, collapsing whitespace in
// the query and truncating it for log output.
func NewUpstreamQueryError(chainID int64, query, reason string, err error) *UpstreamQueryError {
	return &UpstreamQueryError{
		ChainID: chainID,
		Query:   TruncateQuery(query),
		Reason:  reason,
		Err:     err,
	}
}

func (e *UpstreamQueryError) Error() string {
	msg := fmt.Sprintf("subgraph query on chain %d failed: %s (query: %q)", e.ChainID, e.Reason, e.Query)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamQueryError) Unwrap() error { return e.Err }

// TruncateQuery collapses runs of whitespace and cuts the result to a short
// excerpt suitable for error messages.
func TruncateQuery(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if len(q) <= maxQueryExcerpt {
		return q
	}
	return q[:maxQueryExcerpt] + "..."
}

// MalformedRequestError marks client input that failed shape validation.
type MalformedRequestError struct {
	Field  string
	Reason string
}

func (e *MalformedRequestError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// IsUnsupportedChain reports whether err wraps an UnsupportedChainError.
func IsUnsupportedChain(err error) bool {
	var uc *UnsupportedChainError
	return errors.As(err, &uc)
}

// IsMalformedRequest reports whether err wraps a MalformedRequestError.
func IsMalformedRequest(err error) bool {
	var mr *MalformedRequestError
	return errors.As(err, &mr)
}
