package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservers(t *testing.T) {
	m := New("")

	m.ObserveQuery(1, 20*time.Millisecond, nil)
	m.ObserveQuery(1, 30*time.Millisecond, errors.New("timeout"))
	m.ObserveEnrichmentFailure(8453)
	m.ObserveEnrichmentFailure(8453)
	m.ObserveLiquidityPoll(1, time.Millisecond, nil)
	m.ObserveLiquidityPoll(1, time.Millisecond, errors.New("503"))
	m.ObserveHTTP("/search", 200, time.Millisecond)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubgraphQueryErrors.WithLabelValues("1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EnrichmentFailures.WithLabelValues("8453")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiquidityPolls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiquidityPolls.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/search", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("testns")
	m.ObserveQuery(10, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "testns_subgraph_query_duration_seconds")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInstancesAreIndependent(t *testing.T) {
	a := New("")
	b := New("")
	a.ObserveRateLimited()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.RateLimited))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RateLimited))
}
