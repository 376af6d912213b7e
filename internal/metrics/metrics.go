// Package metrics provides Prometheus metrics for the search service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "dexsearch"

// Metrics holds all Prometheus metrics for the application. Each instance
// owns its registry so several can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Indexer metrics
	SubgraphQueryDuration *prometheus.HistogramVec
	SubgraphQueryErrors   *prometheus.CounterVec

	// Aggregation metrics
	AggregationDuration *prometheus.HistogramVec
	AggregatedTokens    prometheus.Histogram
	EnrichmentFailures  *prometheus.CounterVec

	// Liquidity metrics
	LiquidityPolls      *prometheus.CounterVec
	LiquidityPollLength prometheus.Histogram

	// Live search metrics
	ActiveSessions prometheus.Gauge
	RateLimited    prometheus.Counter
}

// New creates a Metrics instance with all metrics registered on a fresh
// registry, alongside the Go runtime and process collectors.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		SubgraphQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "subgraph",
			Name:      "query_duration_seconds",
			Help:      "Indexer query latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"chain_id"}),
		SubgraphQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subgraph",
			Name:      "query_errors_total",
			Help:      "Total number of failed indexer queries",
		}, []string{"chain_id"}),

		AggregationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "duration_seconds",
			Help:      "Token search plus pool enrichment duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain_id"}),
		AggregatedTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "tokens",
			Help:      "Number of tokens returned per aggregation",
			Buckets:   []float64{0, 1, 2, 5, 10},
		}),
		EnrichmentFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "enrichment_failures_total",
			Help:      "Total number of tokens whose pool enrichment failed",
		}, []string{"chain_id"}),

		LiquidityPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidity",
			Name:      "polls_total",
			Help:      "Total number of orderbook liquidity polls by status",
		}, []string{"status"}),
		LiquidityPollLength: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "liquidity",
			Name:      "poll_duration_seconds",
			Help:      "Orderbook liquidity poll duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "active_sessions",
			Help:      "Number of open live search sessions",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveQuery records one indexer query.
func (m *Metrics) ObserveQuery(chainID int64, elapsed time.Duration, err error) {
	label := chainLabel(chainID)
	m.SubgraphQueryDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if err != nil {
		m.SubgraphQueryErrors.WithLabelValues(label).Inc()
	}
}

// ObserveAggregation records one completed aggregation.
func (m *Metrics) ObserveAggregation(chainID int64, tokens int, elapsed time.Duration) {
	m.AggregationDuration.WithLabelValues(chainLabel(chainID)).Observe(elapsed.Seconds())
	m.AggregatedTokens.Observe(float64(tokens))
}

// ObserveEnrichmentFailure counts a token whose pools could not be fetched.
func (m *Metrics) ObserveEnrichmentFailure(chainID int64) {
	m.EnrichmentFailures.WithLabelValues(chainLabel(chainID)).Inc()
}

// ObserveLiquidityPoll records one orderbook poll.
func (m *Metrics) ObserveLiquidityPoll(chainID int64, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LiquidityPolls.WithLabelValues(status).Inc()
	m.LiquidityPollLength.Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// SessionOpened increments the live session gauge.
func (m *Metrics) SessionOpened() { m.ActiveSessions.Inc() }

// SessionClosed decrements the live session gauge.
func (m *Metrics) SessionClosed() { m.ActiveSessions.Dec() }

// ObserveRateLimited counts a rejected request.
func (m *Metrics) ObserveRateLimited() { m.RateLimited.Inc() }

func chainLabel(chainID int64) string {
	return strconv.FormatInt(chainID, 10)
}
