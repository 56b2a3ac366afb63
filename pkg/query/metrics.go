package query

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch cycle outcomes recorded by Metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeSkipped  = "skipped"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
)

// Metrics records Prometheus metrics for query fetch cycles. A nil *Metrics
// records nothing.
type Metrics struct {
	cyclesTotal       *prometheus.CounterVec
	fetchDuration     *prometheus.HistogramVec
	retriesTotal      *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
}

// NewMetrics registers the query metrics on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	return &Metrics{
		cyclesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_fetch_cycles_total",
				Help: "Total number of query fetch cycles by cache mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		fetchDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "query_fetch_duration_seconds",
				Help:    "Time spent in the fetcher, including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_fetch_retries_total",
				Help: "Total number of failed fetch attempts that were retried",
			},
			[]string{"mode"},
		),
		persistenceErrors: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_persistence_errors_total",
				Help: "Total number of persistor failures by operation",
			},
			[]string{"op"},
		),
	}
}

func (m *Metrics) recordCycle(mode, outcome string) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) recordFetchDuration(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) recordRetry(mode string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) recordPersistenceError(op string) {
	if m == nil {
		return
	}
	m.persistenceErrors.WithLabelValues(op).Inc()
}
