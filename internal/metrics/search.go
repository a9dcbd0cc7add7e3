// Package metrics exposes Prometheus collectors for searches, ingest and
// the HTTP edge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
	OutcomeDegraded = "degraded"
)

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docquery",
			Name:      "search_requests_total",
			Help:      "Total number of searches by entity, mode and outcome",
		},
		[]string{"entity", "mode", "outcome"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docquery",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds, including joins and the count query",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"entity", "mode"},
	)

	SearchCountDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docquery",
			Name:      "search_count_degraded_total",
			Help:      "Searches answered without a total count because the count query failed",
		},
		[]string{"entity"},
	)

	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docquery",
			Name:      "ingest_documents_total",
			Help:      "Documents upserted from feeds",
		},
		[]string{"feed"},
	)

	IngestFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docquery",
			Name:      "ingest_failures_total",
			Help:      "Failed feed ingests",
		},
		[]string{"feed"},
	)
)

func init() {
	prometheus.MustRegister(
		SearchRequestsTotal,
		SearchDuration,
		SearchCountDegradedTotal,
		IngestDocumentsTotal,
		IngestFailuresTotal,
	)
}

// ObserveSearch records one finished search.
func ObserveSearch(entity, mode, outcome string, elapsed time.Duration) {
	SearchRequestsTotal.WithLabelValues(entity, mode, outcome).Inc()
	SearchDuration.WithLabelValues(entity, mode).Observe(elapsed.Seconds())
	if outcome == OutcomeDegraded {
		SearchCountDegradedTotal.WithLabelValues(entity).Inc()
	}
}

// ObserveIngest records one feed ingest.
func ObserveIngest(feed string, documents int, err error) {
	if err != nil {
		IngestFailuresTotal.WithLabelValues(feed).Inc()
		return
	}
	IngestDocumentsTotal.WithLabelValues(feed).Add(float64(documents))
}
