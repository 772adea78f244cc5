// Package telemetry exposes prometheus metrics for the query and ingestion
// paths. Metrics are served by the transport layer at /metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's prometheus collectors.
type Metrics struct {
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   prometheus.Histogram
	IngestsTotal    *prometheus.CounterVec
	ChunksIngested  prometheus.Counter
	IngestDuration  prometheus.Histogram
	GroundingScores prometheus.Histogram
}

// New registers collectors with the default registry. Call once per process.
func New() *Metrics {
	return &Metrics{
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ragd_queries_total",
			Help: "Total query requests by outcome.",
		}, []string{"status"}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragd_query_duration_seconds",
			Help:    "End-to-end query latency.",
			Buckets: prometheus.DefBuckets,
		}),
		IngestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ragd_ingests_total",
			Help: "Total document ingestions by outcome.",
		}, []string{"status"}),
		ChunksIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ragd_chunks_ingested_total",
			Help: "Total chunks stored in the index.",
		}),
		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragd_ingest_duration_seconds",
			Help:    "Document ingestion latency.",
			Buckets: prometheus.DefBuckets,
		}),
		GroundingScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragd_grounding_score",
			Help:    "Distribution of validator grounding scores.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
}

// ObserveQuery records one query outcome. Nil-safe so handlers can run
// without metrics in tests.
func (m *Metrics) ObserveQuery(status string, d time.Duration, grounding float64) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(status).Inc()
	m.QueryDuration.Observe(d.Seconds())
	if status == "success" {
		m.GroundingScores.Observe(grounding)
	}
}

// ObserveIngest records one ingestion outcome.
func (m *Metrics) ObserveIngest(status string, chunks int, d time.Duration) {
	if m == nil {
		return
	}
	m.IngestsTotal.WithLabelValues(status).Inc()
	m.IngestDuration.Observe(d.Seconds())
	if chunks > 0 {
		m.ChunksIngested.Add(float64(chunks))
	}
}
