// Package observability wires tracing and metrics for the service. This file
// holds the Prometheus collectors for the clustering core; HTTP traffic
// metrics live in the middleware package.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the clustering
// and persistence pipeline. All collectors are safe for concurrent use.
type Metrics struct {
	ClusteringRuns *prometheus.CounterVec // labels: strategy={direct,indexed}
	IndexFallbacks prometheus.Counter
	EventsSkipped  prometheus.Counter
	CacheLookups   *prometheus.CounterVec // labels: result={hit,miss,bypass}
	CacheErrors    *prometheus.CounterVec // labels: op={read,write,decode}

	StageDuration *prometheus.HistogramVec // labels: stage={index_build,grouping}

	DefinitionsCreated prometheus.Counter
	DefinitionsUpdated prometheus.Counter
	PersistErrors      prometheus.Counter
}

// NewMetrics creates all pipeline collectors and registers them with reg
// (pass prometheus.DefaultRegisterer in production, a private registry in
// tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClusteringRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake",
			Name:      "clustering_runs_total",
			Help:      "Completed clustering runs by strategy.",
		}, []string{"strategy"}),
		IndexFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake",
			Name:      "index_fallbacks_total",
			Help:      "Runs where spatial index construction failed and the direct scan ran instead.",
		}),
		EventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake",
			Name:      "events_skipped_total",
			Help:      "Input events excluded from clustering as malformed.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake",
			Name:      "cache_lookups_total",
			Help:      "Cluster cache lookups by result.",
		}, []string{"result"}),
		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake",
			Name:      "cache_errors_total",
			Help:      "Non-fatal cluster cache failures by operation.",
		}, []string{"op"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quake",
			Name:      "clustering_stage_duration_seconds",
			Help:      "Duration of clustering engine stages.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"stage"}),
		DefinitionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake",
			Name:      "definitions_created_total",
			Help:      "Cluster definitions inserted for a new stable key.",
		}),
		DefinitionsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake",
			Name:      "definitions_updated_total",
			Help:      "Cluster definitions updated in place for a known stable key.",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake",
			Name:      "persist_errors_total",
			Help:      "Per-cluster persistence failures (caught, never surfaced to callers).",
		}),
	}

	reg.MustRegister(
		m.ClusteringRuns, m.IndexFallbacks, m.EventsSkipped,
		m.CacheLookups, m.CacheErrors, m.StageDuration,
		m.DefinitionsCreated, m.DefinitionsUpdated, m.PersistErrors,
	)
	return m
}

// Observe implements the clustering engine's Profiler interface, recording
// stage timings into StageDuration.
func (m *Metrics) Observe(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
