// Package metrics provides centralized Prometheus metrics for the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Harvest metrics track per-source harvesting outcomes
var (
	// RecordsHarvestedTotal counts raw records harvested by source and kind
	RecordsHarvestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_harvested_total",
			Help: "Total number of raw records harvested from sources",
		},
		[]string{"source", "kind"},
	)

	// HarvestErrorsTotal counts errors during harvesting
	HarvestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_errors_total",
			Help: "Total number of harvest errors",
		},
		[]string{"source", "error_type"},
	)

	// HarvestDuration measures time to harvest a single source
	HarvestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvest_duration_seconds",
			Help:    "Time taken to harvest a source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"kind"},
	)
)

// Pipeline metrics track reconciliation runs and their stages
var (
	// PipelineRunsTotal counts pipeline runs by outcome
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"}, // status: success, failure
	)

	// PipelineStageDuration measures the duration of each pipeline stage
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of a pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"stage"}, // stage: load, normalize, dedupe, enrich, write, store
	)

	// RecordsRejectedTotal counts records dropped by the normalizer
	RecordsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "records_rejected_total",
			Help: "Total number of records rejected for missing title or URL",
		},
	)

	// DuplicatesRemovedTotal counts records collapsed by the deduplicator
	DuplicatesRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicates_removed_total",
			Help: "Total number of duplicate records removed",
		},
	)

	// CorpusRecords tracks the size of the most recently written corpus
	CorpusRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corpus_records",
			Help: "Number of records in the most recently written corpus",
		},
	)
)

// Excerpt metrics track the optional text-extraction stage
var (
	// ExcerptFetchAttemptsTotal counts excerpt fetch attempts by result
	ExcerptFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "excerpt_fetch_attempts_total",
			Help: "Total number of excerpt fetch attempts",
		},
		[]string{"result"}, // result: success, failure, abandoned
	)

	// ExcerptFetchDuration measures time to fetch and extract one excerpt
	ExcerptFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "excerpt_fetch_duration_seconds",
			Help:    "Time taken to fetch and extract an article excerpt",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// ExcerptSize measures extracted excerpt size in characters
	ExcerptSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "excerpt_size_chars",
			Help: "Extracted excerpt size in characters",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400,
			},
		},
	)
)

// Database metrics track corpus store performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// StoreErrorsTotal counts corpus store write failures by adapter
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total number of corpus store write failures",
		},
		[]string{"adapter"},
	)
)

// RecordStageDuration records the duration of a named pipeline stage
func RecordStageDuration(stage string, duration time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordOperationDuration records the duration of a named database operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
