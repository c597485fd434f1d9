package worker

import (
	"corpusmill/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the scheduled worker.
// It embeds the shared ConfigMetrics for configuration monitoring and adds
// worker-specific metrics for scheduled corpus runs.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: total validation errors by field
//   - worker_config_fallbacks_total: total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Worker-specific metrics:
//   - worker_corpus_runs_total: total scheduled runs by status (success/failure)
//   - worker_corpus_run_duration_seconds: duration histogram of scheduled runs
//   - worker_corpus_records_written_total: corpus records written across runs
//   - worker_corpus_last_success_timestamp: Unix timestamp of the last successful run
type WorkerMetrics struct {
	*config.ConfigMetrics

	// CorpusRunsTotal counts scheduled runs by status (success, failure).
	CorpusRunsTotal *prometheus.CounterVec

	// CorpusRunDurationSeconds measures scheduled run duration. Buckets
	// cover 5s through 1h: a harvest-only run finishes in seconds, a full
	// run with excerpt extraction can take most of an hour.
	CorpusRunDurationSeconds prometheus.Histogram

	// CorpusRecordsWrittenTotal accumulates the corpus sizes written per run.
	CorpusRecordsWrittenTotal prometheus.Counter

	// CorpusLastSuccessTimestamp records the Unix timestamp of the last
	// successful scheduled run.
	CorpusLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a WorkerMetrics instance with all metrics
// initialized and registered via promauto.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		CorpusRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_corpus_runs_total",
			Help: "Total number of scheduled corpus runs by status (success/failure)",
		}, []string{"status"}),

		CorpusRunDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_corpus_run_duration_seconds",
			Help:    "Duration of scheduled corpus runs in seconds",
			Buckets: []float64{5, 30, 60, 300, 900, 1800, 3600},
		}),

		CorpusRecordsWrittenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_corpus_records_written_total",
			Help: "Total number of corpus records written across scheduled runs",
		}),

		CorpusLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_corpus_last_success_timestamp",
			Help: "Unix timestamp of the last successful scheduled run",
		}),
	}
}

// MustRegister is a no-op kept for the conventional initialization sequence:
// promauto already registers every metric at construction time.
func (m *WorkerMetrics) MustRegister() {}

// RecordJobRun increments the run counter for the given status
// ("success" or "failure").
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.CorpusRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes the duration of a scheduled run in seconds.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.CorpusRunDurationSeconds.Observe(seconds)
}

// RecordRecordsWritten adds the number of corpus records a run wrote.
func (m *WorkerMetrics) RecordRecordsWritten(count int64) {
	m.CorpusRecordsWrittenTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the last successful run.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.CorpusLastSuccessTimestamp.SetToCurrentTime()
}
