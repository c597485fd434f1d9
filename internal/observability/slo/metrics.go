package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets define the service level objectives of the corpus pipeline.
// A batch system has no request latency to speak of; what matters is that
// runs keep succeeding, that sources keep answering, and that the corpus
// never grows stale.
const (
	// FreshnessSLO is the maximum acceptable corpus age in seconds
	// (26 hours: one nightly run plus slack).
	FreshnessSLO = 26 * 60 * 60

	// RunSuccessSLO is the target fraction of scheduled runs that
	// complete successfully.
	RunSuccessSLO = 0.98

	// SourceErrorRateSLO is the maximum acceptable fraction of sources
	// failing within one run.
	SourceErrorRateSLO = 0.10
)

// SLO tracking metrics. The worker updates them after each scheduled run
// (success ratio, source error rate) and on a minute tick (freshness).
var (
	// SLORunSuccess tracks the fraction of scheduled runs that succeeded
	// since the worker started (0-1).
	SLORunSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_run_success_ratio",
			Help: "Fraction of scheduled runs that succeeded (0-1), target: 0.98",
		},
	)

	// SLOSourceErrorRate tracks the fraction of sources that failed in
	// the most recent run (0-1).
	SLOSourceErrorRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_source_error_rate_ratio",
			Help: "Fraction of sources that failed in the last run (0-1), target: <= 0.10",
		},
	)

	// SLOCorpusFreshness tracks the age of the last successful corpus in
	// seconds.
	SLOCorpusFreshness = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_corpus_freshness_seconds",
			Help: "Age of the last successful corpus in seconds, target: <= 93600",
		},
	)
)

// UpdateRunSuccess updates the run success SLO metric.
//
// Example calculation:
//
//	ratio := float64(succeededRuns) / float64(totalRuns)
//	slo.UpdateRunSuccess(ratio)
func UpdateRunSuccess(ratio float64) {
	SLORunSuccess.Set(ratio)
}

// UpdateSourceErrorRate updates the source error rate SLO metric with the
// fraction of sources that failed in the last run.
func UpdateSourceErrorRate(ratio float64) {
	SLOSourceErrorRate.Set(ratio)
}

// UpdateCorpusFreshness updates the freshness SLO metric. Call this
// periodically with the seconds elapsed since the last successful run.
func UpdateCorpusFreshness(seconds float64) {
	SLOCorpusFreshness.Set(seconds)
}
