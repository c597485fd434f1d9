// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Structured logging with run context propagation
//   - Prometheus metrics for monitoring harvest and pipeline health
//   - Stage-level tracing across a pipeline run
//   - Service level objectives for the scheduled worker
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry spans around pipeline stages
//   - slo: Service level objective gauges for corpus runs
//
// Example usage:
//
//	import (
//	    "corpusmill/internal/observability/logging"
//	    "corpusmill/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("harvest started")
//
//	    metrics.RecordRecordsHarvested("example-feed", "syndication", 10)
//	}
package observability
