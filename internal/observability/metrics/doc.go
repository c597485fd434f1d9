// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all pipeline metrics including:
//   - Harvest metrics (records per source, errors, duration)
//   - Pipeline metrics (runs, stage durations, rejects, duplicates)
//   - Excerpt extraction metrics (attempts, duration, size)
//   - Corpus store metrics (query duration, connections, write failures)
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the worker's /metrics endpoint.
//
// Example usage:
//
//	import "corpusmill/internal/observability/metrics"
//
//	func harvestSource(src *entity.Source, kind string) {
//	    start := time.Now()
//	    // ... harvest records ...
//	    count := 10
//
//	    metrics.RecordHarvest(src.Name, kind, time.Since(start), count)
//	}
package metrics
