package metrics

import (
	"time"
)

// RecordRecordsHarvested records the number of raw records harvested from a source.
// This metric helps track source activity and provider coverage.
func RecordRecordsHarvested(sourceName, kind string, count int) {
	RecordsHarvestedTotal.WithLabelValues(sourceName, kind).Add(float64(count))
}

// RecordHarvestError records an error during harvesting.
func RecordHarvestError(sourceName, errorType string) {
	HarvestErrorsTotal.WithLabelValues(sourceName, errorType).Inc()
}

// RecordHarvest records metrics for a single source harvest.
func RecordHarvest(sourceName, kind string, duration time.Duration, recordsFound int) {
	HarvestDuration.WithLabelValues(kind).Observe(duration.Seconds())

	if recordsFound > 0 {
		RecordRecordsHarvested(sourceName, kind, recordsFound)
	}
}

// RecordPipelineRun records the outcome of a pipeline run.
// Status should be either "success" or "failure".
func RecordPipelineRun(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	PipelineRunsTotal.WithLabelValues(status).Inc()
}

// RecordRecordsRejected records records dropped by the normalizer for
// missing title or URL.
func RecordRecordsRejected(count int) {
	RecordsRejectedTotal.Add(float64(count))
}

// RecordDuplicatesRemoved records records collapsed by the deduplicator.
func RecordDuplicatesRemoved(count int) {
	DuplicatesRemovedTotal.Add(float64(count))
}

// UpdateCorpusRecords updates the size of the most recently written corpus.
func UpdateCorpusRecords(count int) {
	CorpusRecords.Set(float64(count))
}

// RecordExcerptFetchSuccess records a successful excerpt fetch.
// This tracks both the duration and size of the extracted text.
//
// Parameters:
//   - duration: Time taken to fetch and extract the excerpt
//   - size: Size of the extracted excerpt in characters
//
// Example:
//
//	start := time.Now()
//	text, err := fetcher.FetchContent(ctx, url)
//	if err == nil {
//	    RecordExcerptFetchSuccess(time.Since(start), len(text))
//	}
func RecordExcerptFetchSuccess(duration time.Duration, size int) {
	ExcerptFetchAttemptsTotal.WithLabelValues("success").Inc()
	ExcerptFetchDuration.Observe(duration.Seconds())
	ExcerptSize.Observe(float64(size))
}

// RecordExcerptFetchFailed records a failed excerpt fetch.
//
// Parameters:
//   - duration: Time taken before the fetch failed
func RecordExcerptFetchFailed(duration time.Duration) {
	ExcerptFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ExcerptFetchDuration.Observe(duration.Seconds())
}

// RecordExcerptsAbandoned records excerpt fetches abandoned when the
// enrichment budget expired before they were attempted or completed.
func RecordExcerptsAbandoned(count int) {
	if count <= 0 {
		return
	}
	ExcerptFetchAttemptsTotal.WithLabelValues("abandoned").Add(float64(count))
}

// RecordStoreError records a corpus store write failure.
// Adapter should name the backing store (e.g. "postgres", "sqlite").
func RecordStoreError(adapter string) {
	StoreErrorsTotal.WithLabelValues(adapter).Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g. "insert_corpus_record", "insert_run").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
