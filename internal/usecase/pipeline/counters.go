package pipeline

import (
	"log/slog"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/usecase/harvest"
)

// RunCounters is the reproducibility ledger of one run, threaded through the
// stages and returned to the caller. A fatally failing run still reports the
// counters accumulated up to the failure.
type RunCounters struct {
	RecordsIn         int64
	RecordsRejected   int64
	DuplicatesRemoved int64
	ExcerptsFetched   int64
	ExcerptsFailed    int64
	ExcerptsAbandoned int64
	RecordsHarvested  int64
	HarvestErrors     int64
	StoreErrors       int64
	CorpusRecords     int64

	// HarvestedByKind breaks RecordsHarvested down per source kind when the
	// run harvested first. Nil for merge-only runs.
	HarvestedByKind map[entity.SourceKind]int64
}

// AbsorbHarvest copies a harvest outcome into the counters so the manifest
// of a full run covers both phases.
func (c *RunCounters) AbsorbHarvest(stats *harvest.Stats) {
	if stats == nil {
		return
	}
	c.RecordsHarvested = stats.Records
	c.HarvestErrors = stats.Errors
	if len(stats.ByKind) > 0 {
		c.HarvestedByKind = make(map[entity.SourceKind]int64, len(stats.ByKind))
		for kind, n := range stats.ByKind {
			c.HarvestedByKind[kind] = n
		}
	}
}

// ApplyTo snapshots the counters into a run manifest.
func (c *RunCounters) ApplyTo(run *entity.Run) {
	run.RecordsIn = c.RecordsIn
	run.RecordsRejected = c.RecordsRejected
	run.DuplicatesRemoved = c.DuplicatesRemoved
	run.ExcerptsFetched = c.ExcerptsFetched
	run.ExcerptsFailed = c.ExcerptsFailed
	run.ExcerptsAbandoned = c.ExcerptsAbandoned
	run.RecordsHarvested = c.RecordsHarvested
	run.HarvestErrors = c.HarvestErrors
	run.CorpusRecords = c.CorpusRecords
}

// LogFields renders the counters as structured log fields for the run's
// completion entry.
func (c *RunCounters) LogFields() []any {
	fields := []any{
		slog.Int64("records_in", c.RecordsIn),
		slog.Int64("records_rejected_by_normalizer", c.RecordsRejected),
		slog.Int64("duplicates_removed", c.DuplicatesRemoved),
		slog.Int64("excerpts_fetched", c.ExcerptsFetched),
		slog.Int64("excerpts_failed", c.ExcerptsFailed),
		slog.Int64("corpus_records", c.CorpusRecords),
	}
	if c.ExcerptsAbandoned > 0 {
		fields = append(fields, slog.Int64("excerpts_abandoned", c.ExcerptsAbandoned))
	}
	if c.RecordsHarvested > 0 || c.HarvestErrors > 0 {
		fields = append(fields,
			slog.Int64("records_harvested", c.RecordsHarvested),
			slog.Int64("harvest_errors", c.HarvestErrors))
	}
	if c.StoreErrors > 0 {
		fields = append(fields, slog.Int64("store_errors", c.StoreErrors))
	}
	return fields
}
