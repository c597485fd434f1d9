package entity

import "time"

// Run records one pipeline execution: its parameters, timing, and the
// reproducibility counters. The corpus store persists it as a row of the
// runs table. Merge-only executions leave the harvest counts at zero.
type Run struct {
	ID          string // uuid, assigned at run start
	Topic       string
	Since       *time.Time // harvest range start, nil when unbounded
	Until       *time.Time // harvest range end, nil when unbounded
	RawDir      string
	OutPath     string
	ExtractText bool
	Version     string
	StartedAt   time.Time
	FinishedAt  time.Time

	RecordsIn         int64
	RecordsRejected   int64
	DuplicatesRemoved int64
	ExcerptsFetched   int64
	ExcerptsFailed    int64
	ExcerptsAbandoned int64
	RecordsHarvested  int64
	HarvestErrors     int64
	CorpusRecords     int64
}

// Duration returns the run's wall-clock time, or 0 while it is still going.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
