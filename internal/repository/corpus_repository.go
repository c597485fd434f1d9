package repository

import (
	"context"

	"corpusmill/internal/domain/entity"
)

// CorpusRepository defines the interface for the optional relational mirror
// of the written corpus. The CSV stays the authoritative artifact; callers
// treat every failure here as non-fatal.
type CorpusRepository interface {
	// SaveRun persists one run manifest together with its corpus records in
	// a single transaction. The corpus rows replace those of the previous
	// run, so corpus_records always mirrors the most recently written file.
	SaveRun(ctx context.Context, run *entity.Run, records []entity.CorpusRecord) error

	// LatestRun returns the most recently finished run.
	// Returns entity.ErrNotFound if no run has been persisted yet.
	LatestRun(ctx context.Context) (*entity.Run, error)

	// ListRuns retrieves up to limit runs, most recent first.
	// Returns an empty slice (not nil) if no runs are found.
	ListRuns(ctx context.Context, limit int) ([]*entity.Run, error)

	// CountRecords returns the number of mirrored corpus records.
	CountRecords(ctx context.Context) (int64, error)

	// SearchRecords searches mirrored records whose title contains the
	// keyword (case-insensitive), most recent publication date first.
	SearchRecords(ctx context.Context, keyword string) ([]*entity.CorpusRecord, error)
}
