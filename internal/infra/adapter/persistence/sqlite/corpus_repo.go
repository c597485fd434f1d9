// Package sqlite provides the SQLite implementation of the corpus store.
// It backs single-machine setups where running a PostgreSQL server is not
// worth the operational cost.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/observability/metrics"
	"corpusmill/internal/repository"
	"corpusmill/internal/resilience/circuitbreaker"
)

// CorpusRepo implements the CorpusRepository interface using SQLite.
type CorpusRepo struct{ db *circuitbreaker.DBCircuitBreaker }

// NewCorpusRepo creates a new SQLite-backed corpus repository. Store calls go
// through the same circuit breaker as the PostgreSQL adapter; with a local
// file the breaker mostly guards against a locked or unwritable database.
func NewCorpusRepo(db *sql.DB) repository.CorpusRepository {
	return &CorpusRepo{db: circuitbreaker.NewDBCircuitBreaker(db)}
}

// SaveRun persists the run manifest and replaces the corpus mirror in a
// single transaction, so corpus_records always reflects the most recently
// written corpus file.
func (repo *CorpusRepo) SaveRun(ctx context.Context, run *entity.Run, records []entity.CorpusRecord) error {
	start := time.Now()
	if err := repo.saveRun(ctx, run, records); err != nil {
		metrics.RecordStoreError("sqlite")
		return err
	}
	metrics.RecordDBQuery("save_run", time.Since(start))
	return nil
}

func (repo *CorpusRepo) saveRun(ctx context.Context, run *entity.Run, records []entity.CorpusRecord) error {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("SaveRun: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertRun = `
INSERT INTO runs
       (id, topic, since_at, until_at, raw_dir, out_path, extract_text, version,
        started_at, finished_at, records_in, records_rejected, duplicates_removed,
        excerpts_fetched, excerpts_failed, excerpts_abandoned, records_harvested,
        harvest_errors, corpus_records)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	if _, err := tx.ExecContext(ctx, insertRun,
		run.ID, run.Topic, run.Since, run.Until, run.RawDir, run.OutPath,
		run.ExtractText, run.Version, run.StartedAt, run.FinishedAt,
		run.RecordsIn, run.RecordsRejected, run.DuplicatesRemoved,
		run.ExcerptsFetched, run.ExcerptsFailed, run.ExcerptsAbandoned,
		run.RecordsHarvested, run.HarvestErrors, run.CorpusRecords,
	); err != nil {
		return fmt.Errorf("SaveRun: insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM corpus_records`); err != nil {
		return fmt.Errorf("SaveRun: clear mirror: %w", err)
	}

	// SQLite caps statements at 999 bound variables by default, so the
	// mirror is written row by row through one prepared statement.
	const insertRecord = `
INSERT INTO corpus_records
       (id, run_id, date_pub, type_source, titre, lien, langue, mots_cles,
        source_name, source_type, source_country, extrait_texte)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	if len(records) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertRecord)
		if err != nil {
			return fmt.Errorf("SaveRun: PrepareContext: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range records {
			r := &records[i]
			datePub := sql.NullString{String: r.DateString(), Valid: r.HasDate()}
			if _, err := stmt.ExecContext(ctx, r.ID, run.ID, datePub, r.TypeSource,
				r.Titre, r.Lien, r.Langue, r.MotsCles, r.SourceName, r.SourceType,
				r.SourceCountry, r.ExtraitTexte); err != nil {
				return fmt.Errorf("SaveRun: insert record %d: %w", r.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SaveRun: Commit: %w", err)
	}
	return nil
}

// LatestRun returns the manifest of the most recently finished run.
func (repo *CorpusRepo) LatestRun(ctx context.Context) (*entity.Run, error) {
	const query = `
SELECT id, topic, since_at, until_at, raw_dir, out_path, extract_text, version,
       started_at, finished_at, records_in, records_rejected, duplicates_removed,
       excerpts_fetched, excerpts_failed, excerpts_abandoned, records_harvested,
       harvest_errors, corpus_records
FROM runs
ORDER BY finished_at DESC
LIMIT 1
`
	run, err := scanRun(repo.db.QueryRowContext(ctx, query))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("LatestRun: %w", entity.ErrNotFound)
		}
		return nil, fmt.Errorf("LatestRun: QueryRowContext: %w", err)
	}
	return run, nil
}

func (repo *CorpusRepo) ListRuns(ctx context.Context, limit int) ([]*entity.Run, error) {
	const query = `
SELECT id, topic, since_at, until_at, raw_dir, out_path, extract_text, version,
       started_at, finished_at, records_in, records_rejected, duplicates_removed,
       excerpts_fetched, excerpts_failed, excerpts_abandoned, records_harvested,
       harvest_errors, corpus_records
FROM runs
ORDER BY finished_at DESC
LIMIT ?
`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*entity.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRuns: Scan: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRuns: rows.Err: %w", err)
	}

	return runs, nil
}

func (repo *CorpusRepo) CountRecords(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM corpus_records`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountRecords: QueryRowContext: %w", err)
	}
	return count, nil
}

// SearchRecords returns mirrored records whose title contains the keyword.
// LIKE is case-insensitive for ASCII in SQLite, which matches the
// PostgreSQL adapter's ILIKE behavior closely enough for corpus titles.
func (repo *CorpusRepo) SearchRecords(ctx context.Context, keyword string) ([]*entity.CorpusRecord, error) {
	const query = `
SELECT id, date_pub, type_source, titre, lien, langue, mots_cles,
       source_name, source_type, source_country, extrait_texte
FROM corpus_records
WHERE titre LIKE ?
ORDER BY date_pub DESC NULLS LAST, id
`
	rows, err := repo.db.QueryContext(ctx, query, "%"+keyword+"%")
	if err != nil {
		return nil, fmt.Errorf("SearchRecords: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*entity.CorpusRecord, 0, 100)
	for rows.Next() {
		var rec entity.CorpusRecord
		var datePub sql.NullTime
		err := rows.Scan(&rec.ID, &datePub, &rec.TypeSource, &rec.Titre,
			&rec.Lien, &rec.Langue, &rec.MotsCles, &rec.SourceName,
			&rec.SourceType, &rec.SourceCountry, &rec.ExtraitTexte)
		if err != nil {
			return nil, fmt.Errorf("SearchRecords: Scan: %w", err)
		}
		if datePub.Valid {
			rec.DatePub = &datePub.Time
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchRecords: rows.Err: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRun reads one row produced by a runs SELECT in manifest column order.
// since_at and until_at are the only nullable columns.
func scanRun(row rowScanner) (*entity.Run, error) {
	var run entity.Run
	var since, until sql.NullTime
	if err := row.Scan(&run.ID, &run.Topic, &since, &until, &run.RawDir,
		&run.OutPath, &run.ExtractText, &run.Version, &run.StartedAt,
		&run.FinishedAt, &run.RecordsIn, &run.RecordsRejected,
		&run.DuplicatesRemoved, &run.ExcerptsFetched, &run.ExcerptsFailed,
		&run.ExcerptsAbandoned, &run.RecordsHarvested, &run.HarvestErrors,
		&run.CorpusRecords); err != nil {
		return nil, err
	}
	if since.Valid {
		run.Since = &since.Time
	}
	if until.Valid {
		run.Until = &until.Time
	}
	return &run, nil
}
