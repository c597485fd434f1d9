package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/observability/metrics"
	"corpusmill/internal/repository"
	"corpusmill/internal/resilience/circuitbreaker"

	"github.com/lib/pq"
)

type CorpusRepo struct {
	db *circuitbreaker.DBCircuitBreaker
}

// NewCorpusRepo creates a PostgreSQL-backed corpus repository. Store calls go
// through a circuit breaker, so a down database fails fast instead of holding
// the pipeline at the store stage.
func NewCorpusRepo(db *sql.DB) repository.CorpusRepository {
	return &CorpusRepo{db: circuitbreaker.NewDBCircuitBreaker(db)}
}

// SaveRun persists the run manifest and replaces the corpus mirror in a
// single transaction, so corpus_records always reflects the most recently
// written corpus file.
func (repo *CorpusRepo) SaveRun(ctx context.Context, run *entity.Run, records []entity.CorpusRecord) error {
	start := time.Now()
	if err := repo.saveRun(ctx, run, records); err != nil {
		metrics.RecordStoreError("postgres")
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
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
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

	if len(records) > 0 {
		if err := insertRecords(ctx, tx, run.ID, records); err != nil {
			return fmt.Errorf("SaveRun: insert records: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SaveRun: Commit: %w", err)
	}
	return nil
}

// insertRecords bulk-inserts the mirror rows through unnest, so the insert
// stays one statement regardless of corpus size. Per-row placeholders would
// cap the corpus at a few thousand rows (65535-parameter protocol limit).
// Dates travel as text with "" for unknown; NULLIF turns them back into NULLs.
func insertRecords(ctx context.Context, tx *sql.Tx, runID string, records []entity.CorpusRecord) error {
	n := len(records)
	ids := make([]int64, n)
	dates := make([]string, n)
	typeSources := make([]string, n)
	titres := make([]string, n)
	liens := make([]string, n)
	langues := make([]string, n)
	motsCles := make([]string, n)
	sourceNames := make([]string, n)
	sourceTypes := make([]string, n)
	sourceCountries := make([]string, n)
	extraits := make([]string, n)
	for i := range records {
		r := &records[i]
		ids[i] = r.ID
		dates[i] = r.DateString()
		typeSources[i] = r.TypeSource
		titres[i] = r.Titre
		liens[i] = r.Lien
		langues[i] = r.Langue
		motsCles[i] = r.MotsCles
		sourceNames[i] = r.SourceName
		sourceTypes[i] = r.SourceType
		sourceCountries[i] = r.SourceCountry
		extraits[i] = r.ExtraitTexte
	}

	const query = `
INSERT INTO corpus_records
       (id, run_id, date_pub, type_source, titre, lien, langue, mots_cles,
        source_name, source_type, source_country, extrait_texte)
SELECT d.id, $1, NULLIF(d.date_pub, '')::date, d.type_source, d.titre, d.lien,
       d.langue, d.mots_cles, d.source_name, d.source_type, d.source_country,
       d.extrait_texte
FROM unnest($2::bigint[], $3::text[], $4::text[], $5::text[], $6::text[],
            $7::text[], $8::text[], $9::text[], $10::text[], $11::text[], $12::text[])
  AS d(id, date_pub, type_source, titre, lien, langue, mots_cles,
       source_name, source_type, source_country, extrait_texte)`
	_, err := tx.ExecContext(ctx, query, runID,
		pq.Array(ids), pq.Array(dates), pq.Array(typeSources), pq.Array(titres),
		pq.Array(liens), pq.Array(langues), pq.Array(motsCles), pq.Array(sourceNames),
		pq.Array(sourceTypes), pq.Array(sourceCountries), pq.Array(extraits))
	return err
}

func (repo *CorpusRepo) LatestRun(ctx context.Context) (*entity.Run, error) {
	const query = `
SELECT id, topic, since_at, until_at, raw_dir, out_path, extract_text, version,
       started_at, finished_at, records_in, records_rejected, duplicates_removed,
       excerpts_fetched, excerpts_failed, excerpts_abandoned, records_harvested,
       harvest_errors, corpus_records
FROM runs
ORDER BY finished_at DESC
LIMIT 1`
	run, err := scanRun(repo.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("LatestRun: %w", entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("LatestRun: %w", err)
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
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: %w", err)
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
	return runs, rows.Err()
}

func (repo *CorpusRepo) CountRecords(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM corpus_records`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountRecords: %w", err)
	}
	return count, nil
}

func (repo *CorpusRepo) SearchRecords(ctx context.Context, keyword string) ([]*entity.CorpusRecord, error) {
	const query = `
SELECT id, date_pub, type_source, titre, lien, langue, mots_cles,
       source_name, source_type, source_country, extrait_texte
FROM corpus_records
WHERE titre ILIKE $1
ORDER BY date_pub DESC NULLS LAST, id`
	rows, err := repo.db.QueryContext(ctx, query, "%"+keyword+"%")
	if err != nil {
		return nil, fmt.Errorf("SearchRecords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*entity.CorpusRecord, 0, 100)
	for rows.Next() {
		var rec entity.CorpusRecord
		var datePub sql.NullTime
		if err := rows.Scan(&rec.ID, &datePub, &rec.TypeSource, &rec.Titre,
			&rec.Lien, &rec.Langue, &rec.MotsCles, &rec.SourceName,
			&rec.SourceType, &rec.SourceCountry, &rec.ExtraitTexte); err != nil {
			return nil, fmt.Errorf("SearchRecords: Scan: %w", err)
		}
		if datePub.Valid {
			rec.DatePub = &datePub.Time
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
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
