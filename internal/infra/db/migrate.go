package db

import "database/sql"

// Dialect selects the DDL flavor for the corpus store schema.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const runsDDLPostgres = `
CREATE TABLE IF NOT EXISTS runs (
    id                 TEXT PRIMARY KEY,
    topic              TEXT NOT NULL,
    since_at           TIMESTAMPTZ,
    until_at           TIMESTAMPTZ,
    raw_dir            TEXT NOT NULL,
    out_path           TEXT NOT NULL,
    extract_text       BOOLEAN NOT NULL DEFAULT FALSE,
    version            TEXT NOT NULL,
    started_at         TIMESTAMPTZ NOT NULL,
    finished_at        TIMESTAMPTZ NOT NULL,
    records_in         BIGINT NOT NULL DEFAULT 0,
    records_rejected   BIGINT NOT NULL DEFAULT 0,
    duplicates_removed BIGINT NOT NULL DEFAULT 0,
    excerpts_fetched   BIGINT NOT NULL DEFAULT 0,
    excerpts_failed    BIGINT NOT NULL DEFAULT 0,
    excerpts_abandoned BIGINT NOT NULL DEFAULT 0,
    records_harvested  BIGINT NOT NULL DEFAULT 0,
    harvest_errors     BIGINT NOT NULL DEFAULT 0,
    corpus_records     BIGINT NOT NULL DEFAULT 0
)`

const recordsDDLPostgres = `
CREATE TABLE IF NOT EXISTS corpus_records (
    id             BIGINT PRIMARY KEY,
    run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    date_pub       DATE,
    type_source    VARCHAR(20) NOT NULL,
    titre          TEXT NOT NULL,
    lien           TEXT NOT NULL,
    langue         VARCHAR(16),
    mots_cles      TEXT,
    source_name    TEXT,
    source_type    TEXT,
    source_country TEXT,
    extrait_texte  TEXT
)`

const runsDDLSQLite = `
CREATE TABLE IF NOT EXISTS runs (
    id                 TEXT PRIMARY KEY,
    topic              TEXT NOT NULL,
    since_at           TIMESTAMP,
    until_at           TIMESTAMP,
    raw_dir            TEXT NOT NULL,
    out_path           TEXT NOT NULL,
    extract_text       BOOLEAN NOT NULL DEFAULT FALSE,
    version            TEXT NOT NULL,
    started_at         TIMESTAMP NOT NULL,
    finished_at        TIMESTAMP NOT NULL,
    records_in         BIGINT NOT NULL DEFAULT 0,
    records_rejected   BIGINT NOT NULL DEFAULT 0,
    duplicates_removed BIGINT NOT NULL DEFAULT 0,
    excerpts_fetched   BIGINT NOT NULL DEFAULT 0,
    excerpts_failed    BIGINT NOT NULL DEFAULT 0,
    excerpts_abandoned BIGINT NOT NULL DEFAULT 0,
    records_harvested  BIGINT NOT NULL DEFAULT 0,
    harvest_errors     BIGINT NOT NULL DEFAULT 0,
    corpus_records     BIGINT NOT NULL DEFAULT 0
)`

const recordsDDLSQLite = `
CREATE TABLE IF NOT EXISTS corpus_records (
    id             INTEGER PRIMARY KEY,
    run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    date_pub       DATE,
    type_source    TEXT NOT NULL,
    titre          TEXT NOT NULL,
    lien           TEXT NOT NULL,
    langue         TEXT,
    mots_cles      TEXT,
    source_name    TEXT,
    source_type    TEXT,
    source_country TEXT,
    extrait_texte  TEXT
)`

// MigrateUp creates the corpus store schema: the runs manifest table and
// the corpus_records mirror of the most recently written corpus file.
func MigrateUp(db *sql.DB, dialect Dialect) error {
	runsDDL, recordsDDL := runsDDLSQLite, recordsDDLSQLite
	if dialect == DialectPostgres {
		runsDDL, recordsDDL = runsDDLPostgres, recordsDDLPostgres
	}

	if _, err := db.Exec(runsDDL); err != nil {
		return err
	}
	if _, err := db.Exec(recordsDDL); err != nil {
		return err
	}

	indexes := []string{
		// LatestRun / ListRuns order by finished_at
		`CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at DESC)`,
		// SearchRecords orders by publication date
		`CREATE INDEX IF NOT EXISTS idx_corpus_records_date_pub ON corpus_records(date_pub DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_corpus_records_type_source ON corpus_records(type_source)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	if dialect == DialectPostgres {
		// ILIKE title search acceleration. Errors are ignored: the pg_trgm
		// extension needs superuser rights and the store works without it.
		_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`)
		_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_corpus_records_titre_gin ON corpus_records USING gin(titre gin_trgm_ops)`)
	}

	return nil
}

// MigrateDown removes the corpus store schema.
// Use with caution: this deletes every persisted run and mirrored record.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_corpus_records_type_source`,
		`DROP INDEX IF EXISTS idx_corpus_records_date_pub`,
		`DROP INDEX IF EXISTS idx_runs_finished_at`,
		`DROP TABLE IF EXISTS corpus_records`,
		`DROP TABLE IF EXISTS runs`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
