package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"corpusmill/internal/domain/entity"
	pg "corpusmill/internal/infra/adapter/persistence/postgres"
)

/* ─────────────────────────── Helpers ─────────────────────────── */

var runColumns = []string{
	"id", "topic", "since_at", "until_at", "raw_dir", "out_path",
	"extract_text", "version", "started_at", "finished_at", "records_in",
	"records_rejected", "duplicates_removed", "excerpts_fetched",
	"excerpts_failed", "excerpts_abandoned", "records_harvested",
	"harvest_errors", "corpus_records",
}

var recordColumns = []string{
	"id", "date_pub", "type_source", "titre", "lien", "langue", "mots_cles",
	"source_name", "source_type", "source_country", "extrait_texte",
}

func nullable(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func runRow(r *entity.Run) *sqlmock.Rows {
	return sqlmock.NewRows(runColumns).AddRow(
		r.ID, r.Topic, nullable(r.Since), nullable(r.Until), r.RawDir,
		r.OutPath, r.ExtractText, r.Version, r.StartedAt, r.FinishedAt,
		r.RecordsIn, r.RecordsRejected, r.DuplicatesRemoved,
		r.ExcerptsFetched, r.ExcerptsFailed, r.ExcerptsAbandoned,
		r.RecordsHarvested, r.HarvestErrors, r.CorpusRecords,
	)
}

func sampleRun() *entity.Run {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &entity.Run{
		ID:                "8f14e45f-ceea-467f-a8d9-0f5b6c1c90f1",
		Topic:             "algorithmic accountability",
		Since:             &since,
		Until:             nil,
		RawDir:            "raw/2024-06-01",
		OutPath:           "corpus.csv",
		ExtractText:       true,
		Version:           "0.3.0",
		StartedAt:         time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt:        time.Date(2024, 6, 1, 9, 12, 30, 0, time.UTC),
		RecordsIn:         240,
		RecordsRejected:   12,
		DuplicatesRemoved: 31,
		ExcerptsFetched:   180,
		ExcerptsFailed:    9,
		ExcerptsAbandoned: 8,
		RecordsHarvested:  252,
		HarvestErrors:     1,
		CorpusRecords:     197,
	}
}

/* ─────────────────────────── 1. SaveRun ─────────────────────────── */

func TestCorpusRepo_SaveRun(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	run := sampleRun()
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	records := []entity.CorpusRecord{
		{
			ID: 1,
			NormalizedRecord: entity.NormalizedRecord{
				DatePub: &date, TypeSource: "NEWS", Titre: "Audit ordered",
				Lien: "https://news.example.org/audit", Langue: "en",
				SourceName: "Example Wire", SourceType: "press", SourceCountry: "US",
			},
			ExtraitTexte: "The audit found issues.",
		},
		{
			ID: 2,
			NormalizedRecord: entity.NormalizedRecord{
				TypeSource: "CIVIC", Titre: "Plateforme citoyenne",
				Lien: "https://ong.example.org/plateforme", Langue: "fr",
				SourceName: "Observatoire", SourceType: "ngo", SourceCountry: "FR",
			},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).
		WithArgs(run.ID, run.Topic, *run.Since, nil, run.RawDir, run.OutPath,
			run.ExtractText, run.Version, run.StartedAt, run.FinishedAt,
			run.RecordsIn, run.RecordsRejected, run.DuplicatesRemoved,
			run.ExcerptsFetched, run.ExcerptsFailed, run.ExcerptsAbandoned,
			run.RecordsHarvested, run.HarvestErrors, run.CorpusRecords).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM corpus_records")).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO corpus_records")).
		WithArgs(run.ID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	repo := pg.NewCorpusRepo(db)
	if err := repo.SaveRun(context.Background(), run, records); err != nil {
		t.Fatalf("SaveRun err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCorpusRepo_SaveRun_NoRecords(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	// An empty corpus still records the manifest and clears the mirror.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM corpus_records")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	repo := pg.NewCorpusRepo(db)
	if err := repo.SaveRun(context.Background(), sampleRun(), nil); err != nil {
		t.Fatalf("SaveRun err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCorpusRepo_SaveRun_InsertError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	repo := pg.NewCorpusRepo(db)
	err := repo.SaveRun(context.Background(), sampleRun(), nil)
	if !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("SaveRun err=%v, want ErrConnDone", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCorpusRepo_SaveRun_CommitError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM corpus_records")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(sql.ErrTxDone)

	repo := pg.NewCorpusRepo(db)
	err := repo.SaveRun(context.Background(), sampleRun(), nil)
	if !errors.Is(err, sql.ErrTxDone) {
		t.Fatalf("SaveRun err=%v, want ErrTxDone", err)
	}
}

/* ─────────────────────────── 2. LatestRun ─────────────────────────── */

func TestCorpusRepo_LatestRun(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := sampleRun()
	mock.ExpectQuery("FROM runs").WillReturnRows(runRow(want))

	repo := pg.NewCorpusRepo(db)
	got, err := repo.LatestRun(context.Background())
	if err != nil {
		t.Fatalf("LatestRun err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCorpusRepo_LatestRun_Empty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM runs").
		WillReturnRows(sqlmock.NewRows(runColumns))

	repo := pg.NewCorpusRepo(db)
	_, err := repo.LatestRun(context.Background())
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("LatestRun err=%v, want ErrNotFound", err)
	}
}

/* ─────────────────────────── 3. ListRuns ─────────────────────────── */

func TestCorpusRepo_ListRuns(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	first := sampleRun()
	second := sampleRun()
	second.ID = "2c1743a3-9c12-4f80-9a7e-3a1b2c3d4e5f"
	second.Until = nil
	second.Since = nil
	second.FinishedAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	rows := runRow(first)
	rows.AddRow(
		second.ID, second.Topic, nil, nil, second.RawDir, second.OutPath,
		second.ExtractText, second.Version, second.StartedAt, second.FinishedAt,
		second.RecordsIn, second.RecordsRejected, second.DuplicatesRemoved,
		second.ExcerptsFetched, second.ExcerptsFailed, second.ExcerptsAbandoned,
		second.RecordsHarvested, second.HarvestErrors, second.CorpusRecords,
	)
	mock.ExpectQuery("FROM runs").WithArgs(2).WillReturnRows(rows)

	repo := pg.NewCorpusRepo(db)
	got, err := repo.ListRuns(context.Background(), 2)
	if err != nil || len(got) != 2 {
		t.Fatalf("ListRuns err=%v len=%d", err, len(got))
	}
	if diff := cmp.Diff([]*entity.Run{first, second}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCorpusRepo_ListRuns_Empty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM runs").WithArgs(10).
		WillReturnRows(sqlmock.NewRows(runColumns))

	repo := pg.NewCorpusRepo(db)
	got, err := repo.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns err=%v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("ListRuns = %#v, want empty non-nil slice", got)
	}
}

/* ─────────────────────────── 4. CountRecords ─────────────────────────── */

func TestCorpusRepo_CountRecords(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM corpus_records")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(197)))

	repo := pg.NewCorpusRepo(db)
	count, err := repo.CountRecords(context.Background())
	if err != nil || count != 197 {
		t.Fatalf("CountRecords err=%v count=%d", err, count)
	}
}

/* ─────────────────────────── 5. SearchRecords ─────────────────────────── */

func TestCorpusRepo_SearchRecords(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM corpus_records").
		WithArgs("%audit%").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(int64(1), date, "NEWS", "Audit ordered",
				"https://news.example.org/audit", "en", "",
				"Example Wire", "press", "US", "The audit found issues.").
			AddRow(int64(7), nil, "CIVIC", "Audit citoyen",
				"https://ong.example.org/audit", "fr", "",
				"Observatoire", "ngo", "FR", ""))

	repo := pg.NewCorpusRepo(db)
	got, err := repo.SearchRecords(context.Background(), "audit")
	if err != nil {
		t.Fatalf("SearchRecords err=%v", err)
	}

	want := []*entity.CorpusRecord{
		{
			ID: 1,
			NormalizedRecord: entity.NormalizedRecord{
				DatePub: &date, TypeSource: "NEWS", Titre: "Audit ordered",
				Lien: "https://news.example.org/audit", Langue: "en",
				SourceName: "Example Wire", SourceType: "press", SourceCountry: "US",
			},
			ExtraitTexte: "The audit found issues.",
		},
		{
			ID: 7,
			NormalizedRecord: entity.NormalizedRecord{
				TypeSource: "CIVIC", Titre: "Audit citoyen",
				Lien: "https://ong.example.org/audit", Langue: "fr",
				SourceName: "Observatoire", SourceType: "ngo", SourceCountry: "FR",
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCorpusRepo_SearchRecords_QueryError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM corpus_records").
		WillReturnError(sql.ErrConnDone)

	repo := pg.NewCorpusRepo(db)
	if _, err := repo.SearchRecords(context.Background(), "x"); !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("SearchRecords err=%v, want ErrConnDone", err)
	}
}
