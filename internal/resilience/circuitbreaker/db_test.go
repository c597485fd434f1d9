package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
)

var errStoreDown = errors.New("connection refused")

// newStoreBreaker wires a breaker over a sqlmock connection. The timeout
// replaces the production 30s so recovery tests do not stall.
func newStoreBreaker(t *testing.T, timeout time.Duration) (*DBCircuitBreaker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := DBConfig()
	cfg.Timeout = timeout
	return NewDBCircuitBreakerWithConfig(db, cfg), mock
}

// failQueries queues count failing SELECTs and runs them all through the
// breaker.
func failQueries(t *testing.T, dcb *DBCircuitBreaker, mock sqlmock.Sqlmock, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		mock.ExpectQuery("SELECT (.+) FROM corpus_records").WillReturnError(errStoreDown)
	}
	for i := 0; i < count; i++ {
		if _, err := dcb.QueryContext(context.Background(), "SELECT id FROM corpus_records"); err == nil {
			t.Fatalf("query %d: expected error", i)
		}
	}
}

func TestDBConfig(t *testing.T) {
	cfg := DBConfig()

	if cfg.Name != "corpus-store" {
		t.Errorf("Name = %q, want corpus-store", cfg.Name)
	}
	if cfg.FailureThreshold != 1.0 {
		t.Errorf("FailureThreshold = %f, want 1.0", cfg.FailureThreshold)
	}
	if cfg.MinRequests != 5 {
		t.Errorf("MinRequests = %d, want 5", cfg.MinRequests)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
}

func TestDBBreaker_StartsClosed(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	dcb := NewDBCircuitBreaker(db)
	if dcb.State() != gobreaker.StateClosed {
		t.Errorf("initial state = %s, want Closed", dcb.State())
	}
	if dcb.DB() != db {
		t.Error("DB() should expose the wrapped connection")
	}
}

func TestDBBreaker_QueryPassesRowsThrough(t *testing.T) {
	dcb, mock := newStoreBreaker(t, 30*time.Second)

	mock.ExpectQuery("SELECT (.+) FROM corpus_records").
		WillReturnRows(sqlmock.NewRows([]string{"id", "titre"}).AddRow(1, "AI hiring audit ordered"))

	rows, err := dcb.QueryContext(context.Background(), "SELECT id, titre FROM corpus_records WHERE id = ?", 1)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		t.Fatal("expected one row")
	}
	var (
		id    int
		titre string
	)
	if err := rows.Scan(&id, &titre); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if id != 1 || titre != "AI hiring audit ordered" {
		t.Errorf("row = (%d, %q)", id, titre)
	}
	if dcb.State() != gobreaker.StateClosed {
		t.Errorf("state after success = %s, want Closed", dcb.State())
	}
}

func TestDBBreaker_TransactionFlow(t *testing.T) {
	dcb, mock := newStoreBreaker(t, 30*time.Second)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := dcb.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO runs (id) VALUES (?)", "run-1"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if dcb.State() != gobreaker.StateClosed {
		t.Errorf("state = %s, want Closed", dcb.State())
	}
}

func TestDBBreaker_BeginFailureSurfaces(t *testing.T) {
	dcb, mock := newStoreBreaker(t, 30*time.Second)

	mock.ExpectBegin().WillReturnError(errStoreDown)

	if _, err := dcb.BeginTx(context.Background(), nil); !errors.Is(err, errStoreDown) {
		t.Errorf("BeginTx error = %v, want errStoreDown", err)
	}
}

func TestDBBreaker_QueryFailureSurfaces(t *testing.T) {
	dcb, mock := newStoreBreaker(t, 30*time.Second)

	mock.ExpectQuery("SELECT (.+) FROM corpus_records").WillReturnError(errStoreDown)

	if _, err := dcb.QueryContext(context.Background(), "SELECT id FROM corpus_records"); !errors.Is(err, errStoreDown) {
		t.Errorf("QueryContext error = %v, want errStoreDown", err)
	}
}

func TestDBBreaker_ExecReportsAffectedRows(t *testing.T) {
	dcb, mock := newStoreBreaker(t, 30*time.Second)

	mock.ExpectExec("INSERT INTO corpus_records").WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := dcb.ExecContext(context.Background(),
		"INSERT INTO corpus_records (titre, lien) VALUES (?, ?)",
		"AI hiring audit ordered", "https://example.org/a")
	if err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		t.Fatalf("RowsAffected: %v", err)
	}
	if affected != 1 {
		t.Errorf("affected = %d, want 1", affected)
	}
}

func TestDBBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	dcb, mock := newStoreBreaker(t, 30*time.Second)

	failQueries(t, dcb, mock, 5)

	if !dcb.IsOpen() {
		t.Fatalf("breaker state = %s, want Open after 5 failures", dcb.State())
	}

	// Open circuit rejects without touching the database.
	_, err := dcb.QueryContext(context.Background(), "SELECT id FROM corpus_records")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
}

func TestDBBreaker_RecoversAfterTimeout(t *testing.T) {
	dcb, mock := newStoreBreaker(t, 100*time.Millisecond)

	failQueries(t, dcb, mock, 5)
	if dcb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want Open", dcb.State())
	}

	time.Sleep(150 * time.Millisecond)

	mock.ExpectQuery("SELECT (.+) FROM corpus_records").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	rows, err := dcb.QueryContext(context.Background(), "SELECT id FROM corpus_records")
	if err != nil {
		t.Fatalf("half-open probe: %v", err)
	}
	_ = rows.Close()

	if dcb.State() == gobreaker.StateOpen {
		t.Errorf("state = %s, want breaker out of Open after a good probe", dcb.State())
	}
}

func TestDBBreaker_SingleRowBypassesBreaker(t *testing.T) {
	dcb, mock := newStoreBreaker(t, 30*time.Second)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	var count int
	if err := dcb.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM corpus_records").Scan(&count); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
}
