package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/sony/gobreaker"
)

// DBCircuitBreaker routes corpus store calls through a circuit breaker, so
// a database that has gone away fails fast instead of stalling every run at
// the store stage.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// DBConfig returns the corpus store breaker configuration: trips after 5
// consecutive failures, retries after 30 seconds.
func DBConfig() Config {
	return Config{
		Name:             "corpus-store",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0, // only a fully failing store trips
		MinRequests:      5,
	}
}

// NewDBCircuitBreaker wraps db with the DBConfig breaker.
func NewDBCircuitBreaker(db *sql.DB) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, DBConfig())
}

// NewDBCircuitBreakerWithConfig wraps db with a custom breaker configuration.
func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{cb: New(cfg), db: db}
}

// guard runs op through the breaker and restores its result type. With the
// circuit open it returns ErrOpenState without touching the database.
func guard[T any](cb *CircuitBreaker, op func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (interface{}, error) { return op() })
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// BeginTx opens a transaction through the breaker. Statements on the
// returned transaction run directly; the begin is where an unavailable
// store fails.
func (dcb *DBCircuitBreaker) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return guard(dcb.cb, func() (*sql.Tx, error) {
		return dcb.db.BeginTx(ctx, opts)
	})
}

// QueryContext runs a query through the breaker.
func (dcb *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return guard(dcb.cb, func() (*sql.Rows, error) {
		return dcb.db.QueryContext(ctx, query, args...)
	})
}

// ExecContext runs a statement through the breaker.
func (dcb *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return guard(dcb.cb, func() (sql.Result, error) {
		return dcb.db.ExecContext(ctx, query, args...)
	})
}

// QueryRowContext runs a single-row query. sql.Row defers its error to
// Scan, so breaker protection does not apply here.
func (dcb *DBCircuitBreaker) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return dcb.db.QueryRowContext(ctx, query, args...)
}

// State returns the current breaker state.
func (dcb *DBCircuitBreaker) State() gobreaker.State {
	return dcb.cb.State()
}

// IsOpen reports whether the breaker is currently rejecting calls.
func (dcb *DBCircuitBreaker) IsOpen() bool {
	return dcb.cb.IsOpen()
}

// DB exposes the underlying connection for calls that must bypass the
// breaker, such as closing the pool at shutdown.
func (dcb *DBCircuitBreaker) DB() *sql.DB {
	return dcb.db
}
