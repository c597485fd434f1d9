// Package db opens and migrates the optional relational corpus store.
// The driver is selected by DSN scheme: postgres URLs use the pgx stdlib
// driver, everything else is treated as a SQLite database file.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"corpusmill/internal/resilience/retry"
)

// ConnectionConfig holds the connection pool settings for the corpus store.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns pool settings sized for a single worker
// sharing a modest Postgres instance.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// Open creates and configures a connection pool for the corpus store DSN.
// It returns the pool together with the dialect the DSN selected, so the
// caller can pick the matching repository adapter and migration flavor.
func Open(dsn string) (*sql.DB, Dialect, error) {
	if dsn == "" {
		return nil, "", fmt.Errorf("empty corpus store DSN")
	}

	driverName, dialect, connStr := resolveDriver(dsn)

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, "", fmt.Errorf("open corpus store: %w", err)
	}

	cfg := poolConfigFromEnv()
	if dialect == DialectSQLite {
		// A SQLite file tolerates one writer; more connections just turn
		// into SQLITE_BUSY errors during the mirror write.
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("corpus store connection pool configured",
		slog.String("dialect", string(dialect)),
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	// Verify the store is reachable. A worker often starts alongside the
	// database, so the ping retries briefly before giving up.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := retry.WithBackoff(ctx, retry.DBConfig(), func() error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping corpus store: %w", err)
	}

	slog.Info("corpus store connection established")
	return db, dialect, nil
}

// resolveDriver maps a DSN onto a registered driver. postgres:// and
// postgresql:// select pgx; sqlite://path, file: URIs and bare filesystem
// paths select SQLite.
func resolveDriver(dsn string) (driverName string, dialect Dialect, connStr string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", DialectPostgres, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", DialectSQLite, strings.TrimPrefix(dsn, "sqlite://")
	default:
		// file:corpus.db?cache=shared style URIs and plain paths both go
		// straight to the SQLite driver.
		return "sqlite3", DialectSQLite, dsn
	}
}

// poolConfigFromEnv overlays DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME and DB_CONN_MAX_IDLE_TIME onto the defaults.
// Unparseable or non-positive values are ignored.
func poolConfigFromEnv() ConnectionConfig {
	def := DefaultConnectionConfig()
	return ConnectionConfig{
		MaxOpenConns:    envPositiveInt("DB_MAX_OPEN_CONNS", def.MaxOpenConns),
		MaxIdleConns:    envPositiveInt("DB_MAX_IDLE_CONNS", def.MaxIdleConns),
		ConnMaxLifetime: envPositiveDuration("DB_CONN_MAX_LIFETIME", def.ConnMaxLifetime),
		ConnMaxIdleTime: envPositiveDuration("DB_CONN_MAX_IDLE_TIME", def.ConnMaxIdleTime),
	}
}

func envPositiveInt(key string, def int) int {
	if raw := os.Getenv(key); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil && val > 0 {
			return val
		}
	}
	return def
}

func envPositiveDuration(key string, def time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if val, err := time.ParseDuration(raw); err == nil && val > 0 {
			return val
		}
	}
	return def
}
