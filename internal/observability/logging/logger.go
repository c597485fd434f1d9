// Package logging builds the slog loggers the pipeline and worker share,
// and carries them through context so every stage of a run logs with the
// same fields.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger on stdout for the worker and scheduled
// runs, where output is collected by the container runtime. LOG_LEVEL
// selects debug, info, warn, or error; anything else means info.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, handlerOptions()))
}

// NewTextLogger returns a human-readable logger on stderr for interactive
// CLI runs, keeping stdout free for report output.
func NewTextLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOptions()))
}

func handlerOptions() *slog.HandlerOptions {
	level := levelFromEnv()
	return &slog.HandlerOptions{
		Level: level,
		// Source locations only when the level is verbose enough that
		// someone is actively debugging.
		AddSource: level <= slog.LevelWarn,
	}
}

func levelFromEnv() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRunID returns a logger that stamps every entry with the pipeline run
// identifier, so the records of one assembly run can be pulled out of
// interleaved worker output. An empty runID returns the logger unchanged.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	if runID == "" {
		return logger
	}
	return logger.With("run_id", runID)
}

// WithFields returns a logger carrying the given key-value pairs on every
// entry, typically the source name and kind during a harvest.
func WithFields(logger *slog.Logger, fields map[string]interface{}) *slog.Logger {
	if len(fields) == 0 {
		return logger
	}
	args := make([]interface{}, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return logger.With(args...)
}

type loggerKey struct{}

// WithLogger stores the logger in the context for stages that only receive
// a context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or slog.Default()
// when the context carries none.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
