// Package main runs the scheduled corpus worker as a standalone binary,
// the containerized twin of "corpusmill worker". Configuration comes from
// the environment and the run file only; there are no flags.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"corpusmill/internal/cli"
	"corpusmill/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := os.Getenv("CORPUSMILL_CONFIG")
	if configPath == "" {
		configPath = "run.yaml"
	}

	if err := cli.RunWorkerMode(ctx, configPath); err != nil {
		logger.Error("worker failed", slog.Any("error", err))
		os.Exit(1)
	}
}
