package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"corpusmill/internal/config"
	"corpusmill/internal/infra/worker"
	"corpusmill/internal/observability/slo"
)

// workerCmd runs scheduled corpus assemblies until interrupted.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run scheduled corpus assemblies",
	Long: `Worker schedules full corpus runs on a cron expression and serves
health and Prometheus metrics endpoints. Scheduling, timezone, run
timeout, and ports come from the environment; everything else comes
from the run file, like the run verb.`,
	Example: `  corpusmill worker
  CRON_SCHEDULE="0 6 * * *" corpusmill worker`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return RunWorkerMode(cmd.Context(), configPath())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// RunWorkerMode runs the scheduled worker until ctx is canceled. It is the
// shared entry behind the worker verb and the standalone worker binary.
func RunWorkerMode(ctx context.Context, configPath string) error {
	logger := slog.Default()

	cfg, err := config.LoadRunConfig(configPath)
	if err != nil {
		return err
	}

	metrics := worker.NewWorkerMetrics()
	metrics.MustRegister()

	workerCfg, err := worker.LoadConfigFromEnv(logger, metrics)
	if err != nil {
		return fmt.Errorf("load worker configuration: %w", err)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerCfg.CronSchedule),
		slog.String("timezone", workerCfg.Timezone),
		slog.Duration("run_timeout", workerCfg.RunTimeout),
		slog.Int("health_port", workerCfg.HealthPort),
		slog.Int("metrics_port", workerCfg.MetricsPort))

	startMetricsServer(ctx, logger, workerCfg.MetricsPort)

	healthAddr := fmt.Sprintf(":%d", workerCfg.HealthPort)
	healthServer := worker.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	return scheduleRuns(ctx, logger, cfg, workerCfg, metrics, healthServer)
}

// runTracker accumulates scheduled-run outcomes for the SLO gauges.
type runTracker struct {
	mu          sync.Mutex
	total       int
	succeeded   int
	lastSuccess time.Time
}

// record folds one run outcome into the success ratio and, when the
// source count is known, the per-run source error rate.
func (t *runTracker) record(succeeded bool, sources int, harvestErrors int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if succeeded {
		t.succeeded++
		t.lastSuccess = time.Now()
	}
	slo.UpdateRunSuccess(float64(t.succeeded) / float64(t.total))
	if sources > 0 {
		slo.UpdateSourceErrorRate(float64(harvestErrors) / float64(sources))
	}
}

// updateFreshness publishes the corpus age. Before the first success the
// age is unknown and the gauge is left alone.
func (t *runTracker) updateFreshness() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastSuccess.IsZero() {
		return
	}
	slo.UpdateCorpusFreshness(time.Since(t.lastSuccess).Seconds())
}

// scheduleRuns starts the cron scheduler and blocks until ctx is canceled.
// Readiness follows the scheduler: up once jobs are registered, down again
// when the worker winds down.
func scheduleRuns(ctx context.Context, logger *slog.Logger, cfg *config.RunConfig, workerCfg *worker.WorkerConfig, metrics *worker.WorkerMetrics, healthServer *worker.HealthServer) error {
	loc, err := time.LoadLocation(workerCfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC",
			slog.String("timezone", workerCfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	tracker := &runTracker{}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(workerCfg.CronSchedule, func() {
		runScheduledJob(ctx, logger, cfg, workerCfg, metrics, tracker)
	})
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	c.Start()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tracker.updateFreshness()
			}
		}
	}()

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", workerCfg.CronSchedule),
		slog.String("timezone", workerCfg.Timezone))

	<-ctx.Done()

	healthServer.SetReady(false)

	// The job context derives from ctx, so a running job is already being
	// canceled; give it a bounded moment to unwind.
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("running job did not stop in time")
	}

	logger.Info("worker stopped")
	return nil
}

// runScheduledJob executes one scheduled corpus run under the configured
// timeout and records its outcome.
func runScheduledJob(ctx context.Context, logger *slog.Logger, cfg *config.RunConfig, workerCfg *worker.WorkerConfig, metrics *worker.WorkerMetrics, tracker *runTracker) {
	start := time.Now()
	metrics.RecordJobRun("started")
	logger.Info("scheduled run started")

	runCtx, cancel := context.WithTimeout(ctx, workerCfg.RunTimeout)
	defer cancel()

	res, err := executeRun(runCtx, cfg, time.Time{}, time.Time{}, cfg.Extraction.Enabled)
	if err != nil {
		logger.Error("scheduled run failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(start).Seconds())
		tracker.record(false, 0, 0)
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(start).Seconds())
	metrics.RecordRecordsWritten(res.Counters.CorpusRecords)
	metrics.RecordLastSuccess()
	tracker.record(true, len(cfg.Sources), res.Counters.HarvestErrors)
	tracker.updateFreshness()

	logger.Info("scheduled run completed", res.Counters.LogFields()...)
}

// startMetricsServer serves Prometheus metrics on the configured port until
// ctx is canceled. Shutdown mirrors the health server: five seconds of
// grace, in-flight scrapes allowed to finish.
func startMetricsServer(ctx context.Context, logger *slog.Logger, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		}
	}()

	return server
}
