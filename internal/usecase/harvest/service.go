// Package harvest orchestrates the per-source clients that pull raw records
// from the configured providers and stages each kind's batch for the
// reconciliation pipeline. Harvest failures are counted and logged, never
// fatal: a broken feed yields an empty batch, not a dead run.
package harvest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/observability/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	defaultParallelism = 4 // concurrent source harvests when none is configured
)

// Query carries the run-level parameters shared by every harvest client.
// Provider-backed clients (academic, events) push Topic and the date range
// down into their API queries; feed clients ignore fields they cannot use.
type Query struct {
	Topic string
	Since time.Time
	Until time.Time
}

// SourceClient harvests raw records for one configured source.
// Implementations must honor ctx cancellation and return the provider's
// records as-is; projection onto the canonical schema happens later in the
// normalizer.
type SourceClient interface {
	Harvest(ctx context.Context, src entity.Source, q Query) ([]entity.RawRecord, error)
}

// StagingStore persists one raw batch per source kind and reports where it
// was written.
type StagingStore interface {
	WriteBatch(ctx context.Context, kind entity.SourceKind, records []entity.RawRecord) (string, error)
}

// Service fans harvesting out across the configured sources and stages the
// collected batches. One client is registered per source kind.
type Service struct {
	clients     map[entity.SourceKind]SourceClient
	staging     StagingStore
	parallelism int
}

// NewService creates a harvest Service with the provided dependencies.
//
// Parameters:
//   - clients: One SourceClient per source kind; sources whose kind has no
//     registered client are counted as harvest errors and skipped
//   - staging: Store that persists each kind's raw batch
//   - parallelism: Maximum concurrent source harvests (values < 1 select the
//     default)
//
// Returns:
//   - Service: Configured harvest service ready to use
func NewService(clients map[entity.SourceKind]SourceClient, staging StagingStore, parallelism int) Service {
	if parallelism < 1 {
		parallelism = defaultParallelism
	}
	return Service{
		clients:     clients,
		staging:     staging,
		parallelism: parallelism,
	}
}

// Stats contains statistics about a harvest operation.
type Stats struct {
	Sources    int
	Records    int64
	Errors     int64
	ByKind     map[entity.SourceKind]int64
	BatchPaths []string
	Duration   time.Duration
}

// HarvestAll pulls records from every configured source and stages one raw
// batch per source kind. It performs the following steps:
//  1. Fans out across sources under a bounded semaphore
//  2. Collects each source's records into its kind's batch
//  3. Writes every non-empty batch to the staging store, in kind order
//
// Individual source failures, missing clients, and staging write failures
// are logged and counted in Stats.Errors; only context cancellation aborts
// the harvest. The returned Stats always reflect the work completed.
func (s *Service) HarvestAll(ctx context.Context, sources []entity.Source, q Query) (*Stats, error) {
	logger := slog.Default()
	startAll := time.Now()
	stats := &Stats{
		Sources: len(sources),
		ByKind:  make(map[entity.SourceKind]int64),
	}

	var mu sync.Mutex
	byKind := make(map[entity.SourceKind][]entity.RawRecord)

	sem := make(chan struct{}, s.parallelism)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, source := range sources {
		src := source

		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			records, err := s.harvestSingleSource(egCtx, src, q, stats)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return nil
			}

			mu.Lock()
			byKind[src.Kind] = append(byKind[src.Kind], records...)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		stats.Duration = time.Since(startAll)
		return stats, err
	}

	// Stage batches in the fixed kind order so reruns produce the same
	// file sequence.
	for _, kind := range entity.SourceKinds {
		records := byKind[kind]
		if len(records) == 0 {
			continue
		}
		stats.ByKind[kind] = int64(len(records))

		path, err := s.staging.WriteBatch(ctx, kind, records)
		if err != nil {
			logger.Warn("failed to stage raw batch",
				slog.String("kind", kind.String()),
				slog.Int("records", len(records)),
				slog.Any("error", err))
			metrics.RecordHarvestError(kind.String(), "staging_write_failed")
			atomic.AddInt64(&stats.Errors, 1)
			continue
		}
		stats.BatchPaths = append(stats.BatchPaths, path)

		logger.Info("raw batch staged",
			slog.String("kind", kind.String()),
			slog.Int("records", len(records)),
			slog.String("path", path))
	}

	stats.Duration = time.Since(startAll)
	logger.Info("harvest completed",
		slog.Int("sources", stats.Sources),
		slog.Int64("records_harvested", atomic.LoadInt64(&stats.Records)),
		slog.Int64("harvest_errors", atomic.LoadInt64(&stats.Errors)),
		slog.Duration("duration", stats.Duration),
	)

	return stats, nil
}

// harvestSingleSource runs one source's client and updates the stats
// atomically. It returns an error only for context cancellation; provider
// failures yield an empty batch so the other sources keep going.
func (s *Service) harvestSingleSource(ctx context.Context, src entity.Source, q Query, stats *Stats) ([]entity.RawRecord, error) {
	logger := slog.Default()
	sourceStart := time.Now()

	// Run files are operator-supplied; reject unsafe URLs before any
	// client fetches them.
	if src.URL != "" {
		if err := entity.ValidateURL(src.URL); err != nil {
			logger.Warn("source URL rejected",
				slog.String("source_name", src.Name),
				slog.String("url", src.URL),
				slog.Any("error", err))
			metrics.RecordHarvestError(src.Name, "invalid_url")
			atomic.AddInt64(&stats.Errors, 1)
			return nil, nil
		}
	}

	client, ok := s.clients[src.Kind]
	if !ok {
		logger.Warn("no harvest client registered for kind",
			slog.String("kind", src.Kind.String()),
			slog.String("source_name", src.Name))
		metrics.RecordHarvestError(src.Name, "no_client")
		atomic.AddInt64(&stats.Errors, 1)
		return nil, nil
	}

	records, err := client.Harvest(ctx, src, q)
	if err != nil {
		// Context cancellation is critical - propagate immediately
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		logger.Warn("failed to harvest source",
			slog.String("source_name", src.Name),
			slog.String("url", src.URL),
			slog.Any("error", err))
		metrics.RecordHarvestError(src.Name, "fetch_failed")
		atomic.AddInt64(&stats.Errors, 1)
		// Continue with other sources even if one fails
		return nil, nil
	}

	sourceDuration := time.Since(sourceStart)
	if len(records) == 0 {
		logger.Info("source yielded no records",
			slog.String("source_name", src.Name),
			slog.String("url", src.URL))
		return nil, nil
	}

	atomic.AddInt64(&stats.Records, int64(len(records)))
	metrics.RecordHarvest(src.Name, src.Kind.String(), sourceDuration, len(records))

	logger.Info("source harvested",
		slog.String("source_name", src.Name),
		slog.String("kind", src.Kind.String()),
		slog.Int("records", len(records)),
		slog.Duration("duration", sourceDuration),
	)

	return records, nil
}
