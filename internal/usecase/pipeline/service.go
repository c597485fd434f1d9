// Package pipeline orchestrates one corpus assembly run: load staged
// batches, normalize, order, dedupe, optionally enrich, assign ids, write
// the corpus, and mirror it to the optional store. It owns the run counters
// and the run manifest.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/observability/logging"
	"corpusmill/internal/observability/metrics"
	"corpusmill/internal/observability/tracing"
	"corpusmill/internal/repository"
	"corpusmill/internal/usecase/dedupe"
	"corpusmill/internal/usecase/enrich"
	"corpusmill/internal/usecase/harvest"
	"corpusmill/internal/usecase/normalize"

	"github.com/google/uuid"
)

// StagingLoader reads every staged raw batch back from a raw directory.
type StagingLoader interface {
	LoadBatches(ctx context.Context, dir string) ([]normalize.Batch, error)
}

// CorpusWriter emits the assembled corpus to its destination file. The
// excerpt column is written only when withExcerpts is set.
type CorpusWriter interface {
	WriteCorpus(ctx context.Context, path string, records []entity.CorpusRecord, withExcerpts bool) error
}

// Params are the plain inputs of one run. The date range is recorded in the
// manifest; it bounds harvesting, not the merge.
type Params struct {
	Topic       string
	Since       *time.Time
	Until       *time.Time
	RawDir      string
	OutPath     string
	ExtractText bool

	// Harvest carries the harvest outcome when the caller harvested before
	// invoking the pipeline, so the manifest covers the whole run. Nil for
	// merge-only invocations.
	Harvest *harvest.Stats
}

// Result is what every run returns, fatal or not: the counters accumulated
// so far and the manifest describing the run.
type Result struct {
	Counters RunCounters
	Manifest *entity.Run
}

// Service wires the pipeline stages together.
type Service struct {
	loader     StagingLoader
	normalizer normalize.Service
	deduper    dedupe.Service
	enricher   *enrich.Service // nil when no content fetcher is configured
	writer     CorpusWriter
	store      repository.CorpusRepository // nil disables the mirror
	version    string
}

// NewService creates a pipeline Service with the provided dependencies.
//
// Parameters:
//   - loader: Staging store read side
//   - normalizer: Schema normalizer
//   - deduper: Fuzzy deduplicator, already configured and validated
//   - enricher: Excerpt stage; nil when text extraction is not configured
//   - writer: Corpus file writer
//   - store: Optional relational mirror; nil disables it
//   - version: Build version recorded in each run manifest
func NewService(
	loader StagingLoader,
	normalizer normalize.Service,
	deduper dedupe.Service,
	enricher *enrich.Service,
	writer CorpusWriter,
	store repository.CorpusRepository,
	version string,
) Service {
	return Service{
		loader:     loader,
		normalizer: normalizer,
		deduper:    deduper,
		enricher:   enricher,
		writer:     writer,
		store:      store,
		version:    version,
	}
}

// Run executes one corpus assembly. It performs the following steps:
//  1. Loads the staged raw batches
//  2. Normalizes them onto the unified schema (rejects counted)
//  3. Sorts by publication date descending, undated records last
//  4. Collapses duplicates (removals counted)
//  5. Optionally fetches excerpts for the survivors
//  6. Assigns sequential ids and writes the corpus file
//  7. Mirrors the corpus to the optional store (failures never fatal)
//
// The returned Result always carries the counters accumulated so far, also
// when a stage fails fatally.
func (s *Service) Run(ctx context.Context, params Params) (*Result, error) {
	run := &entity.Run{
		ID:          uuid.NewString(),
		Topic:       params.Topic,
		Since:       params.Since,
		Until:       params.Until,
		RawDir:      params.RawDir,
		OutPath:     params.OutPath,
		ExtractText: params.ExtractText,
		Version:     s.version,
		StartedAt:   time.Now(),
	}
	logger := logging.WithRunID(slog.Default(), run.ID)
	result := &Result{Manifest: run}
	counters := &result.Counters
	counters.AbsorbHarvest(params.Harvest)

	logger.Info("run started",
		slog.String("raw_dir", params.RawDir),
		slog.String("out", params.OutPath),
		slog.Bool("extract_text", params.ExtractText),
	)

	stageStart := time.Now()
	loadCtx, endLoad := tracing.StartStage(ctx, run.ID, "load")
	batches, err := s.loader.LoadBatches(loadCtx, params.RawDir)
	endLoad(len(batches), err)
	if err != nil {
		return s.fail(result, logger, fmt.Errorf("load staging batches: %w", err))
	}
	metrics.RecordStageDuration("load", time.Since(stageStart))

	stageStart = time.Now()
	_, endNormalize := tracing.StartStage(ctx, run.ID, "normalize")
	nres, err := s.normalizer.NormalizeAll(batches)
	endNormalize(len(nres.Records), err)
	counters.RecordsIn = int64(nres.In)
	counters.RecordsRejected = int64(nres.Rejected)
	metrics.RecordRecordsRejected(nres.Rejected)
	if err != nil {
		return s.fail(result, logger, fmt.Errorf("normalize: %w", err))
	}
	metrics.RecordStageDuration("normalize", time.Since(stageStart))

	records := nres.Records
	sortByDateDesc(records)

	stageStart = time.Now()
	_, endDedupe := tracing.StartStage(ctx, run.ID, "dedupe")
	dres := s.deduper.Dedupe(records)
	endDedupe(len(dres.Survivors), nil)
	counters.DuplicatesRemoved = int64(dres.Removed)
	metrics.RecordDuplicatesRemoved(dres.Removed)
	metrics.RecordStageDuration("dedupe", time.Since(stageStart))
	survivors := dres.Survivors

	var excerpts []string
	withExcerpts := false
	if params.ExtractText {
		if s.enricher == nil {
			logger.Warn("text extraction requested but no content fetcher is configured, skipping")
		} else {
			stageStart = time.Now()
			enrichCtx, endEnrich := tracing.StartStage(ctx, run.ID, "enrich")
			var estats enrich.Stats
			excerpts, estats = s.enricher.EnrichAll(enrichCtx, survivors)
			endEnrich(estats.Fetched, nil)
			counters.ExcerptsFetched = int64(estats.Fetched)
			counters.ExcerptsFailed = int64(estats.Failed)
			counters.ExcerptsAbandoned = int64(estats.Abandoned)
			withExcerpts = true
			metrics.RecordStageDuration("enrich", time.Since(stageStart))
		}
	}

	corpus := make([]entity.CorpusRecord, len(survivors))
	for i, rec := range survivors {
		corpus[i] = entity.CorpusRecord{ID: int64(i + 1), NormalizedRecord: rec}
		if withExcerpts && i < len(excerpts) {
			corpus[i].ExtraitTexte = excerpts[i]
		}
	}

	stageStart = time.Now()
	writeCtx, endWrite := tracing.StartStage(ctx, run.ID, "write")
	err = s.writer.WriteCorpus(writeCtx, params.OutPath, corpus, withExcerpts)
	endWrite(len(corpus), err)
	if err != nil {
		return s.fail(result, logger, fmt.Errorf("write corpus: %w", err))
	}
	metrics.RecordStageDuration("write", time.Since(stageStart))
	counters.CorpusRecords = int64(len(corpus))
	metrics.UpdateCorpusRecords(len(corpus))

	if s.store != nil {
		stageStart = time.Now()
		// Snapshot the counters first so the stored manifest is complete.
		run.FinishedAt = time.Now()
		counters.ApplyTo(run)
		storeCtx, endStore := tracing.StartStage(ctx, run.ID, "store")
		err := s.store.SaveRun(storeCtx, run, corpus)
		endStore(len(corpus), err)
		if err != nil {
			logger.Warn("corpus store mirror failed",
				slog.Int("records", len(corpus)),
				slog.Any("error", err))
			counters.StoreErrors++
		} else {
			metrics.RecordStageDuration("store", time.Since(stageStart))
		}
	}

	return s.finish(result, logger), nil
}

// finish closes out a successful run: final timestamps, counter snapshot,
// metrics, and the completion log entry.
func (s *Service) finish(result *Result, logger *slog.Logger) *Result {
	run := result.Manifest
	run.FinishedAt = time.Now()
	result.Counters.ApplyTo(run)
	metrics.RecordPipelineRun(true)

	fields := append(result.Counters.LogFields(), slog.Duration("duration", run.Duration()))
	logger.Info("run completed", fields...)
	return result
}

// fail closes out a fatally failed run. The counters accumulated so far
// stay in the result.
func (s *Service) fail(result *Result, logger *slog.Logger, err error) (*Result, error) {
	run := result.Manifest
	run.FinishedAt = time.Now()
	result.Counters.ApplyTo(run)
	metrics.RecordPipelineRun(false)

	fields := append(result.Counters.LogFields(),
		slog.Duration("duration", run.Duration()),
		slog.Any("error", err))
	logger.Error("run failed", fields...)
	return result, err
}

// sortByDateDesc orders the normalized stream by publication date
// descending with undated records last. The sort is stable so records
// sharing a date keep their harvest order; this ordering is what the final
// corpus file carries.
func sortByDateDesc(records []entity.NormalizedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].DatePub, records[j].DatePub
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
