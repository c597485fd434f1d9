// Package enrich runs the optional excerpt stage: a bounded worker pool that
// fetches each survivor's page and attaches a length-bounded text excerpt.
// The stage is strictly additive; no failure in it ever drops a record or
// aborts the run.
package enrich

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/observability/metrics"
)

// DefaultMaxExcerptRunes bounds an excerpt when no limit is configured.
const DefaultMaxExcerptRunes = 4000

// Options tune the worker pool and the per-run budget.
type Options struct {
	Parallelism     int           // concurrent fetches; minimum 1
	Budget          time.Duration // wall clock for the whole stage; 0 means unbounded
	MaxExcerptRunes int           // excerpt length cap; 0 selects the default
}

// Stats reports the stage outcome. Abandoned counts records whose fetch was
// still in flight or never dispatched when the budget expired.
type Stats struct {
	Fetched   int
	Failed    int
	Abandoned int
}

// Service orchestrates excerpt fetching over a ContentFetcher.
type Service struct {
	fetcher ContentFetcher
	opts    Options
}

// NewService creates the excerpt stage around a fetcher implementation.
func NewService(fetcher ContentFetcher, opts Options) Service {
	return Service{fetcher: fetcher, opts: opts}
}

type job struct {
	index int
	url   string
}

type outcome struct {
	index   int
	excerpt string
	err     error
}

// EnrichAll fetches excerpts for every record and returns them aligned by
// index. When the budget expires, in-flight fetches are abandoned (not
// awaited) and the remaining entries stay empty.
func (s Service) EnrichAll(ctx context.Context, records []entity.NormalizedRecord) ([]string, Stats) {
	excerpts := make([]string, len(records))
	if len(records) == 0 || s.fetcher == nil {
		return excerpts, Stats{}
	}

	logger := slog.Default()
	start := time.Now()

	budgetCtx := ctx
	if s.opts.Budget > 0 {
		var cancel context.CancelFunc
		budgetCtx, cancel = context.WithTimeout(ctx, s.opts.Budget)
		defer cancel()
	}

	workers := s.opts.Parallelism
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan job)
	// Buffered to the full job count so abandoned workers can always
	// deliver their last result and exit.
	results := make(chan outcome, len(records))

	for w := 0; w < workers; w++ {
		go func() {
			for j := range jobs {
				fetchStart := time.Now()
				text, err := s.fetcher.FetchContent(budgetCtx, j.url)
				fetchDuration := time.Since(fetchStart)
				if err != nil {
					metrics.RecordExcerptFetchFailed(fetchDuration)
					results <- outcome{index: j.index, err: err}
					continue
				}
				metrics.RecordExcerptFetchSuccess(fetchDuration, len(text))
				results <- outcome{index: j.index, excerpt: TruncateExcerpt(text, s.opts.MaxExcerptRunes)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, rec := range records {
			select {
			case jobs <- job{index: i, url: rec.Lien}:
			case <-budgetCtx.Done():
				return
			}
		}
	}()

	var stats Stats
	done := 0
collect:
	for done < len(records) {
		select {
		case out := <-results:
			done++
			switch {
			case out.err != nil:
				stats.Failed++
				logger.Warn("excerpt fetch failed",
					slog.String("url", records[out.index].Lien),
					slog.Any("error", out.err))
			case out.excerpt == "":
				stats.Failed++
			default:
				excerpts[out.index] = out.excerpt
				stats.Fetched++
			}
		case <-budgetCtx.Done():
			break collect
		}
	}
	stats.Abandoned = len(records) - done
	metrics.RecordExcerptsAbandoned(stats.Abandoned)

	logger.Info("excerpt stage completed",
		slog.Int("records", len(records)),
		slog.Int("excerpts_fetched", stats.Fetched),
		slog.Int("excerpts_failed", stats.Failed),
		slog.Int("abandoned", stats.Abandoned),
		slog.Duration("duration", time.Since(start)),
	)
	return excerpts, stats
}

// TruncateExcerpt bounds text to maxRunes, cutting at the last word boundary
// inside the limit. A zero or negative limit selects the default.
func TruncateExcerpt(text string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxExcerptRunes
	}
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= maxRunes {
		return trimmed
	}

	cut := maxRunes
	for i := maxRunes; i > 0; i-- {
		if runes[i-1] == ' ' {
			cut = i - 1
			break
		}
	}
	if cut == 0 {
		cut = maxRunes // no boundary inside the limit, hard cut
	}
	return strings.TrimSpace(string(runes[:cut]))
}
