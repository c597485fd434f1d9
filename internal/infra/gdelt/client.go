// Package gdelt harvests the global-event metadata index into raw
// records. The doc API rejects wide date ranges, so the client splits
// the query window into calendar months and fetches each separately.
package gdelt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/resilience/circuitbreaker"
	"corpusmill/internal/resilience/retry"
	"corpusmill/internal/usecase/harvest"

	"github.com/sony/gobreaker"
)

const (
	defaultBaseURL = "https://api.gdeltproject.org/api/v2/doc/doc"

	// maxRecordsCeiling is the per-request cap the doc API enforces.
	maxRecordsCeiling = 250

	// compactLayout is the 14-digit datetime format the API expects.
	compactLayout = "20060102150405"

	// maxResponseBytes caps a single window body.
	maxResponseBytes = 10 << 20

	userAgent = "CorpusmillBot"
)

// Options configures the event index client.
type Options struct {
	// BaseURL overrides the doc API endpoint. Used by tests.
	BaseURL string

	// MaxRecords caps each window request, clamped to the API ceiling.
	MaxRecords int
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		BaseURL:    defaultBaseURL,
		MaxRecords: maxRecordsCeiling,
	}
}

// Client implements harvest.SourceClient for the event metadata index.
// It includes circuit breaker and retry logic for improved reliability.
type Client struct {
	opts           Options
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewClient creates a new event index Client with the given HTTP
// client. Zero option fields fall back to DefaultOptions values.
func NewClient(client *http.Client, opts Options) *Client {
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.MaxRecords <= 0 || opts.MaxRecords > maxRecordsCeiling {
		opts.MaxRecords = defaults.MaxRecords
	}

	return &Client{
		opts:           opts,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.EventIndexConfig()),
		retryConfig:    retry.IndexQueryConfig(),
	}
}

// Harvest queries one calendar month at a time across the query window
// and returns one raw record per article. A failed month is logged and
// skipped; the harvest only errors when every window fails.
func (c *Client) Harvest(ctx context.Context, src entity.Source, q harvest.Query) ([]entity.RawRecord, error) {
	windows := monthlyWindows(q.Since, q.Until)

	var (
		records []entity.RawRecord
		failed  int
		lastErr error
	)
	for _, win := range windows {
		articles, err := c.fetchWindow(ctx, q.Topic, win)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			slog.Warn("event index window failed, skipping",
				slog.String("source", src.Name),
				slog.Time("window_start", win.since),
				slog.Time("window_end", win.until),
				slog.Any("error", err))
			failed++
			lastErr = err
			continue
		}

		for _, a := range articles {
			records = append(records, entity.RawRecord{
				"title":         a.Title,
				"url":           a.URL,
				"seendate":      a.SeenDate,
				"language":      a.Language,
				"sourcecountry": a.SourceCountry,
				"domain":        a.Domain,
			})
		}
	}

	if failed == len(windows) && failed > 0 {
		return nil, fmt.Errorf("all %d event index windows failed: %w", failed, lastErr)
	}

	return records, nil
}

// fetchWindow retrieves a single month window with retry and circuit
// breaker protection.
func (c *Client) fetchWindow(ctx context.Context, topic string, win window) ([]docArticle, error) {
	var articles []docArticle

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doFetchWindow(ctx, topic, win)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("event index circuit breaker open, request rejected",
					slog.String("service", "event-index"),
					slog.String("url", c.opts.BaseURL),
					slog.String("state", c.circuitBreaker.State().String()))
				return err
			}
			return err
		}

		articles = cbResult.([]docArticle)
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return articles, nil
}

// doFetchWindow performs the actual window request without retry or circuit breaker.
func (c *Client) doFetchWindow(ctx context.Context, topic string, win window) ([]docArticle, error) {
	params := url.Values{}
	params.Set("query", topic)
	params.Set("mode", "artlist")
	params.Set("format", "json")
	params.Set("maxrecords", strconv.Itoa(c.opts.MaxRecords))
	if !win.since.IsZero() {
		params.Set("startdatetime", win.since.Format(compactLayout))
	}
	if !win.until.IsZero() {
		params.Set("enddatetime", win.until.Format(compactLayout))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query event index: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", slog.Any("error", closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    "event index returned non-OK status",
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read event index response: %w", err)
	}

	// The API answers an empty window with an empty body instead of
	// an empty article list.
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var page docResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode event index response: %w", err)
	}

	return page.Articles, nil
}

// window is one [since, until] slice of the harvest range. Zero bounds
// are omitted from the request.
type window struct {
	since time.Time
	until time.Time
}

// monthlyWindows splits [since, until] into calendar-month windows
// clamped to the range. A zero since yields the single open window the
// API resolves to its default lookback.
func monthlyWindows(since, until time.Time) []window {
	if since.IsZero() {
		return []window{{since: since, until: until}}
	}
	if until.IsZero() {
		until = time.Now().UTC()
	}

	var windows []window
	start := since
	for !start.After(until) {
		end := endOfMonth(start)
		if end.After(until) {
			end = until
		}
		windows = append(windows, window{since: start, until: end})
		start = startOfNextMonth(start)
	}
	return windows
}

func endOfMonth(t time.Time) time.Time {
	return startOfNextMonth(t).Add(-time.Second)
}

func startOfNextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}

// docResponse mirrors the slice of the doc API payload the harvest
// consumes.
type docResponse struct {
	Articles []docArticle `json:"articles"`
}

type docArticle struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	SeenDate      string `json:"seendate"`
	Language      string `json:"language"`
	SourceCountry string `json:"sourcecountry"`
	Domain        string `json:"domain"`
}
