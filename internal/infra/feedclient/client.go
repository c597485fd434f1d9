// Package feedclient harvests syndication sources (RSS/Atom) into raw
// records. It uses the gofeed library to parse feed content with
// reliability patterns.
package feedclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/resilience/circuitbreaker"
	"corpusmill/internal/resilience/retry"
	"corpusmill/internal/usecase/harvest"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
)

// userAgent identifies the harvester to feed servers.
const userAgent = "CorpusmillBot"

// Client implements harvest.SourceClient for feed-based sources.
// It includes circuit breaker and retry logic for improved reliability.
type Client struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewClient creates a new feed Client with the given HTTP client.
// It automatically configures circuit breaker and retry logic.
func NewClient(client *http.Client) *Client {
	return &Client{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
	}
}

// Harvest retrieves and parses the feed behind src, returning one raw
// record per entry. Entries dated outside the query window are skipped;
// undated entries are kept and left for normalization to resolve.
func (c *Client) Harvest(ctx context.Context, src entity.Source, q harvest.Query) ([]entity.RawRecord, error) {
	var records []entity.RawRecord

	// Wrap with retry logic
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		// Execute through circuit breaker
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doHarvest(ctx, src, q)
		})

		// Handle circuit breaker open state
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("service", "feed-fetch"),
					slog.String("url", src.URL),
					slog.String("state", c.circuitBreaker.State().String()))
				return err
			}
			return err
		}

		records = cbResult.([]entity.RawRecord)
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return records, nil
}

// doHarvest performs the actual feed fetch without retry or circuit breaker.
func (c *Client) doHarvest(ctx context.Context, src entity.Source, q harvest.Query) ([]entity.RawRecord, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = userAgent
	fp.Client = c.client

	feed, err := fp.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, err
	}

	feedTitle := feed.Title
	if feedTitle == "" {
		feedTitle = src.Name
	}
	language := feed.Language
	if language == "" {
		language = src.Language
	}

	records := make([]entity.RawRecord, 0, len(feed.Items))
	for _, it := range feed.Items {
		if outsideWindow(it.PublishedParsed, q) {
			continue
		}

		rec := entity.RawRecord{
			"title":      it.Title,
			"link":       it.Link,
			"published":  it.Published,
			"updated":    it.Updated,
			"language":   language,
			"feed_title": feedTitle,
			"country":    src.Country,
		}
		if it.PublishedParsed != nil {
			rec["published"] = it.PublishedParsed.Format(time.RFC3339)
		}
		if it.UpdatedParsed != nil {
			rec["updated"] = it.UpdatedParsed.Format(time.RFC3339)
		}
		if it.Description != "" {
			rec["summary"] = it.Description
		}

		records = append(records, rec)
	}

	return records, nil
}

// outsideWindow reports whether a parsed publication date falls outside
// the query window. Undated items always pass; feeds rarely backfill
// dates and normalization handles the missing value.
func outsideWindow(published *time.Time, q harvest.Query) bool {
	if published == nil {
		return false
	}
	if !q.Since.IsZero() && published.Before(q.Since) {
		return true
	}
	if !q.Until.IsZero() && published.After(q.Until) {
		return true
	}
	return false
}
