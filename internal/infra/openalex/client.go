// Package openalex harvests the academic-works index into raw records.
// The works API is cursor-paginated JSON; the client pushes the date
// window down into the query filter and walks cursors until exhausted.
package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/resilience/circuitbreaker"
	"corpusmill/internal/resilience/retry"
	"corpusmill/internal/usecase/harvest"

	"github.com/sony/gobreaker"
)

const (
	defaultBaseURL = "https://api.openalex.org/works"
	defaultPerPage = 200

	// maxPerPage is the page-size ceiling the works API enforces.
	maxPerPage = 200

	// maxConcepts bounds how many concept labels feed the keyword column.
	maxConcepts = 10

	// maxResponseBytes caps a single page body.
	maxResponseBytes = 10 << 20

	userAgent = "CorpusmillBot"

	// firstCursor starts a cursor walk from the beginning of the result set.
	firstCursor = "*"
)

// Options configures the academic index client.
type Options struct {
	// BaseURL overrides the works API endpoint. Used by tests.
	BaseURL string

	// Mailto is the etiquette parameter the provider asks polite
	// clients to send. Empty omits it.
	Mailto string

	// PerPage is the page size, clamped to the API ceiling.
	PerPage int

	// MaxRecords caps the total records harvested across pages.
	// Zero means no cap.
	MaxRecords int
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		BaseURL: defaultBaseURL,
		PerPage: defaultPerPage,
	}
}

// Client implements harvest.SourceClient for the academic-works index.
// It includes circuit breaker and retry logic for improved reliability.
type Client struct {
	opts           Options
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewClient creates a new academic index Client with the given HTTP
// client. Zero option fields fall back to DefaultOptions values.
func NewClient(client *http.Client, opts Options) *Client {
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.PerPage <= 0 {
		opts.PerPage = defaults.PerPage
	}
	if opts.PerPage > maxPerPage {
		opts.PerPage = maxPerPage
	}

	return &Client{
		opts:           opts,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.AcademicIndexConfig()),
		retryConfig:    retry.IndexQueryConfig(),
	}
}

// Harvest walks the cursor-paginated works matching the query window and
// returns one raw record per work. The harvest stops at the configured
// record cap even when more pages remain.
func (c *Client) Harvest(ctx context.Context, src entity.Source, q harvest.Query) ([]entity.RawRecord, error) {
	var records []entity.RawRecord

	cursor := firstCursor
	for {
		page, err := c.fetchPage(ctx, q, cursor)
		if err != nil {
			return nil, err
		}

		for _, w := range page.Results {
			records = append(records, c.toRawRecord(w, src))
			if c.opts.MaxRecords > 0 && len(records) >= c.opts.MaxRecords {
				slog.Info("academic index record cap reached",
					slog.String("source", src.Name),
					slog.Int("max_records", c.opts.MaxRecords))
				return records, nil
			}
		}

		if page.Meta.NextCursor == "" || len(page.Results) == 0 {
			break
		}
		cursor = page.Meta.NextCursor
	}

	return records, nil
}

// fetchPage retrieves a single cursor page with retry and circuit
// breaker protection.
func (c *Client) fetchPage(ctx context.Context, q harvest.Query, cursor string) (*worksResponse, error) {
	var page *worksResponse

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doFetchPage(ctx, q, cursor)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("academic index circuit breaker open, request rejected",
					slog.String("service", "academic-index"),
					slog.String("url", c.opts.BaseURL),
					slog.String("state", c.circuitBreaker.State().String()))
				return err
			}
			return err
		}

		page = cbResult.(*worksResponse)
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return page, nil
}

// doFetchPage performs the actual page request without retry or circuit breaker.
func (c *Client) doFetchPage(ctx context.Context, q harvest.Query, cursor string) (*worksResponse, error) {
	params := url.Values{}
	params.Set("search", q.Topic)
	params.Set("per-page", strconv.Itoa(c.opts.PerPage))
	params.Set("cursor", cursor)
	if filter := dateFilter(q); filter != "" {
		params.Set("filter", filter)
	}
	if c.opts.Mailto != "" {
		params.Set("mailto", c.opts.Mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query works index: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", slog.Any("error", closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    "works index returned non-OK status",
		}
	}

	var page worksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode works page: %w", err)
	}

	return &page, nil
}

// dateFilter builds the publication-date filter clause for the query
// window. An empty window yields no filter.
func dateFilter(q harvest.Query) string {
	var clauses []string
	if !q.Since.IsZero() {
		clauses = append(clauses, "from_publication_date:"+q.Since.Format(entity.DateLayout))
	}
	if !q.Until.IsZero() {
		clauses = append(clauses, "to_publication_date:"+q.Until.Format(entity.DateLayout))
	}
	return strings.Join(clauses, ",")
}

// toRawRecord flattens a work into the raw key set the normalizer
// expects for academic sources.
func (c *Client) toRawRecord(w workResult, src entity.Source) entity.RawRecord {
	venue := w.HostVenue.DisplayName
	if venue == "" {
		venue = w.PrimaryLocation.Source.DisplayName
	}

	rec := entity.RawRecord{
		"display_name":     w.DisplayName,
		"doi":              w.DOI,
		"landing_page_url": w.PrimaryLocation.LandingPageURL,
		"id":               w.ID,
		"publication_date": w.PublicationDate,
		"host_venue":       venue,
		"language":         w.Language,
		"concepts":         joinConcepts(w.Concepts),
	}
	if src.Country != "" {
		rec["country"] = src.Country
	}

	return rec
}

// joinConcepts joins the leading concept labels into one keyword value.
func joinConcepts(concepts []conceptResult) string {
	if len(concepts) > maxConcepts {
		concepts = concepts[:maxConcepts]
	}
	names := make([]string, 0, len(concepts))
	for _, c := range concepts {
		if c.DisplayName == "" {
			continue
		}
		names = append(names, c.DisplayName)
	}
	return strings.Join(names, ",")
}

// worksResponse mirrors the slice of the works API payload the harvest
// consumes.
type worksResponse struct {
	Meta struct {
		Count      int    `json:"count"`
		NextCursor string `json:"next_cursor"`
	} `json:"meta"`
	Results []workResult `json:"results"`
}

type workResult struct {
	ID              string `json:"id"`
	DOI             string `json:"doi"`
	DisplayName     string `json:"display_name"`
	PublicationDate string `json:"publication_date"`
	Language        string `json:"language"`
	HostVenue       struct {
		DisplayName string `json:"display_name"`
	} `json:"host_venue"`
	PrimaryLocation struct {
		LandingPageURL string `json:"landing_page_url"`
		Source         struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	Concepts []conceptResult `json:"concepts"`
}

type conceptResult struct {
	DisplayName string `json:"display_name"`
}
