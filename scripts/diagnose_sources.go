package main

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"corpusmill/internal/config"
	"corpusmill/internal/domain/entity"
)

// SourceDiagnostic represents the diagnostic result for a single source
type SourceDiagnostic struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Kind          string `json:"kind"`
	Status        string `json:"status"` // "OK", "HTTP_ERROR", "PARSE_ERROR", "EMPTY", "TIMEOUT", "REDIRECT", "SKIPPED"
	HTTPCode      int    `json:"http_code"`
	ItemCount     int    `json:"item_count"`
	LatestDate    string `json:"latest_date"`
	ErrorMessage  string `json:"error_message,omitempty"`
	Format        string `json:"format"` // "RSS", "ATOM", "LISTING", "UNKNOWN"
	RedirectURL   string `json:"redirect_url,omitempty"`
	ResponseTime  int64  `json:"response_time_ms"`
	ContentLength int64  `json:"content_length"`
}

// RSS structures
type RSS struct {
	Channel struct {
		Items []struct {
			Title   string `xml:"title"`
			PubDate string `xml:"pubDate"`
			Link    string `xml:"link"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Atom structures
type Atom struct {
	Entries []struct {
		Title   string `xml:"title"`
		Updated string `xml:"updated"`
		Link    struct {
			Href string `xml:"href,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

func main() {
	configPath := os.Getenv("CORPUSMILL_CONFIG")
	if configPath == "" {
		configPath = "run.yaml"
		log.Println("CORPUSMILL_CONFIG not set, using run.yaml")
	}

	cfg, err := config.LoadRunConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load run config: %v", err)
	}

	log.Printf("Diagnosing %d sources...\n", len(cfg.Sources))

	// Diagnose each source
	diagnostics := make([]SourceDiagnostic, 0, len(cfg.Sources))
	for i, source := range cfg.Sources {
		log.Printf("[%d/%d] Diagnosing: %s", i+1, len(cfg.Sources), source.Name)
		diag := diagnoseSource(source, 30*time.Second)
		diagnostics = append(diagnostics, diag)

		// Rate limiting to be nice to servers
		time.Sleep(500 * time.Millisecond)
	}

	// Generate report
	generateReport(diagnostics)
	generateJSONReport(diagnostics)
}

func diagnoseSource(source entity.Source, timeout time.Duration) SourceDiagnostic {
	diag := SourceDiagnostic{
		Name: source.Name,
		URL:  source.URL,
		Kind: string(source.Kind),
	}

	// Provider-backed sources without a URL have nothing to probe; the run
	// builds their queries from the topic instead.
	if source.URL == "" {
		diag.Status = "SKIPPED"
		diag.ErrorMessage = "provider query source, no URL to probe"
		return diag
	}

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", source.URL, nil)
	if err != nil {
		diag.Status = "REQUEST_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}

	req.Header.Set("User-Agent", "CorpusmillBot/1.0 (source diagnostic)")
	if source.IsListing() {
		req.Header.Set("Accept", "text/html, application/xhtml+xml")
	} else {
		req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")
	}

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	diag.ResponseTime = time.Since(startTime).Milliseconds()

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			diag.Status = "TIMEOUT"
			diag.ErrorMessage = fmt.Sprintf("Request timeout after %v", timeout)
		} else {
			diag.Status = "HTTP_ERROR"
			diag.ErrorMessage = err.Error()
		}
		return diag
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	diag.HTTPCode = resp.StatusCode
	diag.ContentLength = resp.ContentLength

	// Check for redirects
	if resp.Request.URL.String() != source.URL {
		diag.RedirectURL = resp.Request.URL.String()
		diag.Status = "REDIRECT"
	}

	// Check HTTP status
	if resp.StatusCode != 200 {
		diag.Status = "HTTP_ERROR"
		diag.ErrorMessage = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return diag
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		diag.Status = "READ_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}

	var itemCount int
	var latestDate, format string
	var parseErr error
	if source.IsListing() {
		itemCount, latestDate, parseErr = probeListing(body, source.Listing)
		format = "LISTING"
	} else {
		itemCount, latestDate, format, parseErr = parseFeed(body)
	}

	if parseErr != nil {
		diag.Status = "PARSE_ERROR"
		diag.ErrorMessage = parseErr.Error()
		diag.Format = format
		return diag
	}

	diag.ItemCount = itemCount
	diag.LatestDate = latestDate
	diag.Format = format

	if itemCount == 0 {
		diag.Status = "EMPTY"
		if source.IsListing() {
			diag.ErrorMessage = fmt.Sprintf("selector %q matched no items", source.Listing.ItemSelector)
		} else {
			diag.ErrorMessage = "Feed has no items"
		}
		return diag
	}

	if diag.Status != "REDIRECT" {
		diag.Status = "OK"
	}
	return diag
}

func parseFeed(body []byte) (itemCount int, latestDate string, format string, err error) {
	// Try RSS first
	var rss RSS
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		itemCount = len(rss.Channel.Items)
		latestDate = rss.Channel.Items[0].PubDate
		format = "RSS"
		return itemCount, latestDate, format, nil
	}

	// Try Atom
	var atom Atom
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		itemCount = len(atom.Entries)
		latestDate = atom.Entries[0].Updated
		format = "ATOM"
		return itemCount, latestDate, format, nil
	}

	// Could not parse
	format = "UNKNOWN"
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return 0, "", format, fmt.Errorf("failed to parse as RSS or Atom. Content preview: %s", preview)
}

// probeListing counts the entries the configured selectors would scrape and,
// when a date selector is set, reports the first entry's date text.
func probeListing(body []byte, listing *entity.ListingConfig) (itemCount int, latestDate string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return 0, "", fmt.Errorf("parse HTML: %w", err)
	}

	items := doc.Find(listing.ItemSelector)
	itemCount = items.Length()
	if itemCount > 0 && listing.DateSelector != "" {
		latestDate = strings.TrimSpace(items.First().Find(listing.DateSelector).Text())
	}
	return itemCount, latestDate, nil
}

// writef is a helper to write to file and handle errors
func writef(f *os.File, format string, args ...interface{}) error {
	_, err := fmt.Fprintf(f, format, args...)
	return err
}

func generateReport(diagnostics []SourceDiagnostic) {
	f, err := os.Create("source_diagnostic_report.txt")
	if err != nil {
		log.Printf("Failed to create report file: %v", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close report file: %v", err)
		}
	}()

	// Helper to handle write errors
	writeErr := func(err error) bool {
		if err != nil {
			log.Printf("Failed to write to report: %v", err)
			return true
		}
		return false
	}

	if writeErr(writef(f, "===============================================\n")) {
		return
	}
	if writeErr(writef(f, "Source Diagnostic Report\n")) {
		return
	}
	if writeErr(writef(f, "Generated: %s\n", time.Now().Format(time.RFC3339))) {
		return
	}
	if writeErr(writef(f, "Total Sources: %d\n", len(diagnostics))) {
		return
	}
	if writeErr(writef(f, "===============================================\n\n")) {
		return
	}

	// Summary statistics
	statusCount := make(map[string]int)
	var okCount, errorCount int
	for _, d := range diagnostics {
		statusCount[d.Status]++
		switch d.Status {
		case "OK", "REDIRECT", "SKIPPED":
			okCount++
		default:
			errorCount++
		}
	}

	_ = writef(f, "SUMMARY:\n")
	_ = writef(f, "  ✅ Working: %d (%.1f%%)\n", okCount, float64(okCount)/float64(len(diagnostics))*100)
	_ = writef(f, "  ❌ Broken: %d (%.1f%%)\n", errorCount, float64(errorCount)/float64(len(diagnostics))*100)
	_ = writef(f, "\nSTATUS BREAKDOWN:\n")
	for status, count := range statusCount {
		_ = writef(f, "  %s: %d\n", status, count)
	}
	_ = writef(f, "\n")

	// Detailed results
	_ = writef(f, "DETAILED RESULTS:\n")
	_ = writef(f, "===============================================\n\n")

	// OK sources
	_ = writef(f, "✅ WORKING SOURCES (%d):\n", statusCount["OK"]+statusCount["REDIRECT"])
	_ = writef(f, "-------------------------------------------\n")
	for _, d := range diagnostics {
		if d.Status == "OK" || d.Status == "REDIRECT" {
			_ = writef(f, "Name: %s\n", d.Name)
			_ = writef(f, "  URL: %s (%s)\n", d.URL, d.Kind)
			_ = writef(f, "  Format: %s | Items: %d | Latest: %s\n", d.Format, d.ItemCount, d.LatestDate)
			_ = writef(f, "  Response: %dms | HTTP: %d\n", d.ResponseTime, d.HTTPCode)
			if d.RedirectURL != "" {
				_ = writef(f, "  ⚠️  Redirected to: %s\n", d.RedirectURL)
			}
			_ = writef(f, "\n")
		}
	}

	// Error sources
	_ = writef(f, "\n❌ BROKEN SOURCES (%d):\n", errorCount)
	_ = writef(f, "-------------------------------------------\n")
	for _, d := range diagnostics {
		if d.Status != "OK" && d.Status != "REDIRECT" && d.Status != "SKIPPED" {
			_ = writef(f, "Name: %s\n", d.Name)
			_ = writef(f, "  URL: %s (%s)\n", d.URL, d.Kind)
			_ = writef(f, "  Status: %s | HTTP: %d\n", d.Status, d.HTTPCode)
			_ = writef(f, "  Error: %s\n", d.ErrorMessage)
			_ = writef(f, "  Response: %dms\n", d.ResponseTime)
			_ = writef(f, "\n")
		}
	}

	// Suggested run file edits
	generateFixSection(f, diagnostics)

	log.Println("✅ Text report generated: source_diagnostic_report.txt")
}

// generateFixSection appends suggested run file edits: URL updates for
// redirected sources and removal candidates for broken ones.
func generateFixSection(f *os.File, diagnostics []SourceDiagnostic) {
	hasRedirects := false
	for _, d := range diagnostics {
		if d.RedirectURL != "" && d.RedirectURL != d.URL {
			if !hasRedirects {
				_ = writef(f, "\nSUGGESTED RUN FILE EDITS:\n")
				_ = writef(f, "-------------------------------------------\n")
				_ = writef(f, "# Update redirected sources\n")
				hasRedirects = true
			}
			_ = writef(f, "%s:\n  url: %s  # was %s\n", d.Name, d.RedirectURL, d.URL)
		}
	}

	hasBroken := false
	for _, d := range diagnostics {
		if d.Status != "OK" && d.Status != "REDIRECT" && d.Status != "SKIPPED" {
			if !hasBroken {
				if !hasRedirects {
					_ = writef(f, "\nSUGGESTED RUN FILE EDITS:\n")
					_ = writef(f, "-------------------------------------------\n")
				}
				_ = writef(f, "# Remove or fix broken sources (review manually)\n")
				hasBroken = true
			}
			_ = writef(f, "%s: %s (%s)\n", d.Name, d.Status, d.URL)
		}
	}
}

func generateJSONReport(diagnostics []SourceDiagnostic) {
	f, err := os.Create("source_diagnostic_report.json")
	if err != nil {
		log.Printf("Failed to create JSON report: %v", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close JSON report file: %v", err)
		}
	}()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(diagnostics); err != nil {
		log.Printf("Failed to write JSON report: %v", err)
		return
	}

	log.Println("✅ JSON report generated: source_diagnostic_report.json")
}
