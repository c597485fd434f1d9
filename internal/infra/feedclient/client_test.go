package feedclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/infra/feedclient"
	"corpusmill/internal/usecase/harvest"
)

func feedSource(url string) entity.Source {
	return entity.Source{
		Name:     "Test Feed Source",
		URL:      url,
		Kind:     entity.SourceKindSyndication,
		Language: "en",
		Country:  "US",
	}
}

func TestClient_Harvest_RSS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Tech Watch</title>
    <link>https://example.com</link>
    <description>Technology coverage</description>
    <language>en-us</language>
    <item>
      <title>Regulator opens inquiry into ranking systems</title>
      <link>https://example.com/inquiry</link>
      <description>An inquiry was opened.</description>
      <pubDate>Mon, 15 Jan 2024 09:30:00 +0000</pubDate>
    </item>
    <item>
      <title>City publishes procurement register</title>
      <link>https://example.com/register</link>
      <description>Register published.</description>
      <pubDate>Tue, 16 Jan 2024 10:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`
		w.Header().Set("Content-Type", "application/rss+xml")
		if _, err := w.Write([]byte(rss)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := feedclient.NewClient(&http.Client{Timeout: 10 * time.Second})

	records, err := client.Harvest(context.Background(), feedSource(server.URL), harvest.Query{})
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("records length = %d, want 2", len(records))
	}

	first := records[0]
	if first["title"] != "Regulator opens inquiry into ranking systems" {
		t.Errorf("title = %q, want inquiry headline", first["title"])
	}
	if first["link"] != "https://example.com/inquiry" {
		t.Errorf("link = %q, want %q", first["link"], "https://example.com/inquiry")
	}
	if first["published"] != "2024-01-15T09:30:00Z" {
		t.Errorf("published = %q, want %q", first["published"], "2024-01-15T09:30:00Z")
	}
	if first["feed_title"] != "Tech Watch" {
		t.Errorf("feed_title = %q, want %q", first["feed_title"], "Tech Watch")
	}
	if first["language"] != "en-us" {
		t.Errorf("language = %q, want %q", first["language"], "en-us")
	}
	if first["country"] != "US" {
		t.Errorf("country = %q, want %q", first["country"], "US")
	}
	if first["summary"] != "An inquiry was opened." {
		t.Errorf("summary = %q, want item description", first["summary"])
	}
}

func TestClient_Harvest_AtomFallsBackToSourceMetadata(t *testing.T) {
	// Atom feeds carry no language element; the source config fills the gap.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atom := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Policy Updates</title>
  <link href="https://example.org"/>
  <updated>2024-02-01T00:00:00Z</updated>
  <entry>
    <title>Draft guidance released</title>
    <link href="https://example.org/guidance"/>
    <id>guidance-1</id>
    <updated>2024-02-01T08:00:00Z</updated>
    <summary>Guidance summary.</summary>
  </entry>
</feed>`
		w.Header().Set("Content-Type", "application/atom+xml")
		if _, err := w.Write([]byte(atom)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := feedclient.NewClient(&http.Client{Timeout: 10 * time.Second})

	records, err := client.Harvest(context.Background(), feedSource(server.URL), harvest.Query{})
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("records length = %d, want 1", len(records))
	}

	rec := records[0]
	if rec["title"] != "Draft guidance released" {
		t.Errorf("title = %q, want %q", rec["title"], "Draft guidance released")
	}
	if rec["language"] != "en" {
		t.Errorf("language = %q, want source fallback %q", rec["language"], "en")
	}
	if rec["updated"] != "2024-02-01T08:00:00Z" {
		t.Errorf("updated = %q, want %q", rec["updated"], "2024-02-01T08:00:00Z")
	}
}

func TestClient_Harvest_WindowFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Archive Feed</title>
    <link>https://example.com</link>
    <item>
      <title>Too old</title>
      <link>https://example.com/old</link>
      <pubDate>Sat, 01 Jul 2023 00:00:00 +0000</pubDate>
    </item>
    <item>
      <title>In window</title>
      <link>https://example.com/current</link>
      <pubDate>Mon, 15 Jan 2024 00:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Too new</title>
      <link>https://example.com/new</link>
      <pubDate>Sat, 01 Jun 2024 00:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Undated stays</title>
      <link>https://example.com/undated</link>
    </item>
  </channel>
</rss>`
		w.Header().Set("Content-Type", "application/rss+xml")
		if _, err := w.Write([]byte(rss)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := feedclient.NewClient(&http.Client{Timeout: 10 * time.Second})

	q := harvest.Query{
		Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
	}
	records, err := client.Harvest(context.Background(), feedSource(server.URL), q)
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("records length = %d, want 2 (windowed + undated)", len(records))
	}
	if records[0]["title"] != "In window" {
		t.Errorf("records[0] title = %q, want %q", records[0]["title"], "In window")
	}
	if records[1]["title"] != "Undated stays" {
		t.Errorf("records[1] title = %q, want %q", records[1]["title"], "Undated stays")
	}
}

func TestClient_Harvest_EmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Empty Feed</title>
    <link>https://example.com</link>
  </channel>
</rss>`
		w.Header().Set("Content-Type", "application/rss+xml")
		if _, err := w.Write([]byte(rss)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := feedclient.NewClient(&http.Client{Timeout: 10 * time.Second})

	records, err := client.Harvest(context.Background(), feedSource(server.URL), harvest.Query{})
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	if len(records) != 0 {
		t.Fatalf("records length = %d, want 0", len(records))
	}
}

func TestClient_Harvest_InvalidXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		if _, err := w.Write([]byte("Invalid XML <><><>")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := feedclient.NewClient(&http.Client{Timeout: 10 * time.Second})

	_, err := client.Harvest(context.Background(), feedSource(server.URL), harvest.Query{})
	if err == nil {
		t.Fatal("Harvest() error = nil, want error")
	}
}

func TestClient_Harvest_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		if _, err := w.Write([]byte("<rss></rss>")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := feedclient.NewClient(&http.Client{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Harvest(ctx, feedSource(server.URL), harvest.Query{})
	if err == nil {
		t.Fatal("Harvest() error = nil, want context canceled error")
	}
}
