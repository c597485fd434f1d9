package weblist_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/infra/weblist"
	"corpusmill/internal/usecase/harvest"
)

func civicSource(url string, listing *entity.ListingConfig) entity.Source {
	return entity.Source{
		Name:     "City Ethics Board",
		URL:      url,
		Kind:     entity.SourceKindCivic,
		Language: "fr",
		Country:  "FR",
		Listing:  listing,
	}
}

func TestClient_Harvest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html := `<!DOCTYPE html>
<html>
<body>
  <div class="press-item">
    <a class="press-link" href="/presse/avis-2024-03">
      <h3 class="press-title">Avis sur les algorithmes de notation</h3>
      <span class="press-date">15.01.2024</span>
    </a>
  </div>
  <div class="press-item">
    <a class="press-link" href="https://autre.example.org/rapport">
      <h3 class="press-title">Rapport annuel</h3>
      <span class="press-date">02.03.2024</span>
    </a>
  </div>
</body>
</html>`
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(html)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := weblist.NewClient(&http.Client{Timeout: 10 * time.Second})

	src := civicSource(server.URL, &entity.ListingConfig{
		ItemSelector:  ".press-item",
		TitleSelector: ".press-title",
		URLSelector:   "a.press-link",
		DateSelector:  ".press-date",
		DateFormat:    "02.01.2006",
		URLPrefix:     "https://ethics.example.org",
	})

	records, err := client.Harvest(context.Background(), src, harvest.Query{})
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("records length = %d, want 2", len(records))
	}

	first := records[0]
	if first["title"] != "Avis sur les algorithmes de notation" {
		t.Errorf("title = %q, want listing title", first["title"])
	}
	if first["url"] != "https://ethics.example.org/presse/avis-2024-03" {
		t.Errorf("url = %q, want prefix-resolved URL", first["url"])
	}
	if first["date"] != "2024-01-15" {
		t.Errorf("date = %q, want %q from per-site layout", first["date"], "2024-01-15")
	}
	if first["site_name"] != "City Ethics Board" {
		t.Errorf("site_name = %q, want source name", first["site_name"])
	}
	if first["source_type"] != "listing" {
		t.Errorf("source_type = %q, want %q", first["source_type"], "listing")
	}
	if first["language"] != "fr" {
		t.Errorf("language = %q, want %q", first["language"], "fr")
	}
	if first["country"] != "FR" {
		t.Errorf("country = %q, want %q", first["country"], "FR")
	}

	// Absolute item URLs pass through untouched.
	if records[1]["url"] != "https://autre.example.org/rapport" {
		t.Errorf("records[1] url = %q, want absolute passthrough", records[1]["url"])
	}
}

func TestClient_Harvest_ResolvesAgainstPageURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html := `<html><body>
  <li class="item"><a href="/docs/statement-7">Statement on automated decisions</a></li>
</body></html>`
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(html)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	src := civicSource(server.URL, &entity.ListingConfig{
		ItemSelector:  "li.item",
		TitleSelector: "a",
		URLSelector:   "a",
	})

	client := weblist.NewClient(&http.Client{Timeout: 10 * time.Second})

	records, err := client.Harvest(context.Background(), src, harvest.Query{})
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("records length = %d, want 1", len(records))
	}
	want := server.URL + "/docs/statement-7"
	if records[0]["url"] != want {
		t.Errorf("url = %q, want resolved against page URL %q", records[0]["url"], want)
	}
	if _, ok := records[0]["date"]; ok {
		t.Errorf("date present = %q, want absent without date selector", records[0]["date"])
	}
}

func TestClient_Harvest_SkipsItemsMissingTitleOrURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html := `<html><body>
  <div class="item"><a href="/one"><h3>Kept item</h3></a></div>
  <div class="item"><a href="/two"><h3></h3></a></div>
  <div class="item"><h3>No link here</h3></div>
</body></html>`
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(html)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	src := civicSource(server.URL, &entity.ListingConfig{
		ItemSelector:  ".item",
		TitleSelector: "h3",
		URLSelector:   "a",
	})

	client := weblist.NewClient(&http.Client{Timeout: 10 * time.Second})

	records, err := client.Harvest(context.Background(), src, harvest.Query{})
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("records length = %d, want 1", len(records))
	}
	if records[0]["title"] != "Kept item" {
		t.Errorf("title = %q, want %q", records[0]["title"], "Kept item")
	}
}

func TestClient_Harvest_WindowFilterOnParsedDates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html := `<html><body>
  <div class="item"><a href="/old"><h3>Too old</h3></a><span class="d">2023-06-01</span></div>
  <div class="item"><a href="/in"><h3>In window</h3></a><span class="d">2024-02-01</span></div>
  <div class="item"><a href="/undated"><h3>Undated stays</h3></a></div>
</body></html>`
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(html)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	src := civicSource(server.URL, &entity.ListingConfig{
		ItemSelector:  ".item",
		TitleSelector: "h3",
		URLSelector:   "a",
		DateSelector:  ".d",
	})

	client := weblist.NewClient(&http.Client{Timeout: 10 * time.Second})

	q := harvest.Query{
		Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	records, err := client.Harvest(context.Background(), src, q)
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

func TestClient_Harvest_UnparsedDatePassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html := `<html><body>
  <div class="item"><a href="/one"><h3>Oddly dated</h3></a><span class="d">printemps 2024</span></div>
</body></html>`
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(html)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	src := civicSource(server.URL, &entity.ListingConfig{
		ItemSelector:  ".item",
		TitleSelector: "h3",
		URLSelector:   "a",
		DateSelector:  ".d",
		DateFormat:    "02.01.2006",
	})

	client := weblist.NewClient(&http.Client{Timeout: 10 * time.Second})

	records, err := client.Harvest(context.Background(), src, harvest.Query{})
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("records length = %d, want 1", len(records))
	}
	if records[0]["date"] != "printemps 2024" {
		t.Errorf("date = %q, want raw passthrough", records[0]["date"])
	}
}

func TestClient_Harvest_NoListingConfig(t *testing.T) {
	client := weblist.NewClient(&http.Client{Timeout: 10 * time.Second})

	src := civicSource("https://ethics.example.org/presse", nil)

	_, err := client.Harvest(context.Background(), src, harvest.Query{})
	if err == nil {
		t.Fatal("Harvest() error = nil, want missing listing config error")
	}
	if !errors.Is(err, entity.ErrInvalidInput) {
		t.Errorf("error = %v, want entity.ErrInvalidInput", err)
	}
}

func TestClient_Harvest_SelectorMatchesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html := `<html><body><p>Relaunched site, new markup</p></body></html>`
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(html)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	src := civicSource(server.URL, &entity.ListingConfig{
		ItemSelector:  ".press-item",
		TitleSelector: "h3",
		URLSelector:   "a",
	})

	client := weblist.NewClient(&http.Client{Timeout: 10 * time.Second})

	_, err := client.Harvest(context.Background(), src, harvest.Query{})
	if err == nil {
		t.Fatal("Harvest() error = nil, want selector mismatch error")
	}
}
