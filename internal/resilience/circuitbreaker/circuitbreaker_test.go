package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

// sourceBreaker builds a breaker the way a harvest client would for one
// source, with a short open window so tests can wait it out.
func sourceBreaker(minRequests uint32, threshold float64) *CircuitBreaker {
	return New(Config{
		Name:             "example-feed",
		MaxRequests:      2,
		Interval:         10 * time.Second,
		Timeout:          100 * time.Millisecond,
		FailureThreshold: threshold,
		MinRequests:      minRequests,
	})
}

var errFeedDown = errors.New("HTTP 503: Service Unavailable")

func TestNew_StartsClosed(t *testing.T) {
	cb := sourceBreaker(5, 0.6)

	if cb.Name() != "example-feed" {
		t.Errorf("Name() = %q, want %q", cb.Name(), "example-feed")
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("initial state = %v, want Closed", cb.State())
	}
	if cb.IsOpen() {
		t.Error("IsOpen() = true on a fresh breaker")
	}
}

func TestExecute_PassesResultsThrough(t *testing.T) {
	cb := sourceBreaker(5, 0.6)

	result, err := cb.Execute(func() (interface{}, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %v, want 42", result)
	}

	_, err = cb.Execute(func() (interface{}, error) {
		return nil, errFeedDown
	})
	if !errors.Is(err, errFeedDown) {
		t.Errorf("Execute should return the fetch error unchanged, got %v", err)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("one failure must not trip the breaker, state = %v", cb.State())
	}
}

func TestExecute_TripsOnFailureRatio(t *testing.T) {
	// Threshold 0.6 with MinRequests 5: four failures, one success, then a
	// fifth failure pushes the ratio over the line.
	cb := sourceBreaker(5, 0.6)

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, errFeedDown })
	}
	if _, err := cb.Execute(func() (interface{}, error) { return "<rss/>", nil }); err != nil {
		t.Fatalf("healthy fetch failed: %v", err)
	}
	_, _ = cb.Execute(func() (interface{}, error) { return nil, errFeedDown })

	if !cb.IsOpen() {
		t.Fatalf("breaker should be open at 5/6 failures, state = %v", cb.State())
	}

	// Open breaker rejects without calling the source.
	_, err := cb.Execute(func() (interface{}, error) {
		t.Error("fetch ran while the breaker was open")
		return nil, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
}

func TestExecute_BelowMinRequestsNeverTrips(t *testing.T) {
	cb := sourceBreaker(10, 0.5)

	// 100% failure, but only 4 observations.
	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, errFeedDown })
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want Closed below MinRequests", cb.State())
	}
}

func TestExecute_RecoversThroughHalfOpen(t *testing.T) {
	cb := sourceBreaker(5, 0.6)

	for i := 0; i < 6; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, errFeedDown })
	}
	if !cb.IsOpen() {
		t.Fatalf("breaker should be open, state = %v", cb.State())
	}

	// After the open window a probe is allowed; its success closes the
	// breaker again.
	time.Sleep(150 * time.Millisecond)

	if _, err := cb.Execute(func() (interface{}, error) { return "<rss/>", nil }); err != nil {
		t.Fatalf("half-open probe failed: %v", err)
	}
	if cb.State() == gobreaker.StateOpen {
		t.Errorf("breaker still open after successful probe, state = %v", cb.State())
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantName    string
		wantTimeout time.Duration
		wantMin     uint32
	}{
		{"default", DefaultConfig("corpus-store"), "corpus-store", 60 * time.Second, 5},
		{"feed fetch", FeedFetchConfig(), "feed-fetch", 120 * time.Second, 10},
		{"academic index", AcademicIndexConfig(), "academic-index", 300 * time.Second, 4},
		{"event index", EventIndexConfig(), "event-index", 300 * time.Second, 4},
		{"listing scrape", ListingScrapeConfig(), "listing-scrape", 3600 * time.Second, 5},
		{"extract", ExtractConfig(), "excerpt-fetch", 45 * time.Second, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cfg.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", tt.cfg.Name, tt.wantName)
			}
			if tt.cfg.Timeout != tt.wantTimeout {
				t.Errorf("Timeout = %v, want %v", tt.cfg.Timeout, tt.wantTimeout)
			}
			if tt.cfg.MinRequests != tt.wantMin {
				t.Errorf("MinRequests = %d, want %d", tt.cfg.MinRequests, tt.wantMin)
			}
			if tt.cfg.FailureThreshold <= 0 || tt.cfg.FailureThreshold > 1 {
				t.Errorf("FailureThreshold = %f outside (0, 1]", tt.cfg.FailureThreshold)
			}
		})
	}
}

func TestExtractConfig_TripsOnlyOnDeadRuns(t *testing.T) {
	// The excerpt breaker spans every host in a run, so it must tolerate a
	// high failure ratio: 19 dead links among 20 fetches is normal enough
	// for link rot, the breaker only opens when effectively nothing works.
	cfg := ExtractConfig()

	if cfg.FailureThreshold < 0.9 {
		t.Errorf("FailureThreshold = %f, want >= 0.9", cfg.FailureThreshold)
	}
	if cfg.Timeout >= time.Minute {
		t.Errorf("Timeout = %v, want under a minute so one bad stretch does not eat the extraction budget", cfg.Timeout)
	}
}
