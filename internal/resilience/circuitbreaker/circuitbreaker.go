// Package circuitbreaker stops a corpus run from pounding an upstream that
// is already failing: feed hosts, the academic and event index APIs, civic
// listing sites and the corpus store each get a breaker tuned to how they
// misbehave. Built on github.com/sony/gobreaker.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	Name             string        // identifies the breaker in logs
	MaxRequests      uint32        // probe requests allowed while half-open
	Interval         time.Duration // closed-state window for failure counting
	Timeout          time.Duration // how long an open breaker rejects before probing
	FailureThreshold float64       // failure ratio that trips the breaker
	MinRequests      uint32        // observations required before the ratio counts
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// FeedFetchConfig returns configuration for RSS/Atom feed fetching.
func FeedFetchConfig() Config {
	return Config{
		Name:             "feed-fetch",
		MaxRequests:      5,
		Interval:         60 * time.Second,
		Timeout:          120 * time.Second,
		FailureThreshold: 0.7,
		MinRequests:      10,
	}
}

// AcademicIndexConfig returns configuration for the academic-works API.
// The provider throttles hard once abused; trip early and back off long.
func AcademicIndexConfig() Config {
	return Config{
		Name:             "academic-index",
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          300 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      4,
	}
}

// EventIndexConfig returns configuration for the event-index doc API.
func EventIndexConfig() Config {
	return Config{
		Name:             "event-index",
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          300 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      4,
	}
}

// ListingScrapeConfig returns configuration for civic listing-page scraping.
// Conservative: site structure changes fail every request until fixed.
func ListingScrapeConfig() Config {
	return Config{
		Name:             "listing-scrape",
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          3600 * time.Second, // 1 hour
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// ExtractConfig returns configuration for excerpt fetching during enrichment.
// One breaker spans all hosts of a run; a short open window keeps a run of
// dead links from burning the whole extraction budget.
func ExtractConfig() Config {
	return Config{
		Name:             "excerpt-fetch",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          45 * time.Second,
		FailureThreshold: 0.9,
		MinRequests:      20,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker behind the Config presets
// above.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a circuit breaker from cfg. State transitions are logged at
// Warn level, so an opened source breaker shows up next to the harvest
// errors that caused it.
func New(cfg Config) *CircuitBreaker {
	trip := func(counts gobreaker.Counts) bool {
		// Below MinRequests a single hiccup would dominate the ratio.
		if counts.Requests < cfg.MinRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
	}

	logTransition := func(name string, from, to gobreaker.State) {
		slog.Warn("circuit breaker state changed",
			slog.String("circuit", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:          cfg.Name,
			MaxRequests:   cfg.MaxRequests,
			Interval:      cfg.Interval,
			Timeout:       cfg.Timeout,
			ReadyToTrip:   trip,
			OnStateChange: logTransition,
		}),
		name: cfg.Name,
	}
}

// Execute runs the given function through the circuit breaker.
// If the circuit is open, it returns ErrOpenState immediately.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen reports whether the breaker is currently rejecting calls.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
