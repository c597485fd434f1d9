// Package retry wraps the outbound calls a corpus run depends on, feed
// fetches, provider queries, listing scrapes and excerpt downloads, with
// exponential backoff. Each call site picks the preset tuned for how flaky
// its upstream is and how much a lost record costs.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Config holds the configuration for retry logic.
type Config struct {
	MaxAttempts    int           // total attempts, including the first
	InitialDelay   time.Duration // wait before the second attempt
	MaxDelay       time.Duration // backoff ceiling
	Multiplier     float64       // backoff growth per attempt
	JitterFraction float64       // random extra delay, 0.0 to 1.0 of the base
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// FeedFetchConfig returns configuration for RSS/Atom feed fetching.
// Feeds are flaky; retry generously on transient network issues.
func FeedFetchConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// IndexQueryConfig returns configuration for the academic-works and
// event-index JSON APIs. Both providers throttle aggressively, so the
// backoff starts higher and attempts stay moderate.
func IndexQueryConfig() Config {
	return Config{
		MaxAttempts:    4,
		InitialDelay:   2 * time.Second,
		MaxDelay:       60 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// ListingScrapeConfig returns configuration for civic listing-page scraping.
func ListingScrapeConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// ExtractConfig returns configuration for excerpt fetches during enrichment.
// A missed excerpt is acceptable; give up early to protect the run budget.
func ExtractConfig() Config {
	return Config{
		MaxAttempts:    2,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// DBConfig returns configuration for corpus store operations.
// Fast retry for transient connection issues.
func DBConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// WithBackoff runs fn until it succeeds, fails permanently, or cfg's
// attempts run out. Non-retryable errors come back unwrapped so callers can
// match them; an exhausted budget wraps the last error.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				slog.Info("call recovered after retrying",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(err) {
			slog.Warn("giving up on permanent error",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return err
		}

		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
		}

		delay := nextDelay(cfg, attempt)
		slog.Warn("call failed, backing off",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}
}

// nextDelay computes the wait after the given attempt: exponential growth
// from InitialDelay, capped at MaxDelay, with random jitter on top so
// parallel harvest workers do not hammer a recovering host in lockstep.
func nextDelay(cfg Config, attempt int) time.Duration {
	delay := cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay >= cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}

	frac := cfg.JitterFraction
	if frac <= 0 {
		return delay
	}
	if frac > 1.0 {
		frac = 1.0
	}
	// #nosec G404 -- jitter does not need cryptographic randomness.
	return delay + time.Duration(rand.Float64()*float64(delay)*frac)
}

// IsRetryable reports whether err is worth another attempt. Timeouts,
// connection-level failures and throttling-shaped HTTP statuses qualify;
// everything else, including context cancellation, is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// A canceled run must not keep hitting the network.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.ENETUNREACH):
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatus(httpErr.StatusCode)
	}

	return false
}

// retryableStatus covers server-side failures plus the two statuses feed
// hosts and index providers use for throttling.
func retryableStatus(code int) bool {
	if code >= 500 && code < 600 {
		return true
	}
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// HTTPError carries a response status through the retry classifier. The
// harvest clients return it for any non-200 so the status decides whether
// the source gets another attempt.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
