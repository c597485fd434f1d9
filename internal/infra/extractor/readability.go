package extractor

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"corpusmill/internal/resilience/circuitbreaker"
	"corpusmill/internal/resilience/retry"
	"corpusmill/internal/usecase/enrich"

	"github.com/go-shiori/go-readability"
	"github.com/sony/gobreaker"
)

// userAgent identifies the excerpt fetcher to publisher servers and to
// robots.txt group matching.
const userAgent = "CorpusmillBot/1.0"

// ReadabilityFetcher implements enrich.ContentFetcher with
// go-shiori/go-readability. A fetch runs the full defensive path: SSRF
// validation of the URL and every redirect target, a robots.txt check, a
// per-host rate limit, and the excerpt retry and breaker presets. Safe for
// concurrent use.
type ReadabilityFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	robots         *RobotsChecker
	limiter        *HostLimiter
	config         Config
}

// NewReadabilityFetcher builds a fetcher from the given configuration. The
// robots checker is only wired when config.RespectRobots is set.
func NewReadabilityFetcher(config Config) *ReadabilityFetcher {
	f := &ReadabilityFetcher{
		circuitBreaker: circuitbreaker.New(circuitbreaker.ExtractConfig()),
		retryConfig:    retry.ExtractConfig(),
		limiter:        NewHostLimiter(config.PerHostRate, config.PerHostBurst),
		config:         config,
	}
	if config.RespectRobots {
		f.robots = NewRobotsChecker(userAgent, config.Timeout, config.RobotsCacheTTL)
	}
	f.client = f.newClient()
	return f
}

// newClient builds the article HTTP client. Redirect targets go through
// the same SSRF validation as the original URL.
func (f *ReadabilityFetcher) newClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", enrich.ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), f.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}
}

// FetchContent fetches urlStr and returns its extracted article text,
// implementing enrich.ContentFetcher. Validation, robots, and the rate
// limit run once up front; the HTTP round trip itself runs through retry
// and the circuit breaker.
func (f *ReadabilityFetcher) FetchContent(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", err
	}
	if f.robots != nil && !f.robots.Allowed(ctx, urlStr) {
		return "", fmt.Errorf("%w: %s", enrich.ErrRobotsDenied, urlStr)
	}
	if err := f.limiter.Wait(ctx, urlStr); err != nil {
		return "", err
	}

	var text string
	err := retry.WithBackoff(ctx, f.retryConfig, func() error {
		result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
			return f.doFetch(ctx, urlStr)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("excerpt fetch rejected, breaker open",
					slog.String("url", urlStr),
					slog.String("state", f.circuitBreaker.State().String()))
			}
			return err
		}
		text = result.(string)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// doFetch performs one HTTP round trip and extraction attempt.
func (f *ReadabilityFetcher) doFetch(ctx context.Context, urlStr string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", enrich.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", f.classifyTransportError(reqCtx, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return f.extractText(resp, urlStr)
}

// classifyTransportError maps a client.Do failure onto the enrich
// sentinels. The deadline check comes first: a timeout must not be
// reported as a generic transport error, which the retry layer would
// treat as transient.
func (f *ReadabilityFetcher) classifyTransportError(reqCtx context.Context, err error) error {
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: request exceeded %v", enrich.ErrTimeout, f.config.Timeout)
	}
	// CheckRedirect failures arrive wrapped in a url.Error; surface the
	// sentinel underneath.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return fmt.Errorf("HTTP request failed: %w", err)
}

// extractText validates the response and runs Readability over the body.
func (f *ReadabilityFetcher) extractText(resp *http.Response, urlStr string) (string, error) {
	if resp.StatusCode != http.StatusOK {
		return "", &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
		}
	}

	// Readability only makes sense on HTML; PDFs and images are skipped
	// rather than mangled.
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTMLContentType(ct) {
		return "", fmt.Errorf("%w: content type %q", enrich.ErrNotHTML, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBodySize {
		return "", fmt.Errorf("%w: response size %d bytes exceeds limit %d bytes",
			enrich.ErrBodyTooLarge, len(body), f.config.MaxBodySize)
	}

	// Readability resolves relative links against the final URL, which may
	// differ from the requested one after redirects.
	finalURL, _ := url.Parse(urlStr)
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	article, err := readability.FromReader(bytes.NewReader(body), finalURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", enrich.ErrReadabilityFailed, err)
	}
	if article.TextContent == "" {
		return "", fmt.Errorf("%w: no readable content found", enrich.ErrReadabilityFailed)
	}
	return article.TextContent, nil
}

func isHTMLContentType(ct string) bool {
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
