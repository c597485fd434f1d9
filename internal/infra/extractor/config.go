package extractor

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for excerpt fetching operations.
// This configuration controls security, performance, and politeness of
// the text-extraction stage.
//
// Security settings:
//   - DenyPrivateIPs: Prevents SSRF attacks by blocking private IP addresses
//   - MaxBodySize: Prevents memory exhaustion from oversized responses
//   - MaxRedirects: Prevents infinite redirect loops
//   - Timeout: Prevents resource starvation from slow servers
//
// Politeness settings:
//   - RespectRobots: Honors robots.txt before fetching a page
//   - PerHostRate / PerHostBurst: Bounds the request rate per publisher host
//   - RobotsCacheTTL: How long a host's robots.txt verdict is reused
type Config struct {
	// Timeout is the maximum duration for a single HTTP request.
	// This prevents resource starvation from slow or unresponsive servers.
	// Should be well below the run's extraction budget.
	// Default: 10s
	Timeout time.Duration

	// MaxBodySize is the maximum HTTP response body size in bytes.
	// Responses exceeding this limit are rejected to prevent memory exhaustion.
	// This is enforced during response reading, not based on Content-Length header.
	// Default: 10485760 (10MB)
	MaxBodySize int64

	// MaxRedirects is the maximum number of HTTP redirects to follow.
	// This prevents infinite redirect loops and redirect-based attacks.
	// Each redirect target is validated for security (SSRF check).
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs controls whether to block access to private IP addresses.
	// When true, URLs resolving to private/loopback/link-local IPs are rejected.
	// This prevents Server-Side Request Forgery (SSRF) attacks.
	// Should always be true in production.
	// Default: true
	DenyPrivateIPs bool

	// RespectRobots controls whether robots.txt is consulted before a fetch.
	// Denied URLs are skipped, not retried.
	// Default: true
	RespectRobots bool

	// PerHostRate is the sustained request rate per publisher host, in
	// requests per second. Survivor lists cluster on a few outlets, so
	// this is what actually spaces the traffic.
	// Default: 1.0
	PerHostRate float64

	// PerHostBurst is the burst allowance per host.
	// Default: 2
	PerHostBurst int

	// RobotsCacheTTL is how long a fetched robots.txt is cached per host.
	// Default: 1h
	RobotsCacheTTL time.Duration
}

// DefaultConfig returns the default configuration for excerpt fetching.
// These defaults are optimized for:
//   - Security: SSRF prevention enabled, size/redirect limits enforced
//   - Politeness: robots.txt honored, one request per second per host
//
// Returns:
//   - Config with production-ready default values
//
// Example:
//
//	config := DefaultConfig()
//	config.PerHostRate = 2.0 // Customize as needed
//	fetcher := NewReadabilityFetcher(config)
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MaxBodySize:    10 * 1024 * 1024, // 10MB
		MaxRedirects:   5,
		DenyPrivateIPs: true,
		RespectRobots:  true,
		PerHostRate:    1.0,
		PerHostBurst:   2,
		RobotsCacheTTL: time.Hour,
	}
}

// Validate checks if the configuration values are valid and safe.
// This prevents misconfigurations that could lead to security issues
// or performance problems.
//
// Validation rules:
//   - Timeout: > 0 (must have timeout)
//   - MaxBodySize: 1KB-100MB (prevent memory issues)
//   - MaxRedirects: 0-10 (reasonable redirect limit)
//   - PerHostRate: 0.1-50 requests per second
//   - PerHostBurst: >= 1
//   - RobotsCacheTTL: > 0
//
// Returns:
//   - error: nil if configuration is valid, descriptive error otherwise
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	minBodySize := int64(1024)              // 1KB
	maxBodySize := int64(100 * 1024 * 1024) // 100MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	if c.PerHostRate < 0.1 || c.PerHostRate > 50 {
		return fmt.Errorf("per-host rate must be between 0.1 and 50 requests per second, got %v", c.PerHostRate)
	}

	if c.PerHostBurst < 1 {
		return fmt.Errorf("per-host burst must be at least 1, got %d", c.PerHostBurst)
	}

	if c.RobotsCacheTTL <= 0 {
		return fmt.Errorf("robots cache TTL must be positive, got %v", c.RobotsCacheTTL)
	}

	return nil
}

// LoadConfigFromEnv loads configuration from environment variables.
// If a variable is not set or invalid, the default value is used.
// After loading, the configuration is validated.
//
// Environment variables:
//   - EXCERPT_FETCH_TIMEOUT: duration string, e.g., "10s" (default: 10s)
//   - EXCERPT_FETCH_MAX_BODY_SIZE: integer in bytes (default: 10485760)
//   - EXCERPT_FETCH_MAX_REDIRECTS: integer (default: 5)
//   - EXCERPT_FETCH_DENY_PRIVATE_IPS: "true" or "false" (default: true)
//   - EXCERPT_FETCH_RESPECT_ROBOTS: "true" or "false" (default: true)
//   - EXCERPT_FETCH_PER_HOST_RATE: float, requests per second (default: 1.0)
//   - EXCERPT_FETCH_PER_HOST_BURST: integer (default: 2)
//   - EXCERPT_FETCH_ROBOTS_CACHE_TTL: duration string (default: 1h)
//
// Returns:
//   - Config: Loaded configuration
//   - error: Validation error if configuration is invalid
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if val := os.Getenv("EXCERPT_FETCH_TIMEOUT"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			cfg.Timeout = parsed
		} else {
			return cfg, fmt.Errorf("invalid EXCERPT_FETCH_TIMEOUT: %v (expected format: '10s', '1m')", err)
		}
	}

	if val := os.Getenv("EXCERPT_FETCH_MAX_BODY_SIZE"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.MaxBodySize = parsed
		} else {
			return cfg, fmt.Errorf("invalid EXCERPT_FETCH_MAX_BODY_SIZE: %v", err)
		}
	}

	if val := os.Getenv("EXCERPT_FETCH_MAX_REDIRECTS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.MaxRedirects = parsed
		} else {
			return cfg, fmt.Errorf("invalid EXCERPT_FETCH_MAX_REDIRECTS: %v", err)
		}
	}

	if val := os.Getenv("EXCERPT_FETCH_DENY_PRIVATE_IPS"); val != "" {
		cfg.DenyPrivateIPs = val == "true"
	}

	if val := os.Getenv("EXCERPT_FETCH_RESPECT_ROBOTS"); val != "" {
		cfg.RespectRobots = val == "true"
	}

	if val := os.Getenv("EXCERPT_FETCH_PER_HOST_RATE"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.PerHostRate = parsed
		} else {
			return cfg, fmt.Errorf("invalid EXCERPT_FETCH_PER_HOST_RATE: %v", err)
		}
	}

	if val := os.Getenv("EXCERPT_FETCH_PER_HOST_BURST"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.PerHostBurst = parsed
		} else {
			return cfg, fmt.Errorf("invalid EXCERPT_FETCH_PER_HOST_BURST: %v", err)
		}
	}

	if val := os.Getenv("EXCERPT_FETCH_ROBOTS_CACHE_TTL"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			cfg.RobotsCacheTTL = parsed
		} else {
			return cfg, fmt.Errorf("invalid EXCERPT_FETCH_ROBOTS_CACHE_TTL: %v", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
