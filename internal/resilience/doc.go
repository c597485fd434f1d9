// Package resilience provides reliability and fault tolerance patterns for the application.
// It includes implementations of circuit breakers and retry logic to keep harvest and
// extraction runs alive when individual providers misbehave.
//
// The package supports:
//   - Circuit breakers for external provider calls (feeds, index APIs, excerpt fetches)
//   - Retry logic with exponential backoff and jitter
//   - A breaker-protected database handle for the corpus store
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.FeedFetchConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callProvider()
//	})
//
//	retryConfig := retry.FeedFetchConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performOperation()
//	})
package resilience
