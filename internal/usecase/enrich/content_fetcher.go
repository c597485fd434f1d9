package enrich

import (
	"context"
	"errors"
)

// ContentFetcher pulls the readable text of an article page, the way a
// Mozilla-Readability style extractor does, so the excerpt stage can attach
// a bounded excerpt to each surviving corpus record.
//
// Failures are absorbed by the caller: a record whose page cannot be
// fetched keeps an empty excerpt and is written anyway.
//
// Implementations fetch arbitrary URLs taken from harvested sources, so
// they carry the full defensive set: SSRF validation, redirect caps, size
// and time limits, a robots.txt check, and a per-host rate limit that lets
// distinct hosts proceed in parallel while same-host fetches are throttled.
type ContentFetcher interface {
	// FetchContent returns the extracted text of the page at url, plain
	// text with whitespace collapsed. The error is one of the sentinels
	// below, or gobreaker.ErrOpenState once the excerpt breaker has
	// tripped.
	FetchContent(ctx context.Context, url string) (string, error)
}

// Sentinel errors for excerpt fetching. They let the excerpt stage and its
// tests distinguish failure modes while treating every one of them the same
// way: count it, log it, move on.
var (
	// ErrInvalidURL rejects anything that is not a well-formed http:// or
	// https:// URL ("not-a-url", "file:///etc/passwd").
	ErrInvalidURL = errors.New("invalid URL or unsupported scheme")

	// ErrPrivateIP rejects URLs resolving into loopback, link-local, or
	// private ranges, which keeps a hostile source from steering the
	// fetcher at internal hosts.
	ErrPrivateIP = errors.New("private IP access denied (SSRF prevention)")

	// ErrRobotsDenied means robots.txt disallows the path.
	ErrRobotsDenied = errors.New("denied by robots.txt")

	// ErrTooManyRedirects caps the redirect chain.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge caps the response body.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrNotHTML means the response is not an HTML document. PDF links are
	// common in academic records.
	ErrNotHTML = errors.New("response is not HTML")

	// ErrTimeout means the request exceeded its budget.
	ErrTimeout = errors.New("request timeout")

	// ErrReadabilityFailed means extraction found no readable text or the
	// markup would not parse.
	ErrReadabilityFailed = errors.New("content extraction failed")
)
