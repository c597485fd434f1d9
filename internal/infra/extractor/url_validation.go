// Package extractor fetches article pages and extracts readable excerpt
// text for the enrichment stage.
package extractor

import (
	"fmt"
	"net"
	"net/url"

	"corpusmill/internal/usecase/enrich"
)

// validateURL screens an article URL before the excerpt fetcher requests it.
// Record URLs come from harvested feeds and scraped listings, so a hostile or
// compromised source could point the fetcher at cloud metadata endpoints or
// hosts on the worker's own network. Only http and https schemes pass, the
// hostname must be present, and with denyPrivateIPs set every address the
// hostname resolves to must be publicly routable.
//
// Failures wrap enrich.ErrInvalidURL (malformed, bad scheme, no hostname,
// DNS failure) or enrich.ErrPrivateIP (resolves into a private, loopback,
// or link-local range).
func validateURL(urlStr string, denyPrivateIPs bool) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: parse error: %v", enrich.ErrInvalidURL, err)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme '%s' not allowed (only http/https)", enrich.ErrInvalidURL, u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: empty hostname", enrich.ErrInvalidURL)
	}
	if !denyPrivateIPs {
		return nil
	}

	// Resolve before fetching. Checking the hostname string alone would let
	// a source register a public name that points at an internal address.
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %v", enrich.ErrInvalidURL, hostname, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: hostname '%s' resolves to private IP %s", enrich.ErrPrivateIP, hostname, ip.String())
		}
	}
	return nil
}

// isPrivateIP reports whether ip falls in a loopback, RFC 1918 / ULA
// private, or link-local range, for both IPv4 and IPv6.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
