package normalize

import (
	"net/url"
	"sort"
	"strings"
)

// trackingQueryKeys are query parameters that identify campaigns or
// referrers, not content. They are stripped (together with the utm_ family)
// so the same article reached through two newsletters hashes identically.
var trackingQueryKeys = map[string]struct{}{
	"utm":        {},
	"fbclid":     {},
	"gclid":      {},
	"mc_cid":     {},
	"mc_eid":     {},
	"ref":        {},
	"ref_src":    {},
	"cmpid":      {},
	"s_campaign": {},
}

// CanonicalURL normalizes a raw URL into its canonical comparison form and
// returns it together with the source domain (host without a www prefix).
// Unusable input (no scheme, no host, parse failure) yields empty strings.
//
// Normalization: lowercased scheme and host, default ports dropped, fragment
// removed, trailing slash trimmed, tracking parameters stripped, surviving
// query keys sorted.
func CanonicalURL(raw string) (canonical string, domain string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", ""
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", ""
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()
	parsed.Host = host
	if port != "" {
		defaultPort := (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443")
		if !defaultPort {
			parsed.Host = host + ":" + port
		}
	}

	parsed.Fragment = ""
	path := parsed.EscapedPath()
	if strings.HasSuffix(path, "/") && path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	parsed.Path = path
	parsed.RawPath = ""

	q := parsed.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingQueryKeys[lower]; ok {
			q.Del(key)
		}
	}
	if len(q) > 0 {
		keys := make([]string, 0, len(q))
		for key := range q {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		reordered := url.Values{}
		for _, key := range keys {
			values := q[key]
			sort.Strings(values)
			for _, value := range values {
				reordered.Add(key, value)
			}
		}
		parsed.RawQuery = reordered.Encode()
	} else {
		parsed.RawQuery = ""
	}

	return parsed.String(), strings.TrimPrefix(host, "www.")
}
