package cache

import (
	"strings"
)

// NormalizeDomain canonicalizes a domain for use as a cache key: lowercase,
// scheme/path/port stripped, leading www. removed.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" {
		return ""
	}

	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.Index(d, ":"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")

	return strings.Trim(d, ".")
}

// MatchKey builds the cache key for match-stage results, keyed by
// normalized domain.
func MatchKey(domain string) string {
	return "match:" + NormalizeDomain(domain)
}

// DetailsKey builds the cache key for details-stage results, keyed by BvD ID.
func DetailsKey(bvdID string) string {
	return "details:" + strings.ToUpper(strings.TrimSpace(bvdID))
}
