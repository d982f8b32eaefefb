// Package canon implements the URL canonicaliser shared by the dispatcher,
// the parser's link extraction step, and the Bloom filter.
//
// It generalizes pkg/urlutil.Canonicalize (scheme/host lowercasing, default
// port removal, trailing-slash stripping) with the remaining rules a crawl
// frontier needs: www-stripping, tracking-parameter removal, and rejection
// of non-http(s) schemes. The output is a single stable string, used both as
// the frontier's queue key and as Bloom filter input.
package canon

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/vigilare/vigilare/pkg/urlutil"
)

// ErrUnsupportedScheme is returned when the URL's scheme is not http or https.
type ErrUnsupportedScheme struct {
	Scheme string
}

func (e ErrUnsupportedScheme) Error() string {
	return fmt.Sprintf("canon: unsupported scheme %q", e.Scheme)
}

// trackingParams is the closed set of query parameters stripped during
// canonicalisation. Parameters not in this set are kept, sorted by key, so
// equivalent spellings of a URL still map to one canonical string.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"ref":          {},
	"mc_cid":       {},
	"mc_eid":       {},
}

// Canonicalize produces the canonical string form of rawURL, relative to
// base when rawURL is not absolute. It rejects non-http(s) schemes.
func Canonicalize(rawURL string, base *url.URL) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("canon: parse %q: %w", rawURL, err)
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	return CanonicalizeURL(*parsed)
}

// CanonicalizeURL applies the full canonicalisation contract to an already
// parsed URL and renders it to its canonical string form.
//
//   - Pure, deterministic, idempotent: Canonicalize(Canonicalize(u)) == Canonicalize(u).
//   - Scheme and host lowercased, default ports dropped, trailing "/" stripped.
//   - Leading "www." stripped from the host.
//   - Fragment dropped; tracking query parameters dropped; any surviving
//     parameters are kept, sorted by key, for URLs that are meaningfully
//     different without them (e.g. pagination, search parameters).
//   - Non-http(s) schemes are rejected.
func CanonicalizeURL(u url.URL) (string, error) {
	originalQuery := u.RawQuery

	// urlutil.Canonicalize drops the query wholesale; reapply the
	// tracking-aware filter afterward rather than losing it there.
	base := urlutil.Canonicalize(u)

	scheme := strings.ToLower(base.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrUnsupportedScheme{Scheme: base.Scheme}
	}
	base.Scheme = scheme

	base.Host = stripWWW(base.Hostname()) + portSuffix(base.Port())

	base.RawQuery = stripTracking(originalQuery)
	base.ForceQuery = false
	base.Fragment = ""
	base.RawFragment = ""

	return base.String(), nil
}

func stripWWW(host string) string {
	const prefix = "www."
	if strings.HasPrefix(host, prefix) && len(host) > len(prefix) {
		return host[len(prefix):]
	}
	return host
}

func portSuffix(port string) string {
	if port == "" {
		return ""
	}
	return ":" + port
}

// stripTracking removes tracking parameters from a raw query string,
// keeping any remaining parameters sorted by key for determinism.
func stripTracking(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	kept := url.Values{}
	for _, key := range keys {
		kept[key] = values[key]
	}
	return kept.Encode()
}
