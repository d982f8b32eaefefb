package queryengine

import (
	"strings"

	"github.com/vigilare/vigilare/internal/ranking"
)

// extractSiteDirective pulls a site:<host> directive (explicit or
// implicit) out of the raw query, returning the remaining query text and
// the extracted host (lower-cased, empty if none was found).
func extractSiteDirective(q string) (remaining, host string) {
	fields := strings.Fields(q)
	kept := fields[:0:0]

	for _, f := range fields {
		lower := strings.ToLower(f)
		if strings.HasPrefix(lower, "site:") {
			host = strings.TrimPrefix(lower, "site:")
			continue
		}
		kept = append(kept, f)
	}

	if host == "" {
		for i, f := range kept {
			if ranking.IsImplicitSiteToken(strings.ToLower(f)) {
				host = strings.ToLower(f)
				kept = append(kept[:i], kept[i+1:]...)
				break
			}
		}
	}

	return strings.Join(kept, " "), host
}
