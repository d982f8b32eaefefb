package ranking

import (
	"regexp"
	"strings"

	"github.com/vigilare/vigilare/internal/config"
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// stopWords is the fixed set dropped during tokenisation; common English
// function words contribute no discriminating signal to a short query.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "on": {},
	"for": {}, "and": {}, "or": {}, "is": {}, "are": {}, "how": {}, "do": {},
	"does": {}, "what": {}, "with": {}, "this": {}, "that": {}, "can": {},
	"it": {}, "be": {}, "i": {}, "my": {},
}

// Tokenize lower-cases q, replaces non-alphanumerics with spaces, drops
// stop-words and single-character tokens, deduplicates while preserving
// first-occurrence order, and caps the result at MaxQueryTokens.
func Tokenize(q string) []string {
	if len(q) > config.MaxQueryLength {
		q = q[:config.MaxQueryLength]
	}
	lower := strings.ToLower(q)
	fields := nonAlnumRe.Split(lower, -1)

	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
		if len(out) >= config.MaxQueryTokens {
			break
		}
	}
	return out
}

// IsImplicitSiteToken reports whether a token looks like a bare hostname a
// user typed instead of a formal site: directive — contains a dot and is
// longer than 4 characters.
func IsImplicitSiteToken(token string) bool {
	return len(token) > 4 && strings.Contains(token, ".")
}
