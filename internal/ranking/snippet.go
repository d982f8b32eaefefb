package ranking

import (
	"regexp"
	"sort"
	"strings"
)

const (
	snippetWindowChars  = 300
	snippetScanChars    = 5000
	descriptionFallback = 250
)

// Snippet extracts a window of content around the densest cluster of query
// terms, falling back to the description (or the start of the content) when
// no terms are found.
func Snippet(content, description string, terms []string) string {
	scan := content
	if len(scan) > snippetScanChars {
		scan = scan[:snippetScanChars]
	}

	start, hits := bestWindow(scan, terms, snippetWindowChars)
	if hits == 0 {
		if description != "" {
			return truncateWithEllipsis(description, descriptionFallback)
		}
		return truncateWithEllipsis(content, descriptionFallback)
	}

	end := start + snippetWindowChars
	if end > len(scan) {
		end = len(scan)
	}
	window := scan[start:end]
	return boldTerms(strings.TrimSpace(window), terms)
}

// boldTerms wraps every case-insensitive occurrence of any term in <b>
// tags, in one combined pass so overlapping terms never nest or split an
// already-bolded match. Terms are ordered longest-first so that, when two
// terms match at the same position, the longer one wins.
func boldTerms(text string, terms []string) string {
	sorted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t != "" {
			sorted = append(sorted, t)
		}
	}
	if len(sorted) == 0 {
		return text
	}
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	alternatives := make([]string, len(sorted))
	for i, t := range sorted {
		alternatives[i] = regexp.QuoteMeta(t)
	}
	re, err := regexp.Compile("(?i)(" + strings.Join(alternatives, "|") + ")")
	if err != nil {
		return text
	}
	return re.ReplaceAllString(text, "<b>$1</b>")
}

// bestWindow slides a fixed-size window over text and returns the offset
// that maximizes the count of (case-insensitive) term occurrences inside
// it, plus that count.
func bestWindow(text string, terms []string, windowSize int) (int, int) {
	if len(text) <= windowSize {
		return 0, countOccurrences(strings.ToLower(text), terms)
	}

	lower := strings.ToLower(text)
	bestStart, bestHits := 0, 0
	step := windowSize / 4
	if step == 0 {
		step = 1
	}
	for start := 0; start+windowSize <= len(lower); start += step {
		hits := countOccurrences(lower[start:start+windowSize], terms)
		if hits > bestHits {
			bestHits = hits
			bestStart = start
		}
	}
	return bestStart, bestHits
}

func countOccurrences(lowerText string, terms []string) int {
	count := 0
	for _, t := range terms {
		count += strings.Count(lowerText, strings.ToLower(t))
	}
	return count
}

func truncateWithEllipsis(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}
