package queryengine

import (
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

const spellingSuggestionCutoff = 0.75

// suggestCorrection looks up each of terms against search_vocab; any term
// already known is left alone. For an unknown term, it fetches vocab
// entries sharing its first letter and keeps the closest by Levenshtein
// ratio, provided that ratio clears spellingSuggestionCutoff. It returns
// the corrected term list and whether any correction was made.
func (e *Engine) suggestCorrection(terms []string) ([]string, bool) {
	corrected := make([]string, len(terms))
	changed := false

	for i, term := range terms {
		corrected[i] = term

		known, err := e.search.HasTerm(term)
		if err != nil || known || term == "" {
			continue
		}

		candidates, err := e.search.VocabTermsByPrefix(term[:1], 50)
		if err != nil || len(candidates) == 0 {
			continue
		}

		best, bestRatio := "", 0.0
		for _, c := range candidates {
			ratio := levenshtein.RatioForStrings([]rune(term), []rune(c), levenshtein.DefaultOptions)
			if ratio > bestRatio {
				bestRatio = ratio
				best = c
			}
		}

		if best != "" && bestRatio >= spellingSuggestionCutoff {
			corrected[i] = best
			changed = true
		}
	}

	return corrected, changed
}
