package indexer

import (
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/vigilare/vigilare/internal/config"
)

var vocabTokenRe = regexp.MustCompile(`[a-z0-9]+`)

// deriveTitle picks title ?? first nonempty line of text ?? url, truncated
// to TitleMaxChars runes.
func deriveTitle(title, text, url string) string {
	candidate := strings.TrimSpace(title)
	if candidate == "" {
		candidate = firstNonemptyLine(text)
	}
	if candidate == "" {
		candidate = url
	}
	return truncateRunes(candidate, config.TitleMaxChars)
}

func firstNonemptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// detectLanguage tags text as "unknown" when it is too short to detect
// reliably, sampling only its leading LanguageDetectSampleChars otherwise.
func detectLanguage(text string) string {
	if len(text) <= config.LanguageDetectMinChars {
		return "unknown"
	}

	sample := text
	if len(sample) > config.LanguageDetectSampleChars {
		sample = sample[:config.LanguageDetectSampleChars]
	}

	info := whatlanggo.Detect(sample)
	if info.Lang == whatlanggo.Und {
		return "unknown"
	}

	iso := info.Lang.Iso6391()
	if iso == "" {
		return "unknown"
	}
	return iso
}

// vocabTerms lower-cases and regex-tokenises s, returning the distinct
// terms it contains — the indexer's unit of search_vocab accumulation is
// one document-frequency increment per term per document, not raw term
// frequency.
func vocabTerms(s string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, term := range vocabTokenRe.FindAllString(strings.ToLower(s), -1) {
		terms[term] = struct{}{}
	}
	return terms
}
