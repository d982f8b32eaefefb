// Package ranking implements the query engine's multi-signal scorer:
// tokenisation, synonym expansion, FTS query construction, scoring,
// diversity penalty, de-duplication, and snippet extraction. None of this
// package touches storage directly — it operates on data the query engine
// has already fetched.
package ranking

import (
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/vigilare/vigilare/internal/config"
)

// QueryContext carries everything about the user's query a Candidate is
// scored against.
type QueryContext struct {
	Groups         []Group
	SiteHost       string // non-empty when a site: directive (or implicit site token) was parsed
	AcceptLanguage string
	IsFallback     bool
}

// Candidate is one document being scored, joined from Search and visited.
type Candidate struct {
	URL         string
	Title       string
	Description string
	Content     string
	BM25        float64
	DomainRank  int
	PageRank    int64 // scaled by config.PageRankScale, as stored in visited.page_rank
	CrawledAt   time.Time
	Language    string
}

// Score computes a Candidate's final rank score for the given query, before
// the diversity penalty (applied once across the whole result set).
func Score(qc QueryContext, c Candidate, now time.Time) float64 {
	score := 100.0
	score += bm25Contribution(c.BM25)
	score += domainAuthorityContribution(c.DomainRank)
	score += pageRankContribution(c.PageRank)
	score += freshnessContribution(c.CrawledAt, now)
	score += tldContribution(c.URL)
	score += urlQualityContribution(c.URL)
	score += languageContribution(c.Language, qc.AcceptLanguage)
	score += fieldHitsContribution(qc, c)
	score += proximityContribution(qc, c)
	score += intentNavContribution(qc, c)
	score += siteBrandContribution(qc, c)

	if qc.IsFallback {
		score *= config.FallbackScorePenalty
	}
	return score
}

func bm25Contribution(bm25 float64) float64 {
	return math.Max(0, (20-bm25)*2)
}

func domainAuthorityContribution(domainRank int) float64 {
	return math.Min(60, 160/(1+math.Log10(float64(domainRank)+10)))
}

func pageRankContribution(scaled int64) float64 {
	pr := float64(scaled) / config.PageRankScale
	return math.Log(pr*10+1) * 15
}

func freshnessContribution(crawledAt, now time.Time) float64 {
	ageDays := now.Sub(crawledAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return 25 * math.Exp(-ageDays/200)
}

var highAuthorityTLDs = map[string]struct{}{"gov": {}, "edu": {}, "org": {}}
var midAuthorityTLDs = map[string]struct{}{"io": {}, "dev": {}, "net": {}}

func tldContribution(rawURL string) float64 {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	host := u.Hostname()
	idx := strings.LastIndex(host, ".")
	if idx < 0 {
		return 0
	}
	tld := host[idx+1:]
	if _, ok := highAuthorityTLDs[tld]; ok {
		return 15
	}
	if _, ok := midAuthorityTLDs[tld]; ok {
		return 8
	}
	return 0
}

func urlQualityContribution(rawURL string) float64 {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return 12
	}

	tokens := strings.Split(path, "/")
	score := 0.0
	if depth := len(tokens); depth > 3 {
		score -= 4 * float64(depth-3)
	}
	if u.RawQuery != "" {
		score -= 12
	}
	bonus := 2 * len(tokens)
	if bonus > 10 {
		bonus = 10
	}
	score += float64(bonus)
	return score
}

func languageContribution(docLanguage, acceptLanguage string) float64 {
	if acceptLanguage == "" || docLanguage == "" || docLanguage == "unknown" {
		return 0
	}
	primary := strings.ToLower(strings.SplitN(acceptLanguage, ",", 2)[0])
	primary = strings.TrimSpace(strings.SplitN(primary, ";", 2)[0])
	doc := strings.ToLower(docLanguage)

	if doc == primary {
		return 40
	}
	if len(doc) > 0 && len(primary) > 0 && doc[0] == primary[0] {
		return 8
	}
	return -10
}

// fieldHitsContribution rewards exact phrase matches and saturating
// per-field hit sums across title, description, and url.
func fieldHitsContribution(qc QueryContext, c Candidate) float64 {
	phrase := strings.Join(baseTerms(qc.Groups), " ")
	titleLower := strings.ToLower(c.Title)
	descLower := strings.ToLower(c.Description)

	score := 0.0
	if phrase != "" && strings.Contains(titleLower, phrase) {
		score += 90
	}
	if phrase != "" && strings.Contains(descLower, phrase) {
		score += 50
	}

	titleHits, descHits, urlHits := 0.0, 0.0, 0.0
	urlLower := strings.ToLower(c.URL)
	for _, g := range qc.Groups {
		for _, term := range g.Terms() {
			w := g.Weight
			if term != g.Base {
				w = g.VariantWeight()
			}
			if strings.Contains(titleLower, term) {
				titleHits += w
			}
			if strings.Contains(descLower, term) {
				descHits += w
			}
			if strings.Contains(urlLower, term) {
				urlHits += w
			}
		}
	}

	score += math.Min(70, titleHits)
	score += math.Min(35, descHits)
	score += math.Min(30, urlHits)
	return score
}

// proximityContribution rewards a tight positional span of the query's
// base terms, weighted higher when that span sits in the title than in
// the description.
func proximityContribution(qc QueryContext, c Candidate) float64 {
	terms := baseTerms(qc.Groups)
	if len(terms) < 2 {
		return 0
	}

	titleSpan := positionalSpanScore(c.Title, terms)
	descSpan := positionalSpanScore(c.Description, terms)
	return titleSpan*1.6 + descSpan*1.0
}

// positionalSpanScore finds the tightest window (in words) containing the
// most distinct query terms, and scores it higher the more terms it packs
// into a shorter span.
func positionalSpanScore(text string, terms []string) float64 {
	words := nonAlnumRe.Split(strings.ToLower(text), -1)
	if len(words) == 0 {
		return 0
	}
	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[t] = struct{}{}
	}

	var positions []int
	for i, w := range words {
		if _, ok := termSet[w]; ok {
			positions = append(positions, i)
		}
	}
	if len(positions) < 2 {
		return 0
	}

	best := 0.0
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			span := positions[j] - positions[i] + 1
			distinct := make(map[string]struct{}, j-i+1)
			for k := i; k <= j; k++ {
				distinct[words[positions[k]]] = struct{}{}
			}
			distinctCount := len(distinct)
			candidate := float64(distinctCount) * 10 / float64(span)
			if candidate > best {
				best = candidate
			}
		}
	}
	return best
}

// intentNavContribution rewards short navigational queries whose only
// term (or term pair) appears as a slug in the candidate's host.
func intentNavContribution(qc QueryContext, c Candidate) float64 {
	if len(qc.Groups) == 0 || len(qc.Groups) > 2 {
		return 0
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return 0
	}
	host := strings.ToLower(u.Hostname())
	for _, g := range qc.Groups {
		if strings.Contains(host, g.Base) {
			return 180
		}
	}
	return 0
}

// siteBrandContribution rewards a site: directive host match, or a query
// that equals the candidate's registered domain as a brand name. An
// explicit site: match outranks an inferred brand match off the root page.
func siteBrandContribution(qc QueryContext, c Candidate) float64 {
	u, err := url.Parse(c.URL)
	if err != nil {
		return 0
	}
	host := strings.ToLower(u.Hostname())
	isRoot := strings.Trim(u.Path, "/") == ""

	siteMatch := qc.SiteHost != "" && (host == qc.SiteHost || strings.HasSuffix(host, "."+qc.SiteHost))
	brandMatch := false
	if !siteMatch {
		brand := registeredDomainLabel(host)
		for _, g := range qc.Groups {
			if g.Base == brand {
				brandMatch = true
				break
			}
		}
	}

	if !siteMatch && !brandMatch {
		return 0
	}
	if isRoot {
		return 240
	}
	if siteMatch {
		return 80
	}
	return 40
}

// registeredDomainLabel returns the second-level label of a host, e.g.
// "example" from "docs.example.com".
func registeredDomainLabel(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	return labels[len(labels)-2]
}

func baseTerms(groups []Group) []string {
	terms := make([]string, 0, len(groups))
	for _, g := range groups {
		terms = append(terms, g.Base)
	}
	return terms
}

// ApplyDiversityPenalty walks results in descending score order, charging
// each candidate DiversityPenalty points for every prior result sharing its
// netloc, then re-sorts. A single pass, applied exactly once.
func ApplyDiversityPenalty(results []ScoredResult) []ScoredResult {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	seen := make(map[string]int)
	for i := range results {
		netloc := hostOf(results[i].Candidate.URL)
		results[i].Score -= float64(config.DiversityPenalty) * float64(seen[netloc])
		seen[netloc]++
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// ScoredResult pairs a Candidate with its computed score.
type ScoredResult struct {
	Candidate Candidate
	Score     float64
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// Dedupe drops candidates whose URL, normalized (lower-cased, stripped of
// a leading scheme and optional www., and any trailing slash), duplicates
// an earlier candidate's normalized form.
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := normalizeForDedupe(c.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func normalizeForDedupe(rawURL string) string {
	lower := strings.ToLower(rawURL)
	lower = strings.TrimPrefix(lower, "https://")
	lower = strings.TrimPrefix(lower, "http://")
	lower = strings.TrimPrefix(lower, "www.")
	lower = strings.TrimSuffix(lower, "/")
	return lower
}

// Paginate slices results into the page (1-indexed) of config.ResultsPerPage
// results requested.
func Paginate(results []ScoredResult, page int) []ScoredResult {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * config.ResultsPerPage
	if start >= len(results) {
		return nil
	}
	end := start + config.ResultsPerPage
	if end > len(results) {
		end = len(results)
	}
	return results[start:end]
}
