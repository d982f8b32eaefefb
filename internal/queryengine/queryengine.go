// Package queryengine implements the search request pipeline: input
// normalisation, tokenisation and synonym expansion, FTS candidate
// retrieval with OR-fallback, rescoring, diversity, pagination, and
// snippet extraction. It is the only consumer of internal/ranking that
// also talks to storage.
package queryengine

import (
	"context"
	"strings"
	"time"

	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/ranking"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
	"github.com/vigilare/vigilare/internal/store/searchstore"
)

// Engine holds the two read-only stores the query pipeline joins across.
type Engine struct {
	search *searchstore.Store
	crawl  *crawlstore.Store
	now    func() time.Time
}

func New(search *searchstore.Store, crawl *crawlstore.Store) *Engine {
	return &Engine{search: search, crawl: crawl, now: time.Now}
}

// Result is one ranked hit returned to the caller.
type Result struct {
	URL     string
	Title   string
	Snippet string
	Score   float64
}

// Response is the full outcome of a Search call.
type Response struct {
	Results      []Result
	Page         int
	TotalFound   int
	Suggestion   string // rewritten query, set only when a spelling correction was applied
	UsedFallback bool
}

// Search runs the full query pipeline for q, returning page (1-indexed) of
// results. acceptLanguage only adjusts scores; results in other languages
// are not filtered out.
func (e *Engine) Search(ctx context.Context, q, acceptLanguage string, page int) (Response, error) {
	if len(q) > config.MaxQueryLength {
		q = q[:config.MaxQueryLength]
	}

	remaining, siteHost := extractSiteDirective(q)
	terms := ranking.Tokenize(remaining)
	if len(terms) == 0 {
		return Response{Page: page}, nil
	}

	groups := ranking.Expand(terms)

	andQuery := ranking.BuildFTSQuery(groups, "AND")
	candidates, err := e.search.SelectCandidates(andQuery, config.CandidatePoolSize)
	if err != nil {
		return Response{}, err
	}

	usedFallback := false
	var suggestion string

	if len(candidates) < config.MinHitsBeforeFallback {
		if len(terms) > 1 {
			orQuery := ranking.BuildFTSQuery(groups, "OR")
			fallbackCandidates, err := e.search.SelectCandidates(orQuery, config.CandidatePoolSize)
			if err != nil {
				return Response{}, err
			}
			candidates = fallbackCandidates
			usedFallback = true
		}

		corrected, changed := e.suggestCorrection(terms)
		if changed {
			suggestion = strings.Join(corrected, " ")
		}
	}

	results, err := e.scoreCandidates(ctx, groups, siteHost, acceptLanguage, usedFallback, candidates)
	if err != nil {
		return Response{}, err
	}

	scoredTotal := len(results)
	page = normalizePage(page)
	pageResults := ranking.Paginate(results, page)

	out := make([]Result, 0, len(pageResults))
	for _, r := range pageResults {
		out = append(out, Result{
			URL:     r.Candidate.URL,
			Title:   r.Candidate.Title,
			Snippet: ranking.Snippet(r.Candidate.Content, r.Candidate.Description, terms),
			Score:   r.Score,
		})
	}

	return Response{
		Results:      out,
		Page:         page,
		TotalFound:   scoredTotal,
		Suggestion:   suggestion,
		UsedFallback: usedFallback,
	}, nil
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// scoreCandidates joins FTS candidates against Search documents and
// visited metadata, de-duplicates, scores, and applies the diversity
// penalty.
func (e *Engine) scoreCandidates(ctx context.Context, groups []ranking.Group, siteHost, acceptLanguage string, isFallback bool, candidates []searchstore.Candidate) ([]ranking.ScoredResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	urls := make([]string, len(candidates))
	bm25ByURL := make(map[string]float64, len(candidates))
	for i, c := range candidates {
		urls[i] = c.URL
		bm25ByURL[c.URL] = c.BM25
	}

	docs, err := e.search.DocumentsByURLs(urls)
	if err != nil {
		return nil, err
	}
	visited, err := e.crawl.VisitedByURLs(urls)
	if err != nil {
		return nil, err
	}

	rankCandidates := make([]ranking.Candidate, 0, len(urls))
	for _, u := range urls {
		doc := docs[u]
		v := visited[u]
		rankCandidates = append(rankCandidates, ranking.Candidate{
			URL:         u,
			Title:       doc.Title,
			Description: doc.Description,
			Content:     doc.Content,
			BM25:        bm25ByURL[u],
			DomainRank:  v.DomainRank,
			PageRank:    v.PageRank,
			CrawledAt:   v.CrawledAt,
			Language:    v.Language,
		})
	}

	deduped := ranking.Dedupe(rankCandidates)

	qc := ranking.QueryContext{
		Groups:         groups,
		SiteHost:       siteHost,
		AcceptLanguage: acceptLanguage,
		IsFallback:     isFallback,
	}

	now := e.now()
	scored := make([]ranking.ScoredResult, 0, len(deduped))
	for _, c := range deduped {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		scored = append(scored, ranking.ScoredResult{Candidate: c, Score: ranking.Score(qc, c, now)})
	}

	return ranking.ApplyDiversityPenalty(scored), nil
}

// Suggest implements the /suggest endpoint: up to SuggestionMaxResults
// titles whose text contains the prefix.
func (e *Engine) Suggest(prefix string) ([]string, error) {
	return e.search.SuggestTitles(prefix, config.SuggestionMaxResults)
}
