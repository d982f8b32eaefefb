package ranking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/ranking"
)

func baseQC(terms ...string) ranking.QueryContext {
	return ranking.QueryContext{Groups: ranking.Expand(terms)}
}

func TestScoreRewardsLowerBM25Distance(t *testing.T) {
	now := time.Now()
	close := ranking.Candidate{URL: "https://example.com/a", BM25: 1, CrawledAt: now}
	far := ranking.Candidate{URL: "https://example.com/b", BM25: 19, CrawledAt: now}

	qc := baseQC("nginx")
	assert.Greater(t, ranking.Score(qc, close, now), ranking.Score(qc, far, now))
}

func TestScoreRewardsHigherPageRank(t *testing.T) {
	now := time.Now()
	hub := ranking.Candidate{URL: "https://example.com/", PageRank: 50_000, CrawledAt: now}
	leaf := ranking.Candidate{URL: "https://example.com/leaf", PageRank: 10, CrawledAt: now}

	qc := baseQC("nginx")
	assert.Greater(t, ranking.Score(qc, hub, now), ranking.Score(qc, leaf, now))
}

func TestScoreRewardsFreshness(t *testing.T) {
	now := time.Now()
	fresh := ranking.Candidate{URL: "https://example.com/a", CrawledAt: now}
	stale := ranking.Candidate{URL: "https://example.com/b", CrawledAt: now.Add(-365 * 24 * time.Hour)}

	qc := baseQC("nginx")
	assert.Greater(t, ranking.Score(qc, fresh, now), ranking.Score(qc, stale, now))
}

func TestScoreRewardsHighAuthorityTLD(t *testing.T) {
	now := time.Now()
	gov := ranking.Candidate{URL: "https://docs.example.gov/", CrawledAt: now}
	com := ranking.Candidate{URL: "https://docs.example.com/", CrawledAt: now}

	qc := baseQC("nginx")
	assert.Greater(t, ranking.Score(qc, gov, now), ranking.Score(qc, com, now))
}

func TestScorePenalizesDeepAndQueryStringURLs(t *testing.T) {
	now := time.Now()
	root := ranking.Candidate{URL: "https://example.com/", CrawledAt: now}
	deep := ranking.Candidate{URL: "https://example.com/a/b/c/d/e?x=1", CrawledAt: now}

	qc := baseQC("nginx")
	assert.Greater(t, ranking.Score(qc, root, now), ranking.Score(qc, deep, now))
}

func TestScoreRewardsTitleAndDescriptionHits(t *testing.T) {
	now := time.Now()
	hit := ranking.Candidate{URL: "https://example.com/a", Title: "Installing nginx", Description: "install guide", CrawledAt: now}
	miss := ranking.Candidate{URL: "https://example.com/b", Title: "Unrelated page", Description: "nothing here", CrawledAt: now}

	qc := baseQC("install", "nginx")
	assert.Greater(t, ranking.Score(qc, hit, now), ranking.Score(qc, miss, now))
}

func TestScoreAppliesFallbackPenalty(t *testing.T) {
	now := time.Now()
	c := ranking.Candidate{URL: "https://example.com/a", Title: "install nginx", CrawledAt: now}
	qc := baseQC("install", "nginx")

	primary := ranking.Score(qc, c, now)
	qc.IsFallback = true
	fallback := ranking.Score(qc, c, now)

	assert.InDelta(t, primary*config.FallbackScorePenalty, fallback, 1e-6)
}

func TestScoreRewardsSiteDirectiveMatch(t *testing.T) {
	now := time.Now()
	matching := ranking.Candidate{URL: "https://docs.example.com/guide", CrawledAt: now}
	other := ranking.Candidate{URL: "https://other.com/guide", CrawledAt: now}

	qc := baseQC("nginx")
	qc.SiteHost = "docs.example.com"

	assert.Greater(t, ranking.Score(qc, matching, now), ranking.Score(qc, other, now))
}

func TestDedupeDropsNormalizedDuplicateURLs(t *testing.T) {
	candidates := []ranking.Candidate{
		{URL: "https://www.example.com/docs/"},
		{URL: "http://example.com/docs"},
		{URL: "https://example.com/other"},
	}
	got := ranking.Dedupe(candidates)
	assert.Len(t, got, 2)
}

func TestApplyDiversityPenaltyDemotesRepeatedNetloc(t *testing.T) {
	results := []ranking.ScoredResult{
		{Candidate: ranking.Candidate{URL: "https://example.com/a"}, Score: 100},
		{Candidate: ranking.Candidate{URL: "https://example.com/b"}, Score: 99},
		{Candidate: ranking.Candidate{URL: "https://other.com/a"}, Score: 98},
	}
	got := ranking.ApplyDiversityPenalty(results)
	assert.Equal(t, "https://example.com/a", got[0].Candidate.URL)
	assert.Equal(t, "https://other.com/a", got[1].Candidate.URL)
}

func TestPaginateSlicesResults(t *testing.T) {
	results := make([]ranking.ScoredResult, config.ResultsPerPage+5)
	for i := range results {
		results[i] = ranking.ScoredResult{Score: float64(len(results) - i)}
	}
	page1 := ranking.Paginate(results, 1)
	page2 := ranking.Paginate(results, 2)

	assert.Len(t, page1, config.ResultsPerPage)
	assert.Len(t, page2, 5)
}

func TestPaginateOutOfRangeReturnsNil(t *testing.T) {
	results := make([]ranking.ScoredResult, 3)
	assert.Nil(t, ranking.Paginate(results, 5))
}
