package ranking_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/ranking"
)

func TestTokenizeLowercasesSplitsAndDedupes(t *testing.T) {
	got := ranking.Tokenize("How do I install Install nginx?")
	assert.Equal(t, []string{"install", "nginx"}, got)
}

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	got := ranking.Tokenize("is a to it")
	assert.Empty(t, got)
}

func TestTokenizeCapsAtMaxQueryTokens(t *testing.T) {
	q := "alpha beta gamma delta epsilon zeta eta theta iota"
	got := ranking.Tokenize(q)
	assert.Len(t, got, config.MaxQueryTokens)
}

func TestTokenizeTruncatesOverlongQuery(t *testing.T) {
	q := strings.Repeat("x", config.MaxQueryLength+50) + " trailingword"
	got := ranking.Tokenize(q)
	for _, tok := range got {
		assert.NotEqual(t, "trailingword", tok)
	}
}

func TestIsImplicitSiteToken(t *testing.T) {
	assert.True(t, ranking.IsImplicitSiteToken("example.com"))
	assert.False(t, ranking.IsImplicitSiteToken("a.b"))
	assert.False(t, ranking.IsImplicitSiteToken("install"))
}

func TestSynonymsOfReturnsGroupMates(t *testing.T) {
	got := ranking.SynonymsOf("install")
	assert.ElementsMatch(t, []string{"setup", "configure"}, got)
}

func TestSynonymsOfUnknownTermReturnsNil(t *testing.T) {
	assert.Nil(t, ranking.SynonymsOf("zzzznotaword"))
}

func TestExpandAttachesSynonymsAndWeight(t *testing.T) {
	groups := ranking.Expand([]string{"install", "nginx"})
	assert.Len(t, groups, 2)
	assert.Equal(t, "install", groups[0].Base)
	assert.ElementsMatch(t, []string{"setup", "configure"}, groups[0].Variants)
	assert.Greater(t, groups[0].Weight, 1.0)
	assert.InDelta(t, groups[0].Weight/2, groups[0].VariantWeight(), 1e-9)
}

func TestBuildFTSQueryJoinsGroupsWithOperator(t *testing.T) {
	groups := ranking.Expand([]string{"install"})
	q := ranking.BuildFTSQuery(groups, "AND")
	assert.Contains(t, q, `"install" OR "install"*`)
	assert.Contains(t, q, `"setup" OR "setup"*`)

	multi := ranking.Expand([]string{"install", "nginx"})
	joined := ranking.BuildFTSQuery(multi, "OR")
	assert.Contains(t, joined, ") OR (")
}
