package queryengine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vigilare/vigilare/internal/store/crawlstore"
	"github.com/vigilare/vigilare/internal/store/searchstore"
)

func newEngineForSuggestion(t *testing.T) *Engine {
	t.Helper()
	search, err := searchstore.Open(filepath.Join(t.TempDir(), "search.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { search.Close() })

	crawl, err := crawlstore.Open(filepath.Join(t.TempDir(), "crawl.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { crawl.Close() })

	return New(search, crawl)
}

func TestSuggestCorrectionFixesTypoAgainstVocab(t *testing.T) {
	e := newEngineForSuggestion(t)
	require.NoError(t, e.search.UpsertVocab(map[string]int{"nginx": 5}))

	corrected, changed := e.suggestCorrection([]string{"nginxx"})
	require.True(t, changed)
	require.Equal(t, []string{"nginx"}, corrected)
}

func TestSuggestCorrectionLeavesKnownTermUnchanged(t *testing.T) {
	e := newEngineForSuggestion(t)
	require.NoError(t, e.search.UpsertVocab(map[string]int{"nginx": 5}))

	corrected, changed := e.suggestCorrection([]string{"nginx"})
	require.False(t, changed)
	require.Equal(t, []string{"nginx"}, corrected)
}

func TestSuggestCorrectionLeavesUncorrectableTermUnchanged(t *testing.T) {
	e := newEngineForSuggestion(t)
	require.NoError(t, e.search.UpsertVocab(map[string]int{"nginx": 5}))

	corrected, changed := e.suggestCorrection([]string{"zzzzznotaword"})
	require.False(t, changed)
	require.Equal(t, []string{"zzzzznotaword"}, corrected)
}
