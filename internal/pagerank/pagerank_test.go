package pagerank

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
)

type fakeRecorder struct{}

func (fakeRecorder) RecordFetch(observability.FetchEvent) {}
func (fakeRecorder) RecordError(time.Time, string, string, observability.Cause, string, ...observability.Attribute) {
}
func (fakeRecorder) RecordEvent(string, string, ...observability.Attribute) {}

func openTestCrawl(t *testing.T) *crawlstore.Store {
	t.Helper()
	store, err := crawlstore.Open(filepath.Join(t.TempDir(), "crawl.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunScoresHubPageHigherThanLeaf(t *testing.T) {
	crawl := openTestCrawl(t)

	for _, u := range []string{"https://a.example/", "https://b.example/", "https://c.example/", "https://hub.example/"} {
		require.NoError(t, crawl.InsertFrontierIfAbsent(u, "example", 0))
		require.NoError(t, crawl.RecordVisited(crawlstore.VisitedRow{URL: u}, time.Now()))
	}

	require.NoError(t, crawl.InsertLinkGraphEdges([]crawlstore.LinkEdge{
		{SourceURL: "https://a.example/", TargetURL: "https://hub.example/"},
		{SourceURL: "https://b.example/", TargetURL: "https://hub.example/"},
		{SourceURL: "https://c.example/", TargetURL: "https://hub.example/"},
		{SourceURL: "https://hub.example/", TargetURL: "https://a.example/"},
	}))

	runner := New(crawl, fakeRecorder{}, 1)
	require.NoError(t, runner.Run(context.Background()))

	hub, ok, err := crawl.VisitedByURL("https://hub.example/")
	require.NoError(t, err)
	require.True(t, ok)

	b, ok, err := crawl.VisitedByURL("https://b.example/")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Greater(t, hub.PageRank, b.PageRank)
}

func TestRunNoEdgesIsNoop(t *testing.T) {
	crawl := openTestCrawl(t)
	runner := New(crawl, fakeRecorder{}, 1)
	assert.NoError(t, runner.Run(context.Background()))
}

func TestRunIgnoresSelfLoops(t *testing.T) {
	crawl := openTestCrawl(t)
	require.NoError(t, crawl.InsertFrontierIfAbsent("https://a.example/", "example", 0))
	require.NoError(t, crawl.RecordVisited(crawlstore.VisitedRow{URL: "https://a.example/"}, time.Now()))
	require.NoError(t, crawl.InsertLinkGraphEdges([]crawlstore.LinkEdge{
		{SourceURL: "https://a.example/", TargetURL: "https://a.example/"},
	}))

	runner := New(crawl, fakeRecorder{}, 1)
	assert.NoError(t, runner.Run(context.Background()))
}
