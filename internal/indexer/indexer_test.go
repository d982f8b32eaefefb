package indexer

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
	"github.com/vigilare/vigilare/internal/store/searchstore"
	"github.com/vigilare/vigilare/internal/store/storagestore"
)

type fakeRecorder struct{}

func (fakeRecorder) RecordFetch(observability.FetchEvent) {}
func (fakeRecorder) RecordError(time.Time, string, string, observability.Cause, string, ...observability.Attribute) {
}
func (fakeRecorder) RecordEvent(string, string, ...observability.Attribute) {}

func noopPageRank(context.Context) error { return nil }

func newTestIndexer(t *testing.T) (*Indexer, *storagestore.Store, *crawlstore.Store, *searchstore.Store, string) {
	t.Helper()
	dir := t.TempDir()
	cursorPath := filepath.Join(dir, "indexer_state.txt")

	ix, err := newWithPaths(
		filepath.Join(dir, "storage.db"),
		filepath.Join(dir, "crawl.db"),
		filepath.Join(dir, "search.db"),
		cursorPath, noopPageRank, fakeRecorder{},
	)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	return ix, ix.storage, ix.crawl, ix.search, cursorPath
}

func insertStorageRow(t *testing.T, storage *storagestore.Store, url, text string) int64 {
	t.Helper()
	id, err := storage.Insert(storagestore.Row{
		URL:        url,
		ParsedText: text,
		CrawledAt:  time.Now(),
	})
	require.NoError(t, err)
	return id
}

func TestTickProcessesBatchAndAdvancesCursor(t *testing.T) {
	ix, storage, _, search, cursorPath := newTestIndexer(t)

	for i := 0; i < 1200; i++ {
		insertStorageRow(t, storage, "https://example.com/p"+strconv.Itoa(i), "hello world body text")
	}

	n, err := ix.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1200, n)

	content, _, err := search.ContentAndDescription("https://example.com/p0")
	require.NoError(t, err)
	assert.Contains(t, content, "hello world")

	cursor, err := readCursor(cursorPath)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), cursor)
}

func TestTickHysteresisGateSkipsSmallBatchWithinMaxWaitTime(t *testing.T) {
	ix, storage, _, _, _ := newTestIndexer(t)
	ix.lastProductive = time.Now()

	insertStorageRow(t, storage, "https://example.com/a", "short")

	n, err := ix.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTickProcessesSmallBatchAfterMaxWaitTimeElapses(t *testing.T) {
	ix, storage, _, _, _ := newTestIndexer(t)
	ix.lastProductive = time.Now().Add(-3 * time.Minute)

	insertStorageRow(t, storage, "https://example.com/a", "short body")

	n, err := ix.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTickTriggersPageRankAfterInterval(t *testing.T) {
	var called bool
	ix, storage, _, _, _ := newTestIndexer(t)
	ix.pageRank = func(context.Context) error { called = true; return nil }
	ix.lastPageRank = time.Now().Add(-11 * time.Minute)
	ix.lastProductive = time.Now().Add(-3 * time.Minute)

	insertStorageRow(t, storage, "https://example.com/a", "short body")

	_, err := ix.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, called)
}

func TestTickUpdatesLanguageForDetectedRows(t *testing.T) {
	ix, storage, crawl, _, _ := newTestIndexer(t)
	ix.lastProductive = time.Now().Add(-3 * time.Minute)

	longEnglish := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 10)
	require.NoError(t, crawl.InsertFrontierIfAbsent("https://example.com/a", "example.com", 0))
	require.NoError(t, crawl.RecordVisited(crawlstore.VisitedRow{URL: "https://example.com/a"}, time.Now()))
	insertStorageRow(t, storage, "https://example.com/a", longEnglish)

	_, err := ix.Tick(context.Background())
	require.NoError(t, err)

	row, ok, err := crawl.VisitedByURL("https://example.com/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, row.Language)
	assert.NotEqual(t, "unknown", row.Language)
}

func TestTickRecyclesConnectionsAfterThreshold(t *testing.T) {
	ix, storage, _, _, _ := newTestIndexer(t)
	ix.lastProductive = time.Now().Add(-3 * time.Minute)
	ix.batchesSinceRecycle = config.RecycleConnEvery

	insertStorageRow(t, storage, "https://example.com/a", "short body")

	n, err := ix.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, ix.batchesSinceRecycle)
}
