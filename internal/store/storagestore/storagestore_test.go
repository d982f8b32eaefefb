package storagestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage.db")
	s, err := Open(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAssignsMonotonicRowID(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	id1, err := s.Insert(Row{URL: "https://example.com/a", ParsedText: "hello", CrawledAt: now})
	require.NoError(t, err)
	id2, err := s.Insert(Row{URL: "https://example.com/b", ParsedText: "world", CrawledAt: now})
	require.NoError(t, err)

	assert.Greater(t, id2, id1)
}

func TestInsertIsIdempotentByURL(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	id1, err := s.Insert(Row{URL: "https://example.com/a", ParsedText: "v1", CrawledAt: now})
	require.NoError(t, err)
	id2, err := s.Insert(Row{URL: "https://example.com/a", ParsedText: "v2", CrawledAt: now})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)

	max, err := s.MaxRowID()
	require.NoError(t, err)
	assert.Equal(t, id1, max)
}

func TestSelectBatchSkipsNullParsedTextAndOrdersByRowID(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	_, err := s.Insert(Row{URL: "https://example.com/a", ParsedText: "a", CrawledAt: now})
	require.NoError(t, err)
	_, err = s.Insert(Row{URL: "https://example.com/no-text", CrawledAt: now})
	require.NoError(t, err)
	_, err = s.Insert(Row{URL: "https://example.com/b", ParsedText: "b", CrawledAt: now})
	require.NoError(t, err)

	rows, err := s.SelectBatch(0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "https://example.com/a", rows[0].URL)
	assert.Equal(t, "https://example.com/b", rows[1].URL)
}

func TestSelectBatchRespectsCursorAndLimit(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	first, err := s.Insert(Row{URL: "https://example.com/a", ParsedText: "a", CrawledAt: now})
	require.NoError(t, err)
	_, err = s.Insert(Row{URL: "https://example.com/b", ParsedText: "b", CrawledAt: now})
	require.NoError(t, err)

	rows, err := s.SelectBatch(first, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://example.com/b", rows[0].URL)
}

func TestInsertPersistsParserDerivedFields(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	_, err := s.Insert(Row{
		URL:           "https://example.com/a",
		ParsedText:    "hello world",
		Title:         "Hello",
		Description:   "a greeting",
		H1:            "Hello",
		H2:            "World",
		ImportantText: "greeting important",
		CrawledAt:     now,
	})
	require.NoError(t, err)

	rows, err := s.SelectBatch(0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a greeting", rows[0].Description)
	assert.Equal(t, "Hello", rows[0].H1)
	assert.Equal(t, "World", rows[0].H2)
	assert.Equal(t, "greeting important", rows[0].ImportantText)
}

func TestMaxRowIDZeroWhenEmpty(t *testing.T) {
	s := openTestStore(t)
	max, err := s.MaxRowID()
	require.NoError(t, err)
	assert.Equal(t, int64(0), max)
}
