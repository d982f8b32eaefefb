package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilare/vigilare/internal/httpapi"
	"github.com/vigilare/vigilare/internal/queryengine"
	"github.com/vigilare/vigilare/internal/store/crawlstore"
	"github.com/vigilare/vigilare/internal/store/searchstore"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	search, err := searchstore.Open(filepath.Join(t.TempDir(), "search.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { search.Close() })

	crawl, err := crawlstore.Open(filepath.Join(t.TempDir(), "crawl.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { crawl.Close() })

	require.NoError(t, search.UpsertDocument(searchstore.Document{
		URL:     "https://example.com/nginx",
		Title:   "nginx guide",
		Content: "how to install nginx",
	}))
	require.NoError(t, crawl.InsertFrontierIfAbsent("https://example.com/nginx", "example.com", 0))
	require.NoError(t, crawl.RecordVisited(crawlstore.VisitedRow{URL: "https://example.com/nginx"}, time.Now()))

	engine := queryengine.New(search, crawl)
	srv := httpapi.New(engine)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestHandleSearchReturnsJSONResults(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/search?q=nginx")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Query   string `json:"query"`
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "nginx", body.Query)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "https://example.com/nginx", body.Results[0].URL)
}

func TestHandleSuggestReturnsJSONArray(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/suggest?q=nginx")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var titles []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&titles))
	assert.Contains(t, titles, "nginx guide")
}

func TestHandleIconReturnsNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/icon/example.com")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimitReturns429WhenExceeded(t *testing.T) {
	ts := newTestServer(t)
	var last *http.Response
	for i := 0; i < 40; i++ {
		resp, err := http.Get(ts.URL + "/search?q=nginx")
		require.NoError(t, err)
		resp.Body.Close()
		last = resp
	}
	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode)
}
