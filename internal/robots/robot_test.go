package robots

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func TestCachedRobotAllowsAndDisallowsByPath(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("User-agent: *\nDisallow: /secret\n"))
	}))
	defer srv.Close()

	r := NewCachedRobot("vigilare-test")

	allowedURL := mustParseURL(t, srv.URL+"/ok")
	decision, err := r.Allowed(allowedURL)
	require.Nil(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, AllowedByRobots, decision.Reason)

	disallowedURL := mustParseURL(t, srv.URL+"/secret/x")
	decision, err = r.Allowed(disallowedURL)
	require.Nil(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, DisallowedByRobots, decision.Reason)

	// Both checks hit the same host; robots.txt must be fetched once.
	assert.Equal(t, 1, hits)
}

func TestCachedRobotTreats401AsAccessDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := NewCachedRobot("vigilare-test")
	decision, err := r.Allowed(mustParseURL(t, srv.URL+"/anything"))
	require.Nil(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, AccessDenied, decision.Reason)
}

func TestCachedRobotSurfacesCrawlDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nCrawl-delay: 2\nAllow: /\n"))
	}))
	defer srv.Close()

	r := NewCachedRobot("vigilare-test")
	decision, err := r.Allowed(mustParseURL(t, srv.URL+"/"))
	require.Nil(t, err)
	require.NotNil(t, decision.CrawlDelay)
	assert.Equal(t, 2*time.Second, *decision.CrawlDelay)
}

func TestCachedRobotPropagatesFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewCachedRobot("vigilare-test")
	_, err := r.Allowed(mustParseURL(t, srv.URL+"/"))
	require.NotNil(t, err)
	assert.True(t, err.Retryable)
}
