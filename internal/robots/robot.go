package robots

import (
	"net/url"
	"sync"
	"time"

	"github.com/vigilare/vigilare/internal/config"
)

/*
Robot is consulted by the fetcher pool before every download. It owns the
in-memory "domain -> (parser, fetched_at)" cache with a RobotsCacheTTL TTL:
a domain's robots.txt is fetched at most once per window, and the cached
result answers every URL on that domain until it expires.
*/

type Robot interface {
	Allowed(u url.URL) (Decision, *Error)
}

type cacheEntry struct {
	result    FetchResult
	fetchedAt time.Time
}

type CachedRobot struct {
	fetcher   *Fetcher
	userAgent string

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCachedRobot(userAgent string) *CachedRobot {
	return &CachedRobot{
		fetcher:   NewFetcher(userAgent),
		userAgent: userAgent,
		entries:   make(map[string]cacheEntry),
	}
}

// Allowed decides whether u may be fetched, fetching and caching robots.txt
// for u's host if the cached entry is missing or older than RobotsCacheTTL.
func (r *CachedRobot) Allowed(u url.URL) (Decision, *Error) {
	host := u.Hostname()

	result, fetchErr := r.resultFor(u.Scheme, host)
	if fetchErr != nil {
		return Decision{}, fetchErr
	}

	if result.disallowed {
		return Decision{Url: u, Allowed: false, Reason: AccessDenied}, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	allowed := result.data.TestAgent(path, r.userAgent)
	reason := DisallowedByRobots
	if allowed {
		reason = AllowedByRobots
	}

	var crawlDelay *time.Duration
	if group := result.data.FindGroup(r.userAgent); group != nil && group.CrawlDelay > 0 {
		d := group.CrawlDelay
		crawlDelay = &d
	}

	return Decision{Url: u, Allowed: allowed, Reason: reason, CrawlDelay: crawlDelay}, nil
}

func (r *CachedRobot) resultFor(scheme, host string) (FetchResult, *Error) {
	r.mu.Lock()
	entry, ok := r.entries[host]
	r.mu.Unlock()

	if ok && time.Since(entry.fetchedAt) < config.RobotsCacheTTL {
		return entry.result, nil
	}

	result, err := r.fetcher.Fetch(scheme, host)
	if err != nil {
		return FetchResult{}, err
	}

	r.mu.Lock()
	r.entries[host] = cacheEntry{result: result, fetchedAt: time.Now()}
	r.mu.Unlock()

	return result, nil
}

var _ Robot = (*CachedRobot)(nil)
