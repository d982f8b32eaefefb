package robots

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/temoto/robotstxt"
)

/*
Fetcher

Fetches robots.txt once per domain and parses it with temoto/robotstxt.
Per spec §4.2 step 2: 401/403 denies everything; any other >=400 allows
everything; 2xx is parsed; a network failure is retryable.
*/

// FetchResult is a parsed robots.txt ready for per-URL decisions.
type FetchResult struct {
	data       *robotstxt.RobotsData
	disallowed bool // true only for 401/403: every path is disallowed
}

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewFetcher(userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  userAgent,
	}
}

// maxRobotsBody bounds how much of a robots.txt response is read.
const maxRobotsBody = 500 * 1024

// Fetch retrieves and parses robots.txt for scheme://hostname, once. The
// caller (Robot) is responsible for the 24h TTL.
func (f *Fetcher) Fetch(scheme, hostname string) (FetchResult, *Error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, hostname)

	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		return FetchResult{}, &Error{Message: err.Error(), Retryable: false, Cause: ErrCausePreFetchFailure}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, &Error{Message: err.Error(), Retryable: true, Cause: ErrCauseHttpFetchFailure}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return FetchResult{disallowed: true}, nil

	case resp.StatusCode >= 500:
		return FetchResult{}, &Error{
			Message:   fmt.Sprintf("server error %d fetching %s", resp.StatusCode, robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpServerError,
		}

	case resp.StatusCode >= 400:
		// Any other 4xx: no robots.txt restrictions apply.
		return FetchResult{data: allowAllData()}, nil

	default:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
		if err != nil {
			return FetchResult{}, &Error{Message: err.Error(), Retryable: true, Cause: ErrCauseParseError}
		}
		data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
		if err != nil {
			return FetchResult{}, &Error{Message: err.Error(), Retryable: false, Cause: ErrCauseParseError}
		}
		return FetchResult{data: data}, nil
	}
}

// allowAllData parses an empty document, which temoto/robotstxt treats as
// "no restrictions."
func allowAllData() *robotstxt.RobotsData {
	data, _ := robotstxt.FromBytes(nil)
	return data
}
