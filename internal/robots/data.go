package robots

import (
	"net/url"
	"time"
)

type DecisionReason string

const (
	AllowedByRobots    DecisionReason = "allowed_by_robots"
	DisallowedByRobots DecisionReason = "disallowed_by_robots"
	NoRobotsFile       DecisionReason = "no_robots_file"
	AccessDenied       DecisionReason = "access_denied_treated_as_disallow_all"
)

// Decision is the fetcher's robots verdict for one URL.
type Decision struct {
	Url url.URL

	Allowed bool

	// Reason explains the verdict, for logging/debugging.
	Reason DecisionReason

	// CrawlDelay is an optional delay override taken from robots.txt.
	CrawlDelay *time.Duration
}
