// Package ratewindow implements the query engine's per-client-IP rate
// limit: a rolling window of N requests per window, backed by
// golang.org/x/time/rate, bounded by a tracked-IP ceiling.
package ratewindow

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Window tracks one rate.Limiter per client IP. Once more than maxTracked
// distinct IPs have been seen, the whole table is cleared rather than
// evicting individually — a deliberate trade favoring a simple, bounded
// memory footprint over per-IP fairness across the reset.
type Window struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	requests   int
	window     time.Duration
	maxTracked int
}

func New(requests int, window time.Duration, maxTracked int) *Window {
	return &Window{
		limiters:   make(map[string]*rate.Limiter),
		requests:   requests,
		window:     window,
		maxTracked: maxTracked,
	}
}

// Allow reports whether ip may make another request right now, creating
// its limiter on first sight.
func (w *Window) Allow(ip string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	limiter, ok := w.limiters[ip]
	if !ok {
		if len(w.limiters) >= w.maxTracked {
			w.limiters = make(map[string]*rate.Limiter)
		}
		every := w.window / time.Duration(w.requests)
		limiter = rate.NewLimiter(rate.Every(every), w.requests)
		w.limiters[ip] = limiter
	}
	return limiter.Allow()
}

// Tracked reports how many distinct IPs currently have a limiter, for
// tests and diagnostics.
func (w *Window) Tracked() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.limiters)
}
