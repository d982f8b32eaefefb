// Package domainmgr tracks per-domain crawl state: last access time,
// consecutive failures, and page count. It is the sole authority the
// fetcher pool consults before downloading a URL, deciding between
// proceeding, rescheduling (politeness), penalty-boxing, or capping a
// domain as completed.
package domainmgr

import (
	"sync"
	"time"

	"github.com/vigilare/vigilare/internal/config"
)

// Verdict is the fetcher's next action for a given URL, decided by
// consulting the domain's state.
type Verdict int

const (
	// VerdictOK means the fetcher should proceed to download.
	VerdictOK Verdict = iota
	// VerdictCapReached means page_count >= MaxPagesPerDomain: treat the
	// URL as completed without fetching it.
	VerdictCapReached
	// VerdictPenaltyRetry means the domain is in the penalty box but the
	// URL has retries left.
	VerdictPenaltyRetry
	// VerdictPenaltyFailed means the domain is in the penalty box and the
	// URL has exhausted its retries.
	VerdictPenaltyFailed
	// VerdictReschedule means the domain was accessed too recently;
	// politeness requires a delay.
	VerdictReschedule
)

type domainState struct {
	mu         sync.Mutex
	lastAccess time.Time
	failures   int
	pageCount  int
}

// Manager is the process-wide per-domain state map. A Manager is shared by
// every fetcher goroutine.
type Manager struct {
	mapMu   sync.RWMutex
	domains map[string]*domainState
	now     func() time.Time
}

// New builds an empty Manager.
func New() *Manager {
	return &Manager{domains: make(map[string]*domainState), now: time.Now}
}

func (m *Manager) stateFor(domain string) *domainState {
	m.mapMu.RLock()
	st, ok := m.domains[domain]
	m.mapMu.RUnlock()
	if ok {
		return st
	}

	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	if st, ok := m.domains[domain]; ok {
		return st
	}
	st = &domainState{}
	m.domains[domain] = st
	return st
}

// Check consults domain state and returns the fetcher's next action for a
// URL currently at the given retry_count, per spec §4.2 step 1.
func (m *Manager) Check(domain string, retryCount int) Verdict {
	st := m.stateFor(domain)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.pageCount >= config.MaxPagesPerDomain {
		return VerdictCapReached
	}

	now := m.now()
	if st.failures > config.PenaltyBoxFailureThreshold && now.Sub(st.lastAccess) < config.PenaltyBoxWindow {
		if retryCount >= config.MaxRetryInPenaltyBox {
			return VerdictPenaltyFailed
		}
		return VerdictPenaltyRetry
	}

	if !st.lastAccess.IsZero() && now.Sub(st.lastAccess) < config.CrawlDelay {
		return VerdictReschedule
	}

	return VerdictOK
}

// MarkAccess records that domain was just accessed, ahead of an actual
// download, under the per-domain mutex.
func (m *Manager) MarkAccess(domain string) {
	st := m.stateFor(domain)
	st.mu.Lock()
	st.lastAccess = m.now()
	st.mu.Unlock()
}

// RecordSuccess clears the failure counter and increments page_count.
func (m *Manager) RecordSuccess(domain string) {
	st := m.stateFor(domain)
	st.mu.Lock()
	st.failures = 0
	st.pageCount++
	st.mu.Unlock()
}

// RecordFailure increments the failure counter.
func (m *Manager) RecordFailure(domain string) {
	st := m.stateFor(domain)
	st.mu.Lock()
	st.failures++
	st.mu.Unlock()
}

// PageCount reports a domain's current page_count, for tests and metrics.
func (m *Manager) PageCount(domain string) int {
	st := m.stateFor(domain)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.pageCount
}

// Failures reports a domain's current failure count.
func (m *Manager) Failures(domain string) int {
	st := m.stateFor(domain)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.failures
}
