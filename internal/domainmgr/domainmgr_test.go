package domainmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vigilare/vigilare/internal/config"
)

func TestCheckOKByDefault(t *testing.T) {
	m := New()
	assert.Equal(t, VerdictOK, m.Check("example.com", 0))
}

func TestCheckRescheduleWithinCrawlDelay(t *testing.T) {
	m := New()
	m.MarkAccess("example.com")
	assert.Equal(t, VerdictReschedule, m.Check("example.com", 0))
}

func TestCheckOKAfterCrawlDelayElapses(t *testing.T) {
	fixed := time.Now()
	m := New()
	m.now = func() time.Time { return fixed }
	m.MarkAccess("example.com")

	m.now = func() time.Time { return fixed.Add(config.CrawlDelay + time.Millisecond) }
	assert.Equal(t, VerdictOK, m.Check("example.com", 0))
}

func TestPenaltyBoxAfterFailureThreshold(t *testing.T) {
	fixed := time.Now()
	m := New()
	m.now = func() time.Time { return fixed }

	for i := 0; i <= config.PenaltyBoxFailureThreshold; i++ {
		m.RecordFailure("flaky.example.com")
	}
	m.MarkAccess("flaky.example.com")

	assert.Equal(t, VerdictPenaltyRetry, m.Check("flaky.example.com", 0))
	assert.Equal(t, VerdictPenaltyFailed, m.Check("flaky.example.com", config.MaxRetryInPenaltyBox))
}

func TestPenaltyBoxExpiresAfterWindow(t *testing.T) {
	fixed := time.Now()
	m := New()
	m.now = func() time.Time { return fixed }

	for i := 0; i <= config.PenaltyBoxFailureThreshold; i++ {
		m.RecordFailure("flaky.example.com")
	}
	m.MarkAccess("flaky.example.com")

	m.now = func() time.Time { return fixed.Add(config.PenaltyBoxWindow + time.Second) }
	assert.Equal(t, VerdictOK, m.Check("flaky.example.com", 0))
}

func TestCapReachedWhenPageCountAtMax(t *testing.T) {
	m := New()
	for i := 0; i < config.MaxPagesPerDomain; i++ {
		m.RecordSuccess("big.example.com")
	}
	assert.Equal(t, VerdictCapReached, m.Check("big.example.com", 0))
}

func TestRecordSuccessResetsFailuresAndIncrementsPageCount(t *testing.T) {
	m := New()
	m.RecordFailure("example.com")
	m.RecordFailure("example.com")
	m.RecordSuccess("example.com")

	assert.Equal(t, 0, m.Failures("example.com"))
	assert.Equal(t, 1, m.PageCount("example.com"))
}
