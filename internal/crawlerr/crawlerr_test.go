package crawlerr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vigilare/vigilare/pkg/failure"
)

func TestHTTPStatusErrorRetryPolicy(t *testing.T) {
	assert.True(t, HTTPStatusError(503).Retryable())
	assert.True(t, HTTPStatusError(429).Retryable())
	assert.False(t, HTTPStatusError(404).Retryable())
	assert.False(t, HTTPStatusError(403).Retryable())
}

func TestPermanentClassIsNotRetryable(t *testing.T) {
	for _, err := range []*Error{NotHTML(), TooLargeHeader(), TooLargeBody(), RedirectLoop()} {
		assert.False(t, err.Retryable())
		assert.Equal(t, failure.SeverityFatal, err.Severity())
	}
}

func TestNetworkClassIsRetryable(t *testing.T) {
	for _, err := range []*Error{TimeoutConnect(), TimeoutDuringRead(), ConnectionError(), NetError("reset")} {
		assert.True(t, err.Retryable())
		assert.Equal(t, failure.SeverityRecoverable, err.Severity())
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "HTTP_503", HTTPStatusError(503).Error())
	assert.Equal(t, "NET_ERROR:connection reset", NetError("connection reset").Error())
	assert.Equal(t, "NOT_HTML", NotHTML().Error())
}
