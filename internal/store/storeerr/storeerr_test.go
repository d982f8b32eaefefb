package storeerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCodeError stands in for modernc.org/sqlite's error type, which
// exposes Code() int.
type fakeCodeError struct {
	code int
}

func (e *fakeCodeError) Error() string { return fmt.Sprintf("sqlite error code %d", e.code) }
func (e *fakeCodeError) Code() int     { return e.code }

func TestIsLockedTrueForBusyAndLocked(t *testing.T) {
	assert.True(t, IsLocked(&fakeCodeError{code: sqliteBusy}))
	assert.True(t, IsLocked(&fakeCodeError{code: sqliteLocked}))
}

func TestIsLockedFalseForOtherErrors(t *testing.T) {
	assert.False(t, IsLocked(errors.New("syntax error")))
	assert.False(t, IsLocked(&fakeCodeError{code: 1}))
}

func TestWrapMarksLockedAsRetryable(t *testing.T) {
	wrapped, ok := Wrap("crawlstore.Select", ErrCauseQueryFailure, &fakeCodeError{code: sqliteBusy}).(*Error)
	require.True(t, ok)
	assert.True(t, wrapped.Retryable)
	assert.Equal(t, ErrCauseQueryFailure, wrapped.Cause)
}

func TestWrapNonLockedNotRetryable(t *testing.T) {
	wrapped, ok := Wrap("crawlstore.Select", ErrCauseQueryFailure, errors.New("no such table")).(*Error)
	require.True(t, ok)
	assert.False(t, wrapped.Retryable)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap("op", ErrCauseQueryFailure, nil))
}
