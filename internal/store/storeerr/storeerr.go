// Package storeerr classifies database/sql errors the same way across the
// three stores, so indexer and pagerank retry loops share one "is this a
// transient SQLITE_BUSY/SQLITE_LOCKED error" test.
package storeerr

import (
	"errors"
	"fmt"

	"github.com/vigilare/vigilare/pkg/failure"
)

type ErrorCause string

const (
	ErrCauseOpenFailure   ErrorCause = "failed to open database"
	ErrCauseSchemaFailure ErrorCause = "failed to apply schema"
	ErrCauseQueryFailure  ErrorCause = "query failed"
	ErrCauseTxFailure     ErrorCause = "transaction failed"
	ErrCauseLocked        ErrorCause = "database locked"
)

// Error is a ClassifiedError for store-layer failures.
type Error struct {
	Op        string
	Message   string
	Retryable bool
	Cause     ErrorCause
}

func (e *Error) Error() string {
	return fmt.Sprintf("store error: %s: %s: %s", e.Op, e.Cause, e.Message)
}

func (e *Error) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable lets pkg/retry retry only transient lock errors.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

var _ failure.ClassifiedError = (*Error)(nil)

// sqliteBusy and sqliteLocked are the standard SQLite result codes for
// SQLITE_BUSY and SQLITE_LOCKED.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// codeError is the interface modernc.org/sqlite's error type satisfies,
// duck-typed here so this package does not need to import the driver just
// to classify its errors.
type codeError interface {
	error
	Code() int
}

// IsLocked reports whether err is a transient SQLITE_BUSY/SQLITE_LOCKED
// condition: the only class of database error PageRank's write loop
// retries, and the one the indexer loop retries after a short sleep
// instead of its idle sleep.
func IsLocked(err error) bool {
	var ce codeError
	if errors.As(err, &ce) {
		code := ce.Code()
		return code == sqliteBusy || code == sqliteLocked
	}
	return false
}

// Wrap classifies a raw database/sql error raised during op into a store
// Error, marking SQLITE_BUSY/SQLITE_LOCKED as retryable. It returns the
// error interface rather than *Error so that every call site's idiomatic
// "return storeerr.Wrap(...)" propagates a true nil on success — returning
// *Error here would let a nil *Error surface as a non-nil error interface
// once it crossed the caller's own `error`-typed return.
func Wrap(op string, cause ErrorCause, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Op:        op,
		Message:   err.Error(),
		Retryable: IsLocked(err),
		Cause:     cause,
	}
}
