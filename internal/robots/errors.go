package robots

import (
	"fmt"

	"github.com/vigilare/vigilare/internal/observability"
	"github.com/vigilare/vigilare/pkg/failure"
)

type ErrorCause string

const (
	ErrCausePreFetchFailure  ErrorCause = "failed before making fetch"
	ErrCauseHttpFetchFailure ErrorCause = "failed to fetch"
	ErrCauseHttpServerError  ErrorCause = "http server error"
	ErrCauseParseError       ErrorCause = "failed to parse robots.txt"
)

// Error is a ClassifiedError for robots.txt fetch/parse failures. Per
// spec §7, robots fetch failures are retried; robots denial itself is
// never represented as an Error — it is a Decision with Allowed=false.
type Error struct {
	Message   string
	Retryable bool
	Cause     ErrorCause
}

func (e *Error) Error() string {
	return fmt.Sprintf("robots error: %s: %s", e.Cause, e.Message)
}

func (e *Error) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*Error)(nil)

func mapErrorCauseToObservability(cause ErrorCause) observability.Cause {
	switch cause {
	case ErrCauseHttpFetchFailure, ErrCauseHttpServerError:
		return observability.CauseNetworkFailure
	case ErrCauseParseError:
		return observability.CauseContentInvalid
	default:
		return observability.CauseUnknown
	}
}
