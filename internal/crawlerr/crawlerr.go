// Package crawlerr is the closed error taxonomy shared by the fetcher,
// parser, and writer. Every tag implements pkg/failure.ClassifiedError and
// additionally knows whether the fetcher's retry layer should retry it.
package crawlerr

import (
	"fmt"

	"github.com/vigilare/vigilare/pkg/failure"
)

// Tag identifies one member of the closed error taxonomy.
type Tag int

const (
	TagHTTPStatus Tag = iota
	TagNotHTML
	TagTooLargeHeader
	TagTooLargeBody
	TagTimeoutConnect
	TagTimeoutDuringRead
	TagConnectionError
	TagRedirectLoop
	TagNetError
)

// Error is a ClassifiedError carrying one taxonomy tag, an optional HTTP
// status (for TagHTTPStatus), and a free-form message (for TagNetError).
type Error struct {
	Tag        Tag
	HTTPStatus int
	Message    string
	retryable  bool
}

func (e *Error) Error() string {
	switch e.Tag {
	case TagHTTPStatus:
		return fmt.Sprintf("HTTP_%d", e.HTTPStatus)
	case TagNetError:
		return fmt.Sprintf("NET_ERROR:%s", e.Message)
	default:
		return e.Tag.String()
	}
}

// Severity implements pkg/failure.ClassifiedError. Network-class and 5xx
// errors are recoverable (retried by the caller); everything else is fatal
// for the current attempt and moves the frontier row to status=3.
func (e *Error) Severity() failure.Severity {
	if e.retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*Error)(nil)

// Retryable reports whether the fetch retry layer should re-attempt this
// error: TIMEOUT_*, CONNECTION_ERROR, NET_ERROR, 5xx and 429 are retried
// while the frontier row's retry_count is below config.MaxFetchRetries;
// everything else (NOT_HTML, TOO_LARGE_*, REDIRECT_LOOP, other 4xx) is
// permanent.
func (e *Error) Retryable() bool {
	return e.retryable
}

func (t Tag) String() string {
	switch t {
	case TagHTTPStatus:
		return "HTTP_STATUS"
	case TagNotHTML:
		return "NOT_HTML"
	case TagTooLargeHeader:
		return "TOO_LARGE_HEADER"
	case TagTooLargeBody:
		return "TOO_LARGE_BODY"
	case TagTimeoutConnect:
		return "TIMEOUT_CONNECT"
	case TagTimeoutDuringRead:
		return "TIMEOUT_DURING_READ"
	case TagConnectionError:
		return "CONNECTION_ERROR"
	case TagRedirectLoop:
		return "REDIRECT_LOOP"
	case TagNetError:
		return "NET_ERROR"
	default:
		return "UNKNOWN"
	}
}

// HTTPStatusError reports a completed response whose status code maps to a
// taxonomy member: 5xx and 429 are retryable, everything else is terminal.
func HTTPStatusError(code int) *Error {
	retryable := code >= 500 || code == 429
	return &Error{Tag: TagHTTPStatus, HTTPStatus: code, retryable: retryable}
}

func NotHTML() *Error {
	return &Error{Tag: TagNotHTML, retryable: false}
}

func TooLargeHeader() *Error {
	return &Error{Tag: TagTooLargeHeader, retryable: false}
}

func TooLargeBody() *Error {
	return &Error{Tag: TagTooLargeBody, retryable: false}
}

func TimeoutConnect() *Error {
	return &Error{Tag: TagTimeoutConnect, retryable: true}
}

func TimeoutDuringRead() *Error {
	return &Error{Tag: TagTimeoutDuringRead, retryable: true}
}

func ConnectionError() *Error {
	return &Error{Tag: TagConnectionError, retryable: true}
}

func RedirectLoop() *Error {
	return &Error{Tag: TagRedirectLoop, retryable: false}
}

func NetError(msg string) *Error {
	return &Error{Tag: TagNetError, Message: msg, retryable: true}
}
