// Package svcerr provides the core's error taxonomy (spec §7): a small
// set of named kinds that decide propagation behaviour at the
// orchestrator boundary, distinct from the ad-hoc errors an engine may
// produce internally.
package svcerr

import "fmt"

// Code identifies one of the named error kinds from spec §7.
type Code string

const (
	// CodeBadInput marks a malformed artifact/hash/URL. Never retried,
	// always surfaced to the caller.
	CodeBadInput Code = "BAD_INPUT"
	// CodeTooLarge marks an artifact exceeding the size ceiling. Never
	// retried, always surfaced.
	CodeTooLarge Code = "TOO_LARGE"
	// CodeTimeout marks an engine or source timeout. Recorded as an
	// Unknown detection; never aborts the batch.
	CodeTimeout Code = "TIMEOUT"
	// CodeRateLimited marks a 429 from a reputation source. Retried with
	// backoff by the reputation query layer.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeSourceUnavailable marks an open circuit breaker.
	CodeSourceUnavailable Code = "SOURCE_UNAVAILABLE"
	// CodeNotFound marks a source lacking the queried hash. Not an error
	// to the orchestrator.
	CodeNotFound Code = "NOT_FOUND"
	// CodeStorageError marks a persistence failure. The orchestrator
	// still returns the in-memory AnalysisResult.
	CodeStorageError Code = "STORAGE_ERROR"
	// CodeCancelled marks cooperative cancellation.
	CodeCancelled Code = "CANCELLED"
	// CodeInternal marks an unexpected failure; its message is redacted
	// before external surfaces.
	CodeInternal Code = "INTERNAL"
)

// Error is a structured error carrying one of the named Codes plus
// optional details, mirroring the teacher's ServiceError shape.
type Error struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value detail and returns the receiver for
// chaining.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error that wraps an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	var e *Error
	for err != nil {
		if se, ok := err.(*Error); ok {
			e = se
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Code == code
}

// BadInput is a convenience constructor for CodeBadInput.
func BadInput(message string) *Error { return New(CodeBadInput, message) }

// TooLarge is a convenience constructor for CodeTooLarge.
func TooLarge(message string) *Error { return New(CodeTooLarge, message) }

// Timeout is a convenience constructor for CodeTimeout.
func Timeout(message string) *Error { return New(CodeTimeout, message) }

// RateLimited is a convenience constructor for CodeRateLimited.
func RateLimited(message string) *Error { return New(CodeRateLimited, message) }

// SourceUnavailable is a convenience constructor for CodeSourceUnavailable.
func SourceUnavailable(source string) *Error {
	return New(CodeSourceUnavailable, "source unavailable").WithDetails("source", source)
}

// NotFound is a convenience constructor for CodeNotFound.
func NotFound(message string) *Error { return New(CodeNotFound, message) }

// StorageError wraps a persistence failure.
func StorageError(err error) *Error {
	return Wrap(CodeStorageError, "storage operation failed", err)
}

// Cancelled is the sentinel for cooperative cancellation.
func Cancelled() *Error { return New(CodeCancelled, "cancelled") }

// Internal wraps an unexpected failure. The error passed here should
// already be safe to log; callers presenting errors externally must use
// RedactedMessage instead of Error() / Message.
func Internal(err error) *Error {
	return Wrap(CodeInternal, "internal error", err)
}

// RedactedMessage returns a message safe for external surfaces: internal
// errors never leak their underlying cause.
func (e *Error) RedactedMessage() string {
	if e.Code == CodeInternal {
		return "internal error"
	}
	return e.Message
}
