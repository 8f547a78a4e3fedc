package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Use errors.Is to test for them.
var (
	// ErrAttemptTimeout marks an attempt that got no response within its timeout.
	ErrAttemptTimeout = errors.New("attempt timed out")
	// ErrServerStatus marks an attempt that got a 5xx response.
	ErrServerStatus = errors.New("server error status")
	// ErrInvalidRequest is returned when the request cannot be built at all.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRetriesExhausted matches every *ExhaustedError.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrPermanentStatus matches every *PermanentError.
	ErrPermanentStatus = errors.New("permanent failure status")
	// ErrAborted matches every *AbortedError.
	ErrAborted = errors.New("request aborted")
)

// StatusError describes a 5xx response that was retried.
type StatusError struct {
	StatusCode int
	Status     string
	// Excerpt is the beginning of the response body, best effort.
	Excerpt string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Excerpt == "" {
		return fmt.Sprintf("%s: %s", ErrServerStatus, e.Status)
	}

	return fmt.Sprintf("%s: %s: %s", ErrServerStatus, e.Status, e.Excerpt)
}

// Is reports whether target is ErrServerStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrServerStatus
}

// PermanentError is returned for a 4xx response. It carries the response so the
// caller can read the error body; the caller must close Response.Body.
type PermanentError struct {
	Response *Response
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s)", ErrPermanentStatus, e.Response.Status, e.Response.Attempts)
}

// Is reports whether target is ErrPermanentStatus.
func (e *PermanentError) Is(target error) bool {
	return target == ErrPermanentStatus
}

// StatusCode is a shortcut for e.Response.StatusCode.
func (e *PermanentError) StatusCode() int {
	return e.Response.StatusCode
}

// ExhaustedError is returned when every attempt failed with a retryable outcome.
type ExhaustedError struct {
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrRetriesExhausted, e.Attempts, e.Cause)
}

// Unwrap returns the last observed cause.
func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrRetriesExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// TimedOut reports whether the last attempt ended in a timeout.
func (e *ExhaustedError) TimedOut() bool {
	return errors.Is(e.Cause, ErrAttemptTimeout)
}

// AbortedError is returned when the caller's context ends the retry loop.
type AbortedError struct {
	// Attempts is the number of attempts made before the loop stopped.
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *AbortedError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrAborted, e.Attempts, e.Cause)
}

// Unwrap returns the context error.
func (e *AbortedError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrAborted.
func (e *AbortedError) Is(target error) bool {
	return target == ErrAborted
}

func newTimeoutError(timeout time.Duration, err error) error {
	return fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, timeout, err)
}
