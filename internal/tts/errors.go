package tts

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error kinds. Every error returned by Synthesizer.Synthesize matches exactly one
// of these with errors.Is.
var (
	ErrValidation = errors.New("text validation failed")
	ErrProvider   = errors.New("provider rejected request")
	ErrTransport  = errors.New("provider unavailable")
)

// Configuration and lookup errors.
var (
	ErrMissingAPIKey  = errors.New("provider API key is required")
	ErrMissingBaseURL = errors.New("provider base URL is required")
	ErrNilDependency  = errors.New("dependency cannot be nil")
	ErrVoiceNotFound  = errors.New("voice not found")
)

// Kind identifies which branch of the error taxonomy an error belongs to.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindValidation
	KindProvider
	KindTransport
)

// String returns the analytics label for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindProvider:
		return "provider"
	case KindTransport:
		return "transport"
	case KindUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ValidationError means the input text was rejected before any network call.
type ValidationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ProviderError means the provider answered with a terminal failure status.
type ProviderError struct {
	StatusCode int
	Attempts   int
	// Code and Message come from a structured error body when one was sent.
	Code    string
	Message string
	// Body is an excerpt of the raw error body, or a placeholder when it could
	// not be read.
	Body string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = e.Body
	}

	if e.Code != "" {
		return fmt.Sprintf("%s (status %d, code %s): %s", ErrProvider, e.StatusCode, e.Code, detail)
	}

	return fmt.Sprintf("%s (status %d): %s", ErrProvider, e.StatusCode, detail)
}

// Is matches ErrProvider.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// TransportError means the provider could not be reached successfully within the
// retry policy.
type TransportError struct {
	Attempts int
	// Timeout is true when the last attempt ended in a timeout.
	Timeout bool
	// RetryAfter is a hint for the caller before trying again.
	RetryAfter time.Duration
	Cause      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrTransport, e.Attempts, e.Cause)
}

// Unwrap returns the last observed cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// KindOf returns the taxonomy kind of err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrProvider):
		return KindProvider
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindUnknown
	}
}

// HTTPStatus maps a synthesis error to the status a route layer should answer with.
func HTTPStatus(err error) int {
	var transportErr *TransportError

	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindProvider:
		return http.StatusBadGateway
	case KindTransport:
		if errors.As(err, &transportErr) && transportErr.Timeout {
			return http.StatusRequestTimeout
		}

		return http.StatusServiceUnavailable
	case KindUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
