package httpclient

import "net/http"

// OutcomeKind is the classification of a single attempt.
type OutcomeKind int

const (
	// OutcomeUnknown is the zero value and never produced by Classify.
	OutcomeUnknown OutcomeKind = iota
	// OutcomeSuccess is a 2xx or 3xx response.
	OutcomeSuccess
	// OutcomeRetryable is a 5xx response or a network-level error, including timeouts.
	OutcomeRetryable
	// OutcomePermanent is a 4xx response. Retrying will not fix a client error.
	OutcomePermanent
)

// String returns a low-cardinality label for logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomePermanent:
		return "permanent"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Outcome is the result of one attempt.
type Outcome struct {
	Kind OutcomeKind
	// Response is set for Success and Permanent outcomes.
	Response *Response
	// Cause is set for Retryable outcomes.
	Cause error
}

// Classify maps a transport error or an HTTP status code to an outcome kind.
// A non-nil err always wins over the status code.
func Classify(statusCode int, err error) OutcomeKind {
	if err != nil {
		return OutcomeRetryable
	}

	switch {
	case statusCode >= http.StatusInternalServerError:
		return OutcomeRetryable
	case statusCode >= http.StatusBadRequest:
		return OutcomePermanent
	case statusCode >= http.StatusOK:
		return OutcomeSuccess
	default:
		// 1xx never reaches us through net/http; anything else is malformed.
		return OutcomePermanent
	}
}
