package analytics

import "errors"

var (
	// ErrNilLogger is returned when a sink is created without a logger.
	ErrNilLogger = errors.New("logger cannot be nil")
	// ErrNilConnection is returned when a NATS sink is created without a connection.
	ErrNilConnection = errors.New("nats connection cannot be nil")
	// ErrEmptySubject is returned when a NATS sink has no subject to publish to.
	ErrEmptySubject = errors.New("analytics subject cannot be empty")
	// ErrConnectionClosed is returned when publishing on a closed connection.
	ErrConnectionClosed = errors.New("nats connection is closed")
	// ErrSinkPanicked wraps a panic raised inside a fanned-out sink.
	ErrSinkPanicked = errors.New("analytics sink panicked")
)
