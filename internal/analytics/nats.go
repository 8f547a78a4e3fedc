package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/book-expert/narration-service/internal/core"
	"github.com/nats-io/nats.go"
)

// Default subjects for analytics records.
const (
	DefaultSynthesisSubject = "analytics.synthesis"
	DefaultErrorSubject     = "analytics.error"
)

const (
	errFmtMarshalRecord = "failed to marshal %s record: %w"
	errFmtPublish       = "failed to publish to subject %s: %w"
)

// ErrorRecord is the payload published for a failed synthesis.
type ErrorRecord struct {
	Message string            `json:"message"`
	Context core.ErrorContext `json:"context"`
}

// SynthesisRecord is the payload published for a successful synthesis. It adds
// the derived efficiency ratio to the raw metrics.
type SynthesisRecord struct {
	core.SynthesisMetrics

	EfficiencyRatio float64 `json:"efficiencyRatio"`
}

// NATSSink publishes records as JSON on core NATS subjects. Publishing is
// buffered by the connection, so a record call does not wait for subscribers.
type NATSSink struct {
	natsConnection   *nats.Conn
	synthesisSubject string
	errorSubject     string
}

// NewNATSSink creates a NATSSink.
func NewNATSSink(natsConnection *nats.Conn, synthesisSubject, errorSubject string) (*NATSSink, error) {
	if natsConnection == nil {
		return nil, ErrNilConnection
	}

	if synthesisSubject == "" || errorSubject == "" {
		return nil, ErrEmptySubject
	}

	return &NATSSink{
		natsConnection:   natsConnection,
		synthesisSubject: synthesisSubject,
		errorSubject:     errorSubject,
	}, nil
}

// RecordSynthesis publishes the metrics to the synthesis subject.
func (s *NATSSink) RecordSynthesis(_ context.Context, metrics core.SynthesisMetrics) error {
	record := SynthesisRecord{SynthesisMetrics: metrics, EfficiencyRatio: metrics.EfficiencyRatio()}

	return s.publish(s.synthesisSubject, "synthesis", record)
}

// RecordError publishes the failure to the error subject.
func (s *NATSSink) RecordError(_ context.Context, message string, errCtx core.ErrorContext) error {
	return s.publish(s.errorSubject, "error", ErrorRecord{Message: message, Context: errCtx})
}

func (s *NATSSink) publish(subject, kind string, record any) error {
	if s.natsConnection.IsClosed() {
		return ErrConnectionClosed
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf(errFmtMarshalRecord, kind, err)
	}

	err = s.natsConnection.Publish(subject, data)
	if err != nil {
		return fmt.Errorf(errFmtPublish, subject, err)
	}

	return nil
}
