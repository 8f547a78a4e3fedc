// Package core defines the boundary types and interfaces shared by the narration
// pipeline, its callers and its collaborators.
package core

import (
	"context"
	"time"

	"github.com/book-expert/narration-service/internal/tts/audio"
)

// Synthesis outcomes recorded in analytics.
const (
	OutcomeSuccess         = "success"
	OutcomeValidationError = "validation_error"
	OutcomeProviderError   = "provider_error"
	OutcomeTransportError  = "transport_error"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// SynthesisRequest is the caller's narration request. It is never modified by
// the pipeline.
type SynthesisRequest struct {
	Text string
	// VoiceID and ModelID fall back to configured defaults when empty.
	VoiceID string
	ModelID string
	UserID  string
}

// Synthesizer turns text into narration audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*audio.Audio, error)
}

// SynthesisMetrics is recorded once for every successful synthesis.
type SynthesisMetrics struct {
	RequestID            string        `json:"requestId"`
	UserID               string        `json:"userId"`
	Timestamp            time.Time     `json:"timestamp"`
	CharactersRequested  int           `json:"charactersRequested"`
	CharactersProcessed  int           `json:"charactersProcessed"`
	AudioDurationSeconds float64       `json:"audioDurationSeconds"`
	AudioBytes           int           `json:"audioLengthBytes"`
	VoiceID              string        `json:"voiceId"`
	ModelID              string        `json:"modelId"`
	ProcessingTime       time.Duration `json:"processingTimeNs"`
	Attempts             int           `json:"attempts"`
	Warning              string        `json:"warning,omitempty"`
	Outcome              string        `json:"outcome"`
}

// EfficiencyRatio is processing time divided by audio duration. Values below one
// mean audio is produced faster than it plays back.
func (m SynthesisMetrics) EfficiencyRatio() float64 {
	if m.AudioDurationSeconds <= 0 {
		return 0
	}

	return m.ProcessingTime.Seconds() / m.AudioDurationSeconds
}

// ErrorContext accompanies every failed synthesis.
type ErrorContext struct {
	RequestID           string        `json:"requestId"`
	UserID              string        `json:"userId"`
	Timestamp           time.Time     `json:"timestamp"`
	Outcome             string        `json:"outcome"`
	CharactersRequested int           `json:"charactersRequested"`
	VoiceID             string        `json:"voiceId,omitempty"`
	ModelID             string        `json:"modelId,omitempty"`
	ProcessingTime      time.Duration `json:"processingTimeNs"`
	StatusCode          int           `json:"statusCode,omitempty"`
	Attempts            int           `json:"attempts"`
}

// AnalyticsSink receives synthesis records. Errors are reported back to the
// caller for logging only; they never change a synthesis result.
type AnalyticsSink interface {
	RecordSynthesis(ctx context.Context, metrics SynthesisMetrics) error
	RecordError(ctx context.Context, message string, errCtx ErrorContext) error
}
