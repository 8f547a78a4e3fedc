// Package analytics provides sinks for synthesis metrics: the service log, a
// NATS subject, Prometheus collectors and a fan-out that feeds several of them.
package analytics

import (
	"context"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/core"
	"github.com/book-expert/narration-service/internal/tts/ttsutils"
)

const (
	logFmtSynthesis = "Synthesis %s user=%q voice=%s model=%s chars=%d/%d audio=%s (%s) " +
		"took=%s efficiency=%.2f attempts=%d"
	logFmtSynthesisWarning = "Synthesis %s warning: %s"
	logFmtError            = "Synthesis %s %s user=%q voice=%s chars=%d status=%d attempts=%d took=%s: %s"
	anonymousUser          = ""
)

// LogSink writes one human-readable line per record to the service logger.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *logger.Logger) (*LogSink, error) {
	if log == nil {
		return nil, ErrNilLogger
	}

	return &LogSink{log: log}, nil
}

// RecordSynthesis logs the metrics summary.
func (s *LogSink) RecordSynthesis(_ context.Context, metrics core.SynthesisMetrics) error {
	s.log.Info(
		logFmtSynthesis,
		metrics.RequestID,
		userLabel(metrics.UserID),
		metrics.VoiceID,
		metrics.ModelID,
		metrics.CharactersProcessed,
		metrics.CharactersRequested,
		ttsutils.FormatDuration(metrics.AudioDurationSeconds),
		ttsutils.FormatFileSize(int64(metrics.AudioBytes)),
		ttsutils.FormatElapsed(metrics.ProcessingTime),
		metrics.EfficiencyRatio(),
		metrics.Attempts,
	)

	if metrics.Warning != "" {
		s.log.Warn(logFmtSynthesisWarning, metrics.RequestID, metrics.Warning)
	}

	return nil
}

// RecordError logs the failure with its context.
func (s *LogSink) RecordError(_ context.Context, message string, errCtx core.ErrorContext) error {
	s.log.Error(
		logFmtError,
		errCtx.RequestID,
		errCtx.Outcome,
		userLabel(errCtx.UserID),
		errCtx.VoiceID,
		errCtx.CharactersRequested,
		errCtx.StatusCode,
		errCtx.Attempts,
		ttsutils.FormatElapsed(errCtx.ProcessingTime),
		message,
	)

	return nil
}

func userLabel(userID string) string {
	if userID == anonymousUser {
		return "anonymous"
	}

	return userID
}
