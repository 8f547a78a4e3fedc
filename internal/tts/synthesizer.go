// Package tts turns narration text into speech through a remote provider.
//
// A Synthesizer validates the text, sends it through the resilient HTTP client,
// packages the returned MP3 with its estimated duration and records exactly one
// analytics entry for every call, successful or not.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/core"
	"github.com/book-expert/narration-service/internal/httpclient"
	"github.com/book-expert/narration-service/internal/tts/audio"
	"github.com/book-expert/narration-service/internal/tts/text"
	"github.com/google/uuid"
)

const (
	logFmtTextWarning      = "Request %s: %s"
	logFmtSynthesized      = "Request %s synthesized %d chars into %.2fs of audio in %s (%d attempt(s))"
	logFmtSynthesisFailed  = "Request %s failed after %s: %v"
	logFmtAnalyticsFailed  = "Analytics %s for request %s failed: %v"
	logFmtAnalyticsPanic   = "Analytics %s for request %s panicked: %v"
	errFmtReadAudio        = "failed to read audio body: %w"
	errFmtMissingSetting   = "%w: %s"
	analyticsSynthesis     = "synthesis record"
	analyticsError         = "error record"
	emptyAudioMessage      = "provider returned an empty audio body"
	emptyAudioProviderCode = "empty_audio"
)

// Settings configures a Synthesizer.
type Settings struct {
	BaseURL        string
	APIKey         string
	DefaultVoiceID string
	DefaultModelID string
	// Timeout bounds each provider attempt.
	Timeout time.Duration
	Retry   httpclient.RetryPolicy
	// MaxLength and WarningLength are in characters.
	MaxLength     int
	WarningLength int
}

// DefaultSettings returns the provider defaults with an empty API key.
func DefaultSettings() Settings {
	return Settings{
		BaseURL:        DefaultBaseURL,
		APIKey:         "",
		DefaultVoiceID: DefaultVoiceID,
		DefaultModelID: DefaultModelID,
		Timeout:        30 * time.Second,
		Retry:          httpclient.DefaultRetryPolicy(),
		MaxLength:      5000,
		WarningLength:  4000,
	}
}

// Synthesizer is the speech synthesis orchestrator. It holds no per-call state
// and is safe for concurrent use.
type Synthesizer struct {
	settings Settings
	client   *httpclient.Client
	sink     core.AnalyticsSink
	log      *logger.Logger
	now      func() time.Time
}

// NewSynthesizer creates a Synthesizer. It fails fast when the provider secret
// or endpoint is missing.
func NewSynthesizer(
	settings Settings,
	client *httpclient.Client,
	sink core.AnalyticsSink,
	log *logger.Logger,
) (*Synthesizer, error) {
	if settings.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	if settings.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}

	if client == nil {
		return nil, fmt.Errorf(errFmtMissingSetting, ErrNilDependency, "http client")
	}

	if sink == nil {
		return nil, fmt.Errorf(errFmtMissingSetting, ErrNilDependency, "analytics sink")
	}

	if log == nil {
		return nil, fmt.Errorf(errFmtMissingSetting, ErrNilDependency, "logger")
	}

	policyErr := settings.Retry.Validate()
	if policyErr != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", policyErr)
	}

	return &Synthesizer{
		settings: settings,
		client:   client,
		sink:     sink,
		log:      log,
		now:      time.Now,
	}, nil
}

// synthesisRun is the bookkeeping of a single Synthesize call.
type synthesisRun struct {
	requestID           string
	userID              string
	started             time.Time
	charactersRequested int
	voiceID             string
	modelID             string
}

// Synthesize converts req.Text into MP3 audio.
//
// The returned error is a *ValidationError, *ProviderError or *TransportError.
// One analytics record is written before Synthesize returns.
func (s *Synthesizer) Synthesize(ctx context.Context, req core.SynthesisRequest) (*audio.Audio, error) {
	run := &synthesisRun{
		requestID:           uuid.NewString(),
		userID:              req.UserID,
		started:             s.now(),
		charactersRequested: utf8.RuneCountInString(req.Text),
		voiceID:             "",
		modelID:             "",
	}

	validation := text.Validate(req.Text, s.settings.MaxLength, s.settings.WarningLength)
	if !validation.Valid {
		return nil, s.fail(ctx, run, &ValidationError{Reason: validation.Reason}, 0, 0)
	}

	if validation.Warning != "" {
		s.log.Warn(logFmtTextWarning, run.requestID, validation.Warning)
	}

	run.voiceID = firstNonEmpty(req.VoiceID, s.settings.DefaultVoiceID)
	run.modelID = firstNonEmpty(req.ModelID, s.settings.DefaultModelID)

	resp, requestErr := s.request(ctx, run, validation.Text)
	if requestErr != nil {
		return nil, s.fail(ctx, run, requestErr, statusOf(requestErr), attemptsOf(requestErr))
	}

	clip, packageErr := s.packageAudio(resp)
	if packageErr != nil {
		return nil, s.fail(ctx, run, packageErr, statusOf(packageErr), resp.Attempts)
	}

	s.succeed(ctx, run, validation, clip, resp.Attempts)

	return clip, nil
}

func (s *Synthesizer) request(ctx context.Context, run *synthesisRun, body string) (*httpclient.Response, error) {
	payload, err := marshalJSON(speechRequest{ModelID: run.modelID, Text: body}, "speech request")
	if err != nil {
		return nil, &TransportError{Attempts: 0, Timeout: false, RetryAfter: 0, Cause: err}
	}

	resp, err := s.client.Post(
		ctx,
		speechURL(s.settings.BaseURL, run.voiceID),
		providerHeader(s.settings.APIKey, audio.MIMETypeMPEG),
		payload,
		s.settings.Retry,
		s.settings.Timeout,
	)
	if err != nil {
		return nil, interpretFailure(err, s.settings.Retry)
	}

	return resp, nil
}

func (s *Synthesizer) packageAudio(resp *httpclient.Response) (*audio.Audio, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			Attempts:   resp.Attempts,
			Timeout:    errors.Is(err, context.DeadlineExceeded),
			RetryAfter: s.settings.Retry.MaxDelay,
			Cause:      fmt.Errorf(errFmtReadAudio, err),
		}
	}

	if len(data) == 0 {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Attempts:   resp.Attempts,
			Code:       emptyAudioProviderCode,
			Message:    emptyAudioMessage,
			Body:       "",
		}
	}

	return audio.NewMP3(data), nil
}

func (s *Synthesizer) succeed(
	ctx context.Context,
	run *synthesisRun,
	validation text.Outcome,
	clip *audio.Audio,
	attempts int,
) {
	elapsed := s.now().Sub(run.started)

	metrics := core.SynthesisMetrics{
		RequestID:            run.requestID,
		UserID:               run.userID,
		Timestamp:            s.now(),
		CharactersRequested:  run.charactersRequested,
		CharactersProcessed:  utf8.RuneCountInString(validation.Text),
		AudioDurationSeconds: clip.DurationSeconds,
		AudioBytes:           len(clip.Data),
		VoiceID:              run.voiceID,
		ModelID:              run.modelID,
		ProcessingTime:       elapsed,
		Attempts:             attempts,
		Warning:              validation.Warning,
		Outcome:              core.OutcomeSuccess,
	}

	s.log.Info(
		logFmtSynthesized,
		run.requestID, metrics.CharactersProcessed, metrics.AudioDurationSeconds, elapsed, attempts,
	)

	s.record(run.requestID, analyticsSynthesis, func() error {
		return s.sink.RecordSynthesis(context.WithoutCancel(ctx), metrics)
	})
}

// fail records the error and hands it back unchanged.
func (s *Synthesizer) fail(ctx context.Context, run *synthesisRun, err error, statusCode, attempts int) error {
	elapsed := s.now().Sub(run.started)

	errCtx := core.ErrorContext{
		RequestID:           run.requestID,
		UserID:              run.userID,
		Timestamp:           s.now(),
		Outcome:             outcomeOf(err),
		CharactersRequested: run.charactersRequested,
		VoiceID:             run.voiceID,
		ModelID:             run.modelID,
		ProcessingTime:      elapsed,
		StatusCode:          statusCode,
		Attempts:            attempts,
	}

	s.log.Error(logFmtSynthesisFailed, run.requestID, elapsed, err)

	s.record(run.requestID, analyticsError, func() error {
		return s.sink.RecordError(context.WithoutCancel(ctx), err.Error(), errCtx)
	})

	return err
}

// record invokes the sink and contains any failure it produces.
func (s *Synthesizer) record(requestID, what string, emit func() error) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			s.log.Error(logFmtAnalyticsPanic, what, requestID, recovered)
		}
	}()

	err := emit()
	if err != nil {
		s.log.Warn(logFmtAnalyticsFailed, what, requestID, err)
	}
}

func outcomeOf(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return core.OutcomeValidationError
	case KindProvider:
		return core.OutcomeProviderError
	case KindTransport, KindUnknown:
		return core.OutcomeTransportError
	default:
		return core.OutcomeTransportError
	}
}

// statusOf is the provider's rejection status, or 0 when the provider did not
// reject the request. An empty 200 body is a provider error without one.
func statusOf(err error) int {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.StatusCode >= http.StatusBadRequest {
		return providerErr.StatusCode
	}

	return 0
}

func attemptsOf(err error) int {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Attempts
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Attempts
	}

	return 0
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}
