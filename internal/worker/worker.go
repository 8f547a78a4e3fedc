// Package worker provides a NATS worker that narrates processed text pages.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/core"
	"github.com/book-expert/narration-service/internal/tts"
	"github.com/book-expert/narration-service/internal/tts/audio"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultHandleTimeout bounds one message when no timeout is configured.
const DefaultHandleTimeout = 5 * time.Minute

var (
	// ErrTextKeyEmpty indicates that the event carries no text object key.
	ErrTextKeyEmpty = errors.New("text key cannot be empty")
	// ErrNilDependency indicates that a required collaborator is missing.
	ErrNilDependency = errors.New("worker dependency cannot be nil")
	// ErrSubjectEmpty indicates that no subject was configured.
	ErrSubjectEmpty = errors.New("subject cannot be empty")
)

const (
	logFmtParseFailed   = "Failed to parse and validate event: %v"
	logFmtJobFailed     = "Failed to narrate page %d of workflow %s (%s): %v"
	logFmtReplyFailed   = "Failed to publish reply event for workflow %s: %v"
	logFmtJobDone       = "Narrated page %d/%d of workflow %s into %s (%.2fs)"
	errFmtDownload      = "failed to download text data for key '%s': %w"
	errFmtSynthesize    = "failed to synthesize text for key '%s': %w"
	errFmtUpload        = "failed to upload audio data for key '%s': %w"
	errFmtMissingDep    = "%w: %s"
	errFmtSubscribe     = "failed to subscribe to subject %s: %w"
	errFmtDrain         = "failed to drain subscription: %w"
	errFmtUnmarshal     = "failed to unmarshal event: %w"
	errFmtMarshalReply  = "failed to marshal reply event: %w"
	errFmtPublishReply  = "failed to publish reply event: %w"
	errFmtEventTextKey  = "%w (workflow %s)"
	failureKindPipeline = "pipeline"
)

// Stores groups the buckets the worker reads text from and writes audio to.
type Stores struct {
	Text  core.ObjectStore
	Audio core.ObjectStore
}

// NatsWorker listens for processed text on a NATS subject and replies with the
// object key of the narrated audio.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	stores         Stores
	synthesizer    core.Synthesizer
	handleTimeout  time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. A non-positive
// handleTimeout means DefaultHandleTimeout.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	stores Stores,
	synthesizer core.Synthesizer,
	handleTimeout time.Duration,
	log *logger.Logger,
) (*NatsWorker, error) {
	switch {
	case natsConnection == nil:
		return nil, fmt.Errorf(errFmtMissingDep, ErrNilDependency, "nats connection")
	case stores.Text == nil || stores.Audio == nil:
		return nil, fmt.Errorf(errFmtMissingDep, ErrNilDependency, "object store")
	case synthesizer == nil:
		return nil, fmt.Errorf(errFmtMissingDep, ErrNilDependency, "synthesizer")
	case log == nil:
		return nil, fmt.Errorf(errFmtMissingDep, ErrNilDependency, "logger")
	case subject == "":
		return nil, ErrSubjectEmpty
	}

	if handleTimeout <= 0 {
		handleTimeout = DefaultHandleTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		stores:         stores,
		synthesizer:    synthesizer,
		handleTimeout:  handleTimeout,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages. It returns after ctx
// is cancelled and in-flight messages are drained.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf(errFmtSubscribe, w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf(errFmtDrain, drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.handleTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error(logFmtParseFailed, err)

		return
	}

	clip, audioKey, processErr := w.processNarrationJob(ctx, event)
	if processErr != nil {
		w.log.Error(
			logFmtJobFailed, event.PageNumber, event.Header.WorkflowID, failureKind(processErr), processErr,
		)

		return
	}

	w.log.Info(logFmtJobDone, event.PageNumber, event.TotalPages, event.Header.WorkflowID, audioKey, clip.DurationSeconds)

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error(logFmtReplyFailed, event.Header.WorkflowID, err)
	}
}

// processNarrationJob downloads the page text, narrates it and uploads the audio.
func (w *NatsWorker) processNarrationJob(
	ctx context.Context,
	event *events.TextProcessedEvent,
) (*audio.Audio, string, error) {
	textData, err := w.stores.Text.Download(ctx, event.TextKey)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtDownload, event.TextKey, err)
	}

	clip, err := w.synthesizer.Synthesize(ctx, core.SynthesisRequest{
		Text:    string(textData),
		VoiceID: event.Voice,
		ModelID: "",
		UserID:  event.Header.UserID,
	})
	if err != nil {
		return nil, "", fmt.Errorf(errFmtSynthesize, event.TextKey, err)
	}

	audioKey := uuid.NewString() + clip.Format.Extension()

	err = w.stores.Audio.Upload(ctx, audioKey, clip.Data, clip.MIMEType)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtUpload, audioKey, err)
	}

	return clip, audioKey, nil
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf(errFmtMarshalReply, err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf(errFmtPublishReply, err)
	}

	return nil
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf(errFmtUnmarshal, err)
	}

	if event.TextKey == "" {
		return nil, fmt.Errorf(errFmtEventTextKey, ErrTextKeyEmpty, event.Header.WorkflowID)
	}

	return &event, nil
}

// failureKind labels a job failure for the log: a synthesis error kind, or
// "pipeline" for storage failures.
func failureKind(err error) string {
	kind := tts.KindOf(err)
	if kind == tts.KindUnknown {
		return failureKindPipeline
	}

	return kind.String()
}
