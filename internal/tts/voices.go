package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/book-expert/narration-service/internal/httpclient"
)

// Voice listing limits.
const (
	DefaultVoiceLimit = 10
	voiceSearchLimit  = 100
	errFmtReadVoices  = "failed to read voice list: %w"
	errFmtVoiceLookup = "%w: %s"
)

// VoiceCatalog lists the voices the provider account can use.
type VoiceCatalog struct {
	settings Settings
	client   *httpclient.Client
}

// NewVoiceCatalog creates a VoiceCatalog.
func NewVoiceCatalog(settings Settings, client *httpclient.Client) (*VoiceCatalog, error) {
	if settings.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	if settings.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}

	if client == nil {
		return nil, fmt.Errorf(errFmtMissingSetting, ErrNilDependency, "http client")
	}

	return &VoiceCatalog{settings: settings, client: client}, nil
}

// List returns at most limit voices. A non-positive limit means DefaultVoiceLimit.
// Errors follow the same taxonomy as Synthesize.
func (c *VoiceCatalog) List(ctx context.Context, limit int) ([]Voice, error) {
	if limit <= 0 {
		limit = DefaultVoiceLimit
	}

	resp, err := c.client.Get(
		ctx,
		voicesURL(c.settings.BaseURL),
		providerHeader(c.settings.APIKey, contentTypeJSON),
		c.settings.Retry,
		c.settings.Timeout,
	)
	if err != nil {
		return nil, interpretFailure(err, c.settings.Retry)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			Attempts:   resp.Attempts,
			Timeout:    false,
			RetryAfter: c.settings.Retry.MaxDelay,
			Cause:      fmt.Errorf(errFmtReadVoices, err),
		}
	}

	var decoded voicesResponse

	err = parseJSON(data, &decoded, "voice list")
	if err != nil {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Attempts:   resp.Attempts,
			Code:       "",
			Message:    err.Error(),
			Body:       truncateBody(data),
		}
	}

	if len(decoded.Voices) > limit {
		decoded.Voices = decoded.Voices[:limit]
	}

	return decoded.Voices, nil
}

// Find looks up a voice by id among the first voices of the catalog.
func (c *VoiceCatalog) Find(ctx context.Context, voiceID string) (*Voice, error) {
	voices, err := c.List(ctx, voiceSearchLimit)
	if err != nil {
		return nil, err
	}

	for i := range voices {
		if voices[i].ID == voiceID {
			return &voices[i], nil
		}
	}

	return nil, fmt.Errorf(errFmtVoiceLookup, ErrVoiceNotFound, voiceID)
}

func truncateBody(data []byte) string {
	if len(data) > errorBodyLimit {
		data = data[:errorBodyLimit]
	}

	return string(data)
}
