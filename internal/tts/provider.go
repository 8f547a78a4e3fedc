package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/book-expert/narration-service/internal/httpclient"
)

// Provider defaults.
const (
	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID = "eleven_multilingual_v2"
)

const (
	headerAPIKey       = "xi-api-key"
	headerContentType  = "Content-Type"
	headerAccept       = "Accept"
	contentTypeJSON    = "application/json"
	speechPathFormat   = "/text-to-speech/"
	voicesPath         = "/voices"
	errorBodyLimit     = 2048
	unreadableBodyText = "<error body unavailable>"
)

// speechRequest is the provider's text-to-speech request body.
type speechRequest struct {
	ModelID string `json:"model_id"`
	Text    string `json:"text"`
}

// providerErrorBody is the provider's error envelope. Detail is either a plain
// string or an object with status and message.
type providerErrorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type providerErrorDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// Voice is one entry of the provider's voice catalog.
type Voice struct {
	ID         string `json:"voice_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PreviewURL string `json:"preview_url"`
}

func speechURL(baseURL, voiceID string) string {
	return strings.TrimRight(baseURL, "/") + speechPathFormat + url.PathEscape(voiceID)
}

func voicesURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + voicesPath
}

func providerHeader(apiKey, accept string) http.Header {
	header := make(http.Header)
	header.Set(headerAPIKey, apiKey)
	header.Set(headerContentType, contentTypeJSON)
	header.Set(headerAccept, accept)

	return header
}

// interpretFailure turns an httpclient error into the synthesis error taxonomy.
// A permanent failure's body is read best-effort and always closed.
func interpretFailure(err error, policy httpclient.RetryPolicy) error {
	var permanentErr *httpclient.PermanentError
	if errors.As(err, &permanentErr) {
		return newProviderError(permanentErr.Response)
	}

	var exhaustedErr *httpclient.ExhaustedError
	if errors.As(err, &exhaustedErr) {
		return &TransportError{
			Attempts:   exhaustedErr.Attempts,
			Timeout:    exhaustedErr.TimedOut(),
			RetryAfter: policy.MaxDelay,
			Cause:      exhaustedErr.Cause,
		}
	}

	var abortedErr *httpclient.AbortedError
	if errors.As(err, &abortedErr) {
		return &TransportError{
			Attempts:   abortedErr.Attempts,
			Timeout:    errors.Is(abortedErr.Cause, context.DeadlineExceeded),
			RetryAfter: policy.MaxDelay,
			Cause:      abortedErr.Cause,
		}
	}

	return &TransportError{
		Attempts:   0,
		Timeout:    errors.Is(err, httpclient.ErrAttemptTimeout),
		RetryAfter: policy.MaxDelay,
		Cause:      err,
	}
}

func newProviderError(resp *httpclient.Response) *ProviderError {
	providerErr := &ProviderError{
		StatusCode: resp.StatusCode,
		Attempts:   resp.Attempts,
		Code:       "",
		Message:    "",
		Body:       unreadableBodyText,
	}

	if resp.Body == nil {
		return providerErr
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if readErr != nil || len(data) == 0 {
		return providerErr
	}

	providerErr.Body = strings.TrimSpace(string(data))
	providerErr.Code, providerErr.Message = parseProviderError(data)

	return providerErr
}

func parseProviderError(data []byte) (string, string) {
	var body providerErrorBody

	err := parseJSON(data, &body, "provider error")
	if err != nil || len(body.Detail) == 0 {
		return "", ""
	}

	var message string

	err = parseJSON(body.Detail, &message, "provider error detail")
	if err == nil {
		return "", message
	}

	var detail providerErrorDetail

	err = parseJSON(body.Detail, &detail, "provider error detail")
	if err != nil {
		return "", ""
	}

	return detail.Status, detail.Message
}
