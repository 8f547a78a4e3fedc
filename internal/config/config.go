// Package config provides the configuration structure for the narration-service.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/analytics"
	"github.com/book-expert/narration-service/internal/httpclient"
	"github.com/book-expert/narration-service/internal/tts"
	"github.com/pelletier/go-toml/v2"
)

// EnvAPIKey is consulted when provider.api_key is not set in the file.
const EnvAPIKey = "ELEVENLABS_API_KEY"

// Defaults applied to zero-valued settings.
const (
	DefaultTimeoutMS                = 30000
	DefaultMaxRetries               = 3
	DefaultBaseDelayMS              = 1000
	DefaultMaxDelayMS               = 10000
	DefaultBackoffFactor            = 2.0
	DefaultMaxLength                = 5000
	DefaultWarningLength            = 4000
	DefaultTextProcessedSubject     = "text.processed"
	DefaultAudioChunkCreatedSubject = "audio.chunk.created"
	DefaultTextBucket               = "TEXT_FILES"
	DefaultAudioBucket              = "AUDIO_FILES"
)

var (
	// ErrNegativeRetries is returned for a negative retry.max_retries.
	ErrNegativeRetries = errors.New("retry.max_retries must be >= 0")
	// ErrInvalidMaxLength is returned for a non-positive text_limits.max_length.
	ErrInvalidMaxLength = errors.New("text_limits.max_length must be > 0")
	// ErrInvalidTimeout is returned for a non-positive provider.timeout_ms.
	ErrInvalidTimeout = errors.New("provider.timeout_ms must be > 0")
)

const (
	errFmtLoad     = "failed to load configuration from configurator: %w"
	errFmtReadFile = "failed to read config file %s: %w"
	errFmtDecode   = "failed to decode config file %s: %w"
	errFmtRetry    = "invalid retry settings: %w"
	errFmtNoAPIKey = "%w: set provider.api_key or %s"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	TextProcessedSubject     string `toml:"text_processed_subject"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
	TextObjectStoreBucket    string `toml:"text_object_store_bucket"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
}

// ProviderConfig holds the text-to-speech provider settings.
type ProviderConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	DefaultVoiceID string `toml:"default_voice_id"`
	DefaultModelID string `toml:"default_model_id"`
	TimeoutMS      int    `toml:"timeout_ms"`
}

// RetryConfig holds the retry policy for provider calls.
type RetryConfig struct {
	// The counts and delays are pointers so an explicit 0 is kept: no retries,
	// or no wait between them.
	MaxRetries    *int    `toml:"max_retries"`
	BaseDelayMS   *int    `toml:"base_delay_ms"`
	MaxDelayMS    *int    `toml:"max_delay_ms"`
	BackoffFactor float64 `toml:"backoff_factor"`
}

// TextLimitsConfig holds the text length limits, in characters.
type TextLimitsConfig struct {
	MaxLength     int `toml:"max_length"`
	WarningLength int `toml:"warning_length"`
}

// AnalyticsConfig selects where synthesis records go.
type AnalyticsConfig struct {
	PublishToNATS    bool   `toml:"publish_to_nats"`
	SynthesisSubject string `toml:"synthesis_subject"`
	ErrorSubject     string `toml:"error_subject"`
	// MetricsAddr enables the Prometheus endpoint when set, e.g. ":9102".
	MetricsAddr string `toml:"metrics_addr"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS       NATSConfig       `toml:"nats"`
	Provider   ProviderConfig   `toml:"provider"`
	Retry      RetryConfig      `toml:"retry"`
	TextLimits TextLimitsConfig `toml:"text_limits"`
	Analytics  AnalyticsConfig  `toml:"analytics"`
	Paths      PathsConfig      `toml:"paths"`
}

// Load loads the configuration for the narration-service through the central
// configurator, then applies defaults, the environment secret and validation.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf(errFmtLoad, err)
	}

	return finish(&cfg)
}

// LoadFile loads a local TOML file. The command line client uses it instead of
// the configurator.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadFile, path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf(errFmtDecode, path, err)
	}

	return finish(&cfg)
}

// FromEnvironment builds a configuration from defaults and the environment secret.
func FromEnvironment() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()
	cfg.ApplyEnvironment(os.Getenv)

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills zero-valued settings.
func (c *Config) ApplyDefaults() {
	setDefault(&c.NATS.TextProcessedSubject, DefaultTextProcessedSubject)
	setDefault(&c.NATS.AudioChunkCreatedSubject, DefaultAudioChunkCreatedSubject)
	setDefault(&c.NATS.TextObjectStoreBucket, DefaultTextBucket)
	setDefault(&c.NATS.AudioObjectStoreBucket, DefaultAudioBucket)

	setDefault(&c.Provider.BaseURL, tts.DefaultBaseURL)
	setDefault(&c.Provider.DefaultVoiceID, tts.DefaultVoiceID)
	setDefault(&c.Provider.DefaultModelID, tts.DefaultModelID)
	setDefault(&c.Provider.TimeoutMS, DefaultTimeoutMS)

	setUnset(&c.Retry.MaxRetries, DefaultMaxRetries)
	setUnset(&c.Retry.BaseDelayMS, DefaultBaseDelayMS)
	setUnset(&c.Retry.MaxDelayMS, DefaultMaxDelayMS)
	setDefault(&c.Retry.BackoffFactor, DefaultBackoffFactor)

	setDefault(&c.TextLimits.MaxLength, DefaultMaxLength)
	setDefault(&c.TextLimits.WarningLength, DefaultWarningLength)

	setDefault(&c.Analytics.SynthesisSubject, analytics.DefaultSynthesisSubject)
	setDefault(&c.Analytics.ErrorSubject, analytics.DefaultErrorSubject)
}

// ApplyEnvironment takes the provider secret from the environment when the file
// does not carry one.
func (c *Config) ApplyEnvironment(getenv func(string) string) {
	if c.Provider.APIKey == "" {
		c.Provider.APIKey = getenv(EnvAPIKey)
	}
}

// Validate checks the settings. A warning length above the maximum is clamped
// rather than rejected.
func (c *Config) Validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf(errFmtNoAPIKey, tts.ErrMissingAPIKey, EnvAPIKey)
	}

	if c.Provider.TimeoutMS <= 0 {
		return ErrInvalidTimeout
	}

	if c.maxRetries() < 0 {
		return ErrNegativeRetries
	}

	if c.TextLimits.MaxLength <= 0 {
		return ErrInvalidMaxLength
	}

	c.TextLimits.WarningLength = min(c.TextLimits.WarningLength, c.TextLimits.MaxLength)

	err := c.RetryPolicy().Validate()
	if err != nil {
		return fmt.Errorf(errFmtRetry, err)
	}

	return nil
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() httpclient.RetryPolicy {
	return httpclient.RetryPolicy{
		MaxRetries:    uint(max(c.maxRetries(), 0)),
		BaseDelay:     time.Duration(valueOr(c.Retry.BaseDelayMS, DefaultBaseDelayMS)) * time.Millisecond,
		MaxDelay:      time.Duration(valueOr(c.Retry.MaxDelayMS, DefaultMaxDelayMS)) * time.Millisecond,
		BackoffFactor: c.Retry.BackoffFactor,
	}
}

// ProviderTimeout is the per-attempt timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutMS) * time.Millisecond
}

// WorstCaseLatency bounds a single synthesis call: every attempt times out and
// every backoff delay is slept.
func (c *Config) WorstCaseLatency() time.Duration {
	return c.RetryPolicy().WorstCaseLatency(c.ProviderTimeout())
}

// SynthesizerSettings converts the provider, retry and limit sections.
func (c *Config) SynthesizerSettings() tts.Settings {
	return tts.Settings{
		BaseURL:        c.Provider.BaseURL,
		APIKey:         c.Provider.APIKey,
		DefaultVoiceID: c.Provider.DefaultVoiceID,
		DefaultModelID: c.Provider.DefaultModelID,
		Timeout:        c.ProviderTimeout(),
		Retry:          c.RetryPolicy(),
		MaxLength:      c.TextLimits.MaxLength,
		WarningLength:  c.TextLimits.WarningLength,
	}
}

func (c *Config) maxRetries() int {
	return valueOr(c.Retry.MaxRetries, DefaultMaxRetries)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// setUnset fills an optional setting that the file left out.
func setUnset[T any](field **T, value T) {
	if *field == nil {
		*field = &value
	}
}

func valueOr[T any](field *T, fallback T) T {
	if field == nil {
		return fallback
	}

	return *field
}
