// Package config_test tests the configuration loading for the narration-service.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/narration-service/internal/config"
	"github.com/book-expert/narration-service/internal/httpclient"
	"github.com/book-expert/narration-service/internal/tts"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
[nats]
url = "nats://127.0.0.1:4222"
text_processed_subject = "text.processed"
audio_chunk_created_subject = "audio.chunk.created"
text_object_store_bucket = "TEXT_FILES"
audio_object_store_bucket = "AUDIO_FILES"

[provider]
base_url = "https://tts.example/v1"
api_key = "file-key"
default_voice_id = "voice-a"
default_model_id = "model-a"
timeout_ms = 15000

[retry]
max_retries = 0
base_delay_ms = 200
max_delay_ms = 800
backoff_factor = 3.0

[text_limits]
max_length = 1200
warning_length = 1000

[analytics]
publish_to_nats = true
synthesis_subject = "stats.synthesis"
error_subject = "stats.error"
metrics_addr = ":9102"

[paths]
base_logs_dir = "/var/log/narration"
`

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := toml.Unmarshal([]byte(fullConfig), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "text.processed", cfg.NATS.TextProcessedSubject)
	assert.Equal(t, "audio.chunk.created", cfg.NATS.AudioChunkCreatedSubject)
	assert.Equal(t, "TEXT_FILES", cfg.NATS.TextObjectStoreBucket)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "https://tts.example/v1", cfg.Provider.BaseURL)
	assert.Equal(t, "file-key", cfg.Provider.APIKey)
	assert.Equal(t, 15000, cfg.Provider.TimeoutMS)
	require.NotNil(t, cfg.Retry.MaxRetries)
	assert.Equal(t, 0, *cfg.Retry.MaxRetries)
	assert.InEpsilon(t, 3.0, cfg.Retry.BackoffFactor, 0.001)
	assert.Equal(t, 1200, cfg.TextLimits.MaxLength)
	assert.True(t, cfg.Analytics.PublishToNATS)
	assert.Equal(t, ":9102", cfg.Analytics.MetricsAddr)
	assert.Equal(t, "/var/log/narration", cfg.Paths.BaseLogsDir)

	require.NoError(t, cfg.Validate())

	policy := cfg.RetryPolicy()
	assert.Equal(t, uint(0), policy.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, 800*time.Millisecond, policy.MaxDelay)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()

	assert.Equal(t, tts.DefaultBaseURL, cfg.Provider.BaseURL)
	assert.Equal(t, tts.DefaultVoiceID, cfg.Provider.DefaultVoiceID)
	assert.Equal(t, tts.DefaultModelID, cfg.Provider.DefaultModelID)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout())
	assert.Equal(t, 5000, cfg.TextLimits.MaxLength)
	assert.Equal(t, 4000, cfg.TextLimits.WarningLength)
	assert.Equal(t, "analytics.synthesis", cfg.Analytics.SynthesisSubject)
	assert.Equal(t, "analytics.error", cfg.Analytics.ErrorSubject)
	assert.Equal(t, httpclient.RetryPolicy{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}, cfg.RetryPolicy())
}

func TestApplyEnvironment(t *testing.T) {
	t.Parallel()

	env := map[string]string{config.EnvAPIKey: "env-key"}
	getenv := func(key string) string { return env[key] }

	var fromEnv config.Config

	fromEnv.ApplyEnvironment(getenv)
	assert.Equal(t, "env-key", fromEnv.Provider.APIKey)

	var fromFile config.Config

	fromFile.Provider.APIKey = "file-key"
	fromFile.ApplyEnvironment(getenv)
	assert.Equal(t, "file-key", fromFile.Provider.APIKey, "file value wins")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() config.Config {
		var cfg config.Config

		cfg.ApplyDefaults()
		cfg.Provider.APIKey = "key"

		return cfg
	}

	negative := -1
	tooLong := 20000

	testCases := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{name: "missing key", mutate: func(cfg *config.Config) { cfg.Provider.APIKey = "" }, wantErr: tts.ErrMissingAPIKey},
		{name: "zero timeout", mutate: func(cfg *config.Config) { cfg.Provider.TimeoutMS = 0 }, wantErr: config.ErrInvalidTimeout},
		{name: "negative retries", mutate: func(cfg *config.Config) { cfg.Retry.MaxRetries = &negative }, wantErr: config.ErrNegativeRetries},
		{name: "zero max length", mutate: func(cfg *config.Config) { cfg.TextLimits.MaxLength = 0 }, wantErr: config.ErrInvalidMaxLength},
		{
			name:    "base above max delay",
			mutate:  func(cfg *config.Config) { cfg.Retry.BaseDelayMS = &tooLong },
			wantErr: httpclient.ErrBaseDelayExceedsMax,
		},
		{
			name:    "shrinking backoff",
			mutate:  func(cfg *config.Config) { cfg.Retry.BackoffFactor = 0.5 },
			wantErr: httpclient.ErrBackoffFactorRange,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			testCase.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), testCase.wantErr)
		})
	}

	t.Run("warning above max is clamped", func(t *testing.T) {
		t.Parallel()

		cfg := valid()
		cfg.TextLimits.MaxLength = 100
		cfg.TextLimits.WarningLength = 500

		require.NoError(t, cfg.Validate())
		assert.Equal(t, 100, cfg.TextLimits.WarningLength)
	})
}

func TestRetryPolicy_ExplicitZeroDelaysAreKept(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := toml.Unmarshal([]byte(`
[provider]
api_key = "key"

[retry]
base_delay_ms = 0
max_delay_ms = 500
`), &cfg)
	require.NoError(t, err)

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	policy := cfg.RetryPolicy()
	assert.Equal(t, time.Duration(0), policy.BaseDelay)
	assert.Equal(t, 500*time.Millisecond, policy.MaxDelay)
	assert.Equal(t, uint(config.DefaultMaxRetries), policy.MaxRetries)

	var noWait config.Config

	require.NoError(t, toml.Unmarshal([]byte("[retry]\nbase_delay_ms = 0\nmax_delay_ms = 0\n"), &noWait))
	noWait.ApplyDefaults()

	assert.Equal(t, time.Duration(0), noWait.RetryPolicy().MaxDelay)
	assert.Equal(t, 4*30*time.Second, noWait.WorstCaseLatency())
}

func TestWorstCaseLatency(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()

	// 4 attempts of 30s plus 1s + 2s + 4s of backoff.
	assert.Equal(t, 127*time.Second, cfg.WorstCaseLatency())
}

func TestSynthesizerSettings(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	require.NoError(t, toml.Unmarshal([]byte(fullConfig), &cfg))
	cfg.ApplyDefaults()

	settings := cfg.SynthesizerSettings()

	assert.Equal(t, "https://tts.example/v1", settings.BaseURL)
	assert.Equal(t, "file-key", settings.APIKey)
	assert.Equal(t, "voice-a", settings.DefaultVoiceID)
	assert.Equal(t, "model-a", settings.DefaultModelID)
	assert.Equal(t, 15*time.Second, settings.Timeout)
	assert.Equal(t, 1200, settings.MaxLength)
	assert.Equal(t, 1000, settings.WarningLength)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "narration.toml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.Provider.APIKey)
	assert.Equal(t, "stats.synthesis", cfg.Analytics.SynthesisSubject)

	_, err = config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	broken := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[provider\napi_key = 1"), 0o600))

	_, err = config.LoadFile(broken)
	require.Error(t, err)
}
