package tts_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/book-expert/narration-service/internal/httpclient"
	"github.com/book-expert/narration-service/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func voiceListJSON(count int) string {
	entries := make([]string, 0, count)
	for i := range count {
		entries = append(entries, fmt.Sprintf(
			`{"voice_id":"voice-%d","name":"Voice %d","category":"premade","preview_url":"https://cdn.example/%d.mp3"}`,
			i, i, i,
		))
	}

	return `{"voices":[` + strings.Join(entries, ",") + `]}`
}

func newTestCatalog(t *testing.T, baseURL string) *tts.VoiceCatalog {
	t.Helper()

	client := httpclient.New(httpclient.WithSleep(noSleep))

	catalog, err := tts.NewVoiceCatalog(testSettings(baseURL), client)
	require.NoError(t, err)

	return catalog
}

func TestVoiceCatalog_List(t *testing.T) {
	t.Parallel()

	stub := newProviderStub(t, func(_ int, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(voiceListJSON(25)))
	})
	catalog := newTestCatalog(t, stub.server.URL)

	voices, err := catalog.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, voices, tts.DefaultVoiceLimit)

	assert.Equal(t, "voice-0", voices[0].ID)
	assert.Equal(t, "Voice 0", voices[0].Name)
	assert.Equal(t, "premade", voices[0].Category)
	assert.Equal(t, "https://cdn.example/0.mp3", voices[0].PreviewURL)

	request := stub.lastRequest(t)
	assert.Equal(t, "/voices", request.Path)
	assert.Equal(t, testAPIKey, request.APIKey)
	assert.Equal(t, "application/json", request.Accept)

	voices, err = catalog.List(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, voices, 3)
}

func TestVoiceCatalog_Find(t *testing.T) {
	t.Parallel()

	stub := newProviderStub(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(voiceListJSON(60)))
	})
	catalog := newTestCatalog(t, stub.server.URL)

	voice, err := catalog.Find(context.Background(), "voice-57")
	require.NoError(t, err)
	assert.Equal(t, "Voice 57", voice.Name)

	_, err = catalog.Find(context.Background(), "voice-missing")
	require.ErrorIs(t, err, tts.ErrVoiceNotFound)
}

func TestVoiceCatalog_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"detail":"bad key"}`, wantErr: tts.ErrProvider},
		{name: "server down", status: http.StatusServiceUnavailable, body: "", wantErr: tts.ErrTransport},
		{name: "malformed payload", status: http.StatusOK, body: "<html>", wantErr: tts.ErrProvider},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			stub := newProviderStub(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(testCase.status)
				_, _ = w.Write([]byte(testCase.body))
			})
			catalog := newTestCatalog(t, stub.server.URL)

			_, err := catalog.List(context.Background(), 5)
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestNewVoiceCatalog_RequiresKey(t *testing.T) {
	t.Parallel()

	settings := testSettings("http://localhost")
	settings.APIKey = ""

	_, err := tts.NewVoiceCatalog(settings, httpclient.New())
	require.ErrorIs(t, err, tts.ErrMissingAPIKey)
}
