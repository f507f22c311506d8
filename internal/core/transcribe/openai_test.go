package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
)

func writeAudio(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "voice.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3 fake mp3"), 0o600))

	return path
}

func TestOpenAITranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "pt", r.FormValue("language"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"  bom dia  "}`)
	}))
	defer srv.Close()

	logger := zerolog.Nop()
	client := NewOpenAI(Config{APIKey: "key", Language: "pt", BaseURL: srv.URL + "/v1"}, &logger)

	text, err := client.Transcribe(context.Background(), writeAudio(t))
	require.NoError(t, err)
	assert.Equal(t, "bom dia", text)
}

func TestOpenAIDisabledWithoutKey(t *testing.T) {
	logger := zerolog.Nop()
	client := NewOpenAI(Config{}, &logger)

	require.False(t, client.Enabled())

	_, err := client.Transcribe(context.Background(), "unused")
	require.ErrorIs(t, err, errors.ErrClientDisabled)
}

func TestOpenAIEmptyTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":""}`)
	}))
	defer srv.Close()

	logger := zerolog.Nop()
	client := NewOpenAI(Config{APIKey: "key", BaseURL: srv.URL + "/v1"}, &logger)

	_, err := client.Transcribe(context.Background(), writeAudio(t))
	require.ErrorIs(t, err, errors.ErrEmptyResponse)
}

func TestOpenAICircuitOpensAfterFailures(t *testing.T) {
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad audio","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	logger := zerolog.Nop()
	client := NewOpenAI(Config{APIKey: "key", BaseURL: srv.URL + "/v1"}, &logger)
	path := writeAudio(t)

	for range circuitBreakerThreshold {
		_, err := client.Transcribe(context.Background(), path)
		require.Error(t, err)
	}

	_, err := client.Transcribe(context.Background(), path)
	require.ErrorIs(t, err, errors.ErrCircuitBreakerOpen)
	assert.Equal(t, circuitBreakerThreshold, calls)
}

func TestOpenAIRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"Olá, bom dia"}`)
	}))
	defer srv.Close()

	logger := zerolog.Nop()
	client := NewOpenAI(Config{
		APIKey:         "key",
		BaseURL:        srv.URL + "/v1",
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}, &logger)

	text, err := client.Transcribe(context.Background(), writeAudio(t))
	require.NoError(t, err)
	assert.Equal(t, "Olá, bom dia", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIRetryOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
	}{
		{name: "429 retried", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down","type":"rate_limit"}}`, wantCalls: 3},
		{name: "500 retried", status: http.StatusInternalServerError, wantCalls: 3},
		{name: "408 retried", status: http.StatusRequestTimeout, wantCalls: 3},
		{name: "400 permanent", status: http.StatusBadRequest, body: `{"error":{"message":"bad audio","type":"invalid_request_error"}}`, wantCalls: 1},
		{name: "401 permanent", status: http.StatusUnauthorized, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			logger := zerolog.Nop()
			client := NewOpenAI(Config{
				APIKey:         "key",
				BaseURL:        srv.URL + "/v1",
				MaxRetries:     2,
				RetryBaseDelay: time.Millisecond,
			}, &logger)

			_, err := client.Transcribe(context.Background(), writeAudio(t))
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestOpenAIExhaustedRetriesCountOnceForCircuit(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	logger := zerolog.Nop()
	client := NewOpenAI(Config{
		APIKey:         "key",
		BaseURL:        srv.URL + "/v1",
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	}, &logger)
	path := writeAudio(t)

	for i := range circuitBreakerThreshold - 1 {
		_, err := client.Transcribe(context.Background(), path)
		require.Error(t, err)
		require.NotErrorIs(t, err, errors.ErrCircuitBreakerOpen, "call %d", i)
	}

	_, err := client.Transcribe(context.Background(), path)
	require.Error(t, err)

	_, err = client.Transcribe(context.Background(), path)
	require.ErrorIs(t, err, errors.ErrCircuitBreakerOpen)
	assert.Equal(t, int32(circuitBreakerThreshold*2), calls.Load())
}

func TestCircuitBreaker(t *testing.T) {
	logger := zerolog.Nop()
	cb := NewCircuitBreaker(2, time.Hour, &logger)

	require.NoError(t, cb.CheckCircuit())

	cb.RecordFailure()
	require.NoError(t, cb.CheckCircuit())

	cb.RecordSuccess()
	cb.RecordFailure()
	require.NoError(t, cb.CheckCircuit(), "success resets the counter")

	cb.RecordFailure()
	require.ErrorIs(t, cb.CheckCircuit(), errors.ErrCircuitBreakerOpen)
}
