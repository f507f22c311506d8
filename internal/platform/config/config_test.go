package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Test environment variable keys.
const (
	testEnvChatwootURL   = "CHATWOOT_BASE_URL"
	testEnvChatwootToken = "CHATWOOT_API_TOKEN"
	testEnvChatwootKey   = "CHATWOOT_API_KEY"
	testEnvPipedrive     = "PIPEDRIVE_API_TOKEN"
	testEnvIgnored       = "IGNORED_ACCOUNT_IDS"
)

// Test values.
const (
	testChatwootURL   = "https://chat.example.com/"
	testChatwootToken = "cw-token"
	testPipedrive     = "pd-token"
	testErrLoad       = "Load() error = %v"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()

	t.Setenv(testEnvChatwootURL, testChatwootURL)
	t.Setenv(testEnvChatwootToken, testChatwootToken)
	t.Setenv(testEnvPipedrive, testPipedrive)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv(testEnvChatwootURL, "")
	t.Setenv(testEnvPipedrive, "")
	os.Unsetenv(testEnvChatwootURL)
	os.Unsetenv(testEnvPipedrive)

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_MissingChatwootToken(t *testing.T) {
	setRequiredEnvVars(t)
	os.Unsetenv(testEnvChatwootToken)
	t.Setenv(testEnvChatwootKey, "")
	os.Unsetenv(testEnvChatwootKey)

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingChatwootToken)
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	require.NoError(t, err, testErrLoad, err)

	require.Equal(t, "https://chat.example.com", cfg.ChatwootBaseURL, "trailing slash is trimmed")
	require.Equal(t, testChatwootToken, cfg.ChatwootAPIToken)
	require.Equal(t, testPipedrive, cfg.PipedriveAPIToken)
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	for _, key := range []string{
		"APP_ENV", "HTTP_PORT", "PORT", "CHATWOOT_MAX_PAGES", "CHATWOOT_PAGE_DELAY",
		"MEDIA_MAX_RETRIES", "TRANSCRIPTION_MAX_RETRIES", "TRANSCRIPTION_MODEL", "TRANSCRIPTION_LANGUAGE", "PIPEDRIVE_BASE_URL",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err, testErrLoad, err)

	require.Equal(t, "local", cfg.AppEnv)
	require.Equal(t, 3000, cfg.HTTPPort)
	require.Equal(t, 100, cfg.ChatwootMaxPages)
	require.Equal(t, 200*time.Millisecond, cfg.ChatwootPageDelay)
	require.Equal(t, 2, cfg.MediaMaxRetries)
	require.Equal(t, "whisper-1", cfg.TranscriptionModel)
	require.Equal(t, "pt", cfg.TranscriptionLanguage)
	require.Equal(t, "https://api.pipedrive.com/v1", cfg.PipedriveBaseURL)
	require.Equal(t, "id_deal_pipedrive", cfg.ChatwootDealAttribute)
	require.Equal(t, time.Duration(0), cfg.TranscriptionTimeout)
	require.Equal(t, 2, cfg.TranscriptionRetries)
}

func TestLoad_Aliases(t *testing.T) {
	setRequiredEnvVars(t)
	os.Unsetenv(testEnvChatwootToken)
	os.Unsetenv("HTTP_PORT")
	t.Setenv(testEnvChatwootKey, "legacy-key")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err, testErrLoad, err)

	require.Equal(t, "legacy-key", cfg.ChatwootAPIToken)
	require.Equal(t, 9090, cfg.HTTPPort)
}

func TestLoad_InvalidNumeric(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("CHATWOOT_MAX_PAGES", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsZeroTempDurations(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "sweep interval", key: "TEMP_SWEEP_INTERVAL"},
		{name: "max age", key: "TEMP_MAX_AGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv(tt.key, "0s")

			_, err := Load()
			require.Error(t, err)
			require.Contains(t, err.Error(), "validating config")
		})
	}
}

func TestLoad_ValidationFails(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("WORKER_COUNT", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_IsAccountIgnored(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv(testEnvIgnored, "2, 7")

	cfg, err := Load()
	require.NoError(t, err, testErrLoad, err)

	tests := []struct {
		name      string
		accountID string
		want      bool
	}{
		{name: "listed", accountID: "2", want: true},
		{name: "listed with spaces", accountID: "7", want: true},
		{name: "not listed", accountID: "1", want: false},
		{name: "empty", accountID: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, cfg.IsAccountIgnored(tt.accountID))
		})
	}
}

func TestConfig_Location(t *testing.T) {
	cfg := &Config{TranscriptTimezone: "America/Sao_Paulo"}
	require.Equal(t, "America/Sao_Paulo", cfg.Location().String())

	cfg.TranscriptTimezone = "Nowhere/Invalid"
	require.Equal(t, time.UTC, cfg.Location())
}
