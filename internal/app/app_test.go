package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		AppEnv:                "test",
		HTTPPort:              0,
		ChatwootBaseURL:       "http://chatwoot.local",
		ChatwootAPIToken:      "token",
		ChatwootMaxPages:      10,
		ChatwootDealAttribute: "id_deal_pipedrive",
		PipedriveAPIToken:     "pd",
		PipedriveBaseURL:      "http://pipedrive.local/v1",
		TempDir:               t.TempDir(),
		TempMaxAge:            time.Hour,
		TempSweepInterval:     time.Hour,
		MediaConcurrency:      2,
		WorkerCount:           1,
		WorkerQueueSize:       4,
		SyncTimeout:           time.Minute,
		DrainTimeout:          time.Second,
		TranscriptTimezone:    "UTC",
	}
}

func TestNewWiresComponents(t *testing.T) {
	logger := zerolog.Nop()

	a, err := New(testConfig(t), &logger)
	require.NoError(t, err)

	assert.NotNil(t, a.pool)
	assert.NotNil(t, a.server)
	assert.NotNil(t, a.janitor)
}

func TestRunStopsOnCancel(t *testing.T) {
	logger := zerolog.Nop()

	a, err := New(testConfig(t), &logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	time.AfterFunc(200*time.Millisecond, cancel)

	require.NoError(t, a.Run(ctx))
}

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "success", want: jobStatusSuccess},
		{name: "failure", err: errors.New("boom"), want: jobStatusFailed},
		{name: "timeout", err: fmt.Errorf("sync: %w", context.DeadlineExceeded), want: jobStatusTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, jobStatus(tt.err))
		})
	}
}
