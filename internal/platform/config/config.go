package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"3000" validate:"min=1,max=65535"`

	// Chatwoot
	ChatwootBaseURL       string        `env:"CHATWOOT_BASE_URL,required" validate:"required,url"`
	ChatwootAPIToken      string        `env:"CHATWOOT_API_TOKEN"`
	ChatwootAccountID     string        `env:"CHATWOOT_ACCOUNT_ID"`
	ChatwootMaxPages      int           `env:"CHATWOOT_MAX_PAGES" envDefault:"100" validate:"min=1"`
	ChatwootPageDelay     time.Duration `env:"CHATWOOT_PAGE_DELAY" envDefault:"200ms"`
	ChatwootDealAttribute string        `env:"CHATWOOT_DEAL_ATTRIBUTE" envDefault:"id_deal_pipedrive" validate:"required"`
	IgnoredAccountIDs     []string      `env:"IGNORED_ACCOUNT_IDS" envSeparator:","`

	// Pipedrive
	PipedriveAPIToken        string `env:"PIPEDRIVE_API_TOKEN,required" validate:"required"`
	PipedriveBaseURL         string `env:"PIPEDRIVE_BASE_URL" envDefault:"https://api.pipedrive.com/v1" validate:"url"`
	PipedriveDealStageID     int    `env:"PIPEDRIVE_DEAL_STAGE_ID" envDefault:"1"`
	PipedriveFieldCase       string `env:"PIPEDRIVE_FIELD_CASE"`
	PipedriveFieldNationalID string `env:"PIPEDRIVE_FIELD_NATIONAL_ID"`
	PipedriveFieldProfession string `env:"PIPEDRIVE_FIELD_PROFESSION"`

	// Transcription
	OpenAIAPIKey          string        `env:"OPENAI_API_KEY"`
	TranscriptionModel    string        `env:"TRANSCRIPTION_MODEL" envDefault:"whisper-1"`
	TranscriptionLanguage string        `env:"TRANSCRIPTION_LANGUAGE" envDefault:"pt"`
	TranscriptionTimeout  time.Duration `env:"TRANSCRIPTION_TIMEOUT" envDefault:"0s"`
	TranscriptionRetries  int           `env:"TRANSCRIPTION_MAX_RETRIES" envDefault:"2" validate:"min=0,max=10"`
	FFmpegPath            string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`

	// Media and temp files
	TempDir              string        `env:"TEMP_DIR"`
	TempMaxAge           time.Duration `env:"TEMP_MAX_AGE" envDefault:"6h" validate:"gt=0"`
	TempSweepInterval    time.Duration `env:"TEMP_SWEEP_INTERVAL" envDefault:"1h" validate:"gt=0"`
	MediaDownloadTimeout time.Duration `env:"MEDIA_DOWNLOAD_TIMEOUT" envDefault:"30s"`
	MediaMaxRetries      int           `env:"MEDIA_MAX_RETRIES" envDefault:"2" validate:"min=0,max=10"`
	MediaConcurrency     int           `env:"MEDIA_CONCURRENCY" envDefault:"4" validate:"min=1"`

	// Background sync jobs
	WorkerCount     int           `env:"WORKER_COUNT" envDefault:"2" validate:"min=1"`
	WorkerQueueSize int           `env:"WORKER_QUEUE_SIZE" envDefault:"64" validate:"min=1"`
	SyncTimeout     time.Duration `env:"SYNC_TIMEOUT" envDefault:"30m"`
	DrainTimeout    time.Duration `env:"SHUTDOWN_DRAIN_TIMEOUT" envDefault:"30s"`

	// Transcript rendering
	TranscriptTimezone   string `env:"TRANSCRIPT_TIMEZONE" envDefault:"America/Sao_Paulo"`
	AttachLargeFileBytes int64  `env:"ATTACH_LARGE_FILE_BYTES" envDefault:"5242880"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyAliases(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsAccountIgnored reports whether webhooks for the account must be skipped.
func (c *Config) IsAccountIgnored(accountID string) bool {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return false
	}

	for _, id := range c.IgnoredAccountIDs {
		if strings.TrimSpace(id) == accountID {
			return true
		}
	}

	return false
}

// Location returns the timezone used for transcript timestamps, UTC when unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TranscriptTimezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if cfg.ChatwootAPIToken == "" {
		return fmt.Errorf("validating config: %w", ErrMissingChatwootToken)
	}

	return nil
}

func applyAliases(cfg *Config) {
	if !hasEnv("CHATWOOT_API_TOKEN") {
		setStringFromEnv("CHATWOOT_API_KEY", &cfg.ChatwootAPIToken)
	}

	if !hasEnv("HTTP_PORT") {
		setIntFromEnv("PORT", &cfg.HTTPPort)
	}

	cfg.ChatwootBaseURL = strings.TrimRight(cfg.ChatwootBaseURL, "/")
	cfg.PipedriveBaseURL = strings.TrimRight(cfg.PipedriveBaseURL, "/")
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setStringFromEnv(key string, target *string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return
	}

	*target = val
}

func setIntFromEnv(key string, target *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return
	}

	*target = parsed
}
