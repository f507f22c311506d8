// Package transcribe converts voice notes to text with OpenAI Whisper.
package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 2 * time.Minute

	defaultRetryBase = 500 * time.Millisecond
	maxRetryInterval = 8 * time.Second
	retryMultiplier  = 2
)

// Config configures the Whisper client.
type Config struct {
	APIKey   string
	Model    string
	Language string

	// Timeout bounds a single request; zero leaves it to the caller's context.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a retryable failure.
	MaxRetries     int
	RetryBaseDelay time.Duration

	// BaseURL overrides the OpenAI endpoint.
	BaseURL string
}

// OpenAI transcribes audio files through the OpenAI audio API.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
	timeout  time.Duration
	retries  int
	baseWait time.Duration
	breaker  *CircuitBreaker
	logger   *zerolog.Logger
}

func NewOpenAI(cfg Config, logger *zerolog.Logger) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	baseWait := cfg.RetryBaseDelay
	if baseWait <= 0 {
		baseWait = defaultRetryBase
	}

	var client *openai.Client
	if cfg.APIKey != "" {
		client = openai.NewClientWithConfig(clientCfg)
	}

	return &OpenAI{
		client:   client,
		model:    model,
		language: cfg.Language,
		timeout:  cfg.Timeout,
		retries:  max(cfg.MaxRetries, 0),
		baseWait: baseWait,
		breaker:  NewCircuitBreaker(circuitBreakerThreshold, circuitBreakerTimeout, logger),
		logger:   logger,
	}
}

// Enabled reports whether an API key was configured.
func (c *OpenAI) Enabled() bool {
	return c.client != nil
}

// Transcribe returns the text spoken in the audio file at audioPath.
func (c *OpenAI) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if !c.Enabled() {
		return "", errors.ErrClientDisabled
	}

	if err := c.breaker.CheckCircuit(); err != nil {
		return "", err
	}

	var (
		resp    openai.AudioResponse
		attempt int
	)

	start := time.Now()

	op := func() error {
		attempt++

		var err error

		resp, err = c.createOnce(ctx, audioPath)
		if err != nil {
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("transcription attempt failed")

			if !retryable(err) {
				return backoff.Permanent(err)
			}

			return err
		}

		return nil
	}

	if err := backoff.Retry(op, c.policy(ctx)); err != nil {
		c.breaker.RecordFailure()

		return "", fmt.Errorf("create transcription after %d attempt(s): %w", attempt, err)
	}

	c.breaker.RecordSuccess()

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("transcription: %w", errors.ErrEmptyResponse)
	}

	c.logger.Debug().Int("chars", len(text)).Dur("elapsed", time.Since(start)).Msg("audio transcribed")

	return text, nil
}

func (c *OpenAI) createOnce(ctx context.Context, audioPath string) (openai.AudioResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: audioPath,
		Language: c.language,
		Format:   openai.AudioResponseFormatJSON,
	})

	observability.TranscriptionDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())

	return resp, err
}

func (c *OpenAI) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.baseWait
	exp.Multiplier = retryMultiplier
	exp.MaxInterval = maxRetryInterval
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.retries)), ctx)
}

// retryable reports whether a failed call may succeed on another attempt:
// transport failures, 408, 429 and 5xx.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return !errors.Is(err, context.Canceled)
	}

	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
