// Package media downloads chat attachments and converts them between
// representations used by the transcript and the CRM.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBytes     = 50 * 1024 * 1024
	defaultRetryBase    = time.Second
	maxRetryInterval    = 10 * time.Second
	retryMultiplier     = 2
	headerContentType   = "Content-Type"
	headerUserAgent     = "User-Agent"
	userAgent           = "ChatwootPipedriveSync/1.0"
	errStatusFmt        = "%w: status %d"
	logFieldURL         = "url"
	logFieldAttempt     = "attempt"
	statusClientErrorLo = 400
	statusServerErrorLo = 500
)

// Authorizer supplies credentials for URLs that need them.
type Authorizer interface {
	OwnsURL(rawURL string) bool
	AuthHeader() (name, value string)
}

// DownloaderConfig configures a Downloader.
type DownloaderConfig struct {
	// Timeout bounds each attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RetryBaseDelay is the first backoff delay; it doubles up to 10s.
	RetryBaseDelay time.Duration

	// MaxBytes caps the body size.
	MaxBytes int64

	Auth Authorizer
}

// Download is a fetched attachment.
type Download struct {
	Data        []byte
	ContentType string
}

// Downloader fetches media with bounded retries.
type Downloader struct {
	cfg    DownloaderConfig
	client *http.Client
	logger *zerolog.Logger
}

func NewDownloader(cfg DownloaderConfig, logger *zerolog.Logger) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}

	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBase
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Downloader{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger,
	}
}

// Fetch downloads rawURL. Network errors, 408, 429 and 5xx are retried;
// other 4xx and oversized bodies fail immediately.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (*Download, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty url", errors.ErrInvalidInput)
	}

	var (
		result  *Download
		attempt int
	)

	op := func() error {
		attempt++

		res, err := d.fetchOnce(ctx, rawURL)
		if err != nil {
			d.logger.Debug().Err(err).Str(logFieldURL, rawURL).Int(logFieldAttempt, attempt).Msg("media download attempt failed")

			return err
		}

		result = res

		return nil
	}

	if err := backoff.Retry(op, d.policy(ctx)); err != nil {
		return nil, fmt.Errorf("download %s after %d attempt(s): %w", rawURL, attempt, err)
	}

	observability.MediaDownloadBytes.Observe(float64(len(result.Data)))

	return result, nil
}

func (d *Downloader) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = d.cfg.RetryBaseDelay
	exp.Multiplier = retryMultiplier
	exp.MaxInterval = maxRetryInterval
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(d.cfg.MaxRetries)), ctx)
}

func (d *Downloader) fetchOnce(ctx context.Context, rawURL string) (*Download, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set(headerUserAgent, userAgent)

	if d.cfg.Auth != nil && d.cfg.Auth.OwnsURL(rawURL) {
		name, value := d.cfg.Auth.AuthHeader()
		req.Header.Set(name, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := fmt.Errorf(errStatusFmt, errors.ErrHTTPStatus, resp.StatusCode)
		if !retryableStatus(resp.StatusCode) {
			return nil, backoff.Permanent(statusErr)
		}

		return nil, statusErr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if int64(len(data)) > d.cfg.MaxBytes {
		return nil, backoff.Permanent(fmt.Errorf("%w: limit %d bytes", errors.ErrBodyTooLarge, d.cfg.MaxBytes))
	}

	return &Download{
		Data:        data,
		ContentType: ResolveContentType(resp.Header.Get(headerContentType), data),
	}, nil
}

func retryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}

	return code >= statusServerErrorLo || code < statusClientErrorLo
}
