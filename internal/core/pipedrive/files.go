package pipedrive

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/media"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
)

const (
	defaultUploadRetryDelay = 2 * time.Second
	maxUploadRetryInterval  = 10 * time.Second
	uploadRetryMultiplier   = 2
	formFieldFile           = "file"
	formFieldDealID         = "deal_id"
	contentDispositionFmt   = `form-data; name="%s"; filename="%s"`
	logFieldFile            = "file_name"
)

// Pipedrive rejects audio uploads; transcripts carry that content instead.
var audioExtensions = map[string]struct{}{
	"mp3": {}, "mp4": {}, "m4a": {}, "ogg": {}, "oga": {}, "opus": {},
	"wav": {}, "webm": {}, "aac": {}, "amr": {}, "flac": {}, "3gp": {},
}

// AttachFile uploads a base64 data URI to the deal. The filename gets an
// extension derived from the content type when it has none. Audio files are
// skipped and return (nil, nil). Network errors, 429 and 5xx are retried.
func (c *Client) AttachFile(ctx context.Context, dealID int64, filename, dataURI, mimeHint string) (*File, error) {
	if dealID <= 0 {
		return nil, fmt.Errorf("attach file: %w", errors.ErrInvalidID)
	}

	contentType, data, err := media.DecodeDataURI(dataURI)
	if err != nil {
		return nil, fmt.Errorf("attach file %s: %w", filename, err)
	}

	if contentType == "" {
		contentType = mimeHint
	}

	filename = withExtension(filename, contentType)

	if isAudio(filename, contentType) {
		c.logger.Debug().Str(logFieldFile, filename).Msg("skipping audio upload")

		return nil, nil //nolint:nilnil // skipped uploads are not errors
	}

	var (
		file    File
		attempt int
	)

	op := func() error {
		attempt++

		err := c.upload(ctx, dealID, filename, contentType, data, &file)
		if err != nil {
			c.logger.Debug().Err(err).Str(logFieldFile, filename).Int("attempt", attempt).Msg("file upload attempt failed")
		}

		return err
	}

	if err := backoff.Retry(op, c.uploadPolicy(ctx)); err != nil {
		return nil, fmt.Errorf("attach file %s to deal %d after %d attempt(s): %w", filename, dealID, attempt, err)
	}

	c.logger.Info().Int64(logFieldDealID, dealID).Str(logFieldFile, filename).Int64("file_id", file.ID).Msg("file attached to deal")

	return &file, nil
}

func (c *Client) uploadPolicy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.UploadRetryDelay
	exp.Multiplier = uploadRetryMultiplier
	exp.MaxInterval = maxUploadRetryInterval
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.cfg.UploadMaxRetries)), ctx)
}

func (c *Client) upload(ctx context.Context, dealID int64, filename, contentType string, data []byte, out *File) (err error) {
	defer func() {
		status := statusOK
		if err != nil {
			status = statusError
		}

		observability.CRMRequests.WithLabelValues(opAttachFile, status).Inc()
	}()

	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	part, err := w.CreatePart(filePartHeader(filename, contentType))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create form file: %w", err))
	}

	if _, err := part.Write(data); err != nil {
		return backoff.Permanent(fmt.Errorf("write form file: %w", err))
	}

	if err := w.WriteField(formFieldDealID, strconv.FormatInt(dealID, 10)); err != nil {
		return backoff.Permanent(fmt.Errorf("write form field: %w", err))
	}

	if err := w.Close(); err != nil {
		return backoff.Permanent(fmt.Errorf("close form: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/files", nil), &buf)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set(headerContentType, w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	err = decodeEnvelope(resp, out)
	if err != nil && !retryableStatus(resp.StatusCode) {
		return backoff.Permanent(err)
	}

	return err
}

func filePartHeader(filename, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(contentDispositionFmt, formFieldFile, escapeQuotes(filename)))

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h.Set(headerContentType, contentType)

	return h
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

func withExtension(filename, contentType string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "arquivo"
	}

	if extensionOf(filename) != "" {
		return filename
	}

	if ext := media.ExtensionFor(contentType); ext != "" {
		return filename + "." + ext
	}

	return filename
}

func extensionOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}

func isAudio(filename, contentType string) bool {
	if _, ok := audioExtensions[extensionOf(filename)]; ok {
		return true
	}

	return strings.HasPrefix(strings.ToLower(contentType), "audio/")
}
