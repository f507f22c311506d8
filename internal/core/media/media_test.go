package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
)

type staticAuth struct {
	host string
}

func (a staticAuth) OwnsURL(rawURL string) bool {
	return bytes.Contains([]byte(rawURL), []byte(a.host))
}

func (a staticAuth) AuthHeader() (string, string) {
	return "api_access_token", "tok"
}

func newTestDownloader(cfg DownloaderConfig) *Downloader {
	logger := zerolog.Nop()
	cfg.RetryBaseDelay = time.Millisecond

	return NewDownloader(cfg, &logger)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.White)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

func TestDownloaderFetch(t *testing.T) {
	body := pngBytes(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("api_access_token"))
		assert.Equal(t, userAgent, r.Header.Get(headerUserAgent))

		w.Header().Set(headerContentType, "application/octet-stream")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	d := newTestDownloader(DownloaderConfig{Auth: staticAuth{host: "127.0.0.1"}})

	got, err := d.Fetch(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	assert.Equal(t, body, got.Data)
	assert.Equal(t, "image/png", got.ContentType, "generic content type is sniffed")
}

func TestDownloaderRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.Header().Set(headerContentType, "audio/ogg; codecs=opus")
		_, _ = w.Write([]byte("OggS"))
	}))
	defer srv.Close()

	d := newTestDownloader(DownloaderConfig{MaxRetries: 2})

	got, err := d.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "audio/ogg", got.ContentType)
}

func TestDownloaderGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := newTestDownloader(DownloaderConfig{MaxRetries: 1})

	_, err := d.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, errors.ErrHTTPStatus)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownloaderClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := newTestDownloader(DownloaderConfig{MaxRetries: 3})

	_, err := d.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, errors.ErrHTTPStatus)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownloaderSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 64))
	}))
	defer srv.Close()

	d := newTestDownloader(DownloaderConfig{MaxBytes: 16, MaxRetries: 2})

	_, err := d.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, errors.ErrBodyTooLarge)
}

func TestDownloaderEmptyURL(t *testing.T) {
	d := newTestDownloader(DownloaderConfig{})

	_, err := d.Fetch(context.Background(), "")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestDataURIRoundTrip(t *testing.T) {
	payloads := [][]byte{{}, []byte("hello"), pngBytes(t), {0, 1, 2, 255}}

	for _, data := range payloads {
		uri := EncodeDataURI("image/png", data)

		ct, got, err := DecodeDataURI(uri)
		require.NoError(t, err)
		assert.Equal(t, "image/png", ct)
		assert.Equal(t, len(data), len(got))
		assert.True(t, bytes.Equal(data, got))
	}
}

func TestDecodeDataURIInvalid(t *testing.T) {
	for _, uri := range []string{"http://x", "data:text/plain,hi", "data:image/png;base64"} {
		_, _, err := DecodeDataURI(uri)
		require.Error(t, err, uri)
	}
}

func TestResolveContentType(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{name: "declared wins", declared: "image/jpeg", data: []byte("x"), want: "image/jpeg"},
		{name: "params stripped", declared: "text/plain; charset=utf-8", want: "text/plain"},
		{name: "sniffed pdf", declared: "", data: []byte("%PDF-1.4\n"), want: "application/pdf"},
		{name: "empty everything", want: contentTypeOctetStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveContentType(tt.declared, tt.data))
		})
	}
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "pdf", ExtensionFor("application/pdf"))
	assert.Equal(t, "png", ExtensionFor("image/png; charset=binary"))
	assert.Empty(t, ExtensionFor("application/x-made-up"))
}
