// Package enrich downloads and interprets the media attached to classified records.
//
// Enrichment never fails the pipeline: a record whose media cannot be fetched
// or understood is returned with a failed status and a reason, so it still
// appears at its place in the transcript.
package enrich

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/media"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/tempfs"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/process/classify"
)

const (
	defaultConcurrency = 4
	logFieldRecordID   = "record_id"
	logFieldKind       = "kind"
	logFieldReason     = "reason"
)

// Downloader fetches media bytes.
type Downloader interface {
	Fetch(ctx context.Context, rawURL string) (*media.Download, error)
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Transcoder converts arbitrary audio into the canonical encoding.
type Transcoder interface {
	ToMP3(ctx context.Context, in, out string) error
}

// Deps are the collaborators of an Enricher. Transcriber may be nil when no
// transcription credentials are configured.
type Deps struct {
	Downloader  Downloader
	Transcriber Transcriber
	Transcoder  Transcoder
	TempDir     *tempfs.Dir
}

// Enricher enriches image, audio and file records.
type Enricher struct {
	downloader  Downloader
	transcriber Transcriber
	transcoder  Transcoder
	temp        *tempfs.Dir
	concurrency int
	logger      *zerolog.Logger
}

func New(deps Deps, concurrency int, logger *zerolog.Logger) *Enricher {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Enricher{
		downloader:  deps.Downloader,
		transcriber: deps.Transcriber,
		transcoder:  deps.Transcoder,
		temp:        deps.TempDir,
		concurrency: concurrency,
		logger:      logger,
	}
}

type enrichFunc func(ctx context.Context, rec domain.ClassifiedRecord) domain.EnrichedRecord

// EnrichAll enriches every bucket in parallel and returns all records,
// text included, in no particular order.
func (e *Enricher) EnrichAll(ctx context.Context, res classify.Result) []domain.EnrichedRecord {
	images := make([]domain.EnrichedRecord, len(res.Image))
	audios := make([]domain.EnrichedRecord, len(res.Audio))
	files := make([]domain.EnrichedRecord, len(res.File))

	var g errgroup.Group

	g.Go(func() error {
		e.enrichBucket(ctx, res.Image, images, e.EnrichImage)
		return nil
	})
	g.Go(func() error {
		e.enrichBucket(ctx, res.Audio, audios, e.EnrichAudio)
		return nil
	})
	g.Go(func() error {
		e.enrichBucket(ctx, res.File, files, e.EnrichFile)
		return nil
	})

	_ = g.Wait() //nolint:errcheck // bucket workers never return errors

	out := make([]domain.EnrichedRecord, 0, res.Total())

	for _, rec := range res.Text {
		out = append(out, domain.FromText(rec))
	}

	out = append(out, images...)
	out = append(out, audios...)
	out = append(out, files...)

	return out
}

func (e *Enricher) enrichBucket(ctx context.Context, in []domain.ClassifiedRecord, out []domain.EnrichedRecord, fn enrichFunc) {
	var g errgroup.Group

	g.SetLimit(e.concurrency)

	for i, rec := range in {
		g.Go(func() error {
			out[i] = e.safely(ctx, rec, fn)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // item workers never return errors
}

func (e *Enricher) safely(ctx context.Context, rec domain.ClassifiedRecord, fn enrichFunc) (res domain.EnrichedRecord) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str(logFieldRecordID, rec.ID).Msg("recovered from panic during enrichment")

			res = e.failed(rec, fmt.Sprintf("panic: %v", r))
		}
	}()

	return fn(ctx, rec)
}

func (e *Enricher) failed(rec domain.ClassifiedRecord, reason string) domain.EnrichedRecord {
	e.logger.Warn().Str(logFieldRecordID, rec.ID).Str(logFieldKind, string(rec.Kind)).Str(logFieldReason, reason).Msg("media enrichment failed")
	observability.MediaEnriched.WithLabelValues(string(rec.Kind), string(domain.EnrichFailed)).Inc()

	return domain.EnrichedRecord{
		ClassifiedRecord: rec,
		Status:           domain.EnrichFailed,
		FailureReason:    reason,
	}
}

func succeeded(out domain.EnrichedRecord) domain.EnrichedRecord {
	out.Status = domain.EnrichSucceeded
	observability.MediaEnriched.WithLabelValues(string(out.Kind), string(domain.EnrichSucceeded)).Inc()

	return out
}
