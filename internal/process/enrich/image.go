package enrich

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	// Decoders registered for geometry extraction.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/media"
)

const imageTypePrefix = "image/"

// EnrichImage downloads an image, checks its type, reads its dimensions and
// encodes it as a data URI.
func (e *Enricher) EnrichImage(ctx context.Context, rec domain.ClassifiedRecord) domain.EnrichedRecord {
	dl, err := e.downloader.Fetch(ctx, rec.URL)
	if err != nil {
		return e.failed(rec, fmt.Sprintf("download: %v", err))
	}

	if len(dl.Data) == 0 {
		return e.failed(rec, errors.ErrEmptyMedia.Error())
	}

	if !strings.HasPrefix(dl.ContentType, imageTypePrefix) {
		return e.failed(rec, fmt.Sprintf("%v: %s", errors.ErrNotImage, dl.ContentType))
	}

	out := domain.EnrichedRecord{
		ClassifiedRecord: rec,
		ContentType:      dl.ContentType,
		Bytes:            int64(len(dl.Data)),
		DataURI:          media.EncodeDataURI(dl.ContentType, dl.Data),
		Image:            &domain.ImageInfo{Format: strings.TrimPrefix(dl.ContentType, imageTypePrefix)},
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(dl.Data))
	if err != nil {
		// Formats without a registered decoder (heic, svg) are still embeddable by reference.
		e.logger.Debug().Err(err).Str(logFieldRecordID, rec.ID).Str("content_type", dl.ContentType).Msg("image geometry unavailable")
	} else {
		out.Image = &domain.ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}
	}

	return succeeded(out)
}
