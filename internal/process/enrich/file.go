package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/media"
)

var (
	documentTypes = []string{
		"msword", "wordprocessingml", "opendocument.text", "rtf", "text/plain",
	}
	spreadsheetTypes = []string{
		"ms-excel", "spreadsheetml", "opendocument.spreadsheet", "text/csv",
	}
	presentationTypes = []string{
		"ms-powerpoint", "presentationml", "opendocument.presentation",
	}
	archiveTypes = []string{
		"zip", "x-rar", "vnd.rar", "x-7z", "gzip", "x-tar", "x-bzip",
	}

	extensionCategories = map[string]domain.FileCategory{
		"pdf":  domain.CategoryPDF,
		"jpg":  domain.CategoryImage,
		"jpeg": domain.CategoryImage,
		"png":  domain.CategoryImage,
		"gif":  domain.CategoryImage,
		"webp": domain.CategoryImage,
		"bmp":  domain.CategoryImage,
		"doc":  domain.CategoryDocument,
		"docx": domain.CategoryDocument,
		"odt":  domain.CategoryDocument,
		"rtf":  domain.CategoryDocument,
		"txt":  domain.CategoryDocument,
		"xls":  domain.CategorySpreadsheet,
		"xlsx": domain.CategorySpreadsheet,
		"ods":  domain.CategorySpreadsheet,
		"csv":  domain.CategorySpreadsheet,
		"ppt":  domain.CategoryPresentation,
		"pptx": domain.CategoryPresentation,
		"odp":  domain.CategoryPresentation,
		"zip":  domain.CategoryArchive,
		"rar":  domain.CategoryArchive,
		"7z":   domain.CategoryArchive,
		"gz":   domain.CategoryArchive,
		"tar":  domain.CategoryArchive,
	}
)

// EnrichFile downloads a generic attachment, categorizes it and encodes it as a data URI.
func (e *Enricher) EnrichFile(ctx context.Context, rec domain.ClassifiedRecord) domain.EnrichedRecord {
	dl, err := e.downloader.Fetch(ctx, rec.URL)
	if err != nil {
		out := e.failed(rec, fmt.Sprintf("download: %v", err))
		out.File = &domain.FileInfo{Category: Categorize("", rec.Extension)}

		return out
	}

	if len(dl.Data) == 0 {
		out := e.failed(rec, errors.ErrEmptyMedia.Error())
		out.File = &domain.FileInfo{Category: Categorize(dl.ContentType, rec.Extension)}

		return out
	}

	if rec.Extension == "" {
		rec.Extension = media.ExtensionFor(dl.ContentType)
	}

	return succeeded(domain.EnrichedRecord{
		ClassifiedRecord: rec,
		ContentType:      dl.ContentType,
		Bytes:            int64(len(dl.Data)),
		DataURI:          media.EncodeDataURI(dl.ContentType, dl.Data),
		File:             &domain.FileInfo{Category: Categorize(dl.ContentType, rec.Extension)},
	})
}

// Categorize maps a content type, then an extension, to a coarse file category.
func Categorize(contentType, extension string) domain.FileCategory {
	ct := strings.ToLower(contentType)

	switch {
	case strings.Contains(ct, "pdf"):
		return domain.CategoryPDF
	case strings.HasPrefix(ct, "image/"):
		return domain.CategoryImage
	case containsAny(ct, presentationTypes):
		return domain.CategoryPresentation
	case containsAny(ct, spreadsheetTypes):
		return domain.CategorySpreadsheet
	case containsAny(ct, documentTypes):
		return domain.CategoryDocument
	case containsAny(ct, archiveTypes):
		return domain.CategoryArchive
	}

	if cat, ok := extensionCategories[strings.ToLower(strings.TrimPrefix(extension, "."))]; ok {
		return cat
	}

	return domain.CategoryOther
}

func containsAny(s string, needles []string) bool {
	if s == "" {
		return false
	}

	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}

	return false
}
