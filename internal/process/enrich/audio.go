package enrich

import (
	"context"
	"fmt"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/media"
)

// Reasons rendered inside the transcript placeholder.
const (
	ReasonNoAPIKey      = "Chave da API não configurada"
	ReasonDownload      = "falha ao baixar o áudio"
	ReasonEmptyAudio    = "arquivo de áudio vazio"
	ReasonTranscode     = "falha ao converter o áudio"
	ReasonTranscription = "erro no serviço de transcrição"
	ReasonTempFile      = "falha ao gravar arquivo temporário"
)

const defaultAudioExtension = "ogg"

// TranscriptPlaceholder renders the text shown instead of a transcript.
func TranscriptPlaceholder(reason string) string {
	return fmt.Sprintf("[Transcrição indisponível: %s]", reason)
}

// EnrichAudio downloads a voice note, converts it to the canonical encoding
// and transcribes it. On any failure the transcript holds a placeholder.
// Both scratch files are removed on every path.
func (e *Enricher) EnrichAudio(ctx context.Context, rec domain.ClassifiedRecord) domain.EnrichedRecord {
	if e.transcriber == nil {
		return e.audioFailed(rec, ReasonNoAPIKey, nil)
	}

	dl, err := e.downloader.Fetch(ctx, rec.URL)
	if err != nil {
		return e.audioFailed(rec, ReasonDownload, err)
	}

	if len(dl.Data) == 0 {
		return e.audioFailed(rec, ReasonEmptyAudio, errors.ErrEmptyMedia)
	}

	ext := rec.Extension
	if ext == "" {
		ext = media.ExtensionFor(dl.ContentType)
	}

	if ext == "" {
		ext = defaultAudioExtension
	}

	raw, err := e.temp.Write("audio_in", ext, dl.Data)
	if err != nil {
		return e.audioFailed(rec, ReasonTempFile, err)
	}
	defer raw.Release()

	converted := e.temp.Reserve("audio_out", "mp3")
	defer converted.Release()

	if err := e.transcoder.ToMP3(ctx, raw.Path, converted.Path); err != nil {
		return e.audioFailed(rec, ReasonTranscode, err)
	}

	text, err := e.transcriber.Transcribe(ctx, converted.Path)
	if err != nil {
		reason := ReasonTranscription
		if errors.Is(err, errors.ErrClientDisabled) {
			reason = ReasonNoAPIKey
		}

		return e.audioFailed(rec, reason, err)
	}

	return succeeded(domain.EnrichedRecord{
		ClassifiedRecord: rec,
		ContentType:      dl.ContentType,
		Bytes:            int64(len(dl.Data)),
		Audio:            &domain.AudioInfo{Transcript: text, Encoding: CanonicalEncoding},
	})
}

func (e *Enricher) audioFailed(rec domain.ClassifiedRecord, reason string, cause error) domain.EnrichedRecord {
	detail := reason
	if cause != nil {
		detail = fmt.Sprintf("%s: %v", reason, cause)
	}

	out := e.failed(rec, detail)
	out.Audio = &domain.AudioInfo{Transcript: TranscriptPlaceholder(reason)}

	return out
}
