package transcript

import (
	"fmt"
	"strings"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
)

const (
	timestampLayout = "02/01/2006 15:04:05"
	fileDateLayout  = "02-01-2006"
	unknownDate     = "Data desconhecida"
	unknownSender   = "Desconhecido"
)

// Placeholders shown when media is unavailable.
const (
	ImageUnavailable = "[Imagem não disponível]"
	FileUnavailable  = "[Arquivo não disponível]"
	pdfAttachedNote  = "Documento PDF completo anexado ao Deal no Pipedrive"
	fileAttachedNote = "Documento anexado ao Deal no Pipedrive"
	defaultImageName = "Imagem"
	defaultFileName  = "Arquivo"
	defaultAudioName = "Mensagem de voz"
)

func (a *Assembler) formatTime(ts domain.Timestamp) string {
	if ts == 0 {
		return unknownDate
	}

	return ts.Time().In(a.loc).Format(timestampLayout)
}

func senderOf(rec domain.EnrichedRecord) string {
	if strings.TrimSpace(rec.SenderName) == "" {
		return unknownSender
	}

	return rec.SenderName
}

func (a *Assembler) header(rec domain.EnrichedRecord) string {
	return fmt.Sprintf("[%s] %s:", a.formatTime(rec.CreatedAt), senderOf(rec))
}

func fileLabel(rec domain.EnrichedRecord, fallback string) string {
	name := strings.TrimSpace(rec.FileName)
	if name == "" {
		name = fallback
	}

	if rec.Extension != "" && !strings.HasSuffix(strings.ToLower(name), "."+rec.Extension) {
		name += "." + rec.Extension
	}

	return name
}

func audioLine(rec domain.EnrichedRecord) string {
	if rec.Succeeded() {
		return `[Áudio transcrito]: "` + rec.Transcript() + `"`
	}

	if rec.Transcript() != "" {
		return "[Áudio]: " + rec.Transcript()
	}

	return "[Áudio]: " + TranscriptUnavailable
}

// TranscriptUnavailable is used when an audio record carries no placeholder.
const TranscriptUnavailable = "[Transcrição indisponível]"

// PDFFileName names the transcript attachment.
func (a *Assembler) PDFFileName(contact domain.ContactProfile) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, contact.DisplayName())

	return fmt.Sprintf("Conversa_Completa_%s_%s.pdf", name, a.now().In(a.loc).Format(fileDateLayout))
}

// SummaryNote is the short note created next to the PDF attachment.
func (a *Assembler) SummaryNote(contact domain.ContactProfile) string {
	return fmt.Sprintf("Conversa com %s finalizada em %s. Conteúdo completo disponível no documento PDF anexado a este Deal.",
		contact.DisplayName(), a.now().In(a.loc).Format(timestampLayout))
}
