package transcript

import (
	"fmt"
	"strings"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
)

const plainTextTitle = "📝 Histórico da Conversa com Cliente via Chatwoot"

// RenderPlainText renders the fallback note: one entry per record with its
// timestamp, sender and content or placeholder, followed by a summary line.
func (a *Assembler) RenderPlainText(doc Document) string {
	var b strings.Builder

	b.WriteString(plainTextTitle)
	b.WriteString("\n")

	if doc.Contact.Name != "" {
		fmt.Fprintf(&b, "Contato: %s\n", doc.Contact.Name)
	}

	b.WriteString("\n")

	for _, rec := range doc.Records {
		a.writePlainRecord(&b, rec)
	}

	if total := doc.Counts.Total(); total > 0 {
		b.WriteString("\n---\n")
		fmt.Fprintf(&b, "Resumo da conversa: %d mensagens no total", total)
		writeCount(&b, doc.Counts.Text, "mensagens de texto")
		writeCount(&b, doc.Counts.Image, "imagens")
		writeCount(&b, doc.Counts.Audio, "áudios")
		writeCount(&b, doc.Counts.File, "arquivos")
	}

	return strings.TrimSpace(b.String())
}

func (a *Assembler) writePlainRecord(b *strings.Builder, rec domain.EnrichedRecord) {
	stamp := a.formatTime(rec.CreatedAt)
	sender := senderOf(rec)

	switch rec.Kind {
	case domain.KindAudio:
		fmt.Fprintf(b, "[%s] %s (áudio): %s\n", stamp, sender, fileLabel(rec, defaultAudioName))

		if rec.Succeeded() {
			fmt.Fprintf(b, "    Transcrição: \"%s\"\n\n", rec.Transcript())
		} else {
			fmt.Fprintf(b, "    Transcrição: %s\n\n", placeholderOr(rec.Transcript(), TranscriptUnavailable))
		}
	case domain.KindImage:
		fmt.Fprintf(b, "[%s] %s (imagem): %s", stamp, sender, fileLabel(rec, defaultImageName))

		if !rec.Succeeded() {
			b.WriteString(" " + ImageUnavailable)
		}

		b.WriteString("\n\n")
	case domain.KindFile:
		fmt.Fprintf(b, "[%s] %s (arquivo): %s", stamp, sender, fileLabel(rec, defaultFileName))

		if !rec.Succeeded() {
			b.WriteString(" " + FileUnavailable)
		}

		b.WriteString("\n\n")
	default:
		fmt.Fprintf(b, "[%s] %s: %s\n\n", stamp, sender, rec.Content)
	}
}

func writeCount(b *strings.Builder, n int, label string) {
	if n > 0 {
		fmt.Fprintf(b, ", %d %s", n, label)
	}
}

func placeholderOr(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}
