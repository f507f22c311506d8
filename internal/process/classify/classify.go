// Package classify turns raw chat messages into typed records bucketed by content kind.
package classify

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
)

// Sender types reported by Chatwoot for agents.
const (
	senderTypeUser  = "user"
	senderTypeAgent = "agent"
)

// Result holds the classified records of a conversation.
// Every kept message contributes to at least one bucket.
type Result struct {
	Text  []domain.ClassifiedRecord
	Image []domain.ClassifiedRecord
	Audio []domain.ClassifiedRecord
	File  []domain.ClassifiedRecord

	// Messages are the raw messages that passed the filter.
	Messages []domain.RawMessage
}

// Total returns the number of records across all buckets.
func (r Result) Total() int {
	return len(r.Text) + len(r.Image) + len(r.Audio) + len(r.File)
}

// Classify filters out private and non-conversational messages and splits the
// rest into per-kind records. A message with both text and attachments yields
// a text record plus one record per attachment; each attachment record carries
// the message text as its caption.
func Classify(messages []domain.RawMessage) Result {
	var res Result

	for _, msg := range messages {
		if !keep(msg) {
			continue
		}

		res.Messages = append(res.Messages, msg)

		base := envelope(msg)

		for _, att := range msg.Attachments {
			rec := attachmentRecord(base, msg.ID, att)

			switch rec.Kind {
			case domain.KindImage:
				res.Image = append(res.Image, rec)
			case domain.KindAudio:
				res.Audio = append(res.Audio, rec)
			default:
				res.File = append(res.File, rec)
			}
		}

		if msg.HasText() {
			rec := base
			rec.Kind = domain.KindText
			rec.ID = fmt.Sprintf("%d", msg.ID)
			res.Text = append(res.Text, rec)
		}
	}

	return res
}

func keep(msg domain.RawMessage) bool {
	if msg.Private || !msg.MessageType.IsConversational() {
		return false
	}

	return msg.HasText() || len(msg.Attachments) > 0
}

func envelope(msg domain.RawMessage) domain.ClassifiedRecord {
	role, name := senderIdentity(msg.Sender)

	return domain.ClassifiedRecord{
		SourceMessageID: msg.ID,
		SenderName:      name,
		SenderRole:      role,
		CreatedAt:       msg.CreatedAt,
		Content:         msg.Text(),
	}
}

func senderIdentity(sender *domain.Sender) (domain.Role, string) {
	role := domain.RoleCustomer
	fallback := domain.DefaultCustomerName

	if sender == nil {
		return role, fallback
	}

	switch strings.ToLower(sender.Type) {
	case senderTypeUser, senderTypeAgent:
		role = domain.RoleAgent
		fallback = domain.DefaultAgentName
	}

	name := strings.TrimSpace(sender.Name)
	if name == "" {
		name = fallback
	}

	return role, name
}

func attachmentRecord(base domain.ClassifiedRecord, msgID int64, att domain.Attachment) domain.ClassifiedRecord {
	rec := base
	rec.ID = fmt.Sprintf("%d_%d", msgID, att.ID)
	rec.URL = att.SourceURL()
	rec.FileName = att.FileName
	rec.Size = att.FileSize
	rec.Extension = normalizeExtension(att.Extension)

	if rec.Extension == "" {
		rec.Extension = normalizeExtension(path.Ext(att.FileName))
	}

	if rec.Extension == "" {
		rec.Extension = normalizeExtension(path.Ext(urlPath(rec.URL)))
	}

	fileType := strings.ToLower(strings.TrimSpace(att.FileType))
	rec.MIME = mimeHint(fileType, rec.Extension)

	if fileType == "" {
		fileType = rec.MIME
	}

	switch {
	case strings.Contains(fileType, "image"):
		rec.Kind = domain.KindImage
	case strings.Contains(fileType, "audio"):
		rec.Kind = domain.KindAudio
	default:
		rec.Kind = domain.KindFile
	}

	return rec
}

// mimeHint guesses a MIME type from the attachment's declared type or extension.
func mimeHint(fileType, ext string) string {
	if strings.Contains(fileType, "/") {
		return fileType
	}

	if ext != "" {
		if t := mime.TypeByExtension("." + ext); t != "" {
			return t
		}
	}

	return ""
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func urlPath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}

	return raw
}
