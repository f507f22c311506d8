package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
)

func strPtr(s string) *string {
	return &s
}

func TestClassifyScenarioTextImageAudio(t *testing.T) {
	messages := []domain.RawMessage{
		{
			ID: 1, CreatedAt: 100, Content: strPtr("Olá"), MessageType: domain.MessageTypeIncoming,
			Sender: &domain.Sender{Type: "contact", Name: "Maria"},
		},
		{
			ID: 2, CreatedAt: 200, Content: strPtr("Veja a foto"), MessageType: domain.MessageTypeIncoming,
			Sender:      &domain.Sender{Type: "contact", Name: "Maria"},
			Attachments: []domain.Attachment{{ID: 9, DataURL: "https://x/a.jpg", FileType: "image"}},
		},
		{
			ID: 3, CreatedAt: 300, MessageType: domain.MessageTypeOutgoing,
			Sender:      &domain.Sender{Type: "user", Name: ""},
			Attachments: []domain.Attachment{{ID: 10, DataURL: "https://x/v.ogg", FileType: "audio"}},
		},
	}

	res := Classify(messages)

	require.Len(t, res.Text, 2)
	require.Len(t, res.Image, 1)
	require.Len(t, res.Audio, 1)
	require.Empty(t, res.File)
	require.Len(t, res.Messages, 3)

	img := res.Image[0]
	assert.Equal(t, "2_9", img.ID)
	assert.Equal(t, "Veja a foto", img.Content, "caption is carried on the attachment")
	assert.Equal(t, domain.KindImage, img.Kind)
	assert.Equal(t, "jpg", img.Extension)

	audio := res.Audio[0]
	assert.Equal(t, domain.RoleAgent, audio.SenderRole)
	assert.Equal(t, domain.DefaultAgentName, audio.SenderName)
	assert.Equal(t, "ogg", audio.Extension)
}

func TestClassifyFiltersMessages(t *testing.T) {
	messages := []domain.RawMessage{
		{ID: 1, Content: strPtr("private"), Private: true},
		{ID: 2, Content: strPtr("activity"), MessageType: domain.MessageTypeActivity},
		{ID: 3, Content: strPtr("template"), MessageType: domain.MessageTypeTemplate},
		{ID: 4, Content: strPtr("   ")},
		{ID: 5, Content: nil},
		{ID: 6, Content: strPtr("kept")},
	}

	res := Classify(messages)

	require.Len(t, res.Messages, 1)
	require.Len(t, res.Text, 1)
	assert.Equal(t, "6", res.Text[0].ID)
	assert.Equal(t, domain.RoleCustomer, res.Text[0].SenderRole)
	assert.Equal(t, domain.DefaultCustomerName, res.Text[0].SenderName)
}

func TestClassifyMultipleAttachments(t *testing.T) {
	messages := []domain.RawMessage{{
		ID: 7, CreatedAt: 10, Sender: &domain.Sender{Type: "agent", Name: "João"},
		Attachments: []domain.Attachment{
			{ID: 1, DataURL: "https://x/a.png", FileType: "image"},
			{ID: 2, DataURL: "https://x/b.pdf", FileType: "file", FileName: "contrato.pdf"},
			{ID: 3, URL: "https://x/c.bin"},
		},
	}}

	res := Classify(messages)

	require.Empty(t, res.Text, "empty content produces no text record")
	require.Len(t, res.Image, 1)
	require.Len(t, res.File, 2)

	assert.Equal(t, "7_2", res.File[0].ID)
	assert.Equal(t, "pdf", res.File[0].Extension)
	assert.Equal(t, "contrato.pdf", res.File[0].FileName)
	assert.Equal(t, "application/pdf", res.File[0].MIME)

	assert.Equal(t, "https://x/c.bin", res.File[1].URL, "url is used when data_url is missing")
	assert.Equal(t, "bin", res.File[1].Extension)
	assert.Equal(t, "João", res.File[1].SenderName)
}

func TestClassifyInfersKindFromExtension(t *testing.T) {
	messages := []domain.RawMessage{{
		ID: 1, Attachments: []domain.Attachment{{ID: 1, DataURL: "https://x/photo.png?sig=abc"}},
	}}

	res := Classify(messages)

	require.Len(t, res.Image, 1)
	assert.Equal(t, "png", res.Image[0].Extension)
	assert.Equal(t, "image/png", res.Image[0].MIME)
}

func TestClassifyBucketsAreDisjointAndComplete(t *testing.T) {
	messages := []domain.RawMessage{
		{ID: 1, Content: strPtr("a"), Attachments: []domain.Attachment{{ID: 1, FileType: "image"}, {ID: 2, FileType: "audio"}}},
		{ID: 2, Content: strPtr("b")},
		{ID: 3, Attachments: []domain.Attachment{{ID: 3, FileType: "file"}}},
		{ID: 4, Private: true, Content: strPtr("hidden")},
	}

	res := Classify(messages)

	want := 0

	for _, m := range res.Messages {
		want += len(m.Attachments)
		if m.HasText() {
			want++
		}
	}

	assert.Equal(t, want, res.Total())

	seen := map[string]domain.Kind{}

	for _, bucket := range [][]domain.ClassifiedRecord{res.Text, res.Image, res.Audio, res.File} {
		for _, rec := range bucket {
			_, dup := seen[rec.ID+string(rec.Kind)]
			require.False(t, dup)

			seen[rec.ID+string(rec.Kind)] = rec.Kind
		}
	}
}
