// Package crmsync turns a resolved Chatwoot conversation into Pipedrive
// records: deal, person, organization, summary note and transcript.
package crmsync

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/chatwoot"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/media"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/pipedrive"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/output/transcript"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/config"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/process/classify"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/process/contact"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/process/enrich"
)

const (
	logFieldConversation = "conversation_id"
	logFieldAccount      = "account_id"
	logFieldDeal         = "deal_id"
	logFieldContact      = "contact_id"
	logFieldFile         = "file_name"

	mimePDF            = "application/pdf"
	defaultAttachName  = "arquivo"
	defaultAttachExt   = "bin"
	transcriptPDF      = "pdf"
	transcriptText     = "text"
	transcriptNone     = "none"
	largeFileThreshold = 5 * 1024 * 1024
)

// MessageSource returns the full, oldest-first history of a conversation.
type MessageSource interface {
	FetchAllMessages(ctx context.Context, conversationID, accountID string) ([]domain.RawMessage, error)
}

// ContactWriter stores attributes on the Chatwoot contact.
type ContactWriter interface {
	UpdateContactAttribute(ctx context.Context, accountID, contactID, key, value string) error
}

// CRM is the subset of Pipedrive used by the sync.
type CRM interface {
	CreateDeal(ctx context.Context, p domain.ContactProfile) (int64, error)
	CreatePerson(ctx context.Context, p domain.ContactProfile) (int64, error)
	FindOrCreateOrganization(ctx context.Context, name string) (int64, error)
	LinkDealRelations(ctx context.Context, dealID, personID, orgID int64) error
	CreateNote(ctx context.Context, dealID int64, content string) (int64, error)
	AttachFile(ctx context.Context, dealID int64, filename, dataURI, mimeHint string) (*pipedrive.File, error)
}

// Enricher downloads and enriches classified media.
type Enricher interface {
	EnrichAll(ctx context.Context, res classify.Result) []domain.EnrichedRecord
}

// Compile-time assertions that the concrete clients satisfy the interfaces.
var (
	_ MessageSource = (*chatwoot.Paginator)(nil)
	_ ContactWriter = (*chatwoot.Client)(nil)
	_ CRM           = (*pipedrive.Client)(nil)
	_ Enricher      = (*enrich.Enricher)(nil)
)

// Request identifies the conversation to sync. Payload is the webhook body
// the contact profile is extracted from.
type Request struct {
	ConversationID string
	AccountID      string
	Payload        map[string]any
}

// Result summarizes a completed sync.
type Result struct {
	DealID      int64
	CreatedDeal bool
	Messages    int
	Records     int
	Transcript  string
	Attachments int
}

type Syncer struct {
	cfg       *config.Config
	messages  MessageSource
	contacts  ContactWriter
	crm       CRM
	enricher  Enricher
	assembler *transcript.Assembler
	logger    *zerolog.Logger
}

func New(cfg *config.Config, messages MessageSource, contacts ContactWriter, crm CRM, enricher Enricher, assembler *transcript.Assembler, logger *zerolog.Logger) *Syncer {
	return &Syncer{
		cfg:       cfg,
		messages:  messages,
		contacts:  contacts,
		crm:       crm,
		enricher:  enricher,
		assembler: assembler,
		logger:    logger,
	}
}

// Sync runs the whole pipeline for one resolved conversation. CRM failures
// while creating entities are logged and do not stop the run; only a missing
// deal id or a failed history fetch abort it.
func (s *Syncer) Sync(ctx context.Context, req Request) (*Result, error) {
	logger := s.logger.With().Str(logFieldConversation, req.ConversationID).Str(logFieldAccount, req.AccountID).Logger()

	messages, err := s.messages.FetchAllMessages(ctx, req.ConversationID, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("fetch conversation history: %w", err)
	}

	classified := classify.Classify(messages)

	logger.Info().
		Int("messages", len(messages)).
		Int("text", len(classified.Text)).
		Int("image", len(classified.Image)).
		Int("audio", len(classified.Audio)).
		Int("file", len(classified.File)).
		Msg("conversation classified")

	profile := contact.Extract(req.Payload)
	if profile.DealID == "" {
		profile.DealID = contact.DealIDFromMessages(messages, s.cfg.ChatwootDealAttribute)
	}

	dealID, created := s.resolveDeal(ctx, &logger, req, profile)
	if dealID <= 0 {
		return nil, fmt.Errorf("conversation %s: %w", req.ConversationID, errors.ErrMissingDeal)
	}

	profile.DealID = strconv.FormatInt(dealID, 10)
	logger = logger.With().Int64(logFieldDeal, dealID).Logger()

	records := s.enricher.EnrichAll(ctx, classified)
	doc := s.assembler.Assemble(records, profile)

	res := &Result{
		DealID:      dealID,
		CreatedDeal: created,
		Messages:    len(classified.Messages),
		Records:     len(doc.Records),
	}

	res.Transcript = s.deliverTranscript(ctx, &logger, dealID, doc)
	res.Attachments = s.attachFiles(ctx, &logger, dealID, doc.Records)

	logger.Info().
		Str("transcript", res.Transcript).
		Int("attachments", res.Attachments).
		Bool("created_deal", created).
		Msg("conversation synced")

	return res, nil
}

// resolveDeal returns the existing deal id or creates deal, person and
// organization, links them and writes the deal id back to the contact.
func (s *Syncer) resolveDeal(ctx context.Context, logger *zerolog.Logger, req Request, profile domain.ContactProfile) (int64, bool) {
	if profile.HasDeal() {
		id, err := strconv.ParseInt(strings.TrimSpace(profile.DealID), 10, 64)
		if err != nil || id <= 0 {
			logger.Warn().Str(logFieldDeal, profile.DealID).Msg("existing deal id is not numeric")

			return 0, false
		}

		logger.Debug().Int64(logFieldDeal, id).Msg("using existing deal")

		return id, false
	}

	if profile.Name == "" && profile.Phone == "" {
		logger.Warn().Msg("contact has neither name nor phone, not creating CRM entities")

		return 0, false
	}

	dealID, err := s.crm.CreateDeal(ctx, profile)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create deal")

		return 0, false
	}

	personID, err := s.crm.CreatePerson(ctx, profile)
	if err != nil {
		logger.Error().Err(err).Int64(logFieldDeal, dealID).Msg("failed to create person")
	}

	var orgID int64

	if profile.Company != "" {
		orgID, err = s.crm.FindOrCreateOrganization(ctx, profile.Company)
		if err != nil {
			logger.Error().Err(err).Str("company", profile.Company).Msg("failed to resolve organization")
		}
	}

	if err := s.crm.LinkDealRelations(ctx, dealID, personID, orgID); err != nil {
		logger.Error().Err(err).Int64(logFieldDeal, dealID).Msg("failed to link deal relations")
	}

	s.writeBackDeal(ctx, logger, req, profile, dealID)

	return dealID, true
}

func (s *Syncer) writeBackDeal(ctx context.Context, logger *zerolog.Logger, req Request, profile domain.ContactProfile, dealID int64) {
	if profile.ContactID == "" {
		logger.Warn().Int64(logFieldDeal, dealID).Msg("contact id missing, deal id not stored in chatwoot")

		return
	}

	err := s.contacts.UpdateContactAttribute(ctx, req.AccountID, profile.ContactID, s.cfg.ChatwootDealAttribute, strconv.FormatInt(dealID, 10))
	if err != nil {
		logger.Error().Err(err).Str(logFieldContact, profile.ContactID).Msg("failed to store deal id on contact")
	}
}

// deliverTranscript creates the summary note and attaches the PDF. When the
// PDF cannot be rendered or uploaded the whole history goes into a note.
func (s *Syncer) deliverTranscript(ctx context.Context, logger *zerolog.Logger, dealID int64, doc transcript.Document) string {
	if _, err := s.crm.CreateNote(ctx, dealID, s.assembler.SummaryNote(doc.Contact)); err != nil {
		logger.Error().Err(err).Msg("failed to create summary note")
	}

	err := s.attachPDF(ctx, dealID, doc)
	if err == nil {
		return transcriptPDF
	}

	logger.Error().Err(err).Msg("pdf transcript failed, falling back to text note")

	text := s.assembler.RenderPlainText(doc)
	observability.TranscriptsRendered.WithLabelValues(transcriptText).Inc()

	if _, err := s.crm.CreateNote(ctx, dealID, text); err != nil {
		logger.Error().Err(err).Msg("failed to create fallback note")

		return transcriptNone
	}

	return transcriptText
}

func (s *Syncer) attachPDF(ctx context.Context, dealID int64, doc transcript.Document) error {
	pdf, err := s.assembler.RenderPDF(doc)
	if err != nil {
		return err
	}

	file, err := s.crm.AttachFile(ctx, dealID, s.assembler.PDFFileName(doc.Contact), media.EncodeDataURI(mimePDF, pdf), mimePDF)
	if err != nil {
		return fmt.Errorf("attach pdf: %w", err)
	}

	if file == nil {
		return fmt.Errorf("attach pdf: %w", errors.ErrEmptyResponse)
	}

	return nil
}

// attachFiles uploads documents, spreadsheets and large files that the PDF
// only references. Failures are logged per file.
func (s *Syncer) attachFiles(ctx context.Context, logger *zerolog.Logger, dealID int64, records []domain.EnrichedRecord) int {
	attached := 0

	for _, rec := range records {
		if !s.needsSeparateAttachment(rec) {
			continue
		}

		name := attachmentName(rec)

		file, err := s.crm.AttachFile(ctx, dealID, name, rec.DataURI, rec.ContentType)
		if err != nil {
			logger.Error().Err(err).Str(logFieldFile, name).Msg("failed to attach file")

			continue
		}

		if file != nil {
			attached++
		}
	}

	return attached
}

func (s *Syncer) needsSeparateAttachment(rec domain.EnrichedRecord) bool {
	if rec.Kind != domain.KindFile || !rec.Succeeded() || rec.DataURI == "" {
		return false
	}

	if rec.Category() == domain.CategoryDocument || rec.Category() == domain.CategorySpreadsheet {
		return true
	}

	limit := s.cfg.AttachLargeFileBytes
	if limit <= 0 {
		limit = largeFileThreshold
	}

	return rec.Size > limit || rec.Bytes > limit
}

func attachmentName(rec domain.EnrichedRecord) string {
	base := strings.TrimSpace(rec.FileName)
	ext := rec.Extension

	if base == "" {
		base = defaultAttachName
	}

	if ext == "" {
		ext = media.ExtensionFor(rec.ContentType)
	}

	if ext == "" {
		ext = defaultAttachExt
	}

	base = strings.TrimSuffix(base, "."+ext)

	return fmt.Sprintf("%s_%s.%s", base, rec.ID, ext)
}
