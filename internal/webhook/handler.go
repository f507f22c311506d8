// Package webhook receives Chatwoot webhooks and schedules the CRM sync of
// resolved conversations.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	coreerrors "github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/config"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/worker"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/process/contact"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/process/crmsync"
)

const (
	maxBodySize       = 5 * 1024 * 1024
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
	statusResolved    = "resolved"
	jobName           = "conversation-sync"

	logFieldConversation = "conversation_id"
	logFieldAccount      = "account_id"
	logFieldJob          = "job_id"
)

// Response statuses.
const (
	StatusError      = "error"
	StatusIgnored    = "ignored"
	StatusProcessing = "processing-started"
)

// Outcome labels for the received webhooks metric.
const (
	outcomeInvalid   = "invalid"
	outcomeIgnored   = "ignored"
	outcomeRejected  = "rejected"
	outcomeScheduled = "scheduled"
)

// Events that can carry a resolved conversation. Payloads without an event
// field are accepted as well.
var allowedEvents = map[string]struct{}{
	"message_created":             {},
	"conversation_status_changed": {},
	"conversation_updated":        {},
}

var (
	conversationIDPaths = []string{
		"conversation.id",
		"id",
		"conversation_id",
		"meta.conversation.id",
	}

	accountIDPaths = []string{
		"messages.0.account_id",
		"account_id",
		"account.id",
		"meta.account_id",
		"conversation.account_id",
	}

	statusPaths = []string{
		"status",
		"conversation.status",
	}
)

// Syncer runs the CRM sync for one conversation.
type Syncer interface {
	Sync(ctx context.Context, req crmsync.Request) (*crmsync.Result, error)
}

// Submitter enqueues background jobs.
type Submitter interface {
	Submit(job worker.Job) (string, error)
}

// Response is the JSON body returned to Chatwoot.
type Response struct {
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	JobID          string `json:"job_id,omitempty"`
}

// Handler acknowledges webhooks immediately and runs the sync in the background.
type Handler struct {
	cfg    *config.Config
	syncer Syncer
	jobs   Submitter
	logger *zerolog.Logger
}

func NewHandler(cfg *config.Config, syncer Syncer, jobs Submitter, logger *zerolog.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		syncer: syncer,
		jobs:   jobs,
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.reply(w, http.StatusBadRequest, outcomeInvalid, Response{Status: StatusError, Reason: "failed to read body"})

		return
	}

	payload, err := parseBody(raw)
	if err != nil {
		h.logger.Warn().Err(err).Msg("rejecting webhook")

		reason := "unsupported webhook format"
		if errors.Is(err, errMalformed) {
			reason = "invalid JSON"
		}

		h.reply(w, http.StatusBadRequest, outcomeInvalid, Response{Status: StatusError, Reason: reason})

		return
	}

	conversationID := contact.FirstNonEmpty(payload, conversationIDPaths...)

	accountID := contact.FirstNonEmpty(payload, accountIDPaths...)
	if accountID == "" {
		accountID = h.cfg.ChatwootAccountID
	}

	if h.cfg.IsAccountIgnored(accountID) {
		h.reply(w, http.StatusOK, outcomeIgnored, Response{Status: StatusIgnored, Reason: "account ignored", ConversationID: conversationID})

		return
	}

	if reason, ok := h.eligible(payload); !ok {
		h.reply(w, http.StatusOK, outcomeIgnored, Response{Status: StatusIgnored, Reason: reason, ConversationID: conversationID})

		return
	}

	if conversationID == "" {
		h.reply(w, http.StatusBadRequest, outcomeInvalid, Response{Status: StatusError, Reason: "conversation id not found"})

		return
	}

	if accountID == "" {
		h.reply(w, http.StatusBadRequest, outcomeInvalid, Response{Status: StatusError, Reason: "account id not found", ConversationID: conversationID})

		return
	}

	h.schedule(w, crmsync.Request{
		ConversationID: conversationID,
		AccountID:      accountID,
		Payload:        payload,
	})
}

// eligible reports whether the payload describes a resolved conversation.
func (h *Handler) eligible(payload map[string]any) (string, bool) {
	if event, _ := contact.Lookup(payload, "event"); event != "" {
		if _, ok := allowedEvents[event]; !ok {
			return "event " + event + " not handled", false
		}
	}

	status := strings.ToLower(contact.FirstNonEmpty(payload, statusPaths...))
	if status != statusResolved {
		if status == "" {
			status = "unknown"
		}

		return "conversation status is " + status, false
	}

	return "", true
}

func (h *Handler) schedule(w http.ResponseWriter, req crmsync.Request) {
	logger := h.logger.With().Str(logFieldConversation, req.ConversationID).Str(logFieldAccount, req.AccountID).Logger()

	jobID, err := h.jobs.Submit(worker.Job{
		Name: jobName,
		Run: func(ctx context.Context) error {
			_, err := h.syncer.Sync(ctx, req)

			return err
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to schedule sync")

		status := http.StatusInternalServerError
		if coreerrors.Is(err, coreerrors.ErrQueueFull) || coreerrors.Is(err, coreerrors.ErrPoolStopped) {
			status = http.StatusServiceUnavailable
		}

		h.reply(w, status, outcomeRejected, Response{Status: StatusError, Reason: err.Error(), ConversationID: req.ConversationID})

		return
	}

	logger.Info().Str(logFieldJob, jobID).Msg("sync scheduled")

	h.reply(w, http.StatusOK, outcomeScheduled, Response{Status: StatusProcessing, ConversationID: req.ConversationID, JobID: jobID})
}

func (h *Handler) reply(w http.ResponseWriter, code int, outcome string, resp Response) {
	observability.WebhooksReceived.WithLabelValues(outcome).Inc()

	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Debug().Err(err).Msg("failed to write webhook response")
	}
}

