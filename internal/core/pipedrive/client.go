// Package pipedrive is a minimal client for the Pipedrive v1 REST API
// covering deals, persons, organizations, notes and file uploads.
package pipedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/errors"
	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/platform/observability"
)

const (
	defaultBaseURL      = "https://api.pipedrive.com/v1"
	defaultTimeout      = 60 * time.Second
	defaultStageID      = 1
	queryAPIToken       = "api_token"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"
	maxResponseBodySize = 10 * 1024 * 1024
	errBodyReadLimit    = 1024
	errStatusBodyFmt    = "%w: status %d, body: %s"
	visibleToEntireCo   = 3
	dealStatusOpen      = "open"
	defaultDealTitle    = "Novo contato"
	defaultPersonName   = "Contato sem nome"
	statusOK            = "ok"
	statusError         = "error"
	logFieldDealID      = "deal_id"
)

// Operation names used as metric labels.
const (
	opCreateDeal         = "create_deal"
	opCreatePerson       = "create_person"
	opFindOrganization   = "find_organization"
	opCreateOrganization = "create_organization"
	opLinkDeal           = "link_deal"
	opCreateNote         = "create_note"
	opAttachFile         = "attach_file"
)

// Config configures the Pipedrive client.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration

	DealStageID int

	// Custom field keys. Empty keys are not sent.
	FieldCase       string
	FieldNationalID string
	FieldProfession string

	// Upload retry policy.
	UploadMaxRetries int
	UploadRetryDelay time.Duration
}

// Client talks to the Pipedrive API. Authentication is the api_token query parameter.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     *zerolog.Logger
}

func New(cfg Config, logger *zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.DealStageID <= 0 {
		cfg.DealStageID = defaultStageID
	}

	if cfg.UploadMaxRetries < 0 {
		cfg.UploadMaxRetries = 0
	}

	if cfg.UploadRetryDelay <= 0 {
		cfg.UploadRetryDelay = defaultUploadRetryDelay
	}

	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// CreateDeal opens a deal titled after the contact, suffixed with the phone.
func (c *Client) CreateDeal(ctx context.Context, p domain.ContactProfile) (int64, error) {
	title := strings.TrimSpace(p.Name)
	if title == "" {
		title = defaultDealTitle
	}

	if p.Phone != "" {
		title += " - " + p.Phone
	}

	body := map[string]any{
		"title":    title,
		"stage_id": c.cfg.DealStageID,
		"status":   dealStatusOpen,
	}
	setField(body, c.cfg.FieldCase, p.CaseReference)

	var deal entity
	if err := c.do(ctx, opCreateDeal, http.MethodPost, "/deals", nil, body, &deal); err != nil {
		return 0, fmt.Errorf("create deal: %w", err)
	}

	c.logger.Info().Int64(logFieldDealID, deal.ID).Str("title", title).Msg("pipedrive deal created")

	return deal.ID, nil
}

// CreatePerson registers the contact with primary email and phone.
func (c *Client) CreatePerson(ctx context.Context, p domain.ContactProfile) (int64, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = defaultPersonName
	}

	body := map[string]any{
		"name":       name,
		"visible_to": visibleToEntireCo,
	}

	if p.Email != "" {
		body["email"] = []contactValue{{Value: p.Email, Primary: true}}
	}

	if p.Phone != "" {
		body["phone"] = []contactValue{{Value: p.Phone, Primary: true}}
	}

	setField(body, c.cfg.FieldNationalID, p.NationalID)
	setField(body, c.cfg.FieldProfession, p.Profession)

	var person entity
	if err := c.do(ctx, opCreatePerson, http.MethodPost, "/persons", nil, body, &person); err != nil {
		return 0, fmt.Errorf("create person: %w", err)
	}

	return person.ID, nil
}

// FindOrganization looks up an organization by exact name.
func (c *Client) FindOrganization(ctx context.Context, name string) (int64, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false, nil
	}

	query := url.Values{
		"term":        {name},
		"exact_match": {"true"},
	}

	var result organizationSearch
	if err := c.do(ctx, opFindOrganization, http.MethodGet, "/organizations/search", query, nil, &result); err != nil {
		return 0, false, fmt.Errorf("find organization: %w", err)
	}

	if len(result.Items) == 0 || result.Items[0].Item.ID == 0 {
		return 0, false, nil
	}

	return result.Items[0].Item.ID, true, nil
}

// CreateOrganization creates an organization visible to the whole company.
func (c *Client) CreateOrganization(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("create organization: %w: empty name", errors.ErrInvalidInput)
	}

	body := map[string]any{
		"name":       name,
		"visible_to": visibleToEntireCo,
	}

	var org entity
	if err := c.do(ctx, opCreateOrganization, http.MethodPost, "/organizations", nil, body, &org); err != nil {
		return 0, fmt.Errorf("create organization: %w", err)
	}

	return org.ID, nil
}

// FindOrCreateOrganization reuses an existing organization with the same
// name. A failed lookup falls through to creation.
func (c *Client) FindOrCreateOrganization(ctx context.Context, name string) (int64, error) {
	id, found, err := c.FindOrganization(ctx, name)
	if err != nil {
		c.logger.Warn().Err(err).Str("organization", name).Msg("organization lookup failed, creating")
	}

	if found {
		return id, nil
	}

	return c.CreateOrganization(ctx, name)
}

// LinkDealRelations attaches a person and an organization to a deal.
// Zero ids are omitted and nothing is sent when both are zero.
func (c *Client) LinkDealRelations(ctx context.Context, dealID, personID, orgID int64) error {
	if dealID <= 0 {
		return fmt.Errorf("link deal relations: %w", errors.ErrInvalidID)
	}

	body := map[string]any{}

	if personID > 0 {
		body["person_id"] = personID
	}

	if orgID > 0 {
		body["org_id"] = orgID
	}

	if len(body) == 0 {
		return nil
	}

	path := "/deals/" + strconv.FormatInt(dealID, 10)
	if err := c.do(ctx, opLinkDeal, http.MethodPut, path, nil, body, nil); err != nil {
		return fmt.Errorf("link deal %d: %w", dealID, err)
	}

	return nil
}

// CreateNote adds a note to a deal.
func (c *Client) CreateNote(ctx context.Context, dealID int64, content string) (int64, error) {
	if dealID <= 0 {
		return 0, fmt.Errorf("create note: %w", errors.ErrInvalidID)
	}

	body := map[string]any{
		"content": content,
		"deal_id": dealID,
	}

	var note entity
	if err := c.do(ctx, opCreateNote, http.MethodPost, "/notes", nil, body, &note); err != nil {
		return 0, fmt.Errorf("create note on deal %d: %w", dealID, err)
	}

	return note.ID, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}

	query.Set(queryAPIToken, c.cfg.APIToken)

	return c.baseURL + path + "?" + query.Encode()
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) (err error) {
	defer func() {
		status := statusOK
		if err != nil {
			status = statusError
		}

		observability.CRMRequests.WithLabelValues(op, status).Inc()
	}()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, out)
}

func decodeEnvelope(resp *http.Response, out any) error {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyReadLimit))

		return fmt.Errorf(errStatusBodyFmt, errors.ErrHTTPStatus, resp.StatusCode, string(snippet))
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if !env.Success {
		return fmt.Errorf("%w: %s", errors.ErrUpstreamUnsuccessful, env.Error)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}

	return nil
}

func setField(body map[string]any, key, value string) {
	if key == "" {
		return
	}

	body[key] = value
}
