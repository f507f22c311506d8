// Package chatwoot is a minimal client for the Chatwoot application API.
//
// It covers what the sync needs:
//   - paging through a conversation's message history
//   - writing CRM identifiers back to contact custom attributes
package chatwoot

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
)

const (
	defaultTimeout      = 30 * time.Second
	headerAccessToken   = "api_access_token"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"
	maxResponseBodySize = 10 * 1024 * 1024
	errBodyReadLimit    = 1024
	errStatusBodyFmt    = "%w: status %d, body: %s"
)

// Config configures the Chatwoot client.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Client talks to a Chatwoot installation.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zerolog.Logger
}

func New(cfg Config, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchPage returns one page of conversation messages older than before.
// A zero before requests the newest page.
func (c *Client) FetchPage(ctx context.Context, accountID, conversationID string, before int64) ([]domain.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/api/v1/accounts/%s/conversations/%s/messages",
		c.baseURL, url.PathEscape(accountID), url.PathEscape(conversationID))

	if before > 0 {
		endpoint += "?" + url.Values{"before": {strconv.FormatInt(before, 10)}}.Encode()
	}

	var resp messagesResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch messages page: %w", err)
	}

	return resp.Payload, nil
}

// UpdateContactAttribute sets a single custom attribute on a contact.
func (c *Client) UpdateContactAttribute(ctx context.Context, accountID, contactID, key, value string) error {
	endpoint := fmt.Sprintf("%s/api/v1/accounts/%s/contacts/%s",
		c.baseURL, url.PathEscape(accountID), url.PathEscape(contactID))

	body := contactUpdateRequest{CustomAttributes: map[string]string{key: value}}

	if err := c.do(ctx, http.MethodPut, endpoint, body, nil); err != nil {
		return fmt.Errorf("update contact %s: %w", contactID, err)
	}

	c.logger.Debug().Str("contact_id", contactID).Str("attribute", key).Msg("chatwoot contact updated")

	return nil
}

// OwnsURL reports whether rawURL points at this Chatwoot installation,
// meaning downloads from it need the access token.
func (c *Client) OwnsURL(rawURL string) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil || base.Host == "" {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return strings.EqualFold(u.Host, base.Host)
}

// AuthHeader returns the header name and value used to authenticate requests.
func (c *Client) AuthHeader() (string, string) {
	return headerAccessToken, c.token
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(headerAccessToken, c.token)

	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyReadLimit))

		return fmt.Errorf(errStatusBodyFmt, errors.ErrHTTPStatus, resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
