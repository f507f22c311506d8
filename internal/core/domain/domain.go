package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// MessageType mirrors Chatwoot's message_type enum.
type MessageType int

const (
	MessageTypeIncoming MessageType = 0
	MessageTypeOutgoing MessageType = 1
	MessageTypeActivity MessageType = 2
	MessageTypeTemplate MessageType = 3
)

// millisecondThreshold separates second and millisecond epoch values.
const millisecondThreshold = 1e12

var messageTypeNames = map[string]MessageType{
	"incoming": MessageTypeIncoming,
	"outgoing": MessageTypeOutgoing,
	"activity": MessageTypeActivity,
	"template": MessageTypeTemplate,
}

// UnmarshalJSON accepts both the numeric and the named form.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = MessageTypeIncoming
		return nil
	}

	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("decode message_type: %w", err)
		}

		if v, ok := messageTypeNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			*t = v
			return nil
		}

		n, err := strconv.Atoi(name)
		if err != nil {
			*t = MessageTypeTemplate
			return nil //nolint:nilerr // unknown names are treated as non-conversational
		}

		*t = MessageType(n)

		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode message_type: %w", err)
	}

	*t = MessageType(n)

	return nil
}

// IsConversational reports whether the message was exchanged between customer and agent.
func (t MessageType) IsConversational() bool {
	return t == MessageTypeIncoming || t == MessageTypeOutgoing
}

// Timestamp is an epoch-seconds value tolerant to milliseconds and date strings.
type Timestamp int64

// UnmarshalJSON decodes numbers (seconds or milliseconds) and date strings.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*ts = 0
		return nil
	}

	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode timestamp: %w", err)
		}

		*ts = ParseTimestamp(raw)

		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}

	*ts = NormalizeEpoch(f)

	return nil
}

// Time converts the timestamp to time.Time; zero when unset.
func (ts Timestamp) Time() time.Time {
	if ts == 0 {
		return time.Time{}
	}

	return time.Unix(int64(ts), 0)
}

// NormalizeEpoch converts a seconds or milliseconds epoch into seconds.
func NormalizeEpoch(v float64) Timestamp {
	if v >= millisecondThreshold {
		v /= 1000
	}

	return Timestamp(math.Floor(v))
}

// ParseTimestamp parses numeric or textual timestamps, returning 0 when unparseable.
func ParseTimestamp(raw string) Timestamp {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return NormalizeEpoch(f)
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return 0
	}

	return Timestamp(t.Unix())
}

// Sender is the author of a chat message.
type Sender struct {
	ID               int64          `json:"id"`
	Type             string         `json:"type"`
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	PhoneNumber      string         `json:"phone_number"`
	CustomAttributes map[string]any `json:"custom_attributes"`
}

// Attachment is a file linked to a chat message.
type Attachment struct {
	ID        int64  `json:"id"`
	DataURL   string `json:"data_url"`
	URL       string `json:"url"`
	ThumbURL  string `json:"thumb_url"`
	FileType  string `json:"file_type"`
	FileName  string `json:"file_name"`
	Extension string `json:"extension"`
	FileSize  int64  `json:"file_size"`
}

// SourceURL returns the downloadable location of the attachment.
func (a Attachment) SourceURL() string {
	if a.DataURL != "" {
		return a.DataURL
	}

	return a.URL
}

// RawMessage is a chat message as returned by the Chatwoot API.
type RawMessage struct {
	ID          int64        `json:"id"`
	AccountID   int64        `json:"account_id"`
	Content     *string      `json:"content"`
	MessageType MessageType  `json:"message_type"`
	Private     bool         `json:"private"`
	CreatedAt   Timestamp    `json:"created_at"`
	Sender      *Sender      `json:"sender"`
	Attachments []Attachment `json:"attachments"`
}

// Text returns the message content, empty when null.
func (m RawMessage) Text() string {
	if m.Content == nil {
		return ""
	}

	return *m.Content
}

// HasText reports whether the message carries non-blank content.
func (m RawMessage) HasText() bool {
	return strings.TrimSpace(m.Text()) != ""
}
