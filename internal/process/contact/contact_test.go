package contact

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()

	dec := json.NewDecoder(bytes.NewBufferString(raw))
	dec.UseNumber()

	var payload map[string]any
	require.NoError(t, dec.Decode(&payload))

	return payload
}

func TestExtractFromSender(t *testing.T) {
	payload := decode(t, `{
		"meta": {
			"sender": {
				"id": 123,
				"name": "Maria Silva",
				"email": "maria@example.com",
				"phone_number": "+5511999999999",
				"thumbnail": "https://x/avatar.png",
				"custom_attributes": {
					"org_name": "ACME",
					"processo": "0001234-55.2024",
					"profisso": "Engenheira",
					"cpf": "123.456.789-00"
				}
			}
		}
	}`)

	got := Extract(payload)

	assert.Equal(t, domain.ContactProfile{
		ContactID:     "123",
		Name:          "Maria Silva",
		Email:         "maria@example.com",
		Phone:         "+5511999999999",
		Company:       "ACME",
		CaseReference: "0001234-55.2024",
		Profession:    "Engenheira",
		NationalID:    "123.456.789-00",
		Avatar:        "https://x/avatar.png",
	}, got)
	assert.False(t, got.HasDeal())
}

func TestExtractFallbackOrder(t *testing.T) {
	payload := decode(t, `{
		"meta": {
			"sender": {"name": "", "custom_attributes": {"nome": "Nome Custom"}},
			"contact": {"id": 55, "custom_attributes": {"id_pipedrive": 9876}}
		},
		"additional_attributes": {"organizacao": "Org Extra", "profissao_cbo": "2521-05", "cpf": "111"}
	}`)

	got := Extract(payload)

	assert.Equal(t, "55", got.ContactID)
	assert.Equal(t, "Nome Custom", got.Name)
	assert.Equal(t, "Org Extra", got.Company)
	assert.Equal(t, "2521-05", got.Profession)
	assert.Equal(t, "111", got.NationalID)
	assert.Equal(t, "9876", got.DealID)
	assert.True(t, got.HasDeal())
}

func TestExtractDealIDPriority(t *testing.T) {
	payload := decode(t, `{
		"meta": {"sender": {"custom_attributes": {"id_deal_pipedrive": "42", "id_pipedrive": "7"}}},
		"additional_attributes": {"id_deal_pipedrive": "99"}
	}`)

	assert.Equal(t, "42", Extract(payload).DealID)
}

func TestExtractMessageCreatedByAgent(t *testing.T) {
	payload := decode(t, `{
		"event": "message_created",
		"message_type": "outgoing",
		"sender": {
			"id": 7,
			"type": "user",
			"name": "Agent Bob",
			"email": "bob@support",
			"custom_attributes": {"id_deal_pipedrive": "999"}
		},
		"conversation": {
			"id": 12,
			"status": "resolved",
			"meta": {"sender": {"id": 4242, "name": "Maria Cliente", "phone_number": "+5511"}}
		}
	}`)

	got := Extract(payload)

	assert.Equal(t, "4242", got.ContactID)
	assert.Equal(t, "Maria Cliente", got.Name)
	assert.Equal(t, "+5511", got.Phone)
	assert.Empty(t, got.Email, "agent email must not leak into the contact")
	assert.Empty(t, got.DealID, "agent attributes must not leak into the contact")
}

func TestExtractMessageCreatedByContact(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    domain.ContactProfile
	}{
		{
			name: "conversation meta wins over sender",
			payload: `{
				"sender": {"id": 1, "type": "contact", "name": "Sender Name"},
				"conversation": {"meta": {"sender": {"id": 2, "name": "Meta Name"}}}
			}`,
			want: domain.ContactProfile{ContactID: "2", Name: "Meta Name"},
		},
		{
			name: "sender fills missing fields",
			payload: `{
				"sender": {
					"id": 3,
					"type": "contact",
					"name": "Ana",
					"email": "ana@example.com",
					"phone_number": "+5521",
					"custom_attributes": {"id_deal_pipedrive": 15}
				}
			}`,
			want: domain.ContactProfile{ContactID: "3", Name: "Ana", Email: "ana@example.com", Phone: "+5521", DealID: "15"},
		},
		{
			name:    "untyped sender is ignored",
			payload: `{"sender": {"id": 3, "name": "Ana"}}`,
			want:    domain.ContactProfile{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(decode(t, tt.payload)))
		})
	}
}

func TestExtractEmptyPayload(t *testing.T) {
	assert.Equal(t, domain.ContactProfile{}, Extract(map[string]any{}))
	assert.Equal(t, domain.ContactProfile{}, Extract(nil))
}

func TestExtractIsIdempotent(t *testing.T) {
	payload := decode(t, `{"meta":{"sender":{"id":1,"name":"A","phone_number":"2"}}}`)

	assert.Equal(t, Extract(payload), Extract(payload))
}

func TestLookup(t *testing.T) {
	payload := decode(t, `{
		"messages": [{"account_id": 3}],
		"a": {"b": {"c": "  value  ", "n": null, "f": 1.5, "t": true, "obj": {}}}
	}`)

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{path: "messages.0.account_id", want: "3", wantOK: true},
		{path: "messages.1.account_id", wantOK: false},
		{path: "messages.x", wantOK: false},
		{path: "a.b.c", want: "value", wantOK: true},
		{path: "a.b.n", wantOK: false},
		{path: "a.b.f", want: "1.5", wantOK: true},
		{path: "a.b.t", want: "true", wantOK: true},
		{path: "a.b.obj", wantOK: false},
		{path: "a.b.c.d", wantOK: false},
		{path: "missing", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Lookup(payload, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupFloatWithoutExponent(t *testing.T) {
	payload := map[string]any{"id": float64(12345678901)}

	got, ok := Lookup(payload, "id")
	require.True(t, ok)
	assert.Equal(t, "12345678901", got)
}

func TestObject(t *testing.T) {
	payload := decode(t, `{"conversation": {"meta": {"sender": {"id": 1}}}}`)

	require.NotNil(t, Object(payload, "conversation.meta"))
	assert.Nil(t, Object(payload, "conversation.missing"))
	assert.Nil(t, Object(payload, "conversation.meta.sender.id"))
}

func TestDealIDFromMessages(t *testing.T) {
	messages := []domain.RawMessage{
		{ID: 1},
		{ID: 2, Sender: &domain.Sender{CustomAttributes: map[string]any{}}},
		{ID: 3, Sender: &domain.Sender{CustomAttributes: map[string]any{"id_deal_pipedrive": float64(321)}}},
	}

	assert.Equal(t, "321", DealIDFromMessages(messages, "id_deal_pipedrive"))
	assert.Empty(t, DealIDFromMessages(messages[:2], "id_deal_pipedrive"))
}

func TestDealIDFromMessagesSkipsAgents(t *testing.T) {
	attrs := func(id string) map[string]any { return map[string]any{"id_deal_pipedrive": id} }

	messages := []domain.RawMessage{
		{ID: 1, MessageType: domain.MessageTypeOutgoing, Sender: &domain.Sender{Type: "user", CustomAttributes: attrs("1")}},
		{ID: 2, MessageType: domain.MessageTypeOutgoing, Sender: &domain.Sender{CustomAttributes: attrs("2")}},
		{ID: 3, MessageType: domain.MessageTypeIncoming, Sender: &domain.Sender{Type: "Contact", CustomAttributes: attrs("3")}},
	}

	assert.Equal(t, "3", DealIDFromMessages(messages, "id_deal_pipedrive"))
	assert.Empty(t, DealIDFromMessages(messages[:2], "id_deal_pipedrive"))
}
