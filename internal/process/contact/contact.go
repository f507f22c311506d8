// Package contact resolves contact metadata from loosely shaped webhook payloads.
//
// Chatwoot places the same fields in different spots depending on the event
// and on how the account stores custom attributes, so each field has an
// ordered list of candidate paths and the first non-empty value wins.
package contact

import (
	"strings"

	"github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"
)

// senderTypeContact marks a message author that is the customer, as opposed
// to an agent ("user") or a bot.
const senderTypeContact = "contact"

var (
	contactIDPaths = []string{
		"meta.sender.id",
		"meta.contact.id",
		"contact.id",
		"conversation.meta.sender.id",
	}

	namePaths = []string{
		"meta.sender.name",
		"meta.contact.name",
		"meta.sender.custom_attributes.nome",
		"meta.contact.custom_attributes.nome",
		"conversation.meta.sender.name",
	}

	emailPaths = []string{
		"meta.sender.email",
		"meta.contact.email",
		"conversation.meta.sender.email",
	}

	phonePaths = []string{
		"meta.sender.phone_number",
		"meta.contact.phone_number",
		"meta.sender.additional_attributes.phone_number",
		"meta.contact.additional_attributes.phone_number",
		"conversation.meta.sender.phone_number",
	}

	companyPaths = []string{
		"meta.sender.custom_attributes.org_name",
		"meta.contact.custom_attributes.org_name",
		"meta.sender.additional_attributes.company_name",
		"meta.contact.additional_attributes.company_name",
		"additional_attributes.organizacao",
	}

	casePaths = []string{
		"meta.sender.custom_attributes.processo",
		"meta.contact.custom_attributes.processo",
		"additional_attributes.processo",
	}

	professionPaths = []string{
		"meta.sender.custom_attributes.profisso",
		"meta.contact.custom_attributes.profisso",
		"additional_attributes.profissao_cbo",
	}

	nationalIDPaths = []string{
		"meta.sender.custom_attributes.cpf",
		"meta.contact.custom_attributes.cpf",
		"additional_attributes.cpf",
	}

	dealIDPaths = []string{
		"meta.sender.custom_attributes.id_deal_pipedrive",
		"meta.sender.custom_attributes.id_pipedrive",
		"meta.contact.custom_attributes.id_deal_pipedrive",
		"meta.contact.custom_attributes.id_pipedrive",
		"additional_attributes.id_deal_pipedrive",
		"additional_attributes.id_pipedrive",
		"conversation.meta.sender.custom_attributes.id_deal_pipedrive",
	}

	avatarPaths = []string{
		"meta.sender.thumbnail",
		"meta.contact.thumbnail",
	}
)

// Extract builds a contact profile from a webhook payload. Missing fields are
// empty; it never fails and has no side effects.
//
// The top-level sender of a message event is the author of that message, so
// it is only consulted, last, when the author is the contact.
func Extract(payload map[string]any) domain.ContactProfile {
	fromContact := authoredByContact(payload)

	field := func(paths []string, senderLeaf string) string {
		if v := FirstNonEmpty(payload, paths...); v != "" || !fromContact || senderLeaf == "" {
			return v
		}

		return FirstNonEmpty(payload, "sender."+senderLeaf)
	}

	return domain.ContactProfile{
		ContactID:     field(contactIDPaths, "id"),
		Name:          field(namePaths, "name"),
		Email:         field(emailPaths, "email"),
		Phone:         field(phonePaths, "phone_number"),
		Company:       field(companyPaths, ""),
		CaseReference: field(casePaths, ""),
		Profession:    field(professionPaths, ""),
		NationalID:    field(nationalIDPaths, ""),
		DealID:        field(dealIDPaths, "custom_attributes.id_deal_pipedrive"),
		Avatar:        field(avatarPaths, ""),
	}
}

func authoredByContact(payload map[string]any) bool {
	sender := Object(payload, "sender")
	if sender == nil {
		return false
	}

	kind, _ := scalar(sender["type"])

	return strings.EqualFold(kind, senderTypeContact)
}

// DealIDFromMessages scans the contact's own messages for a previously stored
// deal id. Agent and bot senders are skipped.
func DealIDFromMessages(messages []domain.RawMessage, attribute string) string {
	for _, msg := range messages {
		if !sentByContact(msg) {
			continue
		}

		if v, ok := scalar(msg.Sender.CustomAttributes[attribute]); ok && v != "" {
			return v
		}
	}

	return ""
}

func sentByContact(msg domain.RawMessage) bool {
	if msg.Sender == nil {
		return false
	}

	if msg.Sender.Type == "" {
		return msg.MessageType == domain.MessageTypeIncoming
	}

	return strings.EqualFold(msg.Sender.Type, senderTypeContact)
}
