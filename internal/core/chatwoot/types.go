package chatwoot

import "github.com/lueurxax/chatwoot-pipedrive-sync/internal/core/domain"

type messagesResponse struct {
	Payload []domain.RawMessage `json:"payload"`
}

type contactUpdateRequest struct {
	CustomAttributes map[string]string `json:"custom_attributes"`
}
