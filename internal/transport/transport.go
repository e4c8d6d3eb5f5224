package transport

import (
	"context"

	"convosync/internal/model"
)

// SendRequest carries one outgoing message. MessageID is the
// client-generated identifier the server persists as the canonical
// message id, which is what lets the local placeholder become the
// canonical row without duplicating.
type SendRequest struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Instance       string `json:"instance"`
	RemoteAddress  string `json:"remote_address"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
	MediaURL       string `json:"media_url,omitempty"`
}

// Transport is the request/response collaborator this core talks to.
// Queries feed the cache; mutations return the resulting entity so the
// coordinator can word its confirmation.
type Transport interface {
	ListConversations(ctx context.Context, clientID string, f model.ListFilters) ([]model.ConversationGroup, error)
	PageData(ctx context.Context, clientID string, f model.ListFilters) (*model.PageData, error)
	GetConversation(ctx context.Context, clientID, conversationID string) (*model.Conversation, error)
	Stats(ctx context.Context, clientID string) (*model.Stats, error)

	ToggleArchive(ctx context.Context, conversationID string) (*model.Conversation, error)
	ToggleImportant(ctx context.Context, conversationID string) (*model.Conversation, error)
	AssignUser(ctx context.Context, conversationID, userID string) (*model.Conversation, error)
	SetStatus(ctx context.Context, conversationID string, status model.ConversationStatus) (*model.Conversation, error)
	SetAIActive(ctx context.Context, conversationID string, active bool) (*model.Conversation, error)

	SendMessage(ctx context.Context, req SendRequest) error
	MarkRead(ctx context.Context, conversationID string) error
}
