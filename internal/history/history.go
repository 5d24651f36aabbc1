// Package history persists conversations and their messages. The relay core
// never writes here; persistence is the HTTP layer's concern, driven by the
// client.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/lumichat/lumichat-relay/internal/chat"
)

// ErrNotFound signals a missing conversation.
var ErrNotFound = errors.New("history: conversation not found")

// Conversation groups an ordered message sequence under one mode.
type Conversation struct {
	ID        string    `json:"id"`
	Mode      chat.Mode `json:"mode"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StoredMessage is one persisted conversation turn. Messages are append-only.
type StoredMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store persists conversations and messages.
type Store interface {
	CreateConversation(ctx context.Context, mode chat.Mode) (Conversation, error)
	ListConversations(ctx context.Context) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	// AppendMessage adds a turn, bumps the conversation's updated_at and, for
	// the first user message of an untitled conversation, derives its title.
	AppendMessage(ctx context.Context, conversationID string, msg StoredMessage) (StoredMessage, error)
	ListMessages(ctx context.Context, conversationID string) ([]StoredMessage, error)
	Close() error
}

// TitleFrom derives a conversation title from its first user message:
// 50 characters plus an ellipsis beyond that.
func TitleFrom(content string) string {
	runes := []rune(content)
	if len(runes) <= 50 {
		return content
	}
	return string(runes[:50]) + "..."
}
