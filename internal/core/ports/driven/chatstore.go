package driven

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// ChatStore persists conversations and their messages.
type ChatStore interface {
	// SaveChat stores or updates a chat (metadata only, not messages).
	SaveChat(ctx context.Context, chat *domain.Chat) error

	// GetChat retrieves a chat with its full message history.
	GetChat(ctx context.Context, id string) (*domain.Chat, error)

	// ListChats returns all chats without message bodies, newest first.
	ListChats(ctx context.Context) ([]domain.Chat, error)

	// AppendMessage adds a message to the end of a chat.
	AppendMessage(ctx context.Context, chatID string, msg domain.Message) error

	// UpdateMessage replaces a previously appended message by its ID.
	// Used for streaming snapshot replacement of the assistant placeholder.
	UpdateMessage(ctx context.Context, chatID string, msg domain.Message) error

	// SetTitle updates the chat title.
	SetTitle(ctx context.Context, chatID, title string) error

	// DeleteChat removes a chat and its messages.
	DeleteChat(ctx context.Context, id string) error
}
