package driving

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// StreamSink receives assistant message snapshots while a turn streams.
// Each call replaces the previous snapshot; the final call carries the
// settled message. May be nil when the caller does not render partials.
type StreamSink func(msg domain.Message)

// AssistantService runs the multi-step tool-calling conversation loop.
type AssistantService interface {
	// SendMessage appends a user message to the chat (lazily creating the
	// chat when chatID is empty), drives the completion/tool loop until the
	// model settles, and returns the updated chat. Completion failures are
	// recorded on the assistant message, not returned: the conversation
	// stays usable for the next message.
	SendMessage(ctx context.Context, chatID, content string, sink StreamSink) (*domain.Chat, error)

	// GetChat retrieves a chat with full history.
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)

	// ListChats returns all chats, newest first.
	ListChats(ctx context.Context) ([]domain.Chat, error)

	// DeleteChat removes a chat.
	DeleteChat(ctx context.Context, chatID string) error
}
