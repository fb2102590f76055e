// Package memory provides in-memory implementations of the storage ports,
// used for tests and ephemeral (non-persistent) runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// Ensure ChatStore implements the interface.
var _ driven.ChatStore = (*ChatStore)(nil)

// ChatStore is an in-memory implementation of driven.ChatStore.
type ChatStore struct {
	mu    sync.RWMutex
	chats map[string]*domain.Chat
}

// NewChatStore creates a new in-memory chat store.
func NewChatStore() *ChatStore {
	return &ChatStore{
		chats: make(map[string]*domain.Chat),
	}
}

// SaveChat stores or updates a chat's metadata, preserving any messages
// already appended.
func (s *ChatStore) SaveChat(_ context.Context, chat *domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *chat
	if existing, ok := s.chats[chat.ID]; ok {
		copied.Messages = existing.Messages
	} else {
		copied.Messages = append([]domain.Message(nil), chat.Messages...)
	}
	s.chats[chat.ID] = &copied
	return nil
}

// GetChat retrieves a chat with its full message history.
func (s *ChatStore) GetChat(_ context.Context, id string) (*domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	copied := *chat
	copied.Messages = append([]domain.Message(nil), chat.Messages...)
	return &copied, nil
}

// ListChats returns all chats without message bodies, newest first.
func (s *ChatStore) ListChats(_ context.Context) ([]domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]domain.Chat, 0, len(s.chats))
	for _, chat := range s.chats {
		copied := *chat
		copied.Messages = nil
		chats = append(chats, copied)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

// AppendMessage adds a message to the end of a chat.
func (s *ChatStore) AppendMessage(_ context.Context, chatID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return domain.ErrNotFound
	}
	chat.Messages = append(chat.Messages, msg)
	chat.UpdatedAt = msg.CreatedAt
	return nil
}

// UpdateMessage replaces a previously appended message by its ID.
func (s *ChatStore) UpdateMessage(_ context.Context, chatID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range chat.Messages {
		if chat.Messages[i].ID == msg.ID {
			chat.Messages[i] = msg
			return nil
		}
	}
	return domain.ErrNotFound
}

// SetTitle updates the chat title.
func (s *ChatStore) SetTitle(_ context.Context, chatID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return domain.ErrNotFound
	}
	chat.Title = title
	return nil
}

// DeleteChat removes a chat and its messages.
func (s *ChatStore) DeleteChat(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.chats, id)
	return nil
}
