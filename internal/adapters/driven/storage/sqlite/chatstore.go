package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// chatStore implements driven.ChatStore.
type chatStore struct {
	store *Store
}

var _ driven.ChatStore = (*chatStore)(nil)

// SaveChat stores or updates a chat's metadata. Messages are managed through
// AppendMessage and UpdateMessage and are never touched here.
func (s *chatStore) SaveChat(ctx context.Context, chat *domain.Chat) error {
	now := time.Now().UTC()
	createdAt := chat.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := chat.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, model, repository_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			model = excluded.model,
			repository_id = excluded.repository_id,
			updated_at = excluded.updated_at
	`, chat.ID, chat.Title, chat.Model, chat.RepositoryID, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("saving chat: %w", err)
	}
	return nil
}

// GetChat retrieves a chat with its full message history.
func (s *chatStore) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, title, model, repository_id, created_at, updated_at
		FROM chats WHERE id = ?
	`, id)

	var chat domain.Chat
	if err := row.Scan(&chat.ID, &chat.Title, &chat.Model, &chat.RepositoryID,
		&chat.CreatedAt, &chat.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chat: %w", err)
	}

	messages, err := s.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	chat.Messages = messages
	return &chat, nil
}

// ListChats returns all chats without message bodies, newest first.
func (s *chatStore) ListChats(ctx context.Context) ([]domain.Chat, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, title, model, repository_id, created_at, updated_at
		FROM chats ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chats: %w", err)
	}
	defer rows.Close()

	var chats []domain.Chat //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chat domain.Chat
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.Model, &chat.RepositoryID,
			&chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat: %w", err)
		}
		chats = append(chats, chat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chats: %w", err)
	}
	return chats, nil
}

// AppendMessage adds a message to the end of a chat.
func (s *chatStore) AppendMessage(ctx context.Context, chatID string, msg domain.Message) error {
	attachments, errJSON, toolCalls, toolResult, err := marshalMessageParts(msg)
	if err != nil {
		return err
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, position, role, content, attachments, error, tool_calls, tool_result, created_at)
		SELECT ?, id, (SELECT COALESCE(MAX(position), -1) + 1 FROM messages WHERE chat_id = ?), ?, ?, ?, ?, ?, ?, ?
		FROM chats WHERE id = ?
	`, msg.ID, chatID, string(msg.Role), msg.Content, attachments, errJSON, toolCalls, toolResult, createdAt, chatID)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	_, err = s.store.db.ExecContext(ctx,
		"UPDATE chats SET updated_at = ? WHERE id = ?", createdAt, chatID)
	if err != nil {
		return fmt.Errorf("touching chat: %w", err)
	}
	return nil
}

// UpdateMessage replaces a previously appended message by its ID, keeping
// its position.
func (s *chatStore) UpdateMessage(ctx context.Context, chatID string, msg domain.Message) error {
	attachments, errJSON, toolCalls, toolResult, err := marshalMessageParts(msg)
	if err != nil {
		return err
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE messages SET
			role = ?,
			content = ?,
			attachments = ?,
			error = ?,
			tool_calls = ?,
			tool_result = ?
		WHERE chat_id = ? AND id = ?
	`, string(msg.Role), msg.Content, attachments, errJSON, toolCalls, toolResult, chatID, msg.ID)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetTitle updates the chat title.
func (s *chatStore) SetTitle(ctx context.Context, chatID, title string) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE chats SET title = ? WHERE id = ?", title, chatID)
	if err != nil {
		return fmt.Errorf("setting title: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting title: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteChat removes a chat and its messages.
func (s *chatStore) DeleteChat(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// loadMessages returns a chat's messages in append order.
func (s *chatStore) loadMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, role, content, attachments, error, tool_calls, tool_result, created_at
		FROM messages WHERE chat_id = ?
		ORDER BY position
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message //nolint:prealloc // size unknown from query
	for rows.Next() {
		var msg domain.Message
		var role, attachments, errJSON, toolCalls, toolResult string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &attachments, &errJSON,
			&toolCalls, &toolResult, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = domain.Role(role)

		if err := unmarshalMessageParts(&msg, attachments, errJSON, toolCalls, toolResult); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// marshalMessageParts encodes the structured message fields as JSON columns.
func marshalMessageParts(msg domain.Message) (attachments, errJSON, toolCalls, toolResult string, err error) {
	enc := func(v any) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshalling message field: %w", err)
		}
		return string(data), nil
	}

	if attachments, err = enc(msg.Attachments); err != nil {
		return
	}
	if errJSON, err = enc(msg.Error); err != nil {
		return
	}
	if toolCalls, err = enc(msg.ToolCalls); err != nil {
		return
	}
	toolResult, err = enc(msg.ToolResult)
	return
}

// unmarshalMessageParts decodes the JSON columns back into the message.
func unmarshalMessageParts(msg *domain.Message, attachments, errJSON, toolCalls, toolResult string) error {
	if attachments != "" && attachments != jsonNull {
		if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
			return fmt.Errorf("unmarshalling attachments: %w", err)
		}
	}
	if errJSON != "" && errJSON != jsonNull {
		if err := json.Unmarshal([]byte(errJSON), &msg.Error); err != nil {
			return fmt.Errorf("unmarshalling message error: %w", err)
		}
	}
	if toolCalls != "" && toolCalls != jsonNull {
		if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
			return fmt.Errorf("unmarshalling tool calls: %w", err)
		}
	}
	if toolResult != "" && toolResult != jsonNull {
		if err := json.Unmarshal([]byte(toolResult), &msg.ToolResult); err != nil {
			return fmt.Errorf("unmarshalling tool result: %w", err)
		}
	}
	return nil
}
