package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// TestChatStore_SaveAndGet tests basic round trip
func TestChatStore_SaveAndGet(t *testing.T) {
	s := NewChatStore()
	ctx := context.Background()

	chat := &domain.Chat{ID: "c1", Model: "gpt-4o-mini", CreatedAt: time.Now()}
	require.NoError(t, s.SaveChat(ctx, chat))

	got, err := s.GetChat(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, "gpt-4o-mini", got.Model)

	_, err = s.GetChat(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestChatStore_AppendAndUpdateMessage tests placeholder replacement
func TestChatStore_AppendAndUpdateMessage(t *testing.T) {
	s := NewChatStore()
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, &domain.Chat{ID: "c1"}))
	require.NoError(t, s.AppendMessage(ctx, "c1", domain.Message{ID: "m1", Role: domain.RoleUser, Content: "hi"}))
	require.NoError(t, s.AppendMessage(ctx, "c1", domain.Message{ID: "m2", Role: domain.RoleAssistant, Content: ""}))

	// Streaming snapshot replacement
	require.NoError(t, s.UpdateMessage(ctx, "c1", domain.Message{ID: "m2", Role: domain.RoleAssistant, Content: "partial"}))
	require.NoError(t, s.UpdateMessage(ctx, "c1", domain.Message{ID: "m2", Role: domain.RoleAssistant, Content: "final answer"}))

	got, err := s.GetChat(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "final answer", got.Messages[1].Content)

	err = s.UpdateMessage(ctx, "c1", domain.Message{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestChatStore_SaveChatPreservesMessages tests metadata updates keep history
func TestChatStore_SaveChatPreservesMessages(t *testing.T) {
	s := NewChatStore()
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, &domain.Chat{ID: "c1"}))
	require.NoError(t, s.AppendMessage(ctx, "c1", domain.Message{ID: "m1", Role: domain.RoleUser, Content: "hi"}))
	require.NoError(t, s.SaveChat(ctx, &domain.Chat{ID: "c1", Title: "greeting"}))

	got, err := s.GetChat(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "greeting", got.Title)
	assert.Len(t, got.Messages, 1)
}

// TestChatStore_SetTitle tests title updates
func TestChatStore_SetTitle(t *testing.T) {
	s := NewChatStore()
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, &domain.Chat{ID: "c1"}))
	require.NoError(t, s.SetTitle(ctx, "c1", "About Go"))

	got, err := s.GetChat(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "About Go", got.Title)
}

// TestChatStore_DeleteChat tests deletion and the unknown-id case
func TestChatStore_DeleteChat(t *testing.T) {
	s := NewChatStore()
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, &domain.Chat{ID: "c1"}))
	require.NoError(t, s.DeleteChat(ctx, "c1"))

	_, err := s.GetChat(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.DeleteChat(ctx, "c1"), domain.ErrNotFound)
}

// TestRepositoryStore_FileLifecycle tests add/get/update/remove
func TestRepositoryStore_FileLifecycle(t *testing.T) {
	s := NewRepositoryStore()
	ctx := context.Background()

	repo := &domain.Repository{ID: "r1", Name: "docs", Embedder: "nomic-embed-text"}
	require.NoError(t, s.SaveRepository(ctx, repo))
	require.NoError(t, s.SetCurrentRepository(ctx, "r1"))

	current, err := s.CurrentRepositoryID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", current)

	file := domain.RepositoryFile{ID: "f1", Name: "a.txt", Status: domain.FileStatusPending}
	require.NoError(t, s.AddFile(ctx, "r1", file))

	file.Status = domain.FileStatusProcessing
	file.Progress = 50
	require.NoError(t, s.UpdateFile(ctx, "r1", file))

	got, err := s.GetFile(ctx, "r1", "f1")
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusProcessing, got.Status)
	assert.Equal(t, 50, got.Progress)

	require.NoError(t, s.RemoveFile(ctx, "r1", "f1"))
	_, err = s.GetFile(ctx, "r1", "f1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestRepositoryStore_DeleteClearsCurrent tests current selection reset
func TestRepositoryStore_DeleteClearsCurrent(t *testing.T) {
	s := NewRepositoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveRepository(ctx, &domain.Repository{ID: "r1"}))
	require.NoError(t, s.SetCurrentRepository(ctx, "r1"))
	require.NoError(t, s.DeleteRepository(ctx, "r1"))

	current, err := s.CurrentRepositoryID(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)

	assert.ErrorIs(t, s.SetCurrentRepository(ctx, "r1"), domain.ErrNotFound)
}
