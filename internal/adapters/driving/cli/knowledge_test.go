package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley-cli/internal/adapters/driven/ai"
)

func TestKnowledgeCmd_CreateAndList(t *testing.T) {
	setupTestServices(t)

	out, err := executeCommand(t, "knowledge", "create", "docs", "--embedder", "stub-embed")
	require.NoError(t, err)
	assert.Contains(t, out, "Created repository docs")

	out, err = executeCommand(t, "knowledge", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "docs")
	// The new repository is selected
	assert.Contains(t, out, "* ")
}

func TestKnowledgeCmd_CreateValidatesEmbedder(t *testing.T) {
	setupTestServices(t)
	factory = ai.NewFactory(configStore)

	// An OpenAI embedding model without a configured API key cannot resolve
	_, err := executeCommand(t, "knowledge", "create", "docs", "--embedder", "text-embedding-3-small")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding API key is required")

	repos, err := knowledgeService.ListRepositories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestKnowledgeCmd_CreateRequiresName(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "knowledge", "create")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestKnowledgeCmd_AddAndQuery(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "knowledge", "create", "docs", "--embedder", "stub-embed")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha beta gamma delta"), 0644))

	out, err := executeCommand(t, "knowledge", "add", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested notes.txt")

	out, err = executeCommand(t, "knowledge", "query", "alpha")
	require.NoError(t, err)
	assert.Contains(t, out, "notes.txt")
}

func TestKnowledgeCmd_ModeShowsEffective(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "knowledge", "create", "docs", "--embedder", "stub-embed")
	require.NoError(t, err)

	out, err := executeCommand(t, "knowledge", "mode", "rag")
	require.NoError(t, err)
	assert.Contains(t, out, "Effective mode: rag")

	out, err = executeCommand(t, "knowledge", "mode")
	require.NoError(t, err)
	assert.Contains(t, out, "Effective mode: rag")
}

func TestKnowledgeCmd_ModeRejectsUnknown(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "knowledge", "create", "docs", "--embedder", "stub-embed")
	require.NoError(t, err)

	_, err = executeCommand(t, "knowledge", "mode", "turbo")
	assert.Error(t, err)
}

func TestKnowledgeCmd_QueryWithoutRepository(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "knowledge", "query", "anything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no repository selected")
}

func TestKnowledgeCmd_DeleteClearsSelection(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "knowledge", "create", "docs", "--embedder", "stub-embed")
	require.NoError(t, err)

	repo, err := knowledgeService.CurrentRepository(context.Background())
	require.NoError(t, err)
	require.NotNil(t, repo)

	out, err := executeCommand(t, "knowledge", "delete", repo.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Repository deleted.")

	_, err = executeCommand(t, "knowledge", "query", "anything")
	assert.Error(t, err)
}
