package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ollamaembed "github.com/custodia-labs/parley-cli/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/parley-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/parley-cli/internal/adapters/driven/config/file"
)

func newTestFactory(t *testing.T) (*Factory, *file.ConfigStore) {
	t.Helper()
	store, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return NewFactory(store), store
}

func TestForModel_RoutesOllamaModels(t *testing.T) {
	factory, _ := newTestFactory(t)
	defer factory.Close()

	svc, err := factory.ForModel("nomic-embed-text")

	require.NoError(t, err)
	assert.IsType(t, &ollamaembed.EmbeddingService{}, svc)
	assert.Equal(t, "nomic-embed-text", svc.ModelName())
}

func TestForModel_RoutesOpenAIModels(t *testing.T) {
	factory, store := newTestFactory(t)
	defer factory.Close()
	require.NoError(t, store.Set(file.KeyEmbeddingAPIKey, "sk-test"))

	svc, err := factory.ForModel("text-embedding-3-small")

	require.NoError(t, err)
	assert.IsType(t, &openaiembed.EmbeddingService{}, svc)
}

func TestForModel_OpenAIRequiresAPIKey(t *testing.T) {
	factory, _ := newTestFactory(t)
	defer factory.Close()

	_, err := factory.ForModel("text-embedding-3-small")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestForModel_EmptyModelRejected(t *testing.T) {
	factory, _ := newTestFactory(t)
	defer factory.Close()

	_, err := factory.ForModel("")

	assert.Error(t, err)
}

func TestForModel_CachesPerModel(t *testing.T) {
	factory, _ := newTestFactory(t)
	defer factory.Close()

	first, err := factory.ForModel("nomic-embed-text")
	require.NoError(t, err)
	second, err := factory.ForModel("nomic-embed-text")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestDefaultEmbedder_FallsBackToOllama(t *testing.T) {
	factory, _ := newTestFactory(t)
	defer factory.Close()

	svc, err := factory.DefaultEmbedder()

	require.NoError(t, err)
	assert.Equal(t, ollamaembed.DefaultModel, svc.ModelName())
}

func TestCompletionService_DefaultsToOllama(t *testing.T) {
	factory, _ := newTestFactory(t)

	svc, err := factory.CompletionService()

	require.NoError(t, err)
	assert.Equal(t, defaultOllamaModel, svc.ModelName())
}

func TestCompletionService_OpenAIRequiresAPIKey(t *testing.T) {
	factory, store := newTestFactory(t)
	require.NoError(t, store.Set(file.KeyProvider, ProviderOpenAI))

	_, err := factory.CompletionService()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestCompletionService_UnsupportedProvider(t *testing.T) {
	factory, store := newTestFactory(t)
	require.NoError(t, store.Set(file.KeyProvider, "anthropic"))

	_, err := factory.CompletionService()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported completion provider")
}
