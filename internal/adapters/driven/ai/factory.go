// Package ai provides factory functions for creating AI service adapters
// from configuration.
package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/parley-cli/internal/adapters/driven/completion/openai"
	ollamaembed "github.com/custodia-labs/parley-cli/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/parley-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/parley-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.EmbedderFactory = (*Factory)(nil)

// Supported completion providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ollamaCompatBaseURL is Ollama's OpenAI compatibility endpoint, used when
// the provider is ollama and no base URL is configured.
const ollamaCompatBaseURL = "http://localhost:11434/v1"

// defaultOllamaModel is used for ollama completions when no model is
// configured.
const defaultOllamaModel = "llama3.2"

// pingTimeout bounds connectivity validation.
const pingTimeout = 5 * time.Second

// Factory builds completion and embedding services from the config store.
// Embedders are cached per model so every ingest of a repository reuses one
// instance.
type Factory struct {
	config driven.ConfigStore

	mu        sync.Mutex
	embedders map[string]driven.EmbeddingService
}

// NewFactory creates a factory reading provider settings from the given
// config store.
func NewFactory(config driven.ConfigStore) *Factory {
	return &Factory{
		config:    config,
		embedders: make(map[string]driven.EmbeddingService),
	}
}

// ForModel returns an embedding service for the given model identifier.
// OpenAI embedding models route to the OpenAI adapter, everything else to
// the local Ollama instance.
func (f *Factory) ForModel(model string) (driven.EmbeddingService, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if svc, ok := f.embedders[model]; ok {
		return svc, nil
	}

	svc, err := f.createEmbedder(model)
	if err != nil {
		return nil, err
	}
	f.embedders[model] = svc
	return svc, nil
}

// DefaultEmbedder resolves the configured default embedding model.
func (f *Factory) DefaultEmbedder() (driven.EmbeddingService, error) {
	model := f.config.GetString(file.KeyDefaultEmbedder)
	if model == "" {
		model = ollamaembed.DefaultModel
	}
	return f.ForModel(model)
}

// CompletionService builds the configured completion service. The ollama
// provider targets Ollama's OpenAI compatibility endpoint, so both providers
// share one adapter.
func (f *Factory) CompletionService() (driven.CompletionService, error) {
	provider := f.config.GetString(file.KeyProvider)
	if provider == "" {
		provider = ProviderOllama
	}

	switch provider {
	case ProviderOllama:
		baseURL := f.config.GetString(file.KeyCompletionBaseURL)
		if baseURL == "" {
			baseURL = ollamaCompatBaseURL
		}
		model := f.config.GetString(file.KeyCompletionModel)
		if model == "" {
			model = defaultOllamaModel
		}
		return openai.NewCompletionService(openai.Config{
			// Ollama ignores the key but the client requires one.
			APIKey:  "ollama",
			BaseURL: baseURL,
			Model:   model,
		})

	case ProviderOpenAI:
		apiKey := f.config.GetString(file.KeyCompletionAPIKey)
		if apiKey == "" {
			return nil, fmt.Errorf("completion API key is required. Run 'parley config set %s <key>' to fix",
				file.KeyCompletionAPIKey)
		}
		return openai.NewCompletionService(openai.Config{
			APIKey:  apiKey,
			BaseURL: f.config.GetString(file.KeyCompletionBaseURL),
			Model:   f.config.GetString(file.KeyCompletionModel),
		})

	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", provider)
	}
}

// ValidateEmbedder resolves a model and validates connectivity with a ping.
func (f *Factory) ValidateEmbedder(model string) error {
	svc, err := f.ForModel(model)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("embedding service unreachable: %w", err)
	}
	return nil
}

// Close releases all cached embedders.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for model, svc := range f.embedders {
		_ = svc.Close()
		delete(f.embedders, model)
	}
	return nil
}

// createEmbedder builds the provider-appropriate embedder (caller must hold
// lock).
func (f *Factory) createEmbedder(model string) (driven.EmbeddingService, error) {
	if isOpenAIEmbeddingModel(model) {
		apiKey := f.config.GetString(file.KeyEmbeddingAPIKey)
		if apiKey == "" {
			return nil, fmt.Errorf("embedding API key is required for %s. Run 'parley config set %s <key>' to fix",
				model, file.KeyEmbeddingAPIKey)
		}
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  apiKey,
			BaseURL: f.config.GetString(file.KeyEmbeddingBaseURL),
			Model:   model,
		})
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL: f.config.GetString(file.KeyEmbeddingBaseURL),
		Model:   model,
	}), nil
}

// isOpenAIEmbeddingModel reports whether a model identifier belongs to the
// OpenAI embedding family.
func isOpenAIEmbeddingModel(model string) bool {
	return strings.HasPrefix(model, "text-embedding-")
}
