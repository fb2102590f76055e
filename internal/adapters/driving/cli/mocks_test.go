package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley-cli/internal/adapters/driven/config/file"
	storagemem "github.com/custodia-labs/parley-cli/internal/adapters/driven/storage/memory"
	vectormem "github.com/custodia-labs/parley-cli/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/core/services"
)

// stubEmbedder is a deterministic embedding service for CLI tests.
type stubEmbedder struct{}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{1, float32(len(text)), sum}, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int              { return 3 }
func (e *stubEmbedder) ModelName() string            { return "stub-embed" }
func (e *stubEmbedder) Ping(_ context.Context) error { return nil }
func (e *stubEmbedder) Close() error                 { return nil }

// stubEmbedderFactory returns the same embedder for every model.
type stubEmbedderFactory struct {
	embedder *stubEmbedder
}

func (f *stubEmbedderFactory) ForModel(_ string) (driven.EmbeddingService, error) {
	return f.embedder, nil
}

// stubCompletion answers every completion with a fixed reply.
type stubCompletion struct {
	reply string
	calls int
}

func (s *stubCompletion) Complete(_ context.Context, _ driven.CompletionRequest, onDelta driven.StreamFunc) (*driven.CompletionResult, error) {
	s.calls++
	if onDelta != nil {
		onDelta(s.reply)
	}
	return &driven.CompletionResult{Content: s.reply}, nil
}

func (s *stubCompletion) ModelName() string { return "stub-model" }
func (s *stubCompletion) Close() error      { return nil }

// setupTestServices wires in-memory services into the package globals and
// restores the previous state on test cleanup.
func setupTestServices(t *testing.T) *stubCompletion {
	t.Helper()

	oldConfig := configStore
	oldStore := store
	oldVectors := vectors
	oldFactory := factory
	oldKnowledge := knowledgeService
	oldOrchestrator := orchestrator
	oldSources := toolSources
	oldInitialized := initialized

	cfg, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)

	completion := &stubCompletion{reply: "stub answer"}
	embedders := &stubEmbedderFactory{embedder: &stubEmbedder{}}
	repoStore := storagemem.NewRepositoryStore()

	configStore = cfg
	store = nil
	vectors = vectormem.NewStore()
	factory = nil
	ingest := services.NewIngestService(repoStore, vectors, embedders, services.IngestConfig{ChunkSize: 10, ChunkOverlap: 2})
	knowledgeService = services.NewKnowledgeService(repoStore, vectors, embedders, ingest, 0)
	knowledgeService.SetSynchronous(true)
	orchestrator = services.NewOrchestrator(
		completion,
		storagemem.NewChatStore(),
		knowledgeService,
		nil,
		services.OrchestratorConfig{},
	)
	toolSources = nil
	initialized = true

	t.Cleanup(func() {
		orchestrator.Wait()
		configStore = oldConfig
		store = oldStore
		vectors = oldVectors
		factory = oldFactory
		knowledgeService = oldKnowledge
		orchestrator = oldOrchestrator
		toolSources = oldSources
		initialized = oldInitialized
	})

	return completion
}
