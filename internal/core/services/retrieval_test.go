package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vectormem "github.com/custodia-labs/parley-cli/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

func repoWithCharacters(chars int) *domain.Repository {
	return &domain.Repository{
		ID:   "r1",
		Mode: domain.RetrievalModeAuto,
		Files: []domain.RepositoryFile{
			{ID: "f1", Name: "a.txt", Text: strings.Repeat("x", chars)},
		},
	}
}

// TestSelectRetrievalMode tests explicit overrides and the auto boundary
func TestSelectRetrievalMode(t *testing.T) {
	threshold := 50.0
	atThreshold := 50 * domain.CharactersPerPage

	tests := []struct {
		name string
		repo *domain.Repository
		want domain.RetrievalMode
	}{
		{
			name: "explicit rag wins regardless of size",
			repo: &domain.Repository{Mode: domain.RetrievalModeRAG},
			want: domain.RetrievalModeRAG,
		},
		{
			name: "explicit context wins regardless of size",
			repo: func() *domain.Repository {
				r := repoWithCharacters(atThreshold * 10)
				r.Mode = domain.RetrievalModeContext
				return r
			}(),
			want: domain.RetrievalModeContext,
		},
		{
			name: "auto below threshold is context",
			repo: repoWithCharacters(atThreshold / 2),
			want: domain.RetrievalModeContext,
		},
		{
			name: "auto exactly at threshold is context",
			repo: repoWithCharacters(atThreshold),
			want: domain.RetrievalModeContext,
		},
		{
			name: "auto just above threshold is rag",
			repo: repoWithCharacters(atThreshold + 1),
			want: domain.RetrievalModeRAG,
		},
		{
			name: "empty repository is context",
			repo: &domain.Repository{Mode: domain.RetrievalModeAuto},
			want: domain.RetrievalModeContext,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectRetrievalMode(tt.repo, threshold))
		})
	}
}

// TestContextInstructions tests the inlined file block rendering
func TestContextInstructions(t *testing.T) {
	repo := &domain.Repository{
		Files: []domain.RepositoryFile{
			{Name: "a.txt", Text: "alpha content"},
			{Name: "pending.txt"}, // no extracted text, skipped
			{Name: "b.md", Text: "beta content"},
		},
	}

	out := ContextInstructions(repo)
	assert.Contains(t, out, `<file name="a.txt">`)
	assert.Contains(t, out, "alpha content")
	assert.Contains(t, out, `<file name="b.md">`)
	assert.Contains(t, out, "beta content")
	assert.NotContains(t, out, "pending.txt")

	// Blocks appear in file order
	assert.Less(t, strings.Index(out, "a.txt"), strings.Index(out, "b.md"))

	assert.Empty(t, ContextInstructions(&domain.Repository{}))
}

// TestKnowledgeTool_Query tests the happy path result shape
func TestKnowledgeTool_Query(t *testing.T) {
	ctx := context.Background()
	vectors := vectormem.NewStore()
	embedder := &mockEmbedder{}

	// Index more chunks than the tool returns
	for _, text := range []string{"one", "two", "three", "four", "five", "six", "seven"} {
		require.NoError(t, vectors.AddDocument(ctx, "r1", domain.VectorDocument{
			ID:     "r1:f1:" + text,
			Source: "a.txt",
			Vector: embedText(text),
			Text:   text,
		}, "f1", TagChunk))
	}
	// Whole-document entries are not chunk results
	require.NoError(t, vectors.AddDocument(ctx, "r1", domain.VectorDocument{
		ID:     "r1:f1",
		Source: "a.txt",
		Vector: embedText("whole"),
		Text:   "whole",
	}, "f1", TagWhole))

	repo := &domain.Repository{ID: "r1", Embedder: "mock-embed"}
	tool := KnowledgeTool(repo, &mockEmbedderFactory{embedder: embedder}, vectors)
	assert.Equal(t, KnowledgeToolName, tool.Name)

	out, err := tool.Execute(ctx, map[string]any{"query": "three"}, nil)
	require.NoError(t, err)

	var hits []domain.KnowledgeHit
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, knowledgeToolResults)

	assert.Equal(t, "a.txt", hits[0].FileName)
	assert.Equal(t, "three", hits[0].FileChunk)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	for _, hit := range hits {
		assert.NotEqual(t, "whole", hit.FileChunk)
	}
}

// TestKnowledgeTool_Errors tests that failures surface as JSON, never errors
func TestKnowledgeTool_Errors(t *testing.T) {
	ctx := context.Background()
	repo := &domain.Repository{ID: "r1", Embedder: "mock-embed"}

	tests := []struct {
		name    string
		factory *mockEmbedderFactory
		args    map[string]any
	}{
		{
			name:    "empty query",
			factory: &mockEmbedderFactory{embedder: &mockEmbedder{}},
			args:    map[string]any{"query": "   "},
		},
		{
			name:    "missing query",
			factory: &mockEmbedderFactory{embedder: &mockEmbedder{}},
			args:    map[string]any{},
		},
		{
			name:    "embedder unavailable",
			factory: &mockEmbedderFactory{err: domain.ErrEmbeddingUnavailable},
			args:    map[string]any{"query": "anything"},
		},
		{
			name:    "embedding fails",
			factory: &mockEmbedderFactory{embedder: &mockEmbedder{err: assert.AnError}},
			args:    map[string]any{"query": "anything"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := KnowledgeTool(repo, tt.factory, vectormem.NewStore())
			out, err := tool.Execute(ctx, tt.args, nil)
			require.NoError(t, err)

			var toolErr knowledgeToolError
			require.NoError(t, json.Unmarshal([]byte(out), &toolErr))
			assert.NotEmpty(t, toolErr.Error)
		})
	}
}
