package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// DefaultRAGThresholdPages is the corpus size, in estimated pages, above
// which auto mode switches from inlined context to vector retrieval.
const DefaultRAGThresholdPages = 50.0

// KnowledgeToolName is the tool the model calls to search the repository.
const KnowledgeToolName = "query_knowledge_database"

// knowledgeToolResults caps how many hits the knowledge tool returns.
const knowledgeToolResults = 5

// SelectRetrievalMode resolves a repository's effective retrieval mode.
// Explicit rag or context modes win; auto compares the estimated page count
// against the threshold, choosing rag only when strictly above it.
func SelectRetrievalMode(repo *domain.Repository, thresholdPages float64) domain.RetrievalMode {
	switch repo.Mode {
	case domain.RetrievalModeRAG:
		return domain.RetrievalModeRAG
	case domain.RetrievalModeContext:
		return domain.RetrievalModeContext
	}
	if repo.TotalPages() > thresholdPages {
		return domain.RetrievalModeRAG
	}
	return domain.RetrievalModeContext
}

// ContextInstructions renders every extracted file as a labelled block for
// inlining into the system prompt. Files without extracted text (pending or
// failed) are skipped. Returns empty string when nothing is available.
func ContextInstructions(repo *domain.Repository) string {
	var b strings.Builder
	for i := range repo.Files {
		file := &repo.Files[i]
		if file.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "<file name=%q>\n%s\n</file>\n", file.Name, file.Text)
	}
	if b.Len() == 0 {
		return ""
	}
	return "The user has provided the following documents as context:\n\n" + b.String()
}

// knowledgeToolError is the JSON error shape returned to the model when a
// search fails. Search failures never abort the turn; the model sees the
// error and can answer without retrieval.
type knowledgeToolError struct {
	Error string `json:"error"`
}

// SearchRepository embeds a query with the repository's configured embedder
// and returns the segments most similar to it. A non-positive limit falls
// back to the knowledge tool's result cap.
func SearchRepository(ctx context.Context, embedders driven.EmbedderFactory, vectors driven.VectorStore, repoID, embedderModel, query string, limit int) ([]domain.KnowledgeHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must be a non-empty string", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = knowledgeToolResults
	}

	embedder, err := embedders.ForModel(embedderModel)
	if err != nil {
		return nil, fmt.Errorf("embedding service unavailable: %w", err)
	}

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := vectors.QueryDocuments(ctx, repoID, driven.VectorQuery{
		Vector: vec,
		Tags:   []string{TagChunk},
		TopK:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	logger.Debug("knowledge query %q: %d hits", query, len(hits))

	results := make([]domain.KnowledgeHit, 0, len(hits))
	for _, hit := range hits {
		results = append(results, domain.KnowledgeHit{
			FileName:   hit.Document.Source,
			FileChunk:  hit.Document.Text,
			Similarity: hit.Similarity,
		})
	}
	return results, nil
}

// KnowledgeTool builds the retrieval tool for a repository. The tool embeds
// the model's query with the repository's configured embedder and returns
// the top matching segments as a JSON array.
func KnowledgeTool(repo *domain.Repository, embedders driven.EmbedderFactory, vectors driven.VectorStore) domain.Tool {
	repoID := repo.ID
	embedderModel := repo.Embedder

	return domain.Tool{
		Name: KnowledgeToolName,
		Description: "Search the user's knowledge repository for content relevant to a query. " +
			"Use this whenever the answer may depend on the user's uploaded documents.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query, phrased as the information need.",
				},
			},
			"required": []string{"query"},
		},
		Execute: func(ctx context.Context, args map[string]any, _ *domain.ToolContext) (string, error) {
			query, _ := args["query"].(string)

			results, err := SearchRepository(ctx, embedders, vectors, repoID, embedderModel, query, knowledgeToolResults)
			if err != nil {
				return knowledgeError(err.Error()), nil
			}

			out, err := json.Marshal(results)
			if err != nil {
				return knowledgeError(fmt.Sprintf("encode results: %v", err)), nil
			}
			return string(out), nil
		},
	}
}

func knowledgeError(msg string) string {
	out, _ := json.Marshal(knowledgeToolError{Error: msg})
	return string(out)
}
