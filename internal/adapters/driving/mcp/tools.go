package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Query      string `json:"query" jsonschema:"the search query to find relevant document segments"`
	Repository string `json:"repository,omitempty" jsonschema:"repository ID to search (defaults to the selected repository)"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Results []QueryResultOutput `json:"results"`
	Count   int                 `json:"count"`
}

// QueryResultOutput represents a single search result.
type QueryResultOutput struct {
	FileName   string  `json:"file_name"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_knowledge",
		Description: "Search a knowledge repository for segments relevant to a query",
	}, s.handleQuery)
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	repoID := input.Repository
	if repoID == "" {
		repo, err := s.ports.Knowledge.CurrentRepository(ctx)
		if err != nil {
			return nil, QueryOutput{}, err
		}
		if repo == nil {
			return nil, QueryOutput{}, fmt.Errorf("no repository selected; pass a repository ID")
		}
		repoID = repo.ID
	}

	hits, err := s.ports.Knowledge.Query(ctx, repoID, input.Query, input.Limit)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Results: make([]QueryResultOutput, len(hits)),
		Count:   len(hits),
	}
	for i, hit := range hits {
		output.Results[i] = QueryResultOutput{
			FileName:   hit.FileName,
			Content:    hit.FileChunk,
			Similarity: hit.Similarity,
		}
	}

	return nil, output, nil
}
