// Package bridge connects the conversation loop to external tool providers:
// local companion processes discovered over a well-known HTTP endpoint, and
// remote MCP servers addressed directly. Both expose their tools through the
// ToolSource port and degrade to an empty tool list when unreachable.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// clientName identifies this client in the MCP handshake.
const clientName = "parley"

// clientVersion is reported in the MCP handshake.
const clientVersion = "0.1.0"

// newClient builds the MCP client used by both bridge kinds.
func newClient() *mcp.Client {
	return mcp.NewClient(&mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)
}

// convertTools maps MCP tool descriptors to domain tools whose Execute calls
// back into the given session.
func convertTools(session *mcp.ClientSession, tools []*mcp.Tool) []domain.Tool {
	out := make([]domain.Tool, 0, len(tools))
	for _, tool := range tools {
		name := tool.Name
		out = append(out, domain.Tool{
			Name:        name,
			Description: tool.Description,
			Parameters:  schemaToMap(tool.InputSchema),
			Execute: func(ctx context.Context, args map[string]any, _ *domain.ToolContext) (string, error) {
				res, err := session.CallTool(ctx, &mcp.CallToolParams{
					Name:      name,
					Arguments: args,
				})
				if err != nil {
					return "", fmt.Errorf("call tool %s: %w", name, err)
				}
				text := flattenContent(res.Content)
				if res.IsError {
					return "", fmt.Errorf("tool %s reported an error: %s", name, text)
				}
				return text, nil
			},
		})
	}
	return out
}

// flattenContent joins a tool result's content blocks into one string. Text
// blocks contribute their text; any other block kind is JSON-encoded so
// structured and binary payloads survive the flattening.
func flattenContent(blocks []mcp.Content) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if text, ok := block.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
			continue
		}
		encoded, err := json.Marshal(block)
		if err != nil {
			continue
		}
		parts = append(parts, string(encoded))
	}
	return strings.Join(parts, "\n")
}

// schemaToMap converts a tool's input schema to the generic JSON object the
// completion wire format expects. A missing or unconvertible schema yields a
// permissive empty object schema.
func schemaToMap(schema any) map[string]any {
	fallback := map[string]any{"type": "object"}
	if schema == nil {
		return fallback
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return fallback
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return fallback
	}
	return out
}
