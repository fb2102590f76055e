package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenContent_TextBlocks(t *testing.T) {
	blocks := []mcp.Content{
		&mcp.TextContent{Text: "first"},
		&mcp.TextContent{Text: "second"},
	}

	assert.Equal(t, "first\nsecond", flattenContent(blocks))
}

func TestFlattenContent_NonTextBlocksAreEncoded(t *testing.T) {
	blocks := []mcp.Content{
		&mcp.TextContent{Text: "hello"},
		&mcp.ImageContent{MIMEType: "image/png", Data: []byte{1, 2, 3}},
	}

	out := flattenContent(blocks)

	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "image/png")
}

func TestFlattenContent_Empty(t *testing.T) {
	assert.Equal(t, "", flattenContent(nil))
}

func TestSchemaToMap(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	}

	out := schemaToMap(schema)

	assert.Equal(t, "object", out["type"])
	props, ok := out["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
}

func TestSchemaToMap_NilFallsBack(t *testing.T) {
	out := schemaToMap(nil)
	assert.Equal(t, map[string]any{"type": "object"}, out)
}

func TestWellKnownPayload_Decode(t *testing.T) {
	raw := `{"endpoint": "http://127.0.0.1:8315/mcp", "instructions": "Prefer the lookup tool."}`

	var payload wellKnownPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, "http://127.0.0.1:8315/mcp", payload.Endpoint)
	assert.Equal(t, "Prefer the lookup tool.", payload.Instructions)
}

func TestLocalBridge_EmptyWhileAway(t *testing.T) {
	b := NewLocalBridge(1) // nothing listens on port 1
	defer b.Close()

	assert.Empty(t, b.Tools(context.Background()))
	assert.Empty(t, b.Instructions())
}
