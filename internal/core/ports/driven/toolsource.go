package driven

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// ToolSource exposes a set of callable tools to the conversation loop.
// Sources include the local companion-process bridge and remote MCP servers.
// From the orchestrator's perspective all sources merge into one flat tool
// list per turn.
type ToolSource interface {
	// Name identifies the source in logs and error messages.
	Name() string

	// Tools returns the currently available tools. A source that is
	// unreachable returns an empty list, not an error: connectivity
	// problems degrade gracefully and never fail a turn.
	Tools(ctx context.Context) []domain.Tool

	// Instructions returns optional static system-prompt text the source
	// contributes, or empty string.
	Instructions() string
}
