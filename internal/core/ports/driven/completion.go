package driven

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// CompletionRequest is one call to the language model.
type CompletionRequest struct {
	// Model is the completion model identifier.
	Model string

	// Instructions is the merged system prompt for this turn.
	Instructions string

	// Messages is the full conversation history, oldest first.
	Messages []domain.Message

	// Tools is the merged tool list offered to the model. Only the
	// descriptor part (name, description, parameters) crosses the wire.
	Tools []domain.Tool
}

// CompletionResult is the settled outcome of one completion call.
type CompletionResult struct {
	// Content is the final assistant text.
	Content string

	// ToolCalls holds the tool invocations the model requested, in model
	// order. Empty when the model produced a final answer.
	ToolCalls []domain.ToolCall
}

// StreamFunc receives the cumulative assistant text as it streams in.
// Each call carries the full snapshot so far; a later snapshot always
// replaces an earlier one (never append).
type StreamFunc func(snapshot string)

// CompletionService drives a streaming chat completion against a language
// model provider.
//
// Implementations may include:
//   - OpenAI and OpenAI-compatible APIs (LM Studio, vLLM)
//   - Ollama (local models)
type CompletionService interface {
	// Complete runs one completion over the given conversation. onDelta may
	// be nil; when set it is called with text snapshots while streaming.
	Complete(ctx context.Context, req CompletionRequest, onDelta StreamFunc) (*CompletionResult, error)

	// ModelName returns the default model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}
