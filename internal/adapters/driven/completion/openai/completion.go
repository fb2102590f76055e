// Package openai provides a streaming chat completion adapter for the OpenAI
// API and OpenAI-compatible endpoints (LM Studio, vLLM, Ollama's OpenAI
// compatibility layer).
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Ensure CompletionService implements the interface.
var _ driven.CompletionService = (*CompletionService)(nil)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Config holds configuration for the OpenAI completion service.
type Config struct {
	// APIKey is the API key. Compatible local endpoints accept any value.
	APIKey string

	// BaseURL overrides the API base URL for compatible endpoints. Empty
	// means the official endpoint.
	BaseURL string

	// Model is the default completion model (default: gpt-4o-mini).
	Model string
}

// CompletionService streams chat completions from an OpenAI-compatible API.
type CompletionService struct {
	client *goopenai.Client
	model  string
}

// NewCompletionService creates a new OpenAI completion service.
func NewCompletionService(cfg Config) (*CompletionService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &CompletionService{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Complete runs one streaming completion. Text deltas are accumulated and
// reported to onDelta as cumulative snapshots; tool call deltas are
// accumulated by index until the stream settles.
func (s *CompletionService) Complete(ctx context.Context, req driven.CompletionRequest, onDelta driven.StreamFunc) (*driven.CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = s.model
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(req.Instructions, req.Messages),
		Tools:    convertTools(req.Tools),
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: create stream: %w", err)
	}
	defer stream.Close()

	var content strings.Builder
	calls := map[int]*toolCallAccumulator{}
	finished := false

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("openai: stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]

		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if onDelta != nil {
				onDelta(content.String())
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			acc, ok := calls[index]
			if !ok {
				acc = &toolCallAccumulator{}
				calls[index] = acc
			}
			if tc.ID != "" {
				acc.id = tc.ID
			}
			if tc.Function.Name != "" {
				acc.name += tc.Function.Name
			}
			acc.arguments.WriteString(tc.Function.Arguments)
		}

		if choice.FinishReason != "" && choice.FinishReason != goopenai.FinishReasonNull {
			finished = true
		}
	}

	if !finished {
		// Some compatible endpoints drop the finish_reason on otherwise
		// complete streams. Callers decide whether to treat this as benign.
		return nil, fmt.Errorf("openai: stream ended with missing finish_reason")
	}

	logger.Debug("completion settled: %d chars, %d tool calls", content.Len(), len(calls))

	return &driven.CompletionResult{
		Content:   content.String(),
		ToolCalls: settleToolCalls(calls),
	}, nil
}

// ModelName returns the default model identifier.
func (s *CompletionService) ModelName() string {
	return s.model
}

// Close releases resources.
func (s *CompletionService) Close() error {
	return nil
}

// toolCallAccumulator collects the fragments of one streamed tool call.
type toolCallAccumulator struct {
	id        string
	name      string
	arguments strings.Builder
}

// settleToolCalls orders accumulated calls by stream index.
func settleToolCalls(calls map[int]*toolCallAccumulator) []domain.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(calls))
	for index := range calls {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	out := make([]domain.ToolCall, 0, len(calls))
	for _, index := range indexes {
		acc := calls[index]
		out = append(out, domain.ToolCall{
			ID:        acc.id,
			Name:      acc.name,
			Arguments: acc.arguments.String(),
		})
	}
	return out
}

// convertMessages maps the conversation history to the wire format. The
// instructions become a leading system message.
func convertMessages(instructions string, messages []domain.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	if instructions != "" {
		out = append(out, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: instructions,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleUser:
			out = append(out, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		case domain.RoleAssistant:
			wire := goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, call := range msg.ToolCalls {
				wire.ToolCalls = append(wire.ToolCalls, goopenai.ToolCall{
					ID:   call.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			out = append(out, wire)
		case domain.RoleTool:
			if msg.ToolResult == nil {
				continue
			}
			out = append(out, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    msg.ToolResult.Content,
				Name:       msg.ToolResult.Name,
				ToolCallID: msg.ToolResult.CallID,
			})
		}
	}
	return out
}

// convertTools maps tool descriptors to the wire format. Execute never
// crosses the wire.
func convertTools(tools []domain.Tool) []goopenai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return out
}
