package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driving"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.AssistantService = (*Orchestrator)(nil)

// TurnContextProvider supplies the knowledge contribution for one turn:
// extra instructions, extra tools and the active repository ID. Implemented
// by KnowledgeService; nil-safe in the orchestrator.
type TurnContextProvider interface {
	TurnContext(ctx context.Context) (instructions string, tools []domain.Tool, repoID string, err error)
}

// titleSummaryInstructions asks the model for a short chat title.
const titleSummaryInstructions = "Summarise the conversation in a short title " +
	"of at most six words. Reply with the title only, no quotes, no punctuation at the end."

// titleTimeout bounds the background title summarisation call.
const titleTimeout = 30 * time.Second

// OrchestratorConfig holds conversation loop tunables.
type OrchestratorConfig struct {
	// Instructions is the base system prompt prepended to every turn.
	Instructions string

	// MaxToolRounds caps completion/tool iterations per turn. Zero means
	// unbounded; the model decides when to settle.
	MaxToolRounds int
}

// Orchestrator drives the multi-step tool-calling conversation loop: it
// streams the assistant's reply into a placeholder message, dispatches any
// tool calls the model requests, feeds the results back, and repeats until
// the model settles on a final answer.
type Orchestrator struct {
	completion driven.CompletionService
	chats      driven.ChatStore
	knowledge  TurnContextProvider
	sources    []driven.ToolSource
	cfg        OrchestratorConfig

	// titles tracks in-flight title summarisations so Wait can drain them.
	titles sync.WaitGroup
}

// NewOrchestrator creates the conversation loop. knowledge may be nil when
// no repository features are wired; sources may be empty.
func NewOrchestrator(
	completion driven.CompletionService,
	chats driven.ChatStore,
	knowledge TurnContextProvider,
	sources []driven.ToolSource,
	cfg OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		completion: completion,
		chats:      chats,
		knowledge:  knowledge,
		sources:    sources,
		cfg:        cfg,
	}
}

// Wait blocks until background work (title summarisation) has drained.
// Called on shutdown and in tests.
func (o *Orchestrator) Wait() {
	o.titles.Wait()
}

// GetChat retrieves a chat with full history.
func (o *Orchestrator) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	return o.chats.GetChat(ctx, chatID)
}

// ListChats returns all chats, newest first.
func (o *Orchestrator) ListChats(ctx context.Context) ([]domain.Chat, error) {
	return o.chats.ListChats(ctx)
}

// DeleteChat removes a chat.
func (o *Orchestrator) DeleteChat(ctx context.Context, chatID string) error {
	return o.chats.DeleteChat(ctx, chatID)
}

// SendMessage appends the user message and runs the completion/tool loop
// until the model settles. Completion failures are classified and recorded
// on the assistant message rather than returned; only storage failures
// surface as errors.
func (o *Orchestrator) SendMessage(ctx context.Context, chatID, content string, sink driving.StreamSink) (*domain.Chat, error) {
	instructions, tools, repoID, err := o.turnContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("assemble turn context: %w", err)
	}

	chat, err := o.resolveChat(ctx, chatID, repoID)
	if err != nil {
		return nil, err
	}

	userMsg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := o.chats.AppendMessage(ctx, chat.ID, userMsg); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	toolIndex, mergeErr := mergeTools(tools)
	tc := &domain.ToolContext{ChatID: chat.ID, RepositoryID: repoID}

	rounds := 0
	for {
		assistant, failed, err := o.completeOnce(ctx, chat.ID, instructions, tools, mergeErr, sink)
		if err != nil {
			return nil, err
		}
		if failed || len(assistant.ToolCalls) == 0 {
			break
		}

		rounds++
		if o.cfg.MaxToolRounds > 0 && rounds > o.cfg.MaxToolRounds {
			logger.Warn("tool round limit (%d) reached for chat %s", o.cfg.MaxToolRounds, chat.ID)
			if err := o.recordRoundLimit(ctx, chat.ID, sink); err != nil {
				return nil, err
			}
			break
		}

		for _, call := range assistant.ToolCalls {
			toolMsg := o.dispatchTool(ctx, call, toolIndex, tc)
			if err := o.chats.AppendMessage(ctx, chat.ID, toolMsg); err != nil {
				return nil, fmt.Errorf("append tool message: %w", err)
			}
			if sink != nil {
				sink(toolMsg)
			}
		}
	}

	o.maybeSummariseTitle(chat.ID)

	return o.chats.GetChat(ctx, chat.ID)
}

// completeOnce runs one completion call: it appends a placeholder assistant
// message, streams snapshots into it, and settles it with the model's final
// content and tool calls. failed reports whether the turn recorded an error
// and must stop looping.
func (o *Orchestrator) completeOnce(
	ctx context.Context,
	chatID, instructions string,
	tools []domain.Tool,
	mergeErr error,
	sink driving.StreamSink,
) (*domain.Message, bool, error) {
	placeholder := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		CreatedAt: time.Now(),
	}
	if err := o.chats.AppendMessage(ctx, chatID, placeholder); err != nil {
		return nil, false, fmt.Errorf("append assistant placeholder: %w", err)
	}
	if sink != nil {
		sink(placeholder)
	}

	settle := func(msg domain.Message) (*domain.Message, bool, error) {
		if err := o.chats.UpdateMessage(ctx, chatID, msg); err != nil {
			return nil, false, fmt.Errorf("update assistant message: %w", err)
		}
		if sink != nil {
			sink(msg)
		}
		return &msg, msg.Error != nil, nil
	}

	if mergeErr != nil {
		// Duplicate tool names are a wiring error; the turn fails before the
		// model is ever called.
		placeholder.Error = &domain.MessageError{
			Code:    domain.CodeCompletionError,
			Message: mergeErr.Error(),
		}
		placeholder.Content = domain.CodeCompletionError.Description()
		return settle(placeholder)
	}

	chat, err := o.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, false, fmt.Errorf("load chat: %w", err)
	}
	// The placeholder itself is not part of what the model sees.
	history := chat.Messages[:len(chat.Messages)-1]

	var lastSnapshot string
	onDelta := func(snapshot string) {
		lastSnapshot = snapshot
		streamed := placeholder
		streamed.Content = snapshot
		if err := o.chats.UpdateMessage(ctx, chatID, streamed); err != nil {
			logger.Warn("stream update: %v", err)
		}
		if sink != nil {
			sink(streamed)
		}
	}

	result, err := o.completion.Complete(ctx, driven.CompletionRequest{
		Model:        chat.Model,
		Instructions: instructions,
		Messages:     history,
		Tools:        tools,
	}, onDelta)

	switch {
	case err == nil:
		placeholder.Content = result.Content
		placeholder.ToolCalls = result.ToolCalls
	case domain.IsMissingFinishReason(err):
		// Benign stream termination quirk; keep what was streamed.
		logger.Debug("swallowed missing finish_reason for chat %s", chatID)
		placeholder.Content = lastSnapshot
	default:
		code := domain.ClassifyCompletionError(err)
		logger.Warn("completion failed (%s): %v", code, err)
		placeholder.Error = &domain.MessageError{Code: code, Message: err.Error()}
		placeholder.Content = code.Description()
	}

	return settle(placeholder)
}

// dispatchTool invokes one tool call and builds the tool message carrying
// its result. Failures become structured errors fed back to the model; they
// never abort the turn.
func (o *Orchestrator) dispatchTool(
	ctx context.Context,
	call domain.ToolCall,
	toolIndex map[string]domain.Tool,
	tc *domain.ToolContext,
) domain.Message {
	msg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleTool,
		CreatedAt: time.Now(),
	}

	tool, ok := toolIndex[call.Name]
	if !ok {
		logger.Warn("model requested unknown tool %q", call.Name)
		msg.ToolResult = toolFailure(call, domain.CodeToolNotFound,
			fmt.Sprintf("tool %q is not available", call.Name))
		msg.Content = msg.ToolResult.Content
		return msg
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			msg.ToolResult = toolFailure(call, domain.CodeToolExecutionError,
				fmt.Sprintf("invalid tool arguments: %v", err))
			msg.Content = msg.ToolResult.Content
			return msg
		}
	}

	logger.Debug("invoking tool %s", call.Name)
	output, err := tool.Execute(ctx, args, tc)
	if err != nil {
		logger.Warn("tool %s failed: %v", call.Name, err)
		msg.ToolResult = toolFailure(call, domain.CodeToolExecutionError, err.Error())
		msg.Content = msg.ToolResult.Content
		return msg
	}

	result := &domain.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Data:    output,
		Content: output,
	}
	if res, ok := domain.DecodeResourceResult(output); ok {
		// Binary payloads become attachments; the model only sees a marker.
		result.Content = "Resource generated successfully."
		msg.Attachments = append(msg.Attachments, res.Attachment())
	}
	msg.ToolResult = result
	msg.Content = result.Content
	return msg
}

// toolFailure builds the result for a failed tool call. Content mirrors the
// error message so the model sees what went wrong.
func toolFailure(call domain.ToolCall, code domain.ErrorCode, message string) *domain.ToolResult {
	return &domain.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: message,
		Error:   &domain.MessageError{Code: code, Message: message},
	}
}

// recordRoundLimit appends an assistant message carrying the round limit
// error so the transcript shows why the loop stopped.
func (o *Orchestrator) recordRoundLimit(ctx context.Context, chatID string, sink driving.StreamSink) error {
	msg := domain.Message{
		ID:      uuid.NewString(),
		Role:    domain.RoleAssistant,
		Content: domain.CodeCompletionError.Description(),
		Error: &domain.MessageError{
			Code:    domain.CodeCompletionError,
			Message: fmt.Sprintf("tool round limit of %d reached", o.cfg.MaxToolRounds),
		},
		CreatedAt: time.Now(),
	}
	if err := o.chats.AppendMessage(ctx, chatID, msg); err != nil {
		return fmt.Errorf("append round limit message: %w", err)
	}
	if sink != nil {
		sink(msg)
	}
	return nil
}

// turnContext merges the base instructions and tools with the knowledge
// contribution and every tool source's offering.
func (o *Orchestrator) turnContext(ctx context.Context) (string, []domain.Tool, string, error) {
	var parts []string
	if o.cfg.Instructions != "" {
		parts = append(parts, o.cfg.Instructions)
	}

	var tools []domain.Tool
	repoID := ""

	if o.knowledge != nil {
		knowledgeInstr, knowledgeTools, id, err := o.knowledge.TurnContext(ctx)
		if err != nil {
			return "", nil, "", err
		}
		if knowledgeInstr != "" {
			parts = append(parts, knowledgeInstr)
		}
		tools = append(tools, knowledgeTools...)
		repoID = id
	}

	for _, source := range o.sources {
		sourceTools := source.Tools(ctx)
		logger.Debug("tool source %s offers %d tools", source.Name(), len(sourceTools))
		tools = append(tools, sourceTools...)
		if instr := source.Instructions(); instr != "" {
			parts = append(parts, instr)
		}
	}

	return strings.Join(parts, "\n\n"), tools, repoID, nil
}

// resolveChat loads an existing chat or lazily creates one.
func (o *Orchestrator) resolveChat(ctx context.Context, chatID, repoID string) (*domain.Chat, error) {
	if chatID != "" {
		chat, err := o.chats.GetChat(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("load chat: %w", err)
		}
		return chat, nil
	}

	now := time.Now()
	chat := &domain.Chat{
		ID:           uuid.NewString(),
		Model:        o.completion.ModelName(),
		RepositoryID: repoID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.chats.SaveChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	logger.Debug("created chat %s", chat.ID)
	return chat, nil
}

// maybeSummariseTitle kicks off background title summarisation when the chat
// has no title yet, or periodically as the conversation grows. Failures are
// logged and dropped; a title is never worth failing a turn over.
func (o *Orchestrator) maybeSummariseTitle(chatID string) {
	chat, err := o.chats.GetChat(context.Background(), chatID)
	if err != nil {
		return
	}
	if chat.Title != "" && len(chat.Messages)%3 != 0 {
		return
	}

	o.titles.Add(1)
	go func() {
		defer o.titles.Done()
		ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
		defer cancel()

		result, err := o.completion.Complete(ctx, driven.CompletionRequest{
			Model:        chat.Model,
			Instructions: titleSummaryInstructions,
			Messages:     chat.Messages,
		}, nil)
		if err != nil {
			logger.Debug("title summarisation: %v", err)
			return
		}
		title := strings.TrimSpace(result.Content)
		if title == "" {
			return
		}
		if err := o.chats.SetTitle(context.Background(), chatID, title); err != nil {
			logger.Debug("set title: %v", err)
		}
	}()
}

// mergeTools indexes tools by name. A duplicate name across sources is a
// caller error reported for the whole turn, never silently resolved.
func mergeTools(tools []domain.Tool) (map[string]domain.Tool, error) {
	index := make(map[string]domain.Tool, len(tools))
	for _, tool := range tools {
		if _, exists := index[tool.Name]; exists {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateTool, tool.Name)
		}
		index[tool.Name] = tool
	}
	return index, nil
}
