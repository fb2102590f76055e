package domain

import "time"

// Role identifies the author of a conversation message.
type Role string

// Available message roles.
const (
	// RoleUser is a message typed by the user.
	RoleUser Role = "user"

	// RoleAssistant is a message produced by the language model.
	RoleAssistant Role = "assistant"

	// RoleTool is a message carrying the result of a single tool call.
	RoleTool Role = "tool"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// ToolCall is a structured request from the model to invoke a named tool.
type ToolCall struct {
	// ID correlates this call with its ToolResult.
	ID string

	// Name is the tool to invoke.
	Name string

	// Arguments is the raw JSON-encoded argument object.
	Arguments string
}

// ToolResult is the outcome of one tool call.
type ToolResult struct {
	// CallID correlates this result with a prior ToolCall.ID.
	CallID string

	// Name is the tool that produced this result.
	Name string

	// Data is the raw tool output.
	Data string

	// Content is what is shown and fed back to the model. It usually equals
	// Data, except when the output decoded to a resource payload, in which
	// case Content is a success marker and the resource becomes an attachment.
	Content string

	// Error carries a structured error when the call failed.
	Error *MessageError
}

// Attachment is a binary or file resource attached to a message, typically
// promoted from a tool's resource result.
type Attachment struct {
	// URI is the resource location or identifier.
	URI string

	// Name is an optional display name.
	Name string

	// MimeType describes the payload.
	MimeType string

	// Blob is the base64-encoded binary payload, if any.
	Blob string

	// Text is the textual payload, if any.
	Text string
}

// MessageError is a classified, user-visible error attached to a message.
type MessageError struct {
	// Code is one of the ErrorCode constants.
	Code ErrorCode

	// Message is the human-readable description.
	Message string
}

// Message is a single entry in a conversation.
type Message struct {
	// ID is the unique message identifier.
	ID string

	// Role is the message author.
	Role Role

	// Content is the message text.
	Content string

	// Attachments holds resources promoted from tool results.
	Attachments []Attachment

	// Error is set when the turn that produced this message failed.
	Error *MessageError

	// ToolCalls holds the tool invocations requested by an assistant message.
	ToolCalls []ToolCall

	// ToolResult is set on tool messages; exactly one per message.
	ToolResult *ToolResult

	// CreatedAt is when the message was appended.
	CreatedAt time.Time
}

// Chat is a conversation between the user and the assistant.
type Chat struct {
	// ID is the unique chat identifier.
	ID string

	// Title is a short summary of the conversation, generated lazily.
	Title string

	// Model is the completion model used for this chat.
	Model string

	// RepositoryID links the chat to a knowledge repository, if any.
	RepositoryID string

	// Messages is the ordered conversation history.
	Messages []Message

	// CreatedAt is when the chat was created.
	CreatedAt time.Time

	// UpdatedAt is when the chat was last modified.
	UpdatedAt time.Time
}
