package domain

import (
	"context"
	"encoding/json"
)

// Tool describes a callable function exposed to the language model.
// The descriptor part (Name, Description, Parameters) is sent to the model;
// Execute performs the actual invocation.
type Tool struct {
	// Name is the unique tool name within one completion call.
	Name string

	// Description tells the model when to use this tool.
	Description string

	// Parameters is the JSON Schema of the argument object.
	Parameters map[string]any

	// Execute invokes the tool. Shared state travels through the explicit
	// ToolContext rather than captured mutable references, so tools stay
	// testable in isolation.
	Execute func(ctx context.Context, args map[string]any, tc *ToolContext) (string, error)
}

// ToolContext carries per-turn state a tool may need.
type ToolContext struct {
	// ChatID is the conversation the tool call belongs to.
	ChatID string

	// RepositoryID is the active knowledge repository, if any.
	RepositoryID string
}

// resourceResultType is the discriminator for resource payloads.
const resourceResultType = "resource"

// ResourceContent is the inner payload of a resource result.
type ResourceContent struct {
	URI      string `json:"uri"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType"`
	Blob     string `json:"blob,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ResourceResult is the convention for tools that return binary or file
// output: a JSON object with type "resource". The orchestrator detects this
// shape in tool output and promotes it to a message attachment.
type ResourceResult struct {
	Type     string          `json:"type"`
	Resource ResourceContent `json:"resource"`
}

// DecodeResourceResult attempts to parse a tool's string output as a
// resource result. Returns the result and true only when the output is a
// well-formed resource payload; any other string, including invalid JSON,
// returns false.
func DecodeResourceResult(output string) (*ResourceResult, bool) {
	var res ResourceResult
	if err := json.Unmarshal([]byte(output), &res); err != nil {
		return nil, false
	}
	if res.Type != resourceResultType || res.Resource.URI == "" {
		return nil, false
	}
	return &res, true
}

// Attachment converts the resource payload into a message attachment.
func (r *ResourceResult) Attachment() Attachment {
	return Attachment{
		URI:      r.Resource.URI,
		Name:     r.Resource.Name,
		MimeType: r.Resource.MimeType,
		Blob:     r.Resource.Blob,
		Text:     r.Resource.Text,
	}
}
