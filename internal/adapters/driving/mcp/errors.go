// Package mcp provides an MCP (Model Context Protocol) server adapter for
// Parley. It exposes knowledge repository search to external AI assistants.
package mcp

import "errors"

// ErrMissingKnowledgeService is returned when the knowledge service is not provided.
var ErrMissingKnowledgeService = errors.New("mcp: knowledge service is required")
