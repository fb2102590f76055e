package domain

import (
	"errors"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates vectors of different dimensionality
	// were combined. This is a caller contract violation.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateTool indicates two tool sources exposed the same name in
	// one completion call. Duplicates are a caller error, never silently
	// resolved.
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrEmbeddingUnavailable indicates no embedding service is configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrCompletionUnavailable indicates no completion service is configured.
	ErrCompletionUnavailable = errors.New("completion service unavailable")

	// ErrStaleGeneration indicates async work finished after its repository
	// or file was superseded; the result was discarded.
	ErrStaleGeneration = errors.New("stale generation")
)

// ErrorCode classifies a failure for display alongside a message.
type ErrorCode string

// Available error codes.
const (
	// CodeServerError is an upstream 5xx failure.
	CodeServerError ErrorCode = "SERVER_ERROR"

	// CodeAuthError is an authentication or authorisation failure.
	CodeAuthError ErrorCode = "AUTH_ERROR"

	// CodeNotFoundError is an upstream 404.
	CodeNotFoundError ErrorCode = "NOT_FOUND_ERROR"

	// CodeRateLimitError is an upstream 429.
	CodeRateLimitError ErrorCode = "RATE_LIMIT_ERROR"

	// CodeNetworkError is a connectivity or timeout failure.
	CodeNetworkError ErrorCode = "NETWORK_ERROR"

	// CodeCompletionError is any other completion failure.
	CodeCompletionError ErrorCode = "COMPLETION_ERROR"

	// CodeToolNotFound means the model requested an unknown tool.
	CodeToolNotFound ErrorCode = "TOOL_NOT_FOUND"

	// CodeToolExecutionError means a tool invocation failed.
	CodeToolExecutionError ErrorCode = "TOOL_EXECUTION_ERROR"
)

// String returns the string representation.
func (c ErrorCode) String() string {
	return string(c)
}

// Description returns the human-readable message shown with the code.
func (c ErrorCode) Description() string {
	switch c {
	case CodeServerError:
		return "The model provider returned a server error. Please try again."
	case CodeAuthError:
		return "Authentication with the model provider failed. Check your API key."
	case CodeNotFoundError:
		return "The requested model or endpoint was not found."
	case CodeRateLimitError:
		return "The model provider is rate limiting requests. Please wait and retry."
	case CodeNetworkError:
		return "A network problem interrupted the request. Check your connection."
	case CodeCompletionError:
		return "The completion request failed."
	case CodeToolNotFound:
		return "The requested tool is not available."
	case CodeToolExecutionError:
		return "The tool invocation failed."
	default:
		return "Unknown error."
	}
}

// missingFinishReason is an upstream completion API quirk: some providers
// terminate a successful stream without a finish_reason. The error is known
// to be benign and is swallowed rather than surfaced.
const missingFinishReason = "missing finish_reason"

// IsMissingFinishReason reports whether the error is the known benign
// "missing finish_reason" stream termination. Kept as a named predicate so
// the swallowing behaviour stays visible and testable.
func IsMissingFinishReason(err error) bool {
	return err != nil && strings.Contains(err.Error(), missingFinishReason)
}

// ClassifyCompletionError maps a turn-aborting failure to an ErrorCode by
// inspecting the error's string representation.
func ClassifyCompletionError(err error) ErrorCode {
	if err == nil {
		return CodeCompletionError
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "500"):
		return CodeServerError
	case strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return CodeAuthError
	case strings.Contains(msg, "404"):
		return CodeNotFoundError
	case strings.Contains(msg, "429"):
		return CodeRateLimitError
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "network"):
		return CodeNetworkError
	default:
		return CodeCompletionError
	}
}
