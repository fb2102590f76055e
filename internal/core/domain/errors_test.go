package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassifyCompletionError tests substring-based error classification
func TestClassifyCompletionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{
			name:     "500 maps to server error",
			err:      errors.New("upstream returned 500 Internal Server Error"),
			expected: CodeServerError,
		},
		{
			name:     "401 maps to auth error",
			err:      errors.New("status 401: invalid api key"),
			expected: CodeAuthError,
		},
		{
			name:     "403 maps to auth error",
			err:      errors.New("status 403: forbidden"),
			expected: CodeAuthError,
		},
		{
			name:     "404 maps to not found error",
			err:      errors.New("model not found: 404"),
			expected: CodeNotFoundError,
		},
		{
			name:     "429 maps to rate limit error",
			err:      errors.New("too many requests: 429"),
			expected: CodeRateLimitError,
		},
		{
			name:     "timeout maps to network error",
			err:      errors.New("request timeout after 30s"),
			expected: CodeNetworkError,
		},
		{
			name:     "network maps to network error",
			err:      errors.New("network is unreachable"),
			expected: CodeNetworkError,
		},
		{
			name:     "anything else maps to completion error",
			err:      errors.New("unexpected end of stream"),
			expected: CodeCompletionError,
		},
		{
			name:     "nil maps to completion error",
			err:      nil,
			expected: CodeCompletionError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyCompletionError(tt.err))
		})
	}
}

// TestIsMissingFinishReason tests the benign stream termination predicate
func TestIsMissingFinishReason(t *testing.T) {
	assert.True(t, IsMissingFinishReason(errors.New("missing finish_reason")))
	assert.True(t, IsMissingFinishReason(fmt.Errorf("stream: %w", errors.New("missing finish_reason"))))
	assert.False(t, IsMissingFinishReason(errors.New("missing choices")))
	assert.False(t, IsMissingFinishReason(nil))
}

// TestErrorCode_Description tests that every code has a distinct message
func TestErrorCode_Description(t *testing.T) {
	codes := []ErrorCode{
		CodeServerError,
		CodeAuthError,
		CodeNotFoundError,
		CodeRateLimitError,
		CodeNetworkError,
		CodeCompletionError,
		CodeToolNotFound,
		CodeToolExecutionError,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		desc := code.Description()
		assert.NotEmpty(t, desc)
		assert.False(t, seen[desc], "duplicate description for %s", code)
		seen[desc] = true
	}

	assert.Equal(t, "Unknown error.", ErrorCode("bogus").Description())
}

// TestErrors_Sentinels tests sentinel error identity
func TestErrors_Sentinels(t *testing.T) {
	assert.True(t, errors.Is(fmt.Errorf("add: %w", ErrDimensionMismatch), ErrDimensionMismatch))
	assert.True(t, errors.Is(fmt.Errorf("merge: %w", ErrDuplicateTool), ErrDuplicateTool))
	assert.False(t, errors.Is(ErrNotFound, ErrAlreadyExists))
}
