package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeResourceResult tests resource payload detection
func TestDecodeResourceResult(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected bool
	}{
		{
			name:     "valid resource payload",
			output:   `{"type":"resource","resource":{"uri":"file:///tmp/chart.png","mimeType":"image/png","blob":"aGVsbG8="}}`,
			expected: true,
		},
		{
			name:     "plain text output",
			output:   "42 degrees and sunny",
			expected: false,
		},
		{
			name:     "json but wrong type",
			output:   `{"type":"text","resource":{"uri":"x","mimeType":"text/plain"}}`,
			expected: false,
		},
		{
			name:     "resource without uri",
			output:   `{"type":"resource","resource":{"mimeType":"image/png"}}`,
			expected: false,
		},
		{
			name:     "empty string",
			output:   "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := DecodeResourceResult(tt.output)
			assert.Equal(t, tt.expected, ok)
			if tt.expected {
				assert.NotNil(t, res)
			}
		})
	}
}

// TestResourceResult_Attachment tests conversion to a message attachment
func TestResourceResult_Attachment(t *testing.T) {
	res, ok := DecodeResourceResult(`{"type":"resource","resource":{"uri":"mem://img","name":"img.png","mimeType":"image/png","blob":"Zm9v"}}`)
	require.True(t, ok)

	att := res.Attachment()
	assert.Equal(t, "mem://img", att.URI)
	assert.Equal(t, "img.png", att.Name)
	assert.Equal(t, "image/png", att.MimeType)
	assert.Equal(t, "Zm9v", att.Blob)
}

// TestRepository_TotalPages tests page estimation from extracted text
func TestRepository_TotalPages(t *testing.T) {
	repo := Repository{
		Files: []RepositoryFile{
			{Text: string(make([]byte, 1800))},
			{Text: string(make([]byte, 900))},
		},
	}
	assert.Equal(t, 2700, repo.TotalCharacters())
	assert.InDelta(t, 1.5, repo.TotalPages(), 1e-9)
}
