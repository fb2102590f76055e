package services

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Default chunking parameters, in runes.
const (
	// DefaultChunkSize is the target chunk length.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is how many trailing runes each chunk shares with
	// the next one, preserving context across chunk boundaries.
	DefaultChunkOverlap = 200
)

// Chunker splits extracted text into fixed-size overlapping chunks.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Zero or negative values fall back to the
// defaults; an overlap at or above the size is clamped to size-1 so the
// window always advances.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into overlapping windows. Whitespace-only text yields no
// chunks. Offsets are in runes so multi-byte characters are never split.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ExtractText converts raw uploaded content into plain text. Only textual
// content is supported: the bytes must be valid UTF-8 and free of NUL bytes.
// Line endings are normalised to \n.
func ExtractText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("content is not valid UTF-8 text")
	}

	text := string(content)
	if strings.ContainsRune(text, '\x00') {
		return "", fmt.Errorf("content looks binary (contains NUL bytes)")
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text, nil
}
