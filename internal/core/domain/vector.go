package domain

import (
	"fmt"
	"math"
)

// VectorDocument is an embedded text unit stored in the vector index.
// For chunked files the ID encodes "repoID:fileID:segmentIndex".
type VectorDocument struct {
	// ID is unique within a domain.
	ID string `json:"id"`

	// Source names where the text came from (typically the file name).
	Source string `json:"source"`

	// Vector is the embedding. All vectors within one domain must share
	// dimensionality; callers guard this.
	Vector []float32 `json:"vector"`

	// Text is the embedded content.
	Text string `json:"text"`
}

// CosineSimilarity computes dot(a,b) / (|a|*|b|).
// A zero-norm operand yields exactly 0, never NaN. Mismatched dimensions are
// a caller contract violation and return an error; vectors are never
// truncated or padded.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d dimensions", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// MeanVector computes the per-dimension mean of the given vectors, used to
// synthesise a whole-document entry from its segment vectors. All vectors
// must share dimensionality. Returns nil for empty input.
func MeanVector(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, nil
	}

	dims := len(vectors[0])
	sums := make([]float64, dims)
	for _, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: %d vs %d dimensions", ErrDimensionMismatch, len(v), dims)
		}
		for i := range v {
			sums[i] += float64(v[i])
		}
	}

	mean := make([]float32, dims)
	for i := range sums {
		mean[i] = float32(sums[i] / float64(len(vectors)))
	}
	return mean, nil
}
