package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCosineSimilarity_Symmetry tests sim(a,b) == sim(b,a)
func TestCosineSimilarity_Symmetry(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 4}

	ab, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	ba, err := CosineSimilarity(b, a)
	require.NoError(t, err)

	assert.InDelta(t, ab, ba, 1e-12)
}

// TestCosineSimilarity_Bounds tests the result stays in [-1, 1]
func TestCosineSimilarity_Bounds(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}},
		{"opposite", []float32{1, 0}, []float32{-1, 0}},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}},
		{"arbitrary", []float32{0.1, -0.7, 2.4}, []float32{3.3, 0.2, -1.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, sim, -1.0-1e-9)
			assert.LessOrEqual(t, sim, 1.0+1e-9)
		})
	}
}

// TestCosineSimilarity_Identical tests identical vectors score 1
func TestCosineSimilarity_Identical(t *testing.T) {
	sim, err := CosineSimilarity([]float32{3, 4}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

// TestCosineSimilarity_ZeroVector tests zero-norm vectors score exactly 0
func TestCosineSimilarity_ZeroVector(t *testing.T) {
	sim, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)

	sim, err = CosineSimilarity([]float32{1, 2, 3}, []float32{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

// TestCosineSimilarity_DimensionMismatch tests mismatched dimensions reject
func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

// TestMeanVector tests per-dimension averaging
func TestMeanVector(t *testing.T) {
	mean, err := MeanVector([][]float32{
		{1, 2, 3},
		{3, 4, 5},
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4}, mean)
}

// TestMeanVector_Empty tests empty input yields nil
func TestMeanVector_Empty(t *testing.T) {
	mean, err := MeanVector(nil)
	require.NoError(t, err)
	assert.Nil(t, mean)
}

// TestMeanVector_DimensionMismatch tests mismatched segments reject
func TestMeanVector_DimensionMismatch(t *testing.T) {
	_, err := MeanVector([][]float32{{1, 2}, {1, 2, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
