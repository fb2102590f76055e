package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

func addDoc(t *testing.T, s *Store, dom, id string, vec []float32, tags ...string) {
	t.Helper()
	err := s.AddDocument(context.Background(), dom, domain.VectorDocument{
		ID:     id,
		Source: id + ".txt",
		Vector: vec,
		Text:   "content of " + id,
	}, tags...)
	require.NoError(t, err)
}

// TestStore_QueryOrdering tests similarity-descending order with stable ties
func TestStore_QueryOrdering(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addDoc(t, s, "repo", "a", []float32{1, 0})
	addDoc(t, s, "repo", "b", []float32{0.9, 0.1})
	addDoc(t, s, "repo", "c", []float32{0, 1})
	addDoc(t, s, "repo", "d", []float32{1, 0}) // same similarity as "a"

	hits, err := s.QueryDocuments(ctx, "repo", driven.VectorQuery{Vector: []float32{1, 0}})
	require.NoError(t, err)
	require.Len(t, hits, 4)

	// Non-increasing similarity
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Similarity, hits[i].Similarity)
	}

	// Ties broken by insertion order: "a" was inserted before "d"
	assert.Equal(t, "a", hits[0].Document.ID)
	assert.Equal(t, "d", hits[1].Document.ID)
	assert.Equal(t, "c", hits[3].Document.ID)
}

// TestStore_QueryTopK tests result truncation
func TestStore_QueryTopK(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		addDoc(t, s, "repo", fmt.Sprintf("doc-%02d", i), []float32{1, float32(i) * 0.01})
	}

	hits, err := s.QueryDocuments(ctx, "repo", driven.VectorQuery{Vector: []float32{1, 0}, TopK: 5})
	require.NoError(t, err)
	assert.Len(t, hits, 5)

	// Default TopK applies when unset
	hits, err = s.QueryDocuments(ctx, "repo", driven.VectorQuery{Vector: []float32{1, 0}})
	require.NoError(t, err)
	assert.Len(t, hits, driven.DefaultTopK)
}

// TestStore_QueryTagUnion tests that tag filtering is a union
func TestStore_QueryTagUnion(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addDoc(t, s, "repo", "a", []float32{1, 0}, "file1")
	addDoc(t, s, "repo", "b", []float32{1, 0}, "file2")
	addDoc(t, s, "repo", "c", []float32{1, 0}, "file3")

	hits, err := s.QueryDocuments(ctx, "repo", driven.VectorQuery{
		Vector: []float32{1, 0},
		Tags:   []string{"file1", "file3"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	ids := []string{hits[0].Document.ID, hits[1].Document.ID}
	assert.Contains(t, ids, "a")
	assert.Contains(t, ids, "c")
}

// TestStore_QueryDomainIsolation tests that domains never leak
func TestStore_QueryDomainIsolation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addDoc(t, s, "repo1", "a", []float32{1, 0})
	addDoc(t, s, "repo2", "b", []float32{1, 0})

	hits, err := s.QueryDocuments(ctx, "repo1", driven.VectorQuery{Vector: []float32{1, 0}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Document.ID)

	hits, err = s.QueryDocuments(ctx, "missing", driven.VectorQuery{Vector: []float32{1, 0}})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// TestStore_QueryDimensionMismatch tests the caller contract violation
func TestStore_QueryDimensionMismatch(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addDoc(t, s, "repo", "a", []float32{1, 0, 0})

	_, err := s.QueryDocuments(ctx, "repo", driven.VectorQuery{Vector: []float32{1, 0}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

// TestStore_ZeroVectorQuery tests zero-norm queries score 0, not NaN
func TestStore_ZeroVectorQuery(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addDoc(t, s, "repo", "a", []float32{1, 2})

	hits, err := s.QueryDocuments(ctx, "repo", driven.VectorQuery{Vector: []float32{0, 0}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0.0, hits[0].Similarity)
}

// TestStore_DeleteDocument tests tag bucket pruning on delete
func TestStore_DeleteDocument(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addDoc(t, s, "repo", "a", []float32{1, 0}, "file1", "shared")
	addDoc(t, s, "repo", "b", []float32{1, 0}, "shared")

	require.NoError(t, s.DeleteDocument(ctx, "repo", "a"))

	// Re-querying by the deleted document's tag excludes it
	hits, err := s.QueryDocuments(ctx, "repo", driven.VectorQuery{Vector: []float32{1, 0}, Tags: []string{"file1"}})
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Shared bucket still serves the surviving document
	hits, err = s.QueryDocuments(ctx, "repo", driven.VectorQuery{Vector: []float32{1, 0}, Tags: []string{"shared"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Document.ID)
}

// TestStore_Overwrite tests insert-or-overwrite by ID
func TestStore_Overwrite(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addDoc(t, s, "repo", "a", []float32{1, 0})
	addDoc(t, s, "repo", "a", []float32{0, 1})

	hits, err := s.QueryDocuments(ctx, "repo", driven.VectorQuery{Vector: []float32{0, 1}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

// TestStore_ExportImportRoundTrip tests query equivalence after round trip
func TestStore_ExportImportRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addDoc(t, s, "repo1", "a", []float32{1, 0}, "file1")
	addDoc(t, s, "repo1", "b", []float32{1, 0}, "file1") // tie with "a"
	addDoc(t, s, "repo1", "c", []float32{0.5, 0.5}, "file2")
	addDoc(t, s, "repo2", "x", []float32{0, 1})

	data, err := s.Export(ctx)
	require.NoError(t, err)

	restored := NewStore()
	// Pre-existing content must be fully replaced by import
	addDoc(t, restored, "stale", "old", []float32{1})
	require.NoError(t, restored.Import(ctx, data))

	queries := []driven.VectorQuery{
		{Vector: []float32{1, 0}},
		{Vector: []float32{0.3, 0.7}, TopK: 2},
		{Vector: []float32{1, 0}, Tags: []string{"file1"}},
	}

	for _, q := range queries {
		want, err := s.QueryDocuments(ctx, "repo1", q)
		require.NoError(t, err)
		got, err := restored.QueryDocuments(ctx, "repo1", q)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// The stale domain is gone
	hits, err := restored.QueryDocuments(ctx, "stale", driven.VectorQuery{Vector: []float32{1}})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// TestStore_ImportInvalidJSON tests import rejects garbage without clearing
func TestStore_ImportInvalidJSON(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addDoc(t, s, "repo", "a", []float32{1})

	err := s.Import(ctx, []byte("{not json"))
	require.Error(t, err)

	hits, err := s.QueryDocuments(ctx, "repo", driven.VectorQuery{Vector: []float32{1}})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

// TestStore_DeleteDomain tests repository cascade
func TestStore_DeleteDomain(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	addDoc(t, s, "repo", "a", []float32{1})
	require.NoError(t, s.DeleteDomain(ctx, "repo"))

	hits, err := s.QueryDocuments(ctx, "repo", driven.VectorQuery{Vector: []float32{1}})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
