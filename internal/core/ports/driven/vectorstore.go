package driven

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// DefaultTopK is the result cap used when VectorQuery.TopK is unset.
const DefaultTopK = 10

// VectorQuery describes one similarity search.
type VectorQuery struct {
	// Vector is the query embedding.
	Vector []float32

	// Tags restricts candidates to documents tagged with any of these
	// (union). Empty means all documents in the domain.
	Tags []string

	// TopK caps the result count. Zero or negative means DefaultTopK.
	TopK int
}

// VectorHit is one similarity search result.
type VectorHit struct {
	// Document is the matched document.
	Document domain.VectorDocument

	// Similarity is the cosine similarity against the query vector.
	Similarity float64
}

// VectorStore is an in-process similarity index partitioned by domain.
// Each knowledge repository gets its own domain so queries never leak
// across corpora.
type VectorStore interface {
	// AddDocument inserts or overwrites a document by ID and registers it
	// under the given tags. Tags accumulate until the document is deleted.
	AddDocument(ctx context.Context, domainName string, doc domain.VectorDocument, tags ...string) error

	// QueryDocuments returns up to TopK documents sorted by similarity
	// descending, ties broken by insertion order. A dimensionality mismatch
	// between query and candidates is an error.
	QueryDocuments(ctx context.Context, domainName string, query VectorQuery) ([]VectorHit, error)

	// DeleteDocument removes the document and prunes now-empty tag buckets.
	DeleteDocument(ctx context.Context, domainName, id string) error

	// DeleteDomain removes an entire partition (repository cascade).
	DeleteDomain(ctx context.Context, domainName string) error

	// Export serialises all domains, documents and tags as JSON.
	Export(ctx context.Context) ([]byte, error)

	// Import replaces the store contents atomically (clear-then-load).
	Import(ctx context.Context, data []byte) error
}
