package driving

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// KnowledgeService manages knowledge repositories and their files.
type KnowledgeService interface {
	// CreateRepository creates a new repository and selects it as current.
	CreateRepository(ctx context.Context, name, instructions, embedder string) (*domain.Repository, error)

	// GetRepository retrieves a repository with its files.
	GetRepository(ctx context.Context, repoID string) (*domain.Repository, error)

	// ListRepositories returns all repositories.
	ListRepositories(ctx context.Context) ([]domain.Repository, error)

	// DeleteRepository removes a repository and cascades to its vector
	// documents.
	DeleteRepository(ctx context.Context, repoID string) error

	// SelectRepository makes a repository current. In-flight ingestion for
	// other repositories becomes stale and its results are discarded.
	SelectRepository(ctx context.Context, repoID string) error

	// CurrentRepository returns the selected repository, or nil when none is
	// selected.
	CurrentRepository(ctx context.Context) (*domain.Repository, error)

	// AddFile uploads a file and starts ingestion. The returned file is in
	// pending state; observers poll GetRepository for progress.
	AddFile(ctx context.Context, repoID, name string, content []byte) (*domain.RepositoryFile, error)

	// RemoveFile deletes a file and its vector documents.
	RemoveFile(ctx context.Context, repoID, fileID string) error

	// SetMode overrides the retrieval mode for a repository.
	SetMode(ctx context.Context, repoID string, mode domain.RetrievalMode) error

	// EffectiveMode reports the mode the selector would use right now.
	EffectiveMode(ctx context.Context, repoID string) (domain.RetrievalMode, error)

	// Query searches a repository's indexed segments. A non-positive limit
	// uses the default result cap.
	Query(ctx context.Context, repoID, query string, limit int) ([]domain.KnowledgeHit, error)
}
