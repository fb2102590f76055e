package driven

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// RepositoryStore persists knowledge repositories and their files.
// One repository is "current" at a time; ingestion uses that selection to
// discard late results from superseded uploads.
type RepositoryStore interface {
	// SaveRepository stores or updates a repository (metadata only).
	SaveRepository(ctx context.Context, repo *domain.Repository) error

	// GetRepository retrieves a repository with its files.
	GetRepository(ctx context.Context, id string) (*domain.Repository, error)

	// ListRepositories returns all repositories without file content.
	ListRepositories(ctx context.Context) ([]domain.Repository, error)

	// DeleteRepository removes a repository and its files.
	DeleteRepository(ctx context.Context, id string) error

	// CurrentRepositoryID returns the selected repository, or empty string.
	CurrentRepositoryID(ctx context.Context) (string, error)

	// SetCurrentRepository selects the active repository.
	SetCurrentRepository(ctx context.Context, id string) error

	// AddFile appends a file to a repository.
	AddFile(ctx context.Context, repoID string, file domain.RepositoryFile) error

	// GetFile retrieves a single file.
	GetFile(ctx context.Context, repoID, fileID string) (*domain.RepositoryFile, error)

	// UpdateFile replaces a file by its ID.
	UpdateFile(ctx context.Context, repoID string, file domain.RepositoryFile) error

	// RemoveFile deletes a file from a repository.
	RemoveFile(ctx context.Context, repoID, fileID string) error
}
