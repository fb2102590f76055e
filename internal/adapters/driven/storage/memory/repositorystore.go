package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// Ensure RepositoryStore implements the interface.
var _ driven.RepositoryStore = (*RepositoryStore)(nil)

// RepositoryStore is an in-memory implementation of driven.RepositoryStore.
type RepositoryStore struct {
	mu      sync.RWMutex
	repos   map[string]*domain.Repository
	current string
}

// NewRepositoryStore creates a new in-memory repository store.
func NewRepositoryStore() *RepositoryStore {
	return &RepositoryStore{
		repos: make(map[string]*domain.Repository),
	}
}

// SaveRepository stores or updates a repository's metadata, preserving files.
func (s *RepositoryStore) SaveRepository(_ context.Context, repo *domain.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *repo
	if existing, ok := s.repos[repo.ID]; ok {
		copied.Files = existing.Files
	} else {
		copied.Files = append([]domain.RepositoryFile(nil), repo.Files...)
	}
	s.repos[repo.ID] = &copied
	return nil
}

// GetRepository retrieves a repository with its files.
func (s *RepositoryStore) GetRepository(_ context.Context, id string) (*domain.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repo, ok := s.repos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	copied := *repo
	copied.Files = append([]domain.RepositoryFile(nil), repo.Files...)
	return &copied, nil
}

// ListRepositories returns all repositories without file content, newest first.
func (s *RepositoryStore) ListRepositories(_ context.Context) ([]domain.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repos := make([]domain.Repository, 0, len(s.repos))
	for _, repo := range s.repos {
		copied := *repo
		copied.Files = nil
		repos = append(repos, copied)
	}
	sort.Slice(repos, func(i, j int) bool {
		return repos[i].UpdatedAt.After(repos[j].UpdatedAt)
	})
	return repos, nil
}

// DeleteRepository removes a repository and its files.
func (s *RepositoryStore) DeleteRepository(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.repos, id)
	if s.current == id {
		s.current = ""
	}
	return nil
}

// CurrentRepositoryID returns the selected repository, or empty string.
func (s *RepositoryStore) CurrentRepositoryID(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

// SetCurrentRepository selects the active repository.
func (s *RepositoryStore) SetCurrentRepository(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, ok := s.repos[id]; !ok {
			return domain.ErrNotFound
		}
	}
	s.current = id
	return nil
}

// AddFile appends a file to a repository.
func (s *RepositoryStore) AddFile(_ context.Context, repoID string, file domain.RepositoryFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[repoID]
	if !ok {
		return domain.ErrNotFound
	}
	repo.Files = append(repo.Files, file)
	repo.UpdatedAt = file.UploadedAt
	return nil
}

// GetFile retrieves a single file.
func (s *RepositoryStore) GetFile(_ context.Context, repoID, fileID string) (*domain.RepositoryFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repo, ok := s.repos[repoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for i := range repo.Files {
		if repo.Files[i].ID == fileID {
			copied := repo.Files[i]
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

// UpdateFile replaces a file by its ID.
func (s *RepositoryStore) UpdateFile(_ context.Context, repoID string, file domain.RepositoryFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[repoID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range repo.Files {
		if repo.Files[i].ID == file.ID {
			repo.Files[i] = file
			return nil
		}
	}
	return domain.ErrNotFound
}

// RemoveFile deletes a file from a repository.
func (s *RepositoryStore) RemoveFile(_ context.Context, repoID, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[repoID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range repo.Files {
		if repo.Files[i].ID == fileID {
			repo.Files = append(repo.Files[:i], repo.Files[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}
