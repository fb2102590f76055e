package mcp

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// mockKnowledgeService is a mock implementation of driving.KnowledgeService.
type mockKnowledgeService struct {
	repos   []domain.Repository
	repo    *domain.Repository
	current *domain.Repository
	hits    []domain.KnowledgeHit

	queriedRepo  string
	queriedText  string
	queriedLimit int

	err error
}

func (m *mockKnowledgeService) CreateRepository(_ context.Context, _, _, _ string) (*domain.Repository, error) {
	return m.repo, m.err
}

func (m *mockKnowledgeService) GetRepository(_ context.Context, _ string) (*domain.Repository, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.repo, nil
}

func (m *mockKnowledgeService) ListRepositories(_ context.Context) ([]domain.Repository, error) {
	return m.repos, m.err
}

func (m *mockKnowledgeService) DeleteRepository(_ context.Context, _ string) error {
	return m.err
}

func (m *mockKnowledgeService) SelectRepository(_ context.Context, _ string) error {
	return m.err
}

func (m *mockKnowledgeService) CurrentRepository(_ context.Context) (*domain.Repository, error) {
	return m.current, m.err
}

func (m *mockKnowledgeService) AddFile(_ context.Context, _, _ string, _ []byte) (*domain.RepositoryFile, error) {
	return nil, m.err
}

func (m *mockKnowledgeService) RemoveFile(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockKnowledgeService) SetMode(_ context.Context, _ string, _ domain.RetrievalMode) error {
	return m.err
}

func (m *mockKnowledgeService) EffectiveMode(_ context.Context, _ string) (domain.RetrievalMode, error) {
	return domain.RetrievalModeAuto, m.err
}

func (m *mockKnowledgeService) Query(_ context.Context, repoID, query string, limit int) ([]domain.KnowledgeHit, error) {
	m.queriedRepo = repoID
	m.queriedText = query
	m.queriedLimit = limit
	return m.hits, m.err
}
