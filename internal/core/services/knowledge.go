package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driving"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Ensure KnowledgeService implements the interface.
var _ driving.KnowledgeService = (*KnowledgeService)(nil)

// KnowledgeService manages repositories and files and decides, per turn, how
// repository content reaches the model: inlined into the instructions or
// exposed through the retrieval tool.
type KnowledgeService struct {
	repos     driven.RepositoryStore
	vectors   driven.VectorStore
	embedders driven.EmbedderFactory
	ingest    *IngestService

	// thresholdPages is the auto-mode boundary in estimated pages.
	thresholdPages float64

	// background controls whether AddFile ingests asynchronously. Tests set
	// it false to get deterministic, synchronous ingestion.
	background bool
}

// NewKnowledgeService creates the knowledge service. A zero threshold falls
// back to DefaultRAGThresholdPages.
func NewKnowledgeService(
	repos driven.RepositoryStore,
	vectors driven.VectorStore,
	embedders driven.EmbedderFactory,
	ingest *IngestService,
	thresholdPages float64,
) *KnowledgeService {
	if thresholdPages <= 0 {
		thresholdPages = DefaultRAGThresholdPages
	}
	return &KnowledgeService{
		repos:          repos,
		vectors:        vectors,
		embedders:      embedders,
		ingest:         ingest,
		thresholdPages: thresholdPages,
		background:     true,
	}
}

// SetSynchronous makes AddFile wait for ingestion to finish before
// returning. Intended for tests and one-shot CLI commands.
func (s *KnowledgeService) SetSynchronous(sync bool) {
	s.background = !sync
}

// CreateRepository creates a repository and selects it as current.
func (s *KnowledgeService) CreateRepository(ctx context.Context, name, instructions, embedder string) (*domain.Repository, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: repository name is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(embedder) == "" {
		return nil, fmt.Errorf("%w: embedding model is required", domain.ErrInvalidInput)
	}

	now := time.Now()
	repo := &domain.Repository{
		ID:           uuid.NewString(),
		Name:         name,
		Instructions: instructions,
		Embedder:     embedder,
		Mode:         domain.RetrievalModeAuto,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repos.SaveRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("save repository: %w", err)
	}
	if err := s.SelectRepository(ctx, repo.ID); err != nil {
		return nil, err
	}
	logger.Info("created repository %s (%s)", repo.Name, repo.ID)
	return repo, nil
}

// GetRepository retrieves a repository with its files.
func (s *KnowledgeService) GetRepository(ctx context.Context, repoID string) (*domain.Repository, error) {
	return s.repos.GetRepository(ctx, repoID)
}

// ListRepositories returns all repositories.
func (s *KnowledgeService) ListRepositories(ctx context.Context) ([]domain.Repository, error) {
	return s.repos.ListRepositories(ctx)
}

// DeleteRepository removes a repository, supersedes its in-flight ingestion
// and cascades to its vector domain.
func (s *KnowledgeService) DeleteRepository(ctx context.Context, repoID string) error {
	s.ingest.Supersede(repoID)
	if err := s.vectors.DeleteDomain(ctx, repoID); err != nil {
		return fmt.Errorf("delete vector domain: %w", err)
	}
	if err := s.repos.DeleteRepository(ctx, repoID); err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	logger.Info("deleted repository %s", repoID)
	return nil
}

// SelectRepository makes a repository current. Ingestion in flight for the
// previously current repository becomes stale.
func (s *KnowledgeService) SelectRepository(ctx context.Context, repoID string) error {
	previous, err := s.repos.CurrentRepositoryID(ctx)
	if err != nil {
		return fmt.Errorf("current repository: %w", err)
	}
	if err := s.repos.SetCurrentRepository(ctx, repoID); err != nil {
		return err
	}
	if previous != "" && previous != repoID {
		s.ingest.Supersede(previous)
	}
	return nil
}

// CurrentRepository returns the selected repository, or nil when none is
// selected.
func (s *KnowledgeService) CurrentRepository(ctx context.Context) (*domain.Repository, error) {
	id, err := s.repos.CurrentRepositoryID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	repo, err := s.repos.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// AddFile uploads a file in pending state and starts ingestion.
func (s *KnowledgeService) AddFile(ctx context.Context, repoID, name string, content []byte) (*domain.RepositoryFile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrInvalidInput)
	}

	file := domain.RepositoryFile{
		ID:         uuid.NewString(),
		Name:       name,
		Content:    content,
		Status:     domain.FileStatusPending,
		UploadedAt: time.Now(),
	}
	if err := s.repos.AddFile(ctx, repoID, file); err != nil {
		return nil, fmt.Errorf("add file: %w", err)
	}

	if s.background {
		go func() {
			if err := s.ingest.IngestFile(context.Background(), repoID, file.ID); err != nil {
				logger.Debug("background ingest %s: %v", file.Name, err)
			}
		}()
	} else {
		if err := s.ingest.IngestFile(ctx, repoID, file.ID); err != nil {
			return nil, err
		}
	}
	return &file, nil
}

// RemoveFile deletes a file and its vector documents. Ingestion still in
// flight for the repository is superseded so a half-finished pipeline cannot
// re-index the removed file.
func (s *KnowledgeService) RemoveFile(ctx context.Context, repoID, fileID string) error {
	file, err := s.repos.GetFile(ctx, repoID, fileID)
	if err != nil {
		return err
	}
	s.ingest.Supersede(repoID)
	s.ingest.RemoveFileVectors(ctx, repoID, file)
	if err := s.repos.RemoveFile(ctx, repoID, fileID); err != nil {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// SetMode overrides the retrieval mode for a repository.
func (s *KnowledgeService) SetMode(ctx context.Context, repoID string, mode domain.RetrievalMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: unknown retrieval mode %q", domain.ErrInvalidInput, mode)
	}
	repo, err := s.repos.GetRepository(ctx, repoID)
	if err != nil {
		return err
	}
	repo.Mode = mode
	repo.UpdatedAt = time.Now()
	if err := s.repos.SaveRepository(ctx, repo); err != nil {
		return fmt.Errorf("save repository: %w", err)
	}
	return nil
}

// EffectiveMode reports the mode the selector would use right now.
func (s *KnowledgeService) EffectiveMode(ctx context.Context, repoID string) (domain.RetrievalMode, error) {
	repo, err := s.repos.GetRepository(ctx, repoID)
	if err != nil {
		return "", err
	}
	return SelectRetrievalMode(repo, s.thresholdPages), nil
}

// Query searches a repository's indexed segments for a query string.
func (s *KnowledgeService) Query(ctx context.Context, repoID, query string, limit int) ([]domain.KnowledgeHit, error) {
	repo, err := s.repos.GetRepository(ctx, repoID)
	if err != nil {
		return nil, err
	}
	return SearchRepository(ctx, s.embedders, s.vectors, repo.ID, repo.Embedder, query, limit)
}

// TurnContext assembles the per-turn knowledge contribution for the
// conversation loop: extra instructions (repository instructions plus, in
// context mode, the inlined files) and the retrieval tool in rag mode. With
// no repository selected everything is empty.
func (s *KnowledgeService) TurnContext(ctx context.Context) (string, []domain.Tool, string, error) {
	repo, err := s.CurrentRepository(ctx)
	if err != nil {
		return "", nil, "", err
	}
	if repo == nil {
		return "", nil, "", nil
	}

	var parts []string
	if repo.Instructions != "" {
		parts = append(parts, repo.Instructions)
	}

	var tools []domain.Tool
	switch SelectRetrievalMode(repo, s.thresholdPages) {
	case domain.RetrievalModeContext:
		if inline := ContextInstructions(repo); inline != "" {
			parts = append(parts, inline)
		}
	case domain.RetrievalModeRAG:
		// An empty repository has nothing to retrieve, so no tool.
		if len(repo.Files) > 0 {
			tools = append(tools, KnowledgeTool(repo, s.embedders, s.vectors))
		}
	}

	return strings.Join(parts, "\n\n"), tools, repo.ID, nil
}
