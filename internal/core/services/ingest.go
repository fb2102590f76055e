package services

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Progress checkpoints of the ingestion pipeline. Extraction completes at 10,
// chunking at 20, and embedding fills the remaining 80 proportionally.
const (
	progressExtracted = 10
	progressChunked   = 20
	progressDone      = 100
)

// maxConcurrentEmbeds bounds how many embedding requests are in flight for a
// single file.
const maxConcurrentEmbeds = 10

// Tags applied to vector documents so queries can target either granularity.
const (
	// TagChunk marks per-segment entries, the unit of retrieval queries.
	TagChunk = "chunk"

	// TagWhole marks the synthesised whole-document entry (mean of all
	// segment vectors).
	TagWhole = "whole"
)

// IngestConfig holds tunables for the ingestion pipeline.
type IngestConfig struct {
	// ChunkSize is the chunk length in runes. Zero means DefaultChunkSize.
	ChunkSize int

	// ChunkOverlap is the inter-chunk overlap in runes. Zero means
	// DefaultChunkOverlap... a negative value also falls back.
	ChunkOverlap int
}

// IngestService runs the upload-to-index pipeline: extract text, chunk it,
// embed every chunk, then store segment and whole-document vectors.
//
// Ingestion is supersedable rather than cancellable: a generation counter per
// repository is bumped whenever the repository stops being current or loses
// the file, and in-flight work refuses to write results for an old
// generation. The expensive part (embedding) still runs to completion; only
// its effects are discarded.
type IngestService struct {
	repos     driven.RepositoryStore
	vectors   driven.VectorStore
	embedders driven.EmbedderFactory
	chunker   *Chunker

	mu          sync.Mutex
	generations map[string]uint64
}

// NewIngestService creates the ingestion pipeline.
func NewIngestService(
	repos driven.RepositoryStore,
	vectors driven.VectorStore,
	embedders driven.EmbedderFactory,
	cfg IngestConfig,
) *IngestService {
	overlap := cfg.ChunkOverlap
	if overlap == 0 {
		overlap = DefaultChunkOverlap
	}
	return &IngestService{
		repos:       repos,
		vectors:     vectors,
		embedders:   embedders,
		chunker:     NewChunker(cfg.ChunkSize, overlap),
		generations: make(map[string]uint64),
	}
}

// Supersede invalidates all in-flight ingestion for a repository. Results
// from work started before this call are discarded on arrival.
func (s *IngestService) Supersede(repoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[repoID]++
}

func (s *IngestService) generation(repoID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[repoID]
}

// IngestFile runs the full pipeline for one uploaded file synchronously.
// Callers wanting background ingestion run it in a goroutine. A stale result
// (repository superseded or file removed mid-flight) returns
// domain.ErrStaleGeneration and leaves no trace in the index.
func (s *IngestService) IngestFile(ctx context.Context, repoID, fileID string) error {
	gen := s.generation(repoID)

	repo, err := s.repos.GetRepository(ctx, repoID)
	if err != nil {
		return fmt.Errorf("load repository: %w", err)
	}
	file := repo.File(fileID)
	if file == nil {
		return domain.ErrNotFound
	}

	logger.Section("Ingest: " + file.Name)

	file.Status = domain.FileStatusProcessing
	file.Progress = 0
	if err := s.writeFile(ctx, repoID, gen, *file); err != nil {
		return err
	}

	// Stage 1: extract.
	text, err := ExtractText(file.Content)
	if err != nil {
		return s.failFile(ctx, repoID, gen, *file, fmt.Errorf("extract text: %w", err))
	}
	file.Text = text
	file.Progress = progressExtracted
	if err := s.writeFile(ctx, repoID, gen, *file); err != nil {
		return err
	}
	logger.Debug("extracted %d characters from %s", len(text), file.Name)

	// Stage 2: chunk.
	chunks := s.chunker.Chunk(text)
	file.Progress = progressChunked
	if err := s.writeFile(ctx, repoID, gen, *file); err != nil {
		return err
	}
	logger.Debug("chunked %s into %d segments", file.Name, len(chunks))

	if len(chunks) == 0 {
		// Nothing to embed; the file is indexed as empty.
		file.Segments = nil
		file.Status = domain.FileStatusCompleted
		file.Progress = progressDone
		return s.writeFile(ctx, repoID, gen, *file)
	}

	// Stage 3: embed with bounded concurrency, preserving chunk order.
	embedder, err := s.embedders.ForModel(repo.Embedder)
	if err != nil {
		return s.failFile(ctx, repoID, gen, *file, fmt.Errorf("resolve embedder %q: %w", repo.Embedder, err))
	}

	vectors, err := s.embedAll(ctx, repoID, gen, *file, embedder, chunks)
	if err != nil {
		return s.failFile(ctx, repoID, gen, *file, err)
	}

	segments := make([]domain.Segment, len(chunks))
	for i := range chunks {
		segments[i] = domain.Segment{Text: chunks[i], Vector: vectors[i]}
	}

	// The index write and the completion write are both guarded: a stale
	// generation must not leave partial vectors behind.
	if s.generation(repoID) != gen {
		return domain.ErrStaleGeneration
	}
	for i, seg := range segments {
		doc := domain.VectorDocument{
			ID:     fmt.Sprintf("%s:%s:%d", repoID, fileID, i),
			Source: file.Name,
			Vector: seg.Vector,
			Text:   seg.Text,
		}
		if err := s.vectors.AddDocument(ctx, repoID, doc, fileID, TagChunk); err != nil {
			return s.failFile(ctx, repoID, gen, *file, fmt.Errorf("index segment %d: %w", i, err))
		}
	}

	mean, err := domain.MeanVector(vectors)
	if err != nil {
		return s.failFile(ctx, repoID, gen, *file, fmt.Errorf("whole-document vector: %w", err))
	}
	wholeDoc := domain.VectorDocument{
		ID:     fmt.Sprintf("%s:%s", repoID, fileID),
		Source: file.Name,
		Vector: mean,
		Text:   text,
	}
	if err := s.vectors.AddDocument(ctx, repoID, wholeDoc, fileID, TagWhole); err != nil {
		return s.failFile(ctx, repoID, gen, *file, fmt.Errorf("index whole document: %w", err))
	}

	file.Segments = segments
	file.Status = domain.FileStatusCompleted
	file.Progress = progressDone
	if err := s.writeFile(ctx, repoID, gen, *file); err != nil {
		// The completion write lost the race; roll the vectors back.
		s.dropVectors(ctx, repoID, fileID, len(segments))
		return err
	}

	logger.Info("ingested %s: %d segments", file.Name, len(segments))
	return nil
}

// RemoveFileVectors deletes every vector document a completed file produced.
func (s *IngestService) RemoveFileVectors(ctx context.Context, repoID string, file *domain.RepositoryFile) {
	s.dropVectors(ctx, repoID, file.ID, len(file.Segments))
}

func (s *IngestService) dropVectors(ctx context.Context, repoID, fileID string, segments int) {
	for i := 0; i < segments; i++ {
		id := fmt.Sprintf("%s:%s:%d", repoID, fileID, i)
		if err := s.vectors.DeleteDocument(ctx, repoID, id); err != nil {
			logger.Warn("delete vector %s: %v", id, err)
		}
	}
	id := fmt.Sprintf("%s:%s", repoID, fileID)
	if err := s.vectors.DeleteDocument(ctx, repoID, id); err != nil {
		logger.Warn("delete vector %s: %v", id, err)
	}
}

// embedAll embeds every chunk with at most maxConcurrentEmbeds requests in
// flight, reporting proportional progress as results land. Results keep
// chunk order regardless of completion order.
func (s *IngestService) embedAll(
	ctx context.Context,
	repoID string,
	gen uint64,
	file domain.RepositoryFile,
	embedder driven.EmbeddingService,
	chunks []string,
) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))

	sem := make(chan struct{}, maxConcurrentEmbeds)
	var wg sync.WaitGroup
	var progressMu sync.Mutex
	completed := 0

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			vec, err := embedder.Embed(ctx, chunk)
			vectors[i] = vec
			errs[i] = err

			progressMu.Lock()
			completed++
			progress := progressChunked + int(math.Round(float64(completed)/float64(len(chunks))*(progressDone-progressChunked)))
			s.advanceProgress(ctx, repoID, gen, file.ID, progress)
			progressMu.Unlock()
		}(i, chunk)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("embed segment %d: %w", i, err)
		}
	}
	return vectors, nil
}

// advanceProgress bumps a processing file's progress, never decreasing it.
// Stale-generation and missing-file conditions are silently ignored here;
// the pipeline's next guarded write surfaces them.
func (s *IngestService) advanceProgress(ctx context.Context, repoID string, gen uint64, fileID string, progress int) {
	if s.generation(repoID) != gen {
		return
	}
	file, err := s.repos.GetFile(ctx, repoID, fileID)
	if err != nil || file.Status.IsTerminal() || file.Progress >= progress {
		return
	}
	file.Progress = progress
	if progress >= progressDone {
		file.Progress = progressDone - 1
	}
	if err := s.repos.UpdateFile(ctx, repoID, *file); err != nil {
		logger.Warn("update progress for %s: %v", fileID, err)
	}
}

// writeFile persists a file state change, refusing to write when the work
// became stale: the repository was superseded or the file was removed.
func (s *IngestService) writeFile(ctx context.Context, repoID string, gen uint64, file domain.RepositoryFile) error {
	if s.generation(repoID) != gen {
		return domain.ErrStaleGeneration
	}
	if _, err := s.repos.GetFile(ctx, repoID, file.ID); err != nil {
		return domain.ErrStaleGeneration
	}
	if err := s.repos.UpdateFile(ctx, repoID, file); err != nil {
		return fmt.Errorf("update file %s: %w", file.ID, err)
	}
	return nil
}

// failFile marks a file as failed with the error message. The original
// pipeline error is returned so callers see what happened.
func (s *IngestService) failFile(ctx context.Context, repoID string, gen uint64, file domain.RepositoryFile, cause error) error {
	logger.Warn("ingest %s failed: %v", file.Name, cause)
	file.Status = domain.FileStatusError
	file.Error = cause.Error()
	if err := s.writeFile(ctx, repoID, gen, file); err != nil {
		return err
	}
	return cause
}
