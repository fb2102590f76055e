package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// repositoryStore implements driven.RepositoryStore.
type repositoryStore struct {
	store *Store
}

var _ driven.RepositoryStore = (*repositoryStore)(nil)

// SaveRepository stores or updates a repository's metadata. Files are
// managed through the file operations and are never touched here.
func (s *repositoryStore) SaveRepository(ctx context.Context, repo *domain.Repository) error {
	now := time.Now().UTC()
	createdAt := repo.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := repo.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO repositories (id, name, instructions, embedder, mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			instructions = excluded.instructions,
			embedder = excluded.embedder,
			mode = excluded.mode,
			updated_at = excluded.updated_at
	`, repo.ID, repo.Name, repo.Instructions, repo.Embedder, string(repo.Mode), createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("saving repository: %w", err)
	}
	return nil
}

// GetRepository retrieves a repository with its files.
func (s *repositoryStore) GetRepository(ctx context.Context, id string) (*domain.Repository, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, instructions, embedder, mode, created_at, updated_at
		FROM repositories WHERE id = ?
	`, id)

	repo, err := scanRepository(row)
	if err != nil {
		return nil, err
	}

	files, err := s.loadFiles(ctx, id)
	if err != nil {
		return nil, err
	}
	repo.Files = files
	return repo, nil
}

// ListRepositories returns all repositories without file content, newest
// first.
func (s *repositoryStore) ListRepositories(ctx context.Context) ([]domain.Repository, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, instructions, embedder, mode, created_at, updated_at
		FROM repositories ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying repositories: %w", err)
	}
	defer rows.Close()

	var repos []domain.Repository //nolint:prealloc // size unknown from query
	for rows.Next() {
		var repo domain.Repository
		var mode string
		if err := rows.Scan(&repo.ID, &repo.Name, &repo.Instructions, &repo.Embedder,
			&mode, &repo.CreatedAt, &repo.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning repository: %w", err)
		}
		repo.Mode = domain.RetrievalMode(mode)
		repos = append(repos, repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating repositories: %w", err)
	}
	return repos, nil
}

// DeleteRepository removes a repository and its files. A deleted current
// repository clears the selection.
func (s *repositoryStore) DeleteRepository(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM repositories WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting repository: %w", err)
	}

	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM settings WHERE key = ? AND value = ?", currentRepositoryKey, id)
	if err != nil {
		return fmt.Errorf("clearing current repository: %w", err)
	}
	return nil
}

// CurrentRepositoryID returns the selected repository, or empty string.
func (s *repositoryStore) CurrentRepositoryID(ctx context.Context) (string, error) {
	var id string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", currentRepositoryKey).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading current repository: %w", err)
	}
	return id, nil
}

// SetCurrentRepository selects the active repository. Empty clears the
// selection.
func (s *repositoryStore) SetCurrentRepository(ctx context.Context, id string) error {
	if id == "" {
		_, err := s.store.db.ExecContext(ctx,
			"DELETE FROM settings WHERE key = ?", currentRepositoryKey)
		if err != nil {
			return fmt.Errorf("clearing current repository: %w", err)
		}
		return nil
	}

	var exists int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM repositories WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking repository: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, currentRepositoryKey, id)
	if err != nil {
		return fmt.Errorf("setting current repository: %w", err)
	}
	return nil
}

// AddFile appends a file to a repository.
func (s *repositoryStore) AddFile(ctx context.Context, repoID string, file domain.RepositoryFile) error {
	segments, err := marshalSegments(file.Segments)
	if err != nil {
		return err
	}

	uploadedAt := file.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO repository_files
			(id, repository_id, name, content, status, progress, text, segments, error, uploaded_at, position)
		SELECT ?, id, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM repository_files WHERE repository_id = ?)
		FROM repositories WHERE id = ?
	`, file.ID, file.Name, file.Content, string(file.Status), file.Progress,
		file.Text, segments, file.Error, uploadedAt, repoID, repoID)
	if err != nil {
		return fmt.Errorf("adding file: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adding file: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	_, err = s.store.db.ExecContext(ctx,
		"UPDATE repositories SET updated_at = ? WHERE id = ?", uploadedAt, repoID)
	if err != nil {
		return fmt.Errorf("touching repository: %w", err)
	}
	return nil
}

// GetFile retrieves a single file.
func (s *repositoryStore) GetFile(ctx context.Context, repoID, fileID string) (*domain.RepositoryFile, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, content, status, progress, text, segments, error, uploaded_at
		FROM repository_files WHERE repository_id = ? AND id = ?
	`, repoID, fileID)

	file, err := scanFile(row)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// UpdateFile replaces a file by its ID, keeping its position.
func (s *repositoryStore) UpdateFile(ctx context.Context, repoID string, file domain.RepositoryFile) error {
	segments, err := marshalSegments(file.Segments)
	if err != nil {
		return err
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE repository_files SET
			name = ?,
			content = ?,
			status = ?,
			progress = ?,
			text = ?,
			segments = ?,
			error = ?
		WHERE repository_id = ? AND id = ?
	`, file.Name, file.Content, string(file.Status), file.Progress,
		file.Text, segments, file.Error, repoID, file.ID)
	if err != nil {
		return fmt.Errorf("updating file: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating file: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RemoveFile deletes a file from a repository.
func (s *repositoryStore) RemoveFile(ctx context.Context, repoID, fileID string) error {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM repository_files WHERE repository_id = ? AND id = ?", repoID, fileID)
	if err != nil {
		return fmt.Errorf("removing file: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("removing file: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// loadFiles returns a repository's files in upload order.
func (s *repositoryStore) loadFiles(ctx context.Context, repoID string) ([]domain.RepositoryFile, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, content, status, progress, text, segments, error, uploaded_at
		FROM repository_files WHERE repository_id = ?
		ORDER BY position
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var files []domain.RepositoryFile //nolint:prealloc // size unknown from query
	for rows.Next() {
		var file domain.RepositoryFile
		var status, segments string
		if err := rows.Scan(&file.ID, &file.Name, &file.Content, &status, &file.Progress,
			&file.Text, &segments, &file.Error, &file.UploadedAt); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		file.Status = domain.FileStatus(status)
		if err := unmarshalSegments(&file, segments); err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating files: %w", err)
	}
	return files, nil
}

// scanRepository scans a single repository row.
func scanRepository(row *sql.Row) (*domain.Repository, error) {
	var repo domain.Repository
	var mode string
	if err := row.Scan(&repo.ID, &repo.Name, &repo.Instructions, &repo.Embedder,
		&mode, &repo.CreatedAt, &repo.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning repository: %w", err)
	}
	repo.Mode = domain.RetrievalMode(mode)
	return &repo, nil
}

// scanFile scans a single file row.
func scanFile(row *sql.Row) (*domain.RepositoryFile, error) {
	var file domain.RepositoryFile
	var status, segments string
	if err := row.Scan(&file.ID, &file.Name, &file.Content, &status, &file.Progress,
		&file.Text, &segments, &file.Error, &file.UploadedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning file: %w", err)
	}
	file.Status = domain.FileStatus(status)
	if err := unmarshalSegments(&file, segments); err != nil {
		return nil, err
	}
	return &file, nil
}

// marshalSegments encodes a file's segments as a JSON column.
func marshalSegments(segments []domain.Segment) (string, error) {
	data, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("marshalling segments: %w", err)
	}
	return string(data), nil
}

// unmarshalSegments decodes the segments JSON column.
func unmarshalSegments(file *domain.RepositoryFile, segments string) error {
	if segments == "" || segments == jsonNull {
		return nil
	}
	if err := json.Unmarshal([]byte(segments), &file.Segments); err != nil {
		return fmt.Errorf("unmarshalling segments: %w", err)
	}
	return nil
}
