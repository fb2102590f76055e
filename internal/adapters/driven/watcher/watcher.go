// Package watcher keeps a knowledge repository in sync with a directory on
// disk. File creates and writes are ingested, removes and renames drop the
// file from the repository. Hidden files and subdirectories are ignored.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/parley-cli/internal/core/ports/driving"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// debounceDelay coalesces the burst of write events editors produce when
// saving a file.
const debounceDelay = 500 * time.Millisecond

// DirWatcher mirrors one directory into one repository.
type DirWatcher struct {
	knowledge driving.KnowledgeService
	repoID    string
	dir       string

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher for the given directory and repository.
func New(knowledge driving.KnowledgeService, repoID, dir string) *DirWatcher {
	return &DirWatcher{
		knowledge: knowledge,
		repoID:    repoID,
		dir:       dir,
		pending:   make(map[string]*time.Timer),
	}
}

// Run ingests the directory's current files, then watches for changes until
// the context is cancelled.
func (w *DirWatcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch directory: %s is not a directory", w.dir)
	}

	if err := w.syncExisting(ctx); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	logger.Info("watching %s", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)
		}
	}
}

// syncExisting ingests every eligible file already present in the directory.
func (w *DirWatcher) syncExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read watch directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		if err := w.ingest(ctx, filepath.Join(w.dir, entry.Name())); err != nil {
			logger.Warn("ingest %s: %v", entry.Name(), err)
		}
	}
	return nil
}

// handleEvent routes one filesystem event.
func (w *DirWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if isHidden(name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return
		}
		w.scheduleIngest(ctx, event.Name)
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.cancelPending(event.Name)
		if err := w.removeByName(ctx, name); err != nil {
			logger.Warn("remove %s: %v", name, err)
		}
	}
}

// scheduleIngest (re)arms the debounce timer for a path.
func (w *DirWatcher) scheduleIngest(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if err := w.ingest(ctx, path); err != nil {
			logger.Warn("ingest %s: %v", filepath.Base(path), err)
		}
	})
}

// cancelPending drops a not-yet-fired ingest for a removed path.
func (w *DirWatcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

// ingest reads the file and adds it to the repository, replacing any file
// with the same name.
func (w *DirWatcher) ingest(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	name := filepath.Base(path)

	// Replace rather than duplicate when the file was ingested before.
	if err := w.removeByName(ctx, name); err != nil {
		return err
	}

	if _, err := w.knowledge.AddFile(ctx, w.repoID, name, content); err != nil {
		return fmt.Errorf("add file: %w", err)
	}
	logger.Debug("ingested %s", name)
	return nil
}

// removeByName deletes the repository file matching the given name, if any.
func (w *DirWatcher) removeByName(ctx context.Context, name string) error {
	repo, err := w.knowledge.GetRepository(ctx, w.repoID)
	if err != nil {
		return fmt.Errorf("get repository: %w", err)
	}

	for _, file := range repo.Files {
		if file.Name == name {
			if err := w.knowledge.RemoveFile(ctx, w.repoID, file.ID); err != nil {
				return fmt.Errorf("remove file: %w", err)
			}
			return nil
		}
	}
	return nil
}

// isHidden reports whether a file name is dot-prefixed.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
