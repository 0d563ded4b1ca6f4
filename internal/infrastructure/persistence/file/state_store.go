// Package file stores the homework tracking state as a JSON document on the
// local filesystem.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

// DefaultFileName is used when the configured path names a directory.
const DefaultFileName = "canvas_hub_state.json"

// StateRepository reads and writes the state file. Writes are atomic, so
// readers never observe a partial document.
type StateRepository struct {
	path string
	mu   sync.Mutex
}

// NewStateRepository creates a repository for path. If path is an existing
// directory the state is kept in DefaultFileName inside it.
func NewStateRepository(path string) (*StateRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path is empty")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultFileName)
	}
	return &StateRepository{path: path}, nil
}

// Path returns the state file location.
func (r *StateRepository) Path() string {
	return r.path
}

// Load implements homework.StateRepository.
func (r *StateRepository) Load(_ context.Context) (*homework.PersistedState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, homework.ErrStateNotFound
		}
		return nil, fmt.Errorf("reading state file %s: %w", r.path, err)
	}

	return homework.DecodeState(data)
}

// Save implements homework.StateRepository.
func (r *StateRepository) Save(ctx context.Context, state *homework.PersistedState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := homework.EncodeState(state)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	return writeAtomic(r.path, data)
}

// writeAtomic replaces path with data through a fsynced temporary file in
// the same directory.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Clear removes the state file. Missing files are not an error.
func (r *StateRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}
