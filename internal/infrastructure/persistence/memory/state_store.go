// Package memory keeps the tracking state in process memory. It backs the
// persistence-disabled mode and tests.
package memory

import (
	"context"
	"sync"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

// StateRepository is a goroutine-safe in-memory homework.StateRepository.
type StateRepository struct {
	mu    sync.RWMutex
	state *homework.PersistedState
	saves int
}

// NewStateRepository creates an empty repository.
func NewStateRepository() *StateRepository {
	return &StateRepository{}
}

// Load implements homework.StateRepository.
func (r *StateRepository) Load(_ context.Context) (*homework.PersistedState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.state == nil {
		return nil, homework.ErrStateNotFound
	}
	return r.state.Clone(), nil
}

// Save implements homework.StateRepository.
func (r *StateRepository) Save(_ context.Context, state *homework.PersistedState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = state.Clone()
	r.saves++
	return nil
}

// Saves returns how many times Save was called.
func (r *StateRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}
