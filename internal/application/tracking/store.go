// Package tracking contains the application services around homework
// tracking state: the recovering state store and the event emitter.
package tracking

import (
	"context"
	"errors"
	"log/slog"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE STORE
// Wraps a StateRepository with the recovery rules of the tracker:
// Load never fails and Save never fails the caller.
// ══════════════════════════════════════════════════════════════════════════════

// StoreConfig contains configuration for Store.
type StoreConfig struct {
	// Repository is the durable backend.
	Repository homework.StateRepository

	// Logger for structured logging
	Logger *slog.Logger
}

// Store loads and saves PersistedState through a repository.
type Store struct {
	repo   homework.StateRepository
	logger *slog.Logger
}

// NewStore creates a new Store.
func NewStore(config StoreConfig) *Store {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Store{
		repo:   config.Repository,
		logger: config.Logger.With("component", "state_store"),
	}
}

// Load reads the persisted state. Missing, corrupt or incompatible storage
// yields a fresh empty state; the error is only logged.
func (s *Store) Load(ctx context.Context) *homework.PersistedState {
	if s.repo == nil {
		return homework.NewPersistedState()
	}

	state, err := s.repo.Load(ctx)
	switch {
	case err == nil && state != nil:
		if state.Version != homework.CurrentStateVersion {
			s.logger.Warn("persisted state version mismatch, starting fresh",
				"version", state.Version,
				"expected", homework.CurrentStateVersion,
			)
			return homework.NewPersistedState()
		}
		s.logger.Info("loaded homework state", "students_tracked", len(state.Students))
		return state
	case err == nil:
		s.logger.Info("no previous homework state found, starting fresh")
	case errors.Is(err, homework.ErrStateNotFound):
		s.logger.Info("no previous homework state found, starting fresh")
	case errors.Is(err, homework.ErrStateCorrupt), errors.Is(err, homework.ErrStateVersionMismatch):
		s.logger.Warn("persisted homework state is unusable, resetting tracking", "error", err)
	default:
		s.logger.Warn("failed to load homework state, starting fresh", "error", err)
	}

	return homework.NewPersistedState()
}

// Save writes the full state. Failures are logged and swallowed; the
// in-memory state stays authoritative until the next successful save.
func (s *Store) Save(ctx context.Context, state *homework.PersistedState) {
	if s.repo == nil || state == nil {
		return
	}
	if err := s.repo.Save(ctx, state); err != nil {
		s.logger.Error("failed to save homework state", "error", err)
		return
	}
	s.logger.Debug("homework state saved", "students_tracked", len(state.Students))
}

// clearer is implemented by backends that can drop the stored document.
type clearer interface {
	Clear() error
}

// Reset drops the persisted state. Backends without Clear get an empty
// state written instead.
func (s *Store) Reset(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	if c, ok := s.repo.(clearer); ok {
		return c.Clear()
	}
	return s.repo.Save(ctx, homework.NewPersistedState())
}
