package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

// StateRepository stores the tracking state as one JSON document under a
// single key. SET replaces the value atomically.
type StateRepository struct {
	cache *Cache
	key   string
}

// NewStateRepository creates a new StateRepository. An empty key uses KeyHomeworkState.
func NewStateRepository(cache *Cache, key string) *StateRepository {
	if key == "" {
		key = KeyHomeworkState
	}
	return &StateRepository{cache: cache, key: key}
}

// Load implements homework.StateRepository.
func (r *StateRepository) Load(ctx context.Context) (*homework.PersistedState, error) {
	data, err := r.cache.GetBytes(ctx, r.key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, homework.ErrStateNotFound
		}
		return nil, fmt.Errorf("redis load state: %w", err)
	}
	return homework.DecodeState(data)
}

// Save implements homework.StateRepository.
func (r *StateRepository) Save(ctx context.Context, state *homework.PersistedState) error {
	data, err := homework.EncodeState(state)
	if err != nil {
		return err
	}
	if err := r.cache.SetBytes(ctx, r.key, data, 0); err != nil {
		return fmt.Errorf("redis save state: %w", err)
	}
	return nil
}
