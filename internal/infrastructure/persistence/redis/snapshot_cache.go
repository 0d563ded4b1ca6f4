package redis

import (
	"context"
	"time"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

// SnapshotCache keeps the last successful Canvas snapshot.
type SnapshotCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewSnapshotCache creates a new SnapshotCache. A non-positive ttl uses TTLSnapshotCache.
func NewSnapshotCache(cache *Cache, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = TTLSnapshotCache
	}
	return &SnapshotCache{cache: cache, ttl: ttl}
}

// StoreSnapshot saves the snapshot.
func (s *SnapshotCache) StoreSnapshot(ctx context.Context, snap homework.Snapshot) error {
	return s.cache.Set(ctx, KeyLastSnapshot, snap, s.ttl)
}

// LoadSnapshot returns the cached snapshot or ErrCacheMiss.
func (s *SnapshotCache) LoadSnapshot(ctx context.Context) (homework.Snapshot, error) {
	var snap homework.Snapshot
	if err := s.cache.Get(ctx, KeyLastSnapshot, &snap); err != nil {
		return homework.Snapshot{}, err
	}
	return snap, nil
}
