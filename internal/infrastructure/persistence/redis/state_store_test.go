package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

// newTestCache connects to TEST_REDIS_ADDR or skips the test.
func newTestCache(t *testing.T) *Cache {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client)
}

func TestStateRepository_RoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	repo := NewStateRepository(cache, "test:"+t.Name())
	t.Cleanup(func() { _ = cache.Delete(ctx, "test:"+t.Name()) })

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, homework.ErrStateNotFound)

	state := homework.NewPersistedState()
	state.Students["1"] = &homework.PerStudentState{Known: homework.NewIDSet("A1", "A2"), Completed: homework.NewIDSet("A2")}
	require.NoError(t, repo.Save(ctx, state))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestStateRepository_CorruptValue(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	key := "test:" + t.Name()
	t.Cleanup(func() { _ = cache.Delete(ctx, key) })

	require.NoError(t, cache.SetBytes(ctx, key, []byte("{oops"), time.Minute))

	_, err := NewStateRepository(cache, key).Load(ctx)
	assert.ErrorIs(t, err, homework.ErrStateCorrupt)
}

func TestSnapshotCache(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = cache.Delete(ctx, KeyLastSnapshot) })

	snaps := NewSnapshotCache(cache, time.Minute)
	snap := homework.Snapshot{Students: []homework.StudentSnapshot{{
		Student:     homework.Student{ID: "1", Name: "Alice"},
		Assignments: []homework.Assignment{{ID: "A1", Name: "Essay"}},
	}}}

	require.NoError(t, snaps.StoreSnapshot(ctx, snap))
	loaded, err := snaps.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", loaded.Students[0].Student.Name)
	assert.Equal(t, homework.AssignmentID("A1"), loaded.Students[0].Assignments[0].ID)
}
