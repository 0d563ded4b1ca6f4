package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-hub/canvas-homework-hub/internal/application/tracking"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

func sampleState() *homework.PersistedState {
	state := homework.NewPersistedState()
	state.Students["1"] = &homework.PerStudentState{
		Known:     homework.NewIDSet("A1", "A2"),
		Completed: homework.NewIDSet("A1"),
	}
	return state
}

func TestStateRepository_LoadMissing(t *testing.T) {
	repo, err := NewStateRepository(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	_, err = repo.Load(context.Background())
	assert.ErrorIs(t, err, homework.ErrStateNotFound)
}

func TestStateRepository_SaveLoad(t *testing.T) {
	repo, err := NewStateRepository(filepath.Join(t.TempDir(), "nested", "state.json"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleState()))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleState(), loaded)

	info, err := os.Stat(repo.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(repo.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file left behind")
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestStateRepository_DirectoryPath(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewStateRepository(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, DefaultFileName), repo.Path())
}

func TestStateRepository_Clear(t *testing.T) {
	repo, err := NewStateRepository(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Clear())
	require.NoError(t, repo.Save(ctx, sampleState()))
	require.NoError(t, repo.Clear())

	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, homework.ErrStateNotFound)
}

func TestStateRepository_StoreResetClearsFile(t *testing.T) {
	repo, err := NewStateRepository(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, sampleState()))

	store := tracking.NewStore(tracking.StoreConfig{Repository: repo})
	require.NoError(t, store.Reset(ctx))

	_, err = os.Stat(repo.Path())
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, store.Load(ctx).Students)
}

func TestStateRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	repo, err := NewStateRepository(path)
	require.NoError(t, err)

	_, err = repo.Load(context.Background())
	assert.ErrorIs(t, err, homework.ErrStateCorrupt)

	// The store recovers with an empty state so the next cycle re-announces
	// every assignment.
	store := tracking.NewStore(tracking.StoreConfig{Repository: repo})
	state := store.Load(context.Background())
	require.NotNil(t, state)
	assert.Empty(t, state.Students)
}

func TestStateRepository_SaveCancelled(t *testing.T) {
	repo, err := NewStateRepository(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, repo.Save(ctx, sampleState()), context.Canceled)
}
