package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

func TestStateRepository(t *testing.T) {
	repo := NewStateRepository()
	ctx := context.Background()

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, homework.ErrStateNotFound)

	state := homework.NewPersistedState()
	state.Students["1"] = &homework.PerStudentState{Known: homework.NewIDSet("A1"), Completed: homework.NewIDSet()}
	require.NoError(t, repo.Save(ctx, state))

	// Mutating the caller's copy must not leak into the stored state.
	state.Students["1"].Known.Add("A2")

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Students["1"].Known.Len())
	assert.Equal(t, 1, repo.Saves())
}
