package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/external/canvas"
)

type fakeFetcher struct {
	data []canvas.StudentData
	err  error
}

func (f fakeFetcher) FetchAll(context.Context) ([]canvas.StudentData, error) {
	return f.data, f.err
}

func TestCanvasSnapshotAdapter_FetchSnapshot(t *testing.T) {
	submitted := time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC)
	fetcher := fakeFetcher{data: []canvas.StudentData{
		{
			Student: canvas.UserDTO{ID: 2, Name: "Bob"},
			Courses: []canvas.CourseData{{
				Course:      canvas.CourseDTO{ID: 20, Name: "Science", Term: &canvas.TermDTO{Name: "Spring"}},
				Assignments: []canvas.AssignmentDTO{{ID: 200, Name: "Lab"}},
				Submissions: []canvas.SubmissionDTO{{AssignmentID: 200, SubmittedAt: &submitted}},
			}},
		},
		{Student: canvas.UserDTO{ID: 1, Name: "Alice"}},
	}}

	adapter := NewCanvasSnapshotAdapter(fetcher, nil)
	snap, err := adapter.FetchSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Students, 2)
	assert.Equal(t, homework.StudentID("2"), snap.Students[0].Student.ID, "API order preserved")
	assert.Equal(t, homework.StudentID("1"), snap.Students[1].Student.ID)

	bob := snap.Students[0]
	require.Len(t, bob.Courses, 1)
	assert.Equal(t, "Spring", bob.Courses[0].Term)
	require.Len(t, bob.Assignments, 1)
	assert.Equal(t, homework.CourseID("20"), bob.Assignments[0].CourseID)
	assert.Equal(t, "Science", bob.Assignments[0].CourseName)
	assert.True(t, bob.Submissions["200"].IsCompleted())
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestCanvasSnapshotAdapter_Error(t *testing.T) {
	boom := errors.New("canvas down")
	_, err := NewCanvasSnapshotAdapter(fakeFetcher{err: boom}, nil).FetchSnapshot(context.Background())
	assert.ErrorIs(t, err, boom)
}
