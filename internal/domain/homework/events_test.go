package homework

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

func TestHomeworkEvent_AppearedPayload(t *testing.T) {
	due := time.Date(2024, 10, 1, 23, 59, 0, 0, time.UTC)
	points := 10.0
	at := time.Date(2024, 9, 20, 8, 0, 0, 0, time.UTC)

	ev := NewHomeworkEvent("ev-1", KindAppeared,
		Student{ID: "42", Name: "Alice Smith", ShortName: "Alice"},
		Assignment{ID: "A1", Name: "Essay", CourseName: "English", HTMLURL: "https://canvas/a/1", DueAt: &due, PointsPossible: &points},
		&Submission{AssignmentID: "A1"},
		at,
	)

	assert.Equal(t, shared.EventHomeworkAppeared, ev.EventType())
	assert.Equal(t, "42", ev.AggregateID())
	assert.Nil(t, ev.Submission)
	assert.Equal(t, map[string]interface{}{
		"assignment_id":      "A1",
		"assignment_name":    "Essay",
		"course_name":        "English",
		"student_id":         "42",
		"student_name":       "Alice Smith",
		"student_short_name": "Alice",
		"html_url":           "https://canvas/a/1",
		"timestamp":          "2024-09-20T08:00:00Z",
		"due_at":             "2024-10-01T23:59:00Z",
		"points_possible":    10.0,
	}, ev.Payload())
}

func TestHomeworkEvent_CompletedPayload(t *testing.T) {
	submitted := time.Date(2024, 9, 21, 18, 30, 0, 0, time.UTC)
	score := 9.5
	grade := "A"

	ev := NewHomeworkEvent("ev-2", KindCompleted,
		Student{ID: "42"},
		Assignment{ID: "A1"},
		&Submission{AssignmentID: "A1", SubmittedAt: &submitted, Score: &score, Grade: &grade},
		time.Date(2024, 9, 21, 19, 0, 0, 0, time.UTC),
	)

	p := ev.Payload()
	assert.Equal(t, shared.EventHomeworkCompleted, ev.EventType())
	assert.Equal(t, "Student 42", p["student_name"])
	assert.Equal(t, "Student 42", p["student_short_name"])
	assert.Equal(t, "Unknown Assignment", p["assignment_name"])
	assert.Equal(t, "Unknown Course", p["course_name"])
	assert.Nil(t, p["html_url"])
	assert.Equal(t, "2024-09-21T18:30:00Z", p["submitted_at"])
	assert.Equal(t, 9.5, p["score"])
	assert.Equal(t, "A", p["grade"])
	assert.NotContains(t, p, "due_at")
	assert.NotContains(t, p, "points_possible")
}

func TestHomeworkEvent_CompletedNullFields(t *testing.T) {
	submitted := time.Now()
	ev := NewHomeworkEvent("ev-3", KindCompleted, Student{ID: "1"}, Assignment{ID: "A1"},
		&Submission{SubmittedAt: &submitted}, time.Now())

	p := ev.Payload()
	assert.Contains(t, p, "score")
	assert.Nil(t, p["score"])
	assert.Contains(t, p, "grade")
	assert.Nil(t, p["grade"])
}
