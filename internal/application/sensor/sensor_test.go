package sensor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

type fakeSource struct {
	snap    *homework.Snapshot
	summary homework.Summary
}

func (f *fakeSource) LastSnapshot() (homework.Snapshot, bool) {
	if f.snap == nil {
		return homework.Snapshot{}, false
	}
	return *f.snap, true
}

func (f *fakeSource) Summary(context.Context) homework.Summary {
	return f.summary
}

var fixedNow = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestProjector(src Source, maxBytes int) *Projector {
	return NewProjector(ProjectorConfig{
		Source:            src,
		MaxAttributeBytes: maxBytes,
		Clock:             func() time.Time { return fixedNow },
	})
}

func sampleSnapshot() *homework.Snapshot {
	submitted := fixedNow.Add(-time.Hour)
	return &homework.Snapshot{
		Students: []homework.StudentSnapshot{
			{
				Student: homework.Student{ID: "1", Name: "Alice"},
				Courses: []homework.Course{{ID: "10", Name: "English"}},
				Assignments: []homework.Assignment{
					{ID: "A1", Name: "Essay", CourseName: "English"},
					{ID: "A2", Name: "Reading", CourseName: "English"},
				},
				Submissions: map[homework.AssignmentID]homework.Submission{
					"A2": {AssignmentID: "A2"},
					"A1": {AssignmentID: "A1", SubmittedAt: &submitted},
				},
			},
			{
				Student:     homework.Student{ID: "2", Name: "Bob"},
				Courses:     []homework.Course{{ID: "20", Name: "Math"}},
				Assignments: []homework.Assignment{{ID: "B1", Name: "Quiz", CourseName: "Math"}},
			},
		},
		FetchedAt: fixedNow,
	}
}

func TestProjector_NoSnapshot(t *testing.T) {
	p := newTestProjector(&fakeSource{}, 0)

	sensors := p.All(context.Background())
	require.Len(t, sensors, 5)

	for _, s := range sensors {
		assert.Zero(t, s.State, s.Key)
		assert.Equal(t, 0, s.Attributes[s.Key+"_count"], s.Key)
		assert.NotContains(t, s.Attributes, s.Key)
	}

	events := sensors[4]
	assert.Equal(t, KeyHomeworkEvents, events.Key)
	assert.Equal(t, 0, events.Attributes["total_known_assignments"])
	assert.Equal(t, "2024-09-01T12:00:00Z", events.Attributes["last_update"])
}

func TestProjector_ListSensors(t *testing.T) {
	p := newTestProjector(&fakeSource{snap: sampleSnapshot()}, 0)
	ctx := context.Background()

	students, err := p.Get(ctx, KeyStudent)
	require.NoError(t, err)
	assert.Equal(t, 2, students.State)
	assert.Equal(t, "Canvas Students", students.Name)
	assert.Equal(t, false, students.Attributes["student_truncated"])

	courses, err := p.Get(ctx, KeyCourse)
	require.NoError(t, err)
	assert.Equal(t, 2, courses.State)
	items := courses.Attributes[KeyCourse].([]interface{})
	assert.Equal(t, "2", items[1].(courseItem).StudentID)

	assignments, err := p.Get(ctx, KeyAssignment)
	require.NoError(t, err)
	assert.Equal(t, 3, assignments.State)
	assert.Equal(t, 3, assignments.Attributes["assignment_count"])

	subs, err := p.Get(ctx, KeySubmission)
	require.NoError(t, err)
	require.Equal(t, 2, subs.State)
	subItems := subs.Attributes[KeySubmission].([]interface{})
	assert.Equal(t, homework.AssignmentID("A1"), subItems[0].(submissionItem).AssignmentID, "sorted by assignment id")
}

func TestProjector_HomeworkEventsSummary(t *testing.T) {
	src := &fakeSource{
		snap: sampleSnapshot(),
		summary: homework.Summary{
			Students: map[homework.StudentID]homework.StudentSummary{
				"1": {Name: "Alice", Known: 2, Completed: 1, Pending: 1},
				"2": {Name: "Bob", Known: 1, Pending: 1},
			},
			TotalKnown:     3,
			TotalCompleted: 1,
			TotalPending:   2,
			StudentCount:   2,
		},
	}
	p := newTestProjector(src, 0)

	s, err := p.Get(context.Background(), KeyHomeworkEvents)
	require.NoError(t, err)

	assert.Equal(t, 3, s.State)
	assert.Equal(t, 3, s.Attributes["homework_events_count"])
	assert.Equal(t, 3, s.Attributes["total_known_assignments"])
	assert.Equal(t, 1, s.Attributes["total_completed_assignments"])
	assert.Equal(t, 2, s.Attributes["total_pending_assignments"])
	assert.Equal(t, 2, s.Attributes["student_count"])

	students := s.Attributes["students"].(map[homework.StudentID]homework.StudentSummary)
	assert.Equal(t, 1, students["1"].Pending)
}

func TestProjector_TruncatesLargeLists(t *testing.T) {
	snap := &homework.Snapshot{Students: []homework.StudentSnapshot{{Student: homework.Student{ID: "1"}}}}
	for i := 0; i < 50; i++ {
		snap.Students[0].Assignments = append(snap.Students[0].Assignments, homework.Assignment{
			ID:   homework.AssignmentID(strings.Repeat("x", 3) + string(rune('a'+i%26)) + string(rune('a'+i/26))),
			Name: strings.Repeat("n", 400),
		})
	}
	p := newTestProjector(&fakeSource{snap: snap}, 2000)

	s, err := p.Get(context.Background(), KeyAssignment)
	require.NoError(t, err)

	kept := s.Attributes[KeyAssignment].([]interface{})
	assert.Equal(t, 50, s.State)
	assert.Equal(t, 50, s.Attributes["assignment_count"])
	assert.True(t, s.Attributes["assignment_truncated"].(bool))
	assert.NotEmpty(t, kept)
	assert.Less(t, len(kept), 50)
}

func TestProjector_UnknownKey(t *testing.T) {
	p := newTestProjector(&fakeSource{}, 0)

	_, err := p.Get(context.Background(), "grades")
	assert.True(t, IsUnknown(err))
}

func TestDescriptions(t *testing.T) {
	d := Descriptions()
	require.Len(t, d, 5)
	assert.Equal(t, "canvas_homework_events", d[4].UniqueID)

	d[0].Key = "changed"
	assert.Equal(t, KeyStudent, Descriptions()[0].Key)
}
