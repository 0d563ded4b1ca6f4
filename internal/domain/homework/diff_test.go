package homework

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submittedAt(t time.Time) *time.Time {
	return &t
}

func studentSnap(id string, assignments []Assignment, subs ...Submission) StudentSnapshot {
	m := make(map[AssignmentID]Submission, len(subs))
	for _, s := range subs {
		m[s.AssignmentID] = s
	}
	return StudentSnapshot{
		Student:     Student{ID: StudentID(id), Name: "Student " + id, ShortName: id},
		Assignments: assignments,
		Submissions: m,
	}
}

func TestDiff_NewAssignmentAppears(t *testing.T) {
	snap := Snapshot{Students: []StudentSnapshot{
		studentSnap("1", []Assignment{{ID: "A1", Name: "Essay"}}),
	}}

	res := Diff(NewPersistedState(), snap)

	require.Len(t, res.Appeared, 1)
	assert.Empty(t, res.Completed)
	assert.Equal(t, AssignmentID("A1"), res.Appeared[0].Assignment.ID)
	assert.Equal(t, "Essay", res.Appeared[0].Assignment.Name)
	assert.Equal(t, StudentID("1"), res.Appeared[0].Student.ID)

	st := res.Next.Student("1")
	require.NotNil(t, st)
	assert.Equal(t, NewIDSet("A1"), st.Known)
	assert.Empty(t, st.Completed)
}

func TestDiff_KnownAssignmentCompleted(t *testing.T) {
	prior := NewPersistedState()
	prior.Students["1"] = &PerStudentState{Known: NewIDSet("A1"), Completed: NewIDSet()}

	now := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	snap := Snapshot{Students: []StudentSnapshot{
		studentSnap("1", []Assignment{{ID: "A1", Name: "Essay"}},
			Submission{AssignmentID: "A1", SubmittedAt: submittedAt(now)}),
	}}

	res := Diff(prior, snap)

	assert.Empty(t, res.Appeared)
	require.Len(t, res.Completed, 1)
	assert.Equal(t, AssignmentID("A1"), res.Completed[0].Assignment.ID)
	assert.Equal(t, now, *res.Completed[0].Submission.SubmittedAt)
	assert.Equal(t, NewIDSet("A1"), res.Next.Student("1").Completed)
}

func TestDiff_FirstSeenAlreadySubmitted(t *testing.T) {
	snap := Snapshot{Students: []StudentSnapshot{
		studentSnap("1", []Assignment{{ID: "A1"}},
			Submission{AssignmentID: "A1", SubmittedAt: submittedAt(time.Now())}),
	}}

	res := Diff(NewPersistedState(), snap)

	require.Len(t, res.Appeared, 1)
	require.Len(t, res.Completed, 1)
	st := res.Next.Student("1")
	assert.True(t, st.Known.Has("A1"))
	assert.True(t, st.Completed.Has("A1"))
}

func TestDiff_UnsubmittedSubmissionIsNotCompleted(t *testing.T) {
	snap := Snapshot{Students: []StudentSnapshot{
		studentSnap("1", []Assignment{{ID: "A1"}},
			Submission{AssignmentID: "A1", WorkflowState: "unsubmitted"}),
	}}

	res := Diff(NewPersistedState(), snap)

	assert.Len(t, res.Appeared, 1)
	assert.Empty(t, res.Completed)
	assert.Equal(t, 0, res.Next.Student("1").Completed.Len())
}

func TestDiff_Idempotent(t *testing.T) {
	snap := Snapshot{Students: []StudentSnapshot{
		studentSnap("1", []Assignment{{ID: "A1"}, {ID: "A2"}},
			Submission{AssignmentID: "A2", SubmittedAt: submittedAt(time.Now())}),
		studentSnap("2", []Assignment{{ID: "B1"}}),
	}}

	first := Diff(NewPersistedState(), snap)
	second := Diff(first.Next, snap)

	assert.Empty(t, second.Appeared)
	assert.Empty(t, second.Completed)
	assert.Equal(t, first.Next, second.Next)
}

func TestDiff_RemovedAssignmentDoesNotReappear(t *testing.T) {
	withA1 := Snapshot{Students: []StudentSnapshot{
		studentSnap("1", []Assignment{{ID: "A1"}}),
	}}
	without := Snapshot{Students: []StudentSnapshot{
		studentSnap("1", []Assignment{{ID: "A2"}}),
	}}

	r1 := Diff(NewPersistedState(), withA1)
	r2 := Diff(r1.Next, without)
	r3 := Diff(r2.Next, withA1)

	require.Len(t, r2.Appeared, 1)
	assert.Equal(t, AssignmentID("A2"), r2.Appeared[0].Assignment.ID)
	assert.True(t, r2.Next.Student("1").Known.Has("A1"))
	assert.Empty(t, r3.Appeared)
}

func TestDiff_AbsentStudentCarriedForward(t *testing.T) {
	prior := NewPersistedState()
	prior.Students["gone"] = &PerStudentState{Known: NewIDSet("X1", "X2"), Completed: NewIDSet("X1")}

	res := Diff(prior, Snapshot{Students: []StudentSnapshot{
		studentSnap("1", []Assignment{{ID: "A1"}}),
	}})

	gone := res.Next.Student("gone")
	require.NotNil(t, gone)
	assert.Equal(t, NewIDSet("X1", "X2"), gone.Known)
	assert.Equal(t, NewIDSet("X1"), gone.Completed)
}

func TestDiff_DoesNotMutatePrior(t *testing.T) {
	prior := NewPersistedState()
	prior.Students["1"] = &PerStudentState{Known: NewIDSet("A1"), Completed: NewIDSet()}

	_ = Diff(prior, Snapshot{Students: []StudentSnapshot{
		studentSnap("1", []Assignment{{ID: "A1"}, {ID: "A2"}},
			Submission{AssignmentID: "A1", SubmittedAt: submittedAt(time.Now())}),
	}})

	assert.Equal(t, NewIDSet("A1"), prior.Students["1"].Known)
	assert.Empty(t, prior.Students["1"].Completed)
}

func TestDiff_TwoStudentsOrdering(t *testing.T) {
	snap := Snapshot{Students: []StudentSnapshot{
		studentSnap("2", []Assignment{{ID: "B1", Name: "Math"}}),
		studentSnap("1", []Assignment{{ID: "A1", Name: "Essay"}}),
	}}

	res := Diff(NewPersistedState(), snap)

	require.Len(t, res.Appeared, 2)
	assert.Equal(t, StudentID("2"), res.Appeared[0].Student.ID)
	assert.Equal(t, AssignmentID("B1"), res.Appeared[0].Assignment.ID)
	assert.Equal(t, StudentID("1"), res.Appeared[1].Student.ID)
	assert.Equal(t, AssignmentID("A1"), res.Appeared[1].Assignment.ID)
}

func TestDiff_SkipsMalformedRecords(t *testing.T) {
	snap := Snapshot{Students: []StudentSnapshot{
		studentSnap("", []Assignment{{ID: "Z1"}}),
		{
			Student:     Student{ID: "1"},
			Assignments: []Assignment{{ID: ""}, {ID: "A1"}, {ID: "A2"}},
			Submissions: map[AssignmentID]Submission{
				"A2": {AssignmentID: "A9", SubmittedAt: submittedAt(time.Now())},
				"":   {SubmittedAt: submittedAt(time.Now())},
			},
		},
	}}

	res := Diff(NewPersistedState(), snap)

	require.Len(t, res.Appeared, 2)
	assert.Empty(t, res.Completed)
	assert.Equal(t, 4, res.Skipped)
	assert.Nil(t, res.Next.Student(""))
}

func TestDiff_DuplicateAssignmentInOneCycle(t *testing.T) {
	snap := Snapshot{Students: []StudentSnapshot{
		studentSnap("1", []Assignment{{ID: "A1"}, {ID: "A1"}},
			Submission{AssignmentID: "A1", SubmittedAt: submittedAt(time.Now())}),
	}}

	res := Diff(NewPersistedState(), snap)

	assert.Len(t, res.Appeared, 1)
	assert.Len(t, res.Completed, 1)
}

func TestDiff_CompletedSubsetOfKnown(t *testing.T) {
	now := time.Now()
	prior := NewPersistedState()
	prior.Students["1"] = &PerStudentState{Known: NewIDSet("A1"), Completed: NewIDSet()}

	snaps := []Snapshot{
		{Students: []StudentSnapshot{studentSnap("1", []Assignment{{ID: "A2"}},
			Submission{AssignmentID: "A2", SubmittedAt: &now},
			Submission{AssignmentID: "A3", SubmittedAt: &now})}},
		{Students: []StudentSnapshot{studentSnap("2", nil,
			Submission{AssignmentID: "B1", SubmittedAt: &now})}},
		{Students: []StudentSnapshot{studentSnap("1", []Assignment{{ID: "A1"}, {ID: "A3"}},
			Submission{AssignmentID: "A1", SubmittedAt: &now})}},
	}

	state := prior
	for _, snap := range snaps {
		state = Diff(state, snap).Next
		assert.NoError(t, state.Validate())
	}
	assert.False(t, state.Student("1").Completed.Has("A3"))
	assert.Equal(t, 0, state.Student("2").Completed.Len())
}
