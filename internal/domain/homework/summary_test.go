package homework

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	state := NewPersistedState()
	state.Students["1"] = &PerStudentState{Known: NewIDSet("A1", "A2", "A3"), Completed: NewIDSet("A1")}
	state.Students["2"] = &PerStudentState{Known: NewIDSet("B1"), Completed: NewIDSet("B1")}

	roster := []Student{{ID: "1", Name: "Alice"}, {ID: "3", Name: "Carol"}}

	s := Summarize(state, roster)

	assert.Equal(t, 4, s.TotalKnown)
	assert.Equal(t, 2, s.TotalCompleted)
	assert.Equal(t, 2, s.TotalPending)
	assert.Equal(t, 3, s.StudentCount)

	assert.Equal(t, StudentSummary{Name: "Alice", Known: 3, Completed: 1, Pending: 2}, s.Students["1"])
	assert.Equal(t, StudentSummary{Name: "Student 2", Known: 1, Completed: 1, Pending: 0}, s.Students["2"])
	assert.Equal(t, StudentSummary{Name: "Carol"}, s.Students["3"])
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil)

	assert.Equal(t, 0, s.StudentCount)
	assert.Equal(t, 0, s.TotalKnown)
	assert.NotNil(t, s.Students)
}
