package tracking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

type recordingPublisher struct {
	events []shared.Event
	failOn map[homework.AssignmentID]bool
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	if hw, ok := event.(homework.HomeworkEvent); ok && p.failOn[hw.Assignment.ID] {
		return errors.New("bus unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func fixedClock() time.Time {
	return time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
}

func TestEmitter_EmitAllOrder(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewEmitter(EmitterConfig{Publisher: pub, Clock: fixedClock})

	submitted := fixedClock()
	result := homework.DiffResult{
		Appeared: []homework.AppearedRecord{
			{Student: homework.Student{ID: "2"}, Assignment: homework.Assignment{ID: "B1"}},
			{Student: homework.Student{ID: "1"}, Assignment: homework.Assignment{ID: "A1"}},
		},
		Completed: []homework.CompletedRecord{
			{Student: homework.Student{ID: "1"}, Assignment: homework.Assignment{ID: "A1"},
				Submission: homework.Submission{AssignmentID: "A1", SubmittedAt: &submitted}},
		},
	}

	stats := emitter.EmitAll(result)

	assert.Equal(t, EmitStats{Published: 3}, stats)
	require.Len(t, pub.events, 3)
	assert.Equal(t, shared.EventHomeworkAppeared, pub.events[0].EventType())
	assert.Equal(t, "2", pub.events[0].AggregateID())
	assert.Equal(t, shared.EventHomeworkAppeared, pub.events[1].EventType())
	assert.Equal(t, "1", pub.events[1].AggregateID())
	assert.Equal(t, shared.EventHomeworkCompleted, pub.events[2].EventType())
	assert.Equal(t, "2024-09-01T12:00:00Z", pub.events[2].Payload()["submitted_at"])
	assert.Equal(t, "2024-09-01T12:00:00Z", pub.events[2].Payload()["timestamp"])
}

func TestEmitter_FailuresAreSwallowed(t *testing.T) {
	pub := &recordingPublisher{failOn: map[homework.AssignmentID]bool{"A1": true}}
	emitter := NewEmitter(EmitterConfig{Publisher: pub})

	stats := emitter.EmitAll(homework.DiffResult{Appeared: []homework.AppearedRecord{
		{Student: homework.Student{ID: "1"}, Assignment: homework.Assignment{ID: "A1"}},
		{Student: homework.Student{ID: "1"}, Assignment: homework.Assignment{ID: "A2"}},
	}})

	assert.Equal(t, EmitStats{Published: 1, Failed: 1}, stats)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "A2", pub.events[0].Payload()["assignment_id"])
}

func TestEmitter_UniqueEventIDs(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewEmitter(EmitterConfig{Publisher: pub})

	emitter.Emit(homework.KindAppeared, homework.Student{ID: "1"}, homework.Assignment{ID: "A1"}, nil)
	emitter.Emit(homework.KindAppeared, homework.Student{ID: "1"}, homework.Assignment{ID: "A2"}, nil)

	require.Len(t, pub.events, 2)
	first := pub.events[0].(homework.HomeworkEvent)
	second := pub.events[1].(homework.HomeworkEvent)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEmitter_NilPublisher(t *testing.T) {
	emitter := NewEmitter(EmitterConfig{})

	assert.False(t, emitter.Emit(homework.KindAppeared, homework.Student{ID: "1"}, homework.Assignment{ID: "A1"}, nil))
}
