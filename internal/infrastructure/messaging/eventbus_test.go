package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

func testEvent(kind homework.Kind, assignmentID string) homework.HomeworkEvent {
	return homework.NewHomeworkEvent(
		"evt-"+assignmentID,
		kind,
		homework.Student{ID: "42", Name: "Ada Lovelace", ShortName: "Ada"},
		homework.Assignment{ID: homework.AssignmentID(assignmentID), Name: "Essay", CourseName: "History"},
		nil,
		time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC),
	)
}

func TestInMemoryEventBus_SyncOrder(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var seen []string
	record := func(prefix string) shared.EventHandler {
		return func(e shared.Event) error {
			seen = append(seen, prefix+":"+e.Payload()["assignment_id"].(string))
			return nil
		}
	}

	require.NoError(t, bus.Subscribe(shared.EventHomeworkAppeared, record("appeared")))
	require.NoError(t, bus.Subscribe(shared.EventHomeworkCompleted, record("completed")))
	require.NoError(t, bus.SubscribeAll(record("all")))

	require.NoError(t, bus.Publish(testEvent(homework.KindAppeared, "1")))
	require.NoError(t, bus.Publish(testEvent(homework.KindCompleted, "2")))

	assert.Equal(t, []string{"appeared:1", "all:1", "completed:2", "all:2"}, seen)
}

func TestInMemoryEventBus_HandlerFailureDoesNotStopOthers(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("sink down") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { calls++; return nil }))

	err := bus.Publish(testEvent(homework.KindAppeared, "1"))
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Contains(t, err.Error(), "sink down")
	assert.Contains(t, err.Error(), "2 of 3 handlers")
	assert.Equal(t, 1, calls)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_Close(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(testEvent(homework.KindAppeared, "1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	assert.Error(t, bus.Subscribe(shared.EventHomeworkAppeared, nil))
	assert.Error(t, bus.Publish(nil))
}
