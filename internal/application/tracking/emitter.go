package tracking

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT EMITTER
// Translates diff records into homework events. Dispatch is fire-and-forget:
// publish failures are logged and never retried.
// ══════════════════════════════════════════════════════════════════════════════

// EmitterConfig contains configuration for Emitter.
type EmitterConfig struct {
	// Publisher receives the events.
	Publisher shared.EventPublisher

	// Clock returns the event timestamp (default: time.Now).
	Clock func() time.Time

	// IDGenerator returns a unique event ID (default: uuid v4).
	IDGenerator func() string

	// Logger for structured logging
	Logger *slog.Logger
}

// Emitter publishes homework transitions.
type Emitter struct {
	publisher shared.EventPublisher
	clock     func() time.Time
	newID     func() string
	logger    *slog.Logger
}

// EmitStats counts the outcome of EmitAll.
type EmitStats struct {
	Published int
	Failed    int
}

// NewEmitter creates a new Emitter.
func NewEmitter(config EmitterConfig) *Emitter {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.IDGenerator == nil {
		config.IDGenerator = func() string { return uuid.New().String() }
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Emitter{
		publisher: config.Publisher,
		clock:     config.Clock,
		newID:     config.IDGenerator,
		logger:    config.Logger.With("component", "emitter"),
	}
}

// Emit publishes one event. It reports whether the publish call succeeded.
func (e *Emitter) Emit(kind homework.Kind, student homework.Student, assignment homework.Assignment, submission *homework.Submission) bool {
	event := homework.NewHomeworkEvent(e.newID(), kind, student, assignment, submission, e.clock())

	if e.publisher == nil {
		e.logger.Warn("no event publisher configured, dropping event",
			"event_type", event.EventType(),
			"assignment_id", assignment.ID,
		)
		return false
	}

	if err := e.publisher.Publish(event); err != nil {
		e.logger.Error("failed to publish homework event",
			"event_type", event.EventType(),
			"student_id", student.ID,
			"assignment_id", assignment.ID,
			"error", err,
		)
		return false
	}
	return true
}

// EmitAll publishes every record of a diff result: all appeared records
// first, then all completed records, each in diff order.
func (e *Emitter) EmitAll(result homework.DiffResult) EmitStats {
	var stats EmitStats
	count := func(ok bool) {
		if ok {
			stats.Published++
		} else {
			stats.Failed++
		}
	}

	for _, rec := range result.Appeared {
		count(e.Emit(homework.KindAppeared, rec.Student, rec.Assignment, nil))
	}
	for _, rec := range result.Completed {
		sub := rec.Submission
		count(e.Emit(homework.KindCompleted, rec.Student, rec.Assignment, &sub))
	}
	return stats
}
