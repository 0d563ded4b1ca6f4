package messaging

import (
	"log/slog"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

// LogHandler returns a handler that writes every event to the log.
func LogHandler(logger *slog.Logger) shared.EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(event shared.Event) error {
		p := event.Payload()
		switch event.EventType() {
		case shared.EventHomeworkAppeared:
			logger.Info("new homework appeared",
				"student", p["student_name"],
				"assignment", p["assignment_name"],
				"course", p["course_name"],
			)
		case shared.EventHomeworkCompleted:
			logger.Info("homework completed",
				"student", p["student_name"],
				"assignment", p["assignment_name"],
				"course", p["course_name"],
			)
		default:
			logger.Debug("event", "event_type", event.EventType(), "aggregate_id", event.AggregateID())
		}
		return nil
	}
}
