package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

// EventLog records homework events for later inspection.
type EventLog struct {
	conn    *Connection
	timeout time.Duration
}

// LoggedEvent is a row of the homework event log.
type LoggedEvent struct {
	ID           string                 `json:"id"`
	EventType    shared.EventType       `json:"event_type"`
	StudentID    string                 `json:"student_id"`
	AssignmentID string                 `json:"assignment_id,omitempty"`
	Payload      map[string]interface{} `json:"payload"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// NewEventLog creates a new EventLog.
func NewEventLog(conn *Connection) *EventLog {
	return &EventLog{conn: conn, timeout: 5 * time.Second}
}

// Handle implements shared.EventHandler.
func (l *EventLog) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	return l.Append(ctx, event)
}

// Append inserts one event. Re-inserting the same event ID is a no-op.
func (l *EventLog) Append(ctx context.Context, event shared.Event) error {
	env, err := shared.NewEventEnvelope(event)
	if err != nil {
		return fmt.Errorf("build envelope: %w", err)
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}

	var assignmentID *string
	if v, ok := event.Payload()["assignment_id"].(string); ok && v != "" {
		assignmentID = &v
	}

	_, err = l.conn.Exec(ctx, `
		INSERT INTO homework_events (id, event_type, student_id, assignment_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, env.ID, string(env.Type), env.AggregateID, assignmentID, []byte(env.Payload), env.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres append event: %w", err)
	}
	return nil
}

// Recent returns the latest events, newest first.
func (l *EventLog) Recent(ctx context.Context, limit int) ([]LoggedEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := l.conn.Query(ctx, `
		SELECT id, event_type, student_id, COALESCE(assignment_id, ''), payload, occurred_at
		FROM homework_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres query events: %w", err)
	}
	defer rows.Close()

	events := make([]LoggedEvent, 0, limit)
	for rows.Next() {
		var (
			ev      LoggedEvent
			evType  string
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &evType, &ev.StudentID, &ev.AssignmentID, &payload, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("postgres scan event: %w", err)
		}
		ev.EventType = shared.EventType(evType)
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}
