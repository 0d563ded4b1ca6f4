// Package shared contains common domain types, errors and events
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. The homework event names are the public contract
// consumed by downstream automations and must not change.
const (
	// Homework events
	EventHomeworkAppeared  EventType = "canvas_homework_appeared"
	EventHomeworkCompleted EventType = "canvas_homework_completed"

	// System events
	EventPollCompleted EventType = "system.poll_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// PollCompletedEvent is emitted after every successful poll cycle.
type PollCompletedEvent struct {
	BaseEvent
	Students  int           `json:"students"`
	Appeared  int           `json:"appeared"`
	Completed int           `json:"completed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e PollCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"students":  e.Students,
		"appeared":  e.Appeared,
		"completed": e.Completed,
		"skipped":   e.Skipped,
		"duration":  e.Duration.String(),
	}
}

// NewPollCompletedEvent creates a new PollCompletedEvent.
func NewPollCompletedEvent(students, appeared, completed, skipped int, duration time.Duration) PollCompletedEvent {
	return PollCompletedEvent{
		BaseEvent: NewBaseEvent(EventPollCompleted, "poll"),
		Students:  students,
		Appeared:  appeared,
		Completed: completed,
		Skipped:   skipped,
		Duration:  duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// identified is implemented by events that carry their own ID.
type identified interface {
	EventID() string
}

// EventID returns the event ID.
func (e BaseEvent) EventID() string {
	return e.ID
}

// NewEventEnvelope serializes an event into a transport envelope.
func NewEventEnvelope(event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}

	env := EventEnvelope{
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if id, ok := event.(identified); ok {
		env.ID = id.EventID()
	}
	return env, nil
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
