package homework

import (
	"time"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// События переходов заданий. Ключи payload являются публичным контрактом
// для внешних автоматизаций.
// ══════════════════════════════════════════════════════════════════════════════

// Kind - вид перехода.
type Kind string

const (
	KindAppeared  Kind = "appeared"
	KindCompleted Kind = "completed"
)

// EventType возвращает тип события для вида перехода.
func (k Kind) EventType() shared.EventType {
	if k == KindCompleted {
		return shared.EventHomeworkCompleted
	}
	return shared.EventHomeworkAppeared
}

// HomeworkEvent - событие появления или выполнения задания.
type HomeworkEvent struct {
	shared.BaseEvent
	Kind       Kind
	Student    Student
	Assignment Assignment
	Submission *Submission
}

// NewHomeworkEvent создаёт событие. Submission учитывается только для KindCompleted.
func NewHomeworkEvent(id string, kind Kind, student Student, assignment Assignment, submission *Submission, at time.Time) HomeworkEvent {
	base := shared.NewBaseEvent(kind.EventType(), string(student.ID))
	base.ID = id
	base.Timestamp = at

	if kind != KindCompleted {
		submission = nil
	}

	return HomeworkEvent{
		BaseEvent:  base,
		Kind:       kind,
		Student:    student,
		Assignment: assignment,
		Submission: submission,
	}
}

// Payload реализует shared.Event.
func (e HomeworkEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"assignment_id":      string(e.Assignment.ID),
		"assignment_name":    valueOr(e.Assignment.Name, "Unknown Assignment"),
		"course_name":        valueOr(e.Assignment.CourseName, "Unknown Course"),
		"student_id":         string(e.Student.ID),
		"student_name":       e.Student.DisplayName(),
		"student_short_name": e.Student.DisplayShortName(),
		"html_url":           nullableString(e.Assignment.HTMLURL),
		"timestamp":          e.Timestamp.Format(time.RFC3339),
	}

	switch e.Kind {
	case KindAppeared:
		p["due_at"] = shared.FormatTimestamp(e.Assignment.DueAt)
		p["points_possible"] = nullableFloat(e.Assignment.PointsPossible)
	case KindCompleted:
		var sub Submission
		if e.Submission != nil {
			sub = *e.Submission
		}
		p["submitted_at"] = shared.FormatTimestamp(sub.SubmittedAt)
		p["score"] = nullableFloat(sub.Score)
		if sub.Grade != nil {
			p["grade"] = *sub.Grade
		} else {
			p["grade"] = nil
		}
	}

	return p
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
