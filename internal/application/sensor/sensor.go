// Package sensor строит read-only проекции последнего опроса Canvas
// в виде сенсоров: состояние (количество элементов) и атрибуты.
package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SENSOR DESCRIPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Ключи сенсоров.
const (
	KeyStudent        = "student"
	KeyCourse         = "course"
	KeyAssignment     = "assignment"
	KeySubmission     = "submission"
	KeyHomeworkEvents = "homework_events"
)

// DefaultMaxAttributeBytes - лимит сериализованного списка элементов
// в атрибутах одного сенсора.
const DefaultMaxAttributeBytes = 12000

// ErrUnknownSensor возвращается для неизвестного ключа.
var ErrUnknownSensor = shared.NewDomainError("sensor", "Get", shared.ErrNotFound, "unknown sensor key")

// Description описывает сенсор.
type Description struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	UniqueID string `json:"unique_id"`
}

var descriptions = []Description{
	{Key: KeyStudent, Name: "Canvas Students", UniqueID: "canvas_student"},
	{Key: KeyCourse, Name: "Canvas Courses", UniqueID: "canvas_course"},
	{Key: KeyAssignment, Name: "Canvas Assignments", UniqueID: "canvas_assignment"},
	{Key: KeySubmission, Name: "Canvas Submissions", UniqueID: "canvas_submission"},
	{Key: KeyHomeworkEvents, Name: "Canvas Homework Events", UniqueID: "canvas_homework_events"},
}

// Descriptions возвращает описания всех сенсоров в фиксированном порядке.
func Descriptions() []Description {
	out := make([]Description, len(descriptions))
	copy(out, descriptions)
	return out
}

// Sensor - вычисленное значение сенсора.
type Sensor struct {
	Description
	State      int                    `json:"state"`
	Attributes map[string]interface{} `json:"attributes"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ITEMS
// Элементы списков дополняются student_id: одно задание может быть видно
// нескольким студентам.
// ══════════════════════════════════════════════════════════════════════════════

type courseItem struct {
	StudentID string `json:"student_id"`
	homework.Course
}

type assignmentItem struct {
	StudentID string `json:"student_id"`
	homework.Assignment
}

type submissionItem struct {
	StudentID string `json:"student_id"`
	homework.Submission
}

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTOR
// ══════════════════════════════════════════════════════════════════════════════

// Source предоставляет данные последнего успешного цикла.
type Source interface {
	LastSnapshot() (homework.Snapshot, bool)
	Summary(ctx context.Context) homework.Summary
}

// ProjectorConfig содержит настройки проектора.
type ProjectorConfig struct {
	Source Source

	// MaxAttributeBytes - лимит списка элементов (по умолчанию 12000).
	MaxAttributeBytes int

	// Clock для last_update (по умолчанию time.Now).
	Clock func() time.Time

	Logger *slog.Logger
}

// Projector вычисляет сенсоры по запросу.
type Projector struct {
	source   Source
	maxBytes int
	clock    func() time.Time
	logger   *slog.Logger
}

// NewProjector создаёт проектор.
func NewProjector(config ProjectorConfig) *Projector {
	if config.MaxAttributeBytes <= 0 {
		config.MaxAttributeBytes = DefaultMaxAttributeBytes
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Projector{
		source:   config.Source,
		maxBytes: config.MaxAttributeBytes,
		clock:    config.Clock,
		logger:   config.Logger.With("component", "sensor_projector"),
	}
}

// All вычисляет все сенсоры.
func (p *Projector) All(ctx context.Context) []Sensor {
	snap, _ := p.snapshot()
	now := p.clock()

	out := make([]Sensor, 0, len(descriptions))
	for _, d := range descriptions {
		out = append(out, p.project(ctx, d, snap, now))
	}
	return out
}

// Get вычисляет один сенсор по ключу.
func (p *Projector) Get(ctx context.Context, key string) (Sensor, error) {
	for _, d := range descriptions {
		if d.Key == key {
			snap, _ := p.snapshot()
			return p.project(ctx, d, snap, p.clock()), nil
		}
	}
	return Sensor{}, ErrUnknownSensor
}

// IsUnknown проверяет, что ошибка означает неизвестный сенсор.
func IsUnknown(err error) bool {
	return errors.Is(err, ErrUnknownSensor)
}

func (p *Projector) snapshot() (homework.Snapshot, bool) {
	if p.source == nil {
		return homework.Snapshot{}, false
	}
	return p.source.LastSnapshot()
}

func (p *Projector) project(ctx context.Context, d Description, snap homework.Snapshot, now time.Time) Sensor {
	var items []interface{}
	switch d.Key {
	case KeyStudent:
		items = studentItems(snap)
	case KeyCourse:
		items = courseItems(snap)
	case KeyAssignment, KeyHomeworkEvents:
		items = assignmentItems(snap)
	case KeySubmission:
		items = submissionItems(snap)
	}

	sensor := Sensor{
		Description: d,
		State:       len(items),
		Attributes:  p.attributes(d.Key, items),
		UpdatedAt:   now,
	}

	if d.Key == KeyHomeworkEvents {
		var summary homework.Summary
		if p.source != nil {
			summary = p.source.Summary(ctx)
		}
		addSummary(sensor.Attributes, summary, now)
	}
	return sensor
}

// attributes собирает {key, key_count, key_truncated}. Элементы добавляются,
// пока суммарный размер их JSON не превышает лимит.
func (p *Projector) attributes(key string, items []interface{}) map[string]interface{} {
	if len(items) == 0 {
		return map[string]interface{}{key + "_count": 0}
	}

	kept := make([]interface{}, 0, len(items))
	total := 0
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			p.logger.Debug("failed to serialize sensor item", "sensor", key, "error", err)
			continue
		}
		if total+len(data) > p.maxBytes {
			break
		}
		kept = append(kept, item)
		total += len(data)
	}

	return map[string]interface{}{
		key:                kept,
		key + "_count":     len(items),
		key + "_truncated": len(kept) < len(items),
	}
}

func addSummary(attrs map[string]interface{}, summary homework.Summary, now time.Time) {
	students := summary.Students
	if students == nil {
		students = map[homework.StudentID]homework.StudentSummary{}
	}
	attrs["total_known_assignments"] = summary.TotalKnown
	attrs["total_completed_assignments"] = summary.TotalCompleted
	attrs["total_pending_assignments"] = summary.TotalPending
	attrs["students"] = students
	attrs["student_count"] = summary.StudentCount
	attrs["last_update"] = now.Format(time.RFC3339)
}

func studentItems(snap homework.Snapshot) []interface{} {
	var items []interface{}
	for _, s := range snap.Roster() {
		items = append(items, s)
	}
	return items
}

func courseItems(snap homework.Snapshot) []interface{} {
	var items []interface{}
	for _, st := range snap.Students {
		for _, c := range st.Courses {
			items = append(items, courseItem{StudentID: string(st.Student.ID), Course: c})
		}
	}
	return items
}

func assignmentItems(snap homework.Snapshot) []interface{} {
	var items []interface{}
	for _, st := range snap.Students {
		for _, a := range st.Assignments {
			items = append(items, assignmentItem{StudentID: string(st.Student.ID), Assignment: a})
		}
	}
	return items
}

func submissionItems(snap homework.Snapshot) []interface{} {
	var items []interface{}
	for _, st := range snap.Students {
		ids := make([]homework.AssignmentID, 0, len(st.Submissions))
		for id := range st.Submissions {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			items = append(items, submissionItem{StudentID: string(st.Student.ID), Submission: st.Submissions[id]})
		}
	}
	return items
}
