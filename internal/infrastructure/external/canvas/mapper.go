package canvas

import (
	"strconv"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to domain conversion
// ══════════════════════════════════════════════════════════════════════════════

// Mapper converts Canvas DTOs into domain values.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// id renders a Canvas integer ID. Zero means absent.
func id(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

// StudentFromDTO converts an observee.
func (m *Mapper) StudentFromDTO(u UserDTO) homework.Student {
	return homework.Student{
		ID:        homework.StudentID(id(u.ID)),
		Name:      u.Name,
		ShortName: u.ShortName,
	}
}

// CourseFromDTO converts a course.
func (m *Mapper) CourseFromDTO(c CourseDTO) homework.Course {
	course := homework.Course{
		ID:         homework.CourseID(id(c.ID)),
		Name:       c.Name,
		CourseCode: c.CourseCode,
	}
	if c.Term != nil {
		course.Term = c.Term.Name
	}
	return course
}

// AssignmentFromDTO converts an assignment and attaches the course name.
func (m *Mapper) AssignmentFromDTO(a AssignmentDTO, course CourseDTO) homework.Assignment {
	courseID := a.CourseID
	if courseID == 0 {
		courseID = course.ID
	}
	return homework.Assignment{
		ID:             homework.AssignmentID(id(a.ID)),
		Name:           a.Name,
		CourseID:       homework.CourseID(id(courseID)),
		CourseName:     course.Name,
		HTMLURL:        a.HTMLURL,
		DueAt:          a.DueAt,
		PointsPossible: a.PointsPossible,
	}
}

// SubmissionFromDTO converts a submission.
func (m *Mapper) SubmissionFromDTO(s SubmissionDTO) homework.Submission {
	return homework.Submission{
		AssignmentID:  homework.AssignmentID(id(s.AssignmentID)),
		SubmittedAt:   s.SubmittedAt,
		Score:         s.Score,
		Grade:         s.Grade,
		WorkflowState: s.WorkflowState,
	}
}

// StudentSnapshotFromData builds one student's slice of a snapshot.
// Submissions are keyed by assignment ID; when Canvas returns several
// submissions for one assignment the submitted one wins.
func (m *Mapper) StudentSnapshotFromData(data StudentData) homework.StudentSnapshot {
	snap := homework.StudentSnapshot{
		Student:     m.StudentFromDTO(data.Student),
		Submissions: make(map[homework.AssignmentID]homework.Submission),
	}

	for _, cd := range data.Courses {
		snap.Courses = append(snap.Courses, m.CourseFromDTO(cd.Course))
		for _, a := range cd.Assignments {
			snap.Assignments = append(snap.Assignments, m.AssignmentFromDTO(a, cd.Course))
		}
		for _, s := range cd.Submissions {
			sub := m.SubmissionFromDTO(s)
			if existing, ok := snap.Submissions[sub.AssignmentID]; ok && existing.IsCompleted() && !sub.IsCompleted() {
				continue
			}
			snap.Submissions[sub.AssignmentID] = sub
		}
	}

	return snap
}
