package homework

import (
	"fmt"
	"strings"
	"time"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

// Идентификаторы переиспользуются из shared.
type (
	StudentID    = shared.StudentID
	AssignmentID = shared.AssignmentID
	CourseID     = shared.CourseID
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT MODEL
// Данные одного цикла опроса. Неизменяемы в пределах цикла.
// ══════════════════════════════════════════════════════════════════════════════

// Student - наблюдаемый студент (observee родительского аккаунта).
type Student struct {
	ID        StudentID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
}

// DisplayName возвращает имя студента или "Student <id>", если имя пустое.
func (s Student) DisplayName() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return fmt.Sprintf("Student %s", s.ID)
}

// DisplayShortName возвращает короткое имя с откатом на полное.
func (s Student) DisplayShortName() string {
	if name := strings.TrimSpace(s.ShortName); name != "" {
		return name
	}
	return s.DisplayName()
}

// Course - курс, на который записан студент.
type Course struct {
	ID         CourseID `json:"id"`
	Name       string   `json:"name"`
	CourseCode string   `json:"course_code,omitempty"`
	Term       string   `json:"term,omitempty"`
}

// Assignment - задание курса.
type Assignment struct {
	ID             AssignmentID `json:"id"`
	Name           string       `json:"name"`
	CourseID       CourseID     `json:"course_id,omitempty"`
	CourseName     string       `json:"course_name"`
	HTMLURL        string       `json:"html_url"`
	DueAt          *time.Time   `json:"due_at,omitempty"`
	PointsPossible *float64     `json:"points_possible,omitempty"`
}

// Submission - сдача задания студентом.
type Submission struct {
	AssignmentID  AssignmentID `json:"assignment_id"`
	SubmittedAt   *time.Time   `json:"submitted_at,omitempty"`
	Score         *float64     `json:"score,omitempty"`
	Grade         *string      `json:"grade,omitempty"`
	WorkflowState string       `json:"workflow_state,omitempty"`
}

// IsCompleted возвращает true, если у сдачи есть время отправки.
func (s Submission) IsCompleted() bool {
	return s.SubmittedAt != nil && !s.SubmittedAt.IsZero()
}

// StudentSnapshot - задания и сдачи одного студента.
type StudentSnapshot struct {
	Student     Student                     `json:"student"`
	Courses     []Course                    `json:"courses,omitempty"`
	Assignments []Assignment                `json:"assignments"`
	Submissions map[AssignmentID]Submission `json:"submissions"`
}

// Snapshot - полное чтение всех отслеживаемых студентов за цикл.
// Порядок Students задаёт порядок событий.
type Snapshot struct {
	Students  []StudentSnapshot `json:"students"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// Roster возвращает студентов снапшота в порядке перечисления.
func (s Snapshot) Roster() []Student {
	roster := make([]Student, 0, len(s.Students))
	for _, st := range s.Students {
		roster = append(roster, st.Student)
	}
	return roster
}

// AssignmentCount возвращает общее количество заданий в снапшоте.
func (s Snapshot) AssignmentCount() int {
	var n int
	for _, st := range s.Students {
		n += len(st.Assignments)
	}
	return n
}
