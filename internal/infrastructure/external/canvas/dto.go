package canvas

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CANVAS API DTOs
// Only the fields the hub reads are declared. Canvas IDs are integers in the
// default JSON representation.
// ══════════════════════════════════════════════════════════════════════════════

// UserDTO is an observed student returned by /users/self/observees.
type UserDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ShortName    string `json:"short_name"`
	SortableName string `json:"sortable_name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
}

// TermDTO is the enrollment term included with include[]=term.
type TermDTO struct {
	ID      int64      `json:"id"`
	Name    string     `json:"name"`
	StartAt *time.Time `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
}

// CourseDTO represents a Canvas course.
type CourseDTO struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	CourseCode     string     `json:"course_code"`
	WorkflowState  string     `json:"workflow_state"`
	Term           *TermDTO   `json:"term,omitempty"`
	StartAt        *time.Time `json:"start_at"`
	EndAt          *time.Time `json:"end_at"`
	AccessRestrict bool       `json:"access_restricted_by_date,omitempty"`
}

// AssignmentDTO represents a Canvas assignment.
type AssignmentDTO struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	CourseID        int64      `json:"course_id"`
	HTMLURL         string     `json:"html_url"`
	DueAt           *time.Time `json:"due_at"`
	LockAt          *time.Time `json:"lock_at"`
	UnlockAt        *time.Time `json:"unlock_at"`
	PointsPossible  *float64   `json:"points_possible"`
	SubmissionTypes []string   `json:"submission_types"`
	Published       bool       `json:"published"`
}

// SubmissionDTO represents a Canvas submission.
type SubmissionDTO struct {
	ID            int64      `json:"id"`
	AssignmentID  int64      `json:"assignment_id"`
	UserID        int64      `json:"user_id"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	GradedAt      *time.Time `json:"graded_at"`
	Score         *float64   `json:"score"`
	Grade         *string    `json:"grade"`
	WorkflowState string     `json:"workflow_state"`
	Late          bool       `json:"late"`
	Missing       bool       `json:"missing"`
	Attempt       *int       `json:"attempt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIErrorDTO is the error body Canvas returns for failed requests.
type APIErrorDTO struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Message string `json:"message,omitempty"`
}

// FirstMessage returns the first human readable message.
func (e APIErrorDTO) FirstMessage() string {
	if len(e.Errors) > 0 && e.Errors[0].Message != "" {
		return e.Errors[0].Message
	}
	return e.Message
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Path       string
	Message    string
	Kind       error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("canvas %s: status %d: %s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("canvas %s: status %d", e.Path, e.StatusCode)
}

// Unwrap exposes the domain error kind.
func (e *StatusError) Unwrap() error {
	return e.Kind
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

// RateLimitError is returned for HTTP 429 and Canvas' 403 throttling.
type RateLimitError struct {
	Wait time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("canvas rate limit exceeded, retry after %s", e.Wait)
}

// RetryAfter implements retry.DelayHint.
func (e *RateLimitError) RetryAfter() time.Duration {
	return e.Wait
}

// Unwrap exposes the domain error kind.
func (e *RateLimitError) Unwrap() error {
	return errRateLimited
}
