package shared

import (
	"strconv"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// StudentID identifies a Canvas user observed by the parent account.
// Canvas returns numeric IDs; they are kept as strings because the
// persisted state keys students by string.
type StudentID string

// IsEmpty checks if the ID is empty.
func (s StudentID) IsEmpty() bool {
	return strings.TrimSpace(string(s)) == ""
}

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// AssignmentID identifies a Canvas assignment.
type AssignmentID string

// IsEmpty checks if the ID is empty.
func (a AssignmentID) IsEmpty() bool {
	return strings.TrimSpace(string(a)) == ""
}

// String returns the string representation.
func (a AssignmentID) String() string {
	return string(a)
}

// CourseID identifies a Canvas course.
type CourseID string

// String returns the string representation.
func (c CourseID) String() string {
	return string(c)
}

// IDFromInt converts a numeric Canvas ID into its string form.
// Zero and negative values produce an empty string.
func IDFromInt(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// ═══════════════════════════════════════════════════════════════════════════
// Time helpers
// ═══════════════════════════════════════════════════════════════════════════

// FormatTimestamp renders an optional timestamp as RFC 3339 or nil.
func FormatTimestamp(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
