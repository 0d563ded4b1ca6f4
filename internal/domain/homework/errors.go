package homework

import (
	"fmt"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

// Ошибки домена переиспользуются из shared.
var (
	ErrStateNotFound        = shared.ErrStateNotFound
	ErrStateCorrupt         = shared.ErrStateCorrupt
	ErrStateVersionMismatch = shared.ErrStateVersionMismatch
)

// InvariantError сообщает о нарушении completed ⊆ known.
type InvariantError struct {
	StudentID StudentID
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("homework: student %s has completed assignments that are not known", e.StudentID)
}

// Is позволяет сравнивать с shared.ErrInvalidState.
func (e *InvariantError) Is(target error) bool {
	return target == shared.ErrInvalidState
}
