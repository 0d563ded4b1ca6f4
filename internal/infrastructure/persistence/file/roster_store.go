package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

// RosterRepository keeps the student list of the last poll in a sidecar
// file next to the state file.
type RosterRepository struct {
	path string
	mu   sync.Mutex
}

// NewRosterRepository creates a roster file beside statePath:
// canvas_hub_state.json becomes canvas_hub_state.students.json.
func NewRosterRepository(statePath string) *RosterRepository {
	base := strings.TrimSuffix(statePath, ".json")
	return &RosterRepository{path: base + ".students.json"}
}

// Path returns the roster file location.
func (r *RosterRepository) Path() string {
	return r.path
}

// LoadRoster implements homework.RosterRepository.
func (r *RosterRepository) LoadRoster(_ context.Context) ([]homework.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading roster file %s: %w", r.path, err)
	}

	var roster []homework.Student
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("decoding roster file %s: %w", r.path, err)
	}
	return roster, nil
}

// SaveRoster implements homework.RosterRepository.
func (r *RosterRepository) SaveRoster(ctx context.Context, roster []homework.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if roster == nil {
		roster = []homework.Student{}
	}

	data, err := json.MarshalIndent(roster, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding roster: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return writeAtomic(r.path, append(data, '\n'))
}
