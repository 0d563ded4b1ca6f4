package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

// StateRepository stores tracking state as one row per student.
// Save replaces the whole state inside a single transaction.
type StateRepository struct {
	conn *Connection
}

// NewStateRepository creates a new StateRepository.
func NewStateRepository(conn *Connection) *StateRepository {
	return &StateRepository{conn: conn}
}

// Load implements homework.StateRepository.
func (r *StateRepository) Load(ctx context.Context) (*homework.PersistedState, error) {
	var version int
	err := r.conn.QueryRow(ctx, `SELECT version FROM homework_state_meta WHERE id = 1`).Scan(&version)
	if err != nil {
		if IsNoRows(err) {
			return nil, homework.ErrStateNotFound
		}
		return nil, fmt.Errorf("postgres load state meta: %w", err)
	}
	if version != homework.CurrentStateVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", homework.ErrStateVersionMismatch, version, homework.CurrentStateVersion)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT student_id, known_assignment_ids, completed_assignment_ids
		FROM homework_student_state
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres load student state: %w", err)
	}
	defer rows.Close()

	state := homework.NewPersistedState()
	for rows.Next() {
		var (
			studentID string
			known     []string
			completed []string
		)
		if err := rows.Scan(&studentID, &known, &completed); err != nil {
			return nil, fmt.Errorf("postgres scan student state: %w", err)
		}

		st := homework.NewPerStudentState()
		for _, id := range known {
			st.Known.Add(homework.AssignmentID(id))
		}
		for _, id := range completed {
			st.Completed.Add(homework.AssignmentID(id))
		}
		st.Repair()
		state.Students[homework.StudentID(studentID)] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres iterate student state: %w", err)
	}

	return state, nil
}

// Save implements homework.StateRepository.
func (r *StateRepository) Save(ctx context.Context, state *homework.PersistedState) error {
	if state == nil {
		state = homework.NewPersistedState()
	}

	rows := make([][]interface{}, 0, len(state.Students))
	for _, id := range state.StudentIDs() {
		st := state.Students[id]
		if st == nil {
			continue
		}
		rows = append(rows, []interface{}{
			string(id),
			idStrings(st.Known.Sorted()),
			idStrings(st.Completed.Sorted()),
		})
	}

	return r.conn.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO homework_state_meta (id, version, saved_at) VALUES (1, $1, NOW())
			ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version, saved_at = EXCLUDED.saved_at
		`, state.Version); err != nil {
			return fmt.Errorf("postgres save state meta: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM homework_student_state`); err != nil {
			return fmt.Errorf("postgres clear student state: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"homework_student_state"},
			[]string{"student_id", "known_assignment_ids", "completed_assignment_ids"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("postgres copy student state: %w", err)
		}
		return nil
	})
}

func idStrings(ids []homework.AssignmentID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
