package homework

import (
	"encoding/json"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE CODEC
// Формат файла:
//
//	{"version": 1, "students": {"<id>": {"known_assignment_ids": [...], "completed_assignment_ids": [...]}}}
// ══════════════════════════════════════════════════════════════════════════════

type stateDocument struct {
	Version  *int                       `json:"version"`
	Students map[string]studentDocument `json:"students"`
}

type studentDocument struct {
	KnownAssignmentIDs     []string `json:"known_assignment_ids"`
	CompletedAssignmentIDs []string `json:"completed_assignment_ids"`
}

// EncodeState сериализует состояние в JSON. Списки ID отсортированы,
// поэтому одинаковое состояние всегда даёт одинаковые байты.
func EncodeState(state *PersistedState) ([]byte, error) {
	if state == nil {
		state = NewPersistedState()
	}

	version := state.Version
	doc := stateDocument{
		Version:  &version,
		Students: make(map[string]studentDocument, len(state.Students)),
	}
	for id, st := range state.Students {
		if st == nil {
			continue
		}
		doc.Students[string(id)] = studentDocument{
			KnownAssignmentIDs:     idStrings(st.Known.Sorted()),
			CompletedAssignmentIDs: idStrings(st.Completed.Sorted()),
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// DecodeState разбирает JSON-документ состояния.
//
// Отсутствующие поля дают пустые множества. Неверный JSON возвращает
// ErrStateCorrupt, другая версия схемы возвращает ErrStateVersionMismatch.
// Выполненные ID, которых нет среди известных, добавляются в известные.
func DecodeState(data []byte) (*PersistedState, error) {
	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	if doc.Version == nil {
		return nil, fmt.Errorf("%w: missing version", ErrStateCorrupt)
	}
	if *doc.Version != CurrentStateVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrStateVersionMismatch, *doc.Version, CurrentStateVersion)
	}

	state := NewPersistedState()
	for id, sd := range doc.Students {
		if id == "" {
			continue
		}
		st := NewPerStudentState()
		for _, a := range sd.KnownAssignmentIDs {
			if a != "" {
				st.Known.Add(AssignmentID(a))
			}
		}
		for _, a := range sd.CompletedAssignmentIDs {
			if a != "" {
				st.Completed.Add(AssignmentID(a))
			}
		}
		st.Repair()
		state.Students[StudentID(id)] = st
	}
	return state, nil
}

func idStrings(ids []AssignmentID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
