package homework

import (
	"sort"
)

// CurrentStateVersion - версия схемы сохраняемого состояния.
// Несовпадение версии при загрузке приводит к полному сбросу.
const CurrentStateVersion = 1

// ══════════════════════════════════════════════════════════════════════════════
// ID SET
// ══════════════════════════════════════════════════════════════════════════════

// IDSet - множество идентификаторов заданий.
type IDSet map[AssignmentID]struct{}

// NewIDSet создаёт множество из списка ID.
func NewIDSet(ids ...AssignmentID) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has проверяет наличие ID.
func (s IDSet) Has(id AssignmentID) bool {
	_, ok := s[id]
	return ok
}

// Add добавляет ID.
func (s IDSet) Add(id AssignmentID) {
	s[id] = struct{}{}
}

// Len возвращает размер множества.
func (s IDSet) Len() int {
	return len(s)
}

// Sorted возвращает отсортированный список ID.
func (s IDSet) Sorted() []AssignmentID {
	ids := make([]AssignmentID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone возвращает копию множества.
func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// IsSubsetOf проверяет, что все элементы s есть в other.
func (s IDSet) IsSubsetOf(other IDSet) bool {
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// PER-STUDENT STATE
// ══════════════════════════════════════════════════════════════════════════════

// PerStudentState - известные и выполненные задания одного студента.
type PerStudentState struct {
	Known     IDSet
	Completed IDSet
}

// NewPerStudentState создаёт пустое состояние студента.
func NewPerStudentState() *PerStudentState {
	return &PerStudentState{
		Known:     make(IDSet),
		Completed: make(IDSet),
	}
}

// Pending возвращает количество известных, но не выполненных заданий.
func (p *PerStudentState) Pending() int {
	n := 0
	for id := range p.Known {
		if !p.Completed.Has(id) {
			n++
		}
	}
	return n
}

// Clone возвращает глубокую копию.
func (p *PerStudentState) Clone() *PerStudentState {
	return &PerStudentState{
		Known:     p.Known.Clone(),
		Completed: p.Completed.Clone(),
	}
}

// Repair восстанавливает инвариант completed ⊆ known.
// Возвращает количество добавленных в known ID.
func (p *PerStudentState) Repair() int {
	if p.Known == nil {
		p.Known = make(IDSet)
	}
	if p.Completed == nil {
		p.Completed = make(IDSet)
	}
	added := 0
	for id := range p.Completed {
		if !p.Known.Has(id) {
			p.Known.Add(id)
			added++
		}
	}
	return added
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTED STATE
// ══════════════════════════════════════════════════════════════════════════════

// PersistedState - состояние отслеживания всех студентов.
// Между циклами единственной живой ссылкой владеет оркестратор опроса.
type PersistedState struct {
	Version  int
	Students map[StudentID]*PerStudentState
}

// NewPersistedState создаёт пустое состояние текущей версии.
func NewPersistedState() *PersistedState {
	return &PersistedState{
		Version:  CurrentStateVersion,
		Students: make(map[StudentID]*PerStudentState),
	}
}

// Clone возвращает глубокую копию состояния.
func (s *PersistedState) Clone() *PersistedState {
	if s == nil {
		return NewPersistedState()
	}
	out := &PersistedState{
		Version:  s.Version,
		Students: make(map[StudentID]*PerStudentState, len(s.Students)),
	}
	for id, st := range s.Students {
		if st == nil {
			continue
		}
		out.Students[id] = st.Clone()
	}
	return out
}

// Student возвращает состояние студента или nil.
func (s *PersistedState) Student(id StudentID) *PerStudentState {
	if s == nil {
		return nil
	}
	return s.Students[id]
}

// StudentIDs возвращает отсортированный список студентов.
func (s *PersistedState) StudentIDs() []StudentID {
	ids := make([]StudentID, 0, len(s.Students))
	for id := range s.Students {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsEmpty проверяет, что состояние не содержит студентов.
func (s *PersistedState) IsEmpty() bool {
	return s == nil || len(s.Students) == 0
}

// Validate проверяет инвариант completed ⊆ known для всех студентов.
func (s *PersistedState) Validate() error {
	for id, st := range s.Students {
		if st == nil {
			continue
		}
		if !st.Completed.IsSubsetOf(st.Known) {
			return &InvariantError{StudentID: id}
		}
	}
	return nil
}
