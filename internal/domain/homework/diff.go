package homework

// ══════════════════════════════════════════════════════════════════════════════
// DIFF ENGINE
// Чистая функция без ввода-вывода.
// ══════════════════════════════════════════════════════════════════════════════

// AppearedRecord - задание, впервые увиденное у студента.
type AppearedRecord struct {
	Student    Student
	Assignment Assignment
}

// CompletedRecord - задание, впервые увиденное сданным.
type CompletedRecord struct {
	Student    Student
	Assignment Assignment
	Submission Submission
}

// DiffResult - результат сравнения снапшота с предыдущим состоянием.
type DiffResult struct {
	Appeared  []AppearedRecord
	Completed []CompletedRecord

	// Next - обновлённое состояние для сохранения.
	Next *PersistedState

	// Skipped - количество пропущенных некорректных записей.
	Skipped int
}

// HasChanges возвращает true, если есть хотя бы один переход.
func (r DiffResult) HasChanges() bool {
	return len(r.Appeared) > 0 || len(r.Completed) > 0
}

// Diff сравнивает снапшот с предыдущим состоянием.
//
// Для каждого студента снапшота, в порядке перечисления:
//  1. Задание, которого нет в known, даёт запись appeared и попадает в known.
//  2. Задание со сданной работой, которое есть в known, но нет в completed,
//     даёт запись completed и попадает в completed.
//
// Задания и студенты, отсутствующие в снапшоте, переносятся в Next без
// изменений. prior не изменяется.
func Diff(prior *PersistedState, snap Snapshot) DiffResult {
	next := prior.Clone()
	next.Version = CurrentStateVersion

	result := DiffResult{Next: next}

	for _, ss := range snap.Students {
		if ss.Student.ID.IsEmpty() {
			result.Skipped++
			continue
		}

		st, ok := next.Students[ss.Student.ID]
		if !ok || st == nil {
			st = NewPerStudentState()
			next.Students[ss.Student.ID] = st
		}

		result.Skipped += countMalformedSubmissions(ss.Submissions)

		for _, a := range ss.Assignments {
			if a.ID.IsEmpty() {
				result.Skipped++
				continue
			}

			if !st.Known.Has(a.ID) {
				st.Known.Add(a.ID)
				result.Appeared = append(result.Appeared, AppearedRecord{
					Student:    ss.Student,
					Assignment: a,
				})
			}

			sub, ok := ss.Submissions[a.ID]
			if !ok || !validSubmission(a.ID, sub) || !sub.IsCompleted() {
				continue
			}
			if st.Completed.Has(a.ID) {
				continue
			}
			st.Completed.Add(a.ID)
			result.Completed = append(result.Completed, CompletedRecord{
				Student:    ss.Student,
				Assignment: a,
				Submission: sub,
			})
		}
	}

	return result
}

// validSubmission отклоняет сдачи, чей AssignmentID противоречит ключу.
// Пустой AssignmentID допустим: ключ карты считается источником истины.
func validSubmission(key AssignmentID, sub Submission) bool {
	return sub.AssignmentID.IsEmpty() || sub.AssignmentID == key
}

func countMalformedSubmissions(subs map[AssignmentID]Submission) int {
	n := 0
	for key, sub := range subs {
		if key.IsEmpty() || !validSubmission(key, sub) {
			n++
		}
	}
	return n
}
