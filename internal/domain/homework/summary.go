package homework

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY
// Проекция PersistedState для сенсоров и UI. Не сохраняется.
// ══════════════════════════════════════════════════════════════════════════════

// StudentSummary - счётчики заданий одного студента.
type StudentSummary struct {
	Name      string `json:"name"`
	Known     int    `json:"known_assignments"`
	Completed int    `json:"completed_assignments"`
	Pending   int    `json:"pending_assignments"`
}

// Summary - счётчики по всем студентам.
type Summary struct {
	Students       map[StudentID]StudentSummary `json:"students"`
	TotalKnown     int                          `json:"total_known_assignments"`
	TotalCompleted int                          `json:"total_completed_assignments"`
	TotalPending   int                          `json:"total_pending_assignments"`
	StudentCount   int                          `json:"student_count"`
}

// Summarize строит сводку по состоянию. Имена берутся из roster
// последнего опроса; для студентов без имени используется "Student <id>".
// Студенты из roster без сохранённого состояния получают нулевые счётчики.
func Summarize(state *PersistedState, roster []Student) Summary {
	names := make(map[StudentID]Student, len(roster))
	for _, s := range roster {
		names[s.ID] = s
	}

	summary := Summary{Students: make(map[StudentID]StudentSummary)}

	if state != nil {
		for id, st := range state.Students {
			if st == nil {
				continue
			}
			known := st.Known.Len()
			pending := st.Pending()
			completed := known - pending

			student, ok := names[id]
			if !ok {
				student = Student{ID: id}
			}
			summary.Students[id] = StudentSummary{
				Name:      student.DisplayName(),
				Known:     known,
				Completed: completed,
				Pending:   pending,
			}
			summary.TotalKnown += known
			summary.TotalCompleted += completed
			summary.TotalPending += pending
		}
	}

	for _, s := range roster {
		if s.ID.IsEmpty() {
			continue
		}
		if _, ok := summary.Students[s.ID]; !ok {
			summary.Students[s.ID] = StudentSummary{Name: s.DisplayName()}
		}
	}

	summary.StudentCount = len(summary.Students)
	return summary
}
