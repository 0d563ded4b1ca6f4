// Package homework содержит доменную модель отслеживания домашних заданий Canvas.
//
// Пакет определяет:
//
//   - Модель снапшота: Student, Assignment, Submission, StudentSnapshot, Snapshot
//   - Сохраняемое состояние: PersistedState, PerStudentState, IDSet
//   - Движок сравнения (Diff): вычисляет появившиеся и выполненные задания
//   - Сводку (Summary): известные, выполненные и ожидающие задания по студентам
//   - Интерфейсы: StateRepository, SnapshotSource
//
// # Инварианты
//
// Для каждого студента completed ⊆ known. Задание, впервые увиденное уже
// сданным, попадает в оба множества в одном цикле: сначала appeared, затем completed.
//
// Известные задания никогда не забываются. Если задание исчезло из снапшота
// и вернулось позже, повторного события appeared не будет.
//
// # Пример использования
//
//	next := Diff(prior, snapshot)
//	for _, rec := range next.Appeared {
//	    emitter.Emit(KindAppeared, rec.Student, rec.Assignment, nil)
//	}
//	store.Save(ctx, next.Next)
//
// Пакет не имеет внешних зависимостей: только стандартная библиотека Go.
package homework
