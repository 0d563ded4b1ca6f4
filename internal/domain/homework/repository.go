package homework

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence и infrastructure/service.
// ══════════════════════════════════════════════════════════════════════════════

// StateRepository - хранилище состояния отслеживания.
type StateRepository interface {
	// Load читает состояние целиком.
	// Возвращает ErrStateNotFound, если состояние ещё не сохранялось,
	// ErrStateCorrupt или ErrStateVersionMismatch при повреждённых данных.
	Load(ctx context.Context) (*PersistedState, error)

	// Save атомарно заменяет состояние целиком.
	Save(ctx context.Context, state *PersistedState) error
}

// RosterRepository - хранилище имён студентов последнего опроса.
// Хранится отдельно от PersistedState, чтобы не менять его формат.
type RosterRepository interface {
	// LoadRoster возвращает пустой список, если ростер ещё не сохранялся.
	LoadRoster(ctx context.Context) ([]Student, error)
	SaveRoster(ctx context.Context, roster []Student) error
}

// SnapshotSource - источник снапшота (Canvas API).
// Загрузка выполняется по принципу "всё или ничего": ошибка по любому
// студенту возвращается как ошибка всего цикла.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (Snapshot, error)
}
