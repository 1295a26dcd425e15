package recurrence

import (
	"time"

	"taskhub-backend/internal/task/domain"
)

// TaskStore is the narrow persistence surface the engine needs for tasks.
// Find methods return (nil, nil) when the record does not exist.
type TaskStore interface {
	FindByID(id string) (*domain.Task, error)
	FindByParentID(parentID string) ([]*domain.Task, error)
	Create(task *domain.Task) error
	Update(task *domain.Task) error
	// UpdateVersioned persists the task only if its stored recurrence_version
	// still equals expectedVersion, otherwise *StaleVersionError.
	UpdateVersioned(task *domain.Task, expectedVersion int) error
	Delete(id string) error
}

// PatternStore is the persistence surface for recurrence pattern records.
type PatternStore interface {
	FindByID(id string) (*domain.RecurrencePatternRecord, error)
	FindByTaskID(taskID string) (*domain.RecurrencePatternRecord, error)
	FindAll() ([]*domain.RecurrencePatternRecord, error)
	Create(record *domain.RecurrencePatternRecord) error
	Update(record *domain.RecurrencePatternRecord) error
	// UpdateVersioned persists the record only if its stored pattern_version
	// still equals expectedVersion, otherwise *StaleVersionError.
	UpdateVersioned(record *domain.RecurrencePatternRecord, expectedVersion int) error
	Delete(id string) error
}

// Store bundles the two repositories behind one transactional boundary.
// Atomically runs fn against a store bound to a single transaction; any
// error rolls every touched entity back, so partial application of a scope
// operation cannot be observed.
type Store interface {
	Tasks() TaskStore
	Patterns() PatternStore
	Atomically(fn func(Store) error) error
}

// Clock supplies the current time; injected so scenario tests can pin it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Event describes a committed series mutation, handed to the notification
// sink after the transaction closes.
type Event struct {
	Type   string // e.g. "series_created", "series_edited", "series_deleted"
	UserID string
	TaskID string
	Detail string
}

// Notifier receives post-commit events. Delivery is best-effort: failures
// are logged by the engine and never propagated to the caller.
type Notifier interface {
	Notify(event Event) error
}
