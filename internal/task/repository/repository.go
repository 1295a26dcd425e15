package repository

import (
	"time"

	"taskhub-backend/internal/recurrence"
	"taskhub-backend/internal/task/domain"
)

// TaskRepository extends the engine's task store with the query surface the
// HTTP layer and the reminder scheduler need.
type TaskRepository interface {
	recurrence.TaskStore

	// FindByUserID finds all tasks for a user with optional status filter
	FindByUserID(userID string, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, int64, error)

	// FindPendingReminders finds tasks that need reminder notifications
	// Returns tasks where reminder_at <= now AND reminder_sent = false AND status != completed
	FindPendingReminders(now time.Time) ([]*domain.Task, error)

	// MarkReminderSent marks a task's reminder as sent
	MarkReminderSent(id string) error
}

// PatternRepository is the full pattern-record store.
type PatternRepository interface {
	recurrence.PatternStore
}
