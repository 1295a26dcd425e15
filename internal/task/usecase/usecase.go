package usecase

import (
	"taskhub-backend/internal/activity"
	"taskhub-backend/internal/recurrence"
	"taskhub-backend/internal/recurrence/duration"
	"taskhub-backend/internal/task/domain"
)

// TaskUsecase defines the interface for task business logic
type TaskUsecase interface {
	// CreateTask creates a new task; a pattern in the input creates a
	// recurring series atomically.
	CreateTask(userID string, input CreateTaskInput) (*domain.Task, *domain.RecurrencePatternRecord, error)

	// GetTaskByID retrieves a task by ID (with ownership check)
	GetTaskByID(userID, taskID string) (*domain.Task, error)

	// GetUserTasks retrieves all tasks for a user with optional status filter
	GetUserTasks(userID string, status *string, limit, offset int) ([]*domain.Task, int64, error)

	// UpdateTask applies a scoped update through the recurrence engine
	UpdateTask(userID, taskID, scope string, upd recurrence.TaskUpdate) (*recurrence.EditResult, error)

	// DeleteTask applies a scoped delete through the recurrence engine
	DeleteTask(userID, taskID, scope string) (*recurrence.DeleteResult, error)

	// PreviewScope returns the read-only impact summary for an update
	PreviewScope(userID, taskID, scope string, upd recurrence.TaskUpdate) (*recurrence.Preview, error)

	// GetTaskActivity returns the most recent activity entries for a task
	GetTaskActivity(userID, taskID string, limit int) ([]*activity.Entry, error)
}

// CreateTaskInput carries the fields accepted when creating a task. Dates
// arrive as RFC 3339 strings from the HTTP layer.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	Category    string
	Assignees   []string
	StartDate   *string
	DueDate     *string
	ReminderAt  *string
	Duration    *duration.Duration
	Pattern     *recurrence.Pattern
}
