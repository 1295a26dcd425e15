package domain

import (
	"time"

	"taskhub-backend/internal/recurrence/duration"
)

// Priority represents task priority level
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// RecurrenceState describes a task's position relative to a recurring series.
type RecurrenceState string

const (
	// StateStandalone: plain task, no series involvement.
	StateStandalone RecurrenceState = "standalone"
	// StateSeriesRoot: the original recurring task owning the pattern record.
	StateSeriesRoot RecurrenceState = "series_root"
	// StateDetachedInstance: carved out of a series, standalone from then on
	// but keeping a weak back-reference to its root.
	StateDetachedInstance RecurrenceState = "detached_instance"
)

// Task represents a to-do item, either standalone or part of a recurring series
type Task struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	UserID      string     `json:"user_id" gorm:"index;not null"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority" gorm:"default:medium"`
	Status      TaskStatus `json:"status" gorm:"default:pending"`
	Category    string     `json:"category,omitempty"`
	Assignees   []string   `json:"assignees,omitempty" gorm:"serializer:json"`

	StartDate time.Time          `json:"start_date"`
	DueDate   *time.Time         `json:"due_date,omitempty"`
	Duration  *duration.Duration `json:"duration,omitempty" gorm:"serializer:json"`

	// Recurrence linkage. IsRecurring marks the series root; ParentTaskID is
	// the weak back-reference carried by detached instances. The two are
	// mutually exclusive on one task.
	IsRecurring          bool       `json:"is_recurring" gorm:"default:false"`
	RecurringPatternID   *string    `json:"recurring_pattern_id,omitempty" gorm:"index"`
	ParentTaskID         *string    `json:"parent_task_id,omitempty" gorm:"index"`
	InstanceNumber       int        `json:"instance_number,omitempty"`
	RecurrenceVersion    int        `json:"recurrence_version" gorm:"default:1"`
	LastRecurrenceUpdate *time.Time `json:"last_recurrence_update,omitempty"`

	ReminderAt   *time.Time `json:"reminder_at,omitempty"`
	ReminderSent bool       `json:"reminder_sent" gorm:"default:false"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// State classifies the task for the edit/delete scope machinery.
func (t *Task) State() RecurrenceState {
	switch {
	case t.ParentTaskID != nil:
		return StateDetachedInstance
	case t.IsRecurring:
		return StateSeriesRoot
	default:
		return StateStandalone
	}
}

// SyncDueDate recomputes DueDate from StartDate + Duration. The two
// representations are always kept consistent; this is the one place the
// derivation lives.
func (t *Task) SyncDueDate() {
	if t.Duration == nil {
		return
	}
	due := t.Duration.AddToDate(t.StartDate)
	t.DueDate = &due
}
