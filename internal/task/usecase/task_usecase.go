package usecase

import (
	"errors"
	"time"

	"taskhub-backend/internal/activity"
	"taskhub-backend/internal/recurrence"
	"taskhub-backend/internal/task/domain"
	"taskhub-backend/internal/task/repository"

	"github.com/google/uuid"
)

// taskUsecase implements TaskUsecase interface
type taskUsecase struct {
	store       repository.Store
	engine      *recurrence.Engine
	activityLog activity.Repository
}

// NewTaskUsecase creates a new instance of taskUsecase
func NewTaskUsecase(store repository.Store, engine *recurrence.Engine, activityLog activity.Repository) TaskUsecase {
	return &taskUsecase{
		store:       store,
		engine:      engine,
		activityLog: activityLog,
	}
}

func (u *taskUsecase) CreateTask(userID string, input CreateTaskInput) (*domain.Task, *domain.RecurrencePatternRecord, error) {
	now := time.Now()
	task := &domain.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Assignees:   input.Assignees,
		Priority:    parsePriority(input.Priority),
		Status:      domain.TaskStatusPending,
		StartDate:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if input.StartDate != nil && *input.StartDate != "" {
		if t, err := time.Parse(time.RFC3339, *input.StartDate); err == nil {
			task.StartDate = t
		}
	}
	if input.ReminderAt != nil && *input.ReminderAt != "" {
		if t, err := time.Parse(time.RFC3339, *input.ReminderAt); err == nil {
			task.ReminderAt = &t
		}
	}

	// Recurring path: the engine owns task + pattern creation atomically.
	if input.Pattern != nil {
		if input.Duration == nil {
			return nil, nil, &recurrence.ValidationError{Field: "duration", Reason: "required for recurring tasks"}
		}
		task, record, err := u.engine.CreateSeries(task, *input.Pattern, *input.Duration)
		if err != nil {
			return nil, nil, err
		}
		return task, record, nil
	}

	// One-off path: keep the dueDate/duration representations consistent.
	if input.Duration != nil {
		if err := input.Duration.Validate(); err != nil {
			return nil, nil, &recurrence.ValidationError{Field: "duration", Reason: err.Error()}
		}
		d := *input.Duration
		task.Duration = &d
		task.SyncDueDate()
	} else if input.DueDate != nil && *input.DueDate != "" {
		if t, err := time.Parse(time.RFC3339, *input.DueDate); err == nil {
			task.DueDate = &t
		}
	}

	if err := u.store.TaskRepo().Create(task); err != nil {
		return nil, nil, err
	}
	return task, nil, nil
}

func (u *taskUsecase) GetTaskByID(userID, taskID string) (*domain.Task, error) {
	task, err := u.store.TaskRepo().FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errors.New("task not found")
	}
	if task.UserID != userID {
		return nil, errors.New("unauthorized")
	}
	return task, nil
}

func (u *taskUsecase) GetUserTasks(userID string, status *string, limit, offset int) ([]*domain.Task, int64, error) {
	var statusFilter *domain.TaskStatus
	if status != nil && *status != "" {
		s := domain.TaskStatus(*status)
		statusFilter = &s
	}
	return u.store.TaskRepo().FindByUserID(userID, statusFilter, limit, offset)
}

func (u *taskUsecase) UpdateTask(userID, taskID, scope string, upd recurrence.TaskUpdate) (*recurrence.EditResult, error) {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return nil, err
	}
	parsed, err := recurrence.ParseScope(defaultScope(scope))
	if err != nil {
		return nil, err
	}
	return u.engine.EditSeries(task, upd, parsed)
}

func (u *taskUsecase) DeleteTask(userID, taskID, scope string) (*recurrence.DeleteResult, error) {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return nil, err
	}
	parsed, err := recurrence.ParseScope(defaultScope(scope))
	if err != nil {
		return nil, err
	}
	return u.engine.DeleteSeries(task, parsed)
}

func (u *taskUsecase) PreviewScope(userID, taskID, scope string, upd recurrence.TaskUpdate) (*recurrence.Preview, error) {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return nil, err
	}
	parsed, err := recurrence.ParseScope(defaultScope(scope))
	if err != nil {
		return nil, err
	}
	return u.engine.PreviewScope(task, parsed, upd)
}

func (u *taskUsecase) GetTaskActivity(userID, taskID string, limit int) ([]*activity.Entry, error) {
	if _, err := u.GetTaskByID(userID, taskID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.activityLog.FindByTaskID(taskID, limit)
}

func defaultScope(scope string) string {
	if scope == "" {
		return string(recurrence.ScopeThisInstance)
	}
	return scope
}

func parsePriority(p string) domain.Priority {
	switch p {
	case "high":
		return domain.PriorityHigh
	case "low":
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}
