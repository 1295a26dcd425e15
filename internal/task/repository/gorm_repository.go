package repository

import (
	"errors"
	"time"

	"taskhub-backend/internal/recurrence"
	"taskhub-backend/internal/task/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormTaskRepository implements TaskRepository using GORM
type gormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GORM-based TaskRepository
func NewGormTaskRepository(db *gorm.DB) TaskRepository {
	return &gormTaskRepository{db: db}
}

func (r *gormTaskRepository) Create(task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.RecurrenceVersion < 1 {
		task.RecurrenceVersion = 1
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = time.Now()
	}
	return r.db.Create(task).Error
}

func (r *gormTaskRepository) FindByID(id string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *gormTaskRepository) FindByParentID(parentID string) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.Where("parent_task_id = ?", parentID).
		Order("start_date ASC").Find(&tasks).Error
	return tasks, err
}

func (r *gormTaskRepository) FindByUserID(userID string, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, int64, error) {
	var tasks []*domain.Task
	var total int64

	query := r.db.Model(&domain.Task{}).Where("user_id = ?", userID)

	if status != nil {
		query = query.Where("status = ?", *status)
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Fetch with pagination, ordered by due_date (nulls last), then created_at
	err := query.Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC, created_at DESC").
		Limit(limit).Offset(offset).Find(&tasks).Error

	return tasks, total, err
}

func (r *gormTaskRepository) Update(task *domain.Task) error {
	task.UpdatedAt = time.Now()
	return r.db.Save(task).Error
}

// UpdateVersioned saves the task only when nobody bumped its recurrence
// version since the caller loaded it.
func (r *gormTaskRepository) UpdateVersioned(task *domain.Task, expectedVersion int) error {
	task.UpdatedAt = time.Now()
	res := r.db.Model(&domain.Task{}).
		Where("id = ? AND recurrence_version = ?", task.ID, expectedVersion).
		Select("*").Updates(task)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &recurrence.StaleVersionError{Entity: "task", ID: task.ID, Observed: expectedVersion}
	}
	return nil
}

func (r *gormTaskRepository) Delete(id string) error {
	return r.db.Delete(&domain.Task{}, "id = ?", id).Error
}

func (r *gormTaskRepository) FindPendingReminders(now time.Time) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.Where("reminder_at <= ? AND reminder_sent = ? AND status != ?",
		now, false, domain.TaskStatusCompleted).Find(&tasks).Error
	return tasks, err
}

func (r *gormTaskRepository) MarkReminderSent(id string) error {
	return r.db.Model(&domain.Task{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"reminder_sent": true,
			"updated_at":    time.Now(),
		}).Error
}

// gormPatternRepository implements PatternRepository using GORM
type gormPatternRepository struct {
	db *gorm.DB
}

// NewGormPatternRepository creates a new GORM-based PatternRepository
func NewGormPatternRepository(db *gorm.DB) PatternRepository {
	return &gormPatternRepository{db: db}
}

func (r *gormPatternRepository) Create(record *domain.RecurrencePatternRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.PatternVersion < 1 {
		record.PatternVersion = 1
	}
	record.CreatedAt = time.Now()
	record.UpdatedAt = time.Now()
	return r.db.Create(record).Error
}

func (r *gormPatternRepository) FindByID(id string) (*domain.RecurrencePatternRecord, error) {
	var record domain.RecurrencePatternRecord
	err := r.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *gormPatternRepository) FindByTaskID(taskID string) (*domain.RecurrencePatternRecord, error) {
	var record domain.RecurrencePatternRecord
	err := r.db.Where("task_id = ?", taskID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *gormPatternRepository) FindAll() ([]*domain.RecurrencePatternRecord, error) {
	var records []*domain.RecurrencePatternRecord
	err := r.db.Find(&records).Error
	return records, err
}

func (r *gormPatternRepository) Update(record *domain.RecurrencePatternRecord) error {
	record.UpdatedAt = time.Now()
	return r.db.Save(record).Error
}

// UpdateVersioned saves the record only when its pattern version is still
// the one the caller observed.
func (r *gormPatternRepository) UpdateVersioned(record *domain.RecurrencePatternRecord, expectedVersion int) error {
	record.UpdatedAt = time.Now()
	res := r.db.Model(&domain.RecurrencePatternRecord{}).
		Where("id = ? AND pattern_version = ?", record.ID, expectedVersion).
		Select("*").Updates(record)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &recurrence.StaleVersionError{Entity: "pattern", ID: record.ID, Observed: expectedVersion}
	}
	return nil
}

func (r *gormPatternRepository) Delete(id string) error {
	return r.db.Delete(&domain.RecurrencePatternRecord{}, "id = ?", id).Error
}

// Store widens the engine's transactional store with the full repository
// surface for the HTTP layer and the reminder scheduler.
type Store interface {
	recurrence.Store
	TaskRepo() TaskRepository
	PatternRepo() PatternRepository
}

// gormStore bundles both repositories behind one transactional boundary, so
// the recurrence engine sees all-or-nothing writes.
type gormStore struct {
	db       *gorm.DB
	tasks    TaskRepository
	patterns PatternRepository
}

// NewGormStore builds the store used by the engine and usecases.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{
		db:       db,
		tasks:    NewGormTaskRepository(db),
		patterns: NewGormPatternRepository(db),
	}
}

func (s *gormStore) Tasks() recurrence.TaskStore       { return s.tasks }
func (s *gormStore) Patterns() recurrence.PatternStore { return s.patterns }

func (s *gormStore) TaskRepo() TaskRepository       { return s.tasks }
func (s *gormStore) PatternRepo() PatternRepository { return s.patterns }

func (s *gormStore) Atomically(fn func(recurrence.Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}
