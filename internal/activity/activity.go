package activity

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entry is one row in the activity log, written after successful mutations.
type Entry struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	TaskID    string    `json:"task_id" gorm:"index"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Entry) TableName() string { return "activity_entries" }

// Repository is the activity log data access surface.
type Repository interface {
	Record(entry *Entry) error
	FindByTaskID(taskID string, limit int) ([]*Entry, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM-based activity Repository
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Record(entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()
	return r.db.Create(entry).Error
}

func (r *gormRepository) FindByTaskID(taskID string, limit int) ([]*Entry, error) {
	var entries []*Entry
	err := r.db.Where("task_id = ?", taskID).
		Order("created_at DESC").Limit(limit).Find(&entries).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return entries, nil
}
