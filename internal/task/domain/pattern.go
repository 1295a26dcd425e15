package domain

import (
	"time"

	"taskhub-backend/internal/recurrence/duration"
)

// RecurrencePatternRecord is the persisted, versioned state of one recurring
// series. Exactly one exists per series root task. It is deactivated, not
// deleted, when occurrences run out, so instance counters survive for
// reporting; it is deleted only when the whole series is deleted.
type RecurrencePatternRecord struct {
	ID     string `json:"id" gorm:"primaryKey"`
	TaskID string `json:"task_id" gorm:"index;not null"`

	CanonicalRule    string            `json:"canonical_rule" gorm:"not null"`
	InstanceDuration duration.Duration `json:"instance_duration" gorm:"serializer:json"`
	Timezone         string            `json:"timezone" gorm:"default:UTC"`

	NextDue *time.Time `json:"next_due,omitempty"`
	// LastGenerated is the cursor floor: the latest occurrence consumed by a
	// detach or a skip. NextDue never moves at or below it.
	LastGenerated *time.Time `json:"last_generated,omitempty"`

	PatternVersion        int  `json:"pattern_version" gorm:"default:1"`
	IsActive              bool `json:"is_active" gorm:"default:true"`
	TotalInstancesCreated int  `json:"total_instances_created" gorm:"default:0"`

	LastInstanceDate *time.Time `json:"last_instance_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	EndOccurrences   *int       `json:"end_occurrences,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
