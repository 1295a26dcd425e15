package recurrence

import (
	"time"

	"taskhub-backend/internal/recurrence/duration"
	"taskhub-backend/internal/task/domain"
)

// Severity classifies how disruptive a proposed change to a recurring series
// is. Once elevated within a single diff pass it never downgrades.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMinor
	SeverityMajor
)

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	default:
		return "none"
	}
}

// TaskUpdate is a sparse task mutation: nil fields are untouched.
type TaskUpdate struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	Priority    *domain.Priority   `json:"priority,omitempty"`
	Status      *domain.TaskStatus `json:"status,omitempty"`
	Category    *string            `json:"category,omitempty"`
	Assignees   *[]string          `json:"assignees,omitempty"`
	StartDate   *time.Time         `json:"start_date,omitempty"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	Duration    *duration.Duration `json:"duration,omitempty"`
	Pattern     *Pattern           `json:"pattern,omitempty"`
}

// ChangeSet is the structured diff between a task/pattern and a proposed
// update. The scope engine combines Severity with the three recurrence
// booleans to decide whether the pattern record needs a version bump and
// rule regeneration.
type ChangeSet struct {
	HasPatternChanges      bool
	HasDurationChanges     bool
	HasTimingChanges       bool
	HasNonRecurringChanges bool
	Severity               Severity
}

func (c *ChangeSet) elevate(s Severity) {
	if s > c.Severity {
		c.Severity = s
	}
}

// NeedsRegeneration reports whether the pattern record requires a version
// bump and rule re-derivation, independent of scope.
func (c ChangeSet) NeedsRegeneration() bool {
	return c.Severity != SeverityNone &&
		(c.HasPatternChanges || c.HasDurationChanges || c.HasTimingChanges)
}

// Classify diffs a proposed update against the current task and its pattern
// record (nil for tasks without one).
func Classify(task *domain.Task, record *domain.RecurrencePatternRecord, upd TaskUpdate) ChangeSet {
	cs := ChangeSet{}

	if upd.Pattern != nil {
		cs.HasPatternChanges = true
		current := currentPattern(record)
		switch {
		case current == nil:
			// Adding a pattern where none existed.
			cs.elevate(SeverityMajor)
		case current.Frequency != upd.Pattern.Frequency:
			cs.elevate(SeverityMajor)
		case abs(current.Interval-upd.Pattern.Interval) > 1:
			cs.elevate(SeverityMajor)
		case patternFieldsDiffer(*current, *upd.Pattern):
			cs.elevate(SeverityMinor)
		default:
			cs.HasPatternChanges = false
		}
	}

	if upd.Duration != nil {
		switch {
		case task.Duration == nil:
			cs.HasDurationChanges = true
			cs.elevate(SeverityMajor)
		case *task.Duration != *upd.Duration:
			cs.HasDurationChanges = true
			cs.elevate(SeverityMinor)
		}
	}
	// An explicit due-date shift on a duration-backed task implies a new
	// duration, since the two representations are kept consistent.
	if upd.DueDate != nil && task.Duration != nil &&
		(task.DueDate == nil || !task.DueDate.Equal(*upd.DueDate)) {
		cs.HasDurationChanges = true
		cs.elevate(SeverityMinor)
	}

	if upd.StartDate != nil && !task.StartDate.Equal(*upd.StartDate) {
		cs.HasTimingChanges = true
		cs.elevate(SeverityMinor)
	}

	cs.HasNonRecurringChanges = nonRecurringFieldsDiffer(task, upd)

	return cs
}

func currentPattern(record *domain.RecurrencePatternRecord) *Pattern {
	if record == nil {
		return nil
	}
	p, err := RuleToPattern(record.CanonicalRule)
	if err != nil {
		return nil
	}
	return &p
}

func patternFieldsDiffer(a, b Pattern) bool {
	if a.Interval != b.Interval || a.DayOfMonth != b.DayOfMonth {
		return true
	}
	if !daysEqual(a.DaysOfWeek, b.DaysOfWeek) {
		return true
	}
	if (a.EndDate == nil) != (b.EndDate == nil) {
		return true
	}
	if a.EndDate != nil && !a.EndDate.Equal(*b.EndDate) {
		return true
	}
	if (a.EndOccurrences == nil) != (b.EndOccurrences == nil) {
		return true
	}
	if a.EndOccurrences != nil && *a.EndOccurrences != *b.EndOccurrences {
		return true
	}
	return false
}

// daysEqual compares day-of-week selectors as sets.
func daysEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]bool, len(a))
	for _, d := range a {
		seen[d] = true
	}
	for _, d := range b {
		if !seen[d] {
			return false
		}
	}
	return true
}

func nonRecurringFieldsDiffer(task *domain.Task, upd TaskUpdate) bool {
	if upd.Title != nil && *upd.Title != task.Title {
		return true
	}
	if upd.Description != nil && *upd.Description != task.Description {
		return true
	}
	if upd.Priority != nil && *upd.Priority != task.Priority {
		return true
	}
	if upd.Status != nil && *upd.Status != task.Status {
		return true
	}
	if upd.Category != nil && *upd.Category != task.Category {
		return true
	}
	if upd.Assignees != nil && !stringsEqual(*upd.Assignees, task.Assignees) {
		return true
	}
	return false
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
