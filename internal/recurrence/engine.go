package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskhub-backend/internal/recurrence/duration"
	"taskhub-backend/internal/task/domain"
	"taskhub-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Scope is the breadth of an edit/delete operation on a recurring series.
type Scope string

const (
	ScopeThisInstance  Scope = "this_instance"
	ScopeThisAndFuture Scope = "this_and_future"
	ScopeAllInstances  Scope = "all_instances"
)

// ParseScope validates a raw scope value from the API layer.
func ParseScope(raw string) (Scope, error) {
	switch Scope(raw) {
	case ScopeThisInstance, ScopeThisAndFuture, ScopeAllInstances:
		return Scope(raw), nil
	default:
		return "", &InvalidScopeError{Scope: raw}
	}
}

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrPatternNotFound = errors.New("recurrence pattern record not found")
)

// EditResult reports every entity an edit touched.
type EditResult struct {
	UpdatedTasks    []*domain.Task                    `json:"updated_tasks"`
	CreatedTasks    []*domain.Task                    `json:"created_tasks"`
	UpdatedPatterns []*domain.RecurrencePatternRecord `json:"updated_patterns"`
}

// DeleteResult reports every entity a delete removed or touched.
type DeleteResult struct {
	DeletedTaskIDs    []string                          `json:"deleted_task_ids"`
	DeletedPatternIDs []string                          `json:"deleted_pattern_ids"`
	UpdatedPatterns   []*domain.RecurrencePatternRecord `json:"updated_patterns"`
}

// Preview is a read-only impact summary for the UI, produced before commit.
type Preview struct {
	AffectedTaskIDs []string `json:"affected_task_ids"`
	Description     string   `json:"description"`
}

// Engine orchestrates scoped edits and deletes over recurring series. All
// mutations run inside the store's transactional boundary; the notification
// sink fires only after a successful commit and never fails the operation.
type Engine struct {
	store     Store
	clock     Clock
	sink      Notifier
	defaultTZ string
	log       *logrus.Entry
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.sink = n } }

// WithDefaultTimezone sets the timezone stamped on pattern records whose
// pattern carries none.
func WithDefaultTimezone(tz string) Option {
	return func(e *Engine) {
		if tz != "" {
			e.defaultTZ = tz
		}
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		clock:     systemClock{},
		defaultTZ: "UTC",
		log:       logger.WithComponent("RecurrenceEngine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateSeries marks a task recurring and creates its pattern record. The
// task row is created if it does not exist yet, so callers can hand in a
// brand-new task and get a single atomic write.
func (e *Engine) CreateSeries(task *domain.Task, p Pattern, instanceDuration duration.Duration) (*domain.Task, *domain.RecurrencePatternRecord, error) {
	if task.ParentTaskID != nil {
		return nil, nil, &ValidationError{Field: "task", Reason: "a detached instance cannot become a series root"}
	}
	if task.IsRecurring || task.RecurringPatternID != nil {
		return nil, nil, &ValidationError{Field: "task", Reason: "task is already a series root"}
	}
	if instanceDuration.IsZero() {
		return nil, nil, &ValidationError{Field: "duration", Reason: "required for recurring tasks"}
	}
	if err := instanceDuration.Validate(); err != nil {
		return nil, nil, &ValidationError{Field: "duration", Reason: err.Error()}
	}

	rule, err := PatternToRule(p, task.StartDate)
	if err != nil {
		return nil, nil, err
	}
	next, err := NextOccurrence(rule, task.StartDate)
	if err != nil {
		return nil, nil, err
	}

	tz := p.Timezone
	if tz == "" {
		tz = e.defaultTZ
	}
	now := e.clock.Now()

	record := &domain.RecurrencePatternRecord{
		ID:               uuid.New().String(),
		TaskID:           task.ID,
		CanonicalRule:    rule,
		InstanceDuration: instanceDuration,
		Timezone:         tz,
		NextDue:          next,
		PatternVersion:   1,
		IsActive:         next != nil,
		EndDate:          p.EndDate,
		EndOccurrences:   p.EndOccurrences,
	}

	err = e.store.Atomically(func(s Store) error {
		if task.ID == "" {
			task.ID = uuid.New().String()
			record.TaskID = task.ID
		}
		existing, err := s.Tasks().FindByID(task.ID)
		if err != nil {
			return err
		}

		d := instanceDuration
		task.Duration = &d
		task.SyncDueDate()
		task.IsRecurring = true
		task.RecurringPatternID = &record.ID
		if task.RecurrenceVersion < 1 {
			task.RecurrenceVersion = 1
		}
		task.LastRecurrenceUpdate = &now

		if err := s.Patterns().Create(record); err != nil {
			return err
		}
		if existing == nil {
			return s.Tasks().Create(task)
		}
		return s.Tasks().Update(task)
	})
	if err != nil {
		return nil, nil, err
	}

	e.notify(Event{Type: "series_created", UserID: task.UserID, TaskID: task.ID,
		Detail: fmt.Sprintf("recurring series created, next due %s", formatNextDue(record.NextDue))})
	return task, record, nil
}

// EditSeries applies a scoped update. The combination of task state and
// scope selects one cell of the edit matrix; validation of the proposed
// pattern happens before any entity is written.
func (e *Engine) EditSeries(task *domain.Task, upd TaskUpdate, scope Scope) (*EditResult, error) {
	if _, err := ParseScope(string(scope)); err != nil {
		return nil, err
	}
	if upd.Duration != nil {
		if err := upd.Duration.Validate(); err != nil {
			return nil, &ValidationError{Field: "duration", Reason: err.Error()}
		}
		if upd.Duration.IsZero() {
			return nil, &ValidationError{Field: "duration", Reason: "must have at least one non-zero component"}
		}
	}

	result := &EditResult{}
	err := e.store.Atomically(func(s Store) error {
		fresh, err := s.Tasks().FindByID(task.ID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return ErrTaskNotFound
		}
		if fresh.RecurrenceVersion != task.RecurrenceVersion {
			return &StaleVersionError{Entity: "task", ID: task.ID, Observed: task.RecurrenceVersion}
		}

		switch fresh.State() {
		case domain.StateStandalone:
			return e.editStandalone(s, fresh, upd, result)
		case domain.StateSeriesRoot:
			root, record, err := e.loadSeries(s, fresh)
			if err != nil {
				return err
			}
			switch scope {
			case ScopeThisInstance:
				return e.editRootThisInstance(s, root, record, upd, result)
			case ScopeThisAndFuture:
				return e.editRootThisAndFuture(s, root, record, upd, result)
			case ScopeAllInstances:
				return e.editAllInstances(s, root, record, upd, result)
			}
		case domain.StateDetachedInstance:
			switch scope {
			case ScopeThisInstance:
				return e.editInstanceThisInstance(s, fresh, upd, result)
			case ScopeThisAndFuture:
				return e.editInstanceThisAndFuture(s, fresh, upd, result)
			case ScopeAllInstances:
				root, record, err := e.resolveRoot(s, fresh)
				if err != nil {
					return err
				}
				return e.editAllInstances(s, root, record, upd, result)
			}
		}
		return &InvalidScopeError{Scope: string(scope)}
	})
	if err != nil {
		return nil, err
	}

	e.notify(Event{Type: "series_edited", UserID: task.UserID, TaskID: task.ID,
		Detail: fmt.Sprintf("scope %s: %d updated, %d created", scope, len(result.UpdatedTasks), len(result.CreatedTasks))})
	return result, nil
}

// editStandalone applies the update to a plain task. A pattern in the update
// promotes the task to a series root, which is the "adding a pattern where
// none existed" major change.
func (e *Engine) editStandalone(s Store, t *domain.Task, upd TaskUpdate, result *EditResult) error {
	if upd.Pattern != nil {
		instDur := t.Duration
		if upd.Duration != nil {
			instDur = upd.Duration
		}
		if instDur == nil || instDur.IsZero() {
			return &ValidationError{Field: "duration", Reason: "required for recurring tasks"}
		}
		applyFieldUpdates(t, upd)
		rule, err := PatternToRule(*upd.Pattern, t.StartDate)
		if err != nil {
			return err
		}
		next, err := NextOccurrence(rule, t.StartDate)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		record := &domain.RecurrencePatternRecord{
			ID:               uuid.New().String(),
			TaskID:           t.ID,
			CanonicalRule:    rule,
			InstanceDuration: *instDur,
			Timezone:         orDefault(upd.Pattern.Timezone, e.defaultTZ),
			NextDue:          next,
			PatternVersion:   1,
			IsActive:         next != nil,
			EndDate:          upd.Pattern.EndDate,
			EndOccurrences:   upd.Pattern.EndOccurrences,
		}
		if err := s.Patterns().Create(record); err != nil {
			return err
		}
		t.IsRecurring = true
		t.RecurringPatternID = &record.ID
		t.RecurrenceVersion++
		t.LastRecurrenceUpdate = &now
		t.UpdatedAt = now
		if err := s.Tasks().Update(t); err != nil {
			return err
		}
		result.UpdatedTasks = append(result.UpdatedTasks, t)
		result.UpdatedPatterns = append(result.UpdatedPatterns, record)
		return nil
	}

	applyFieldUpdates(t, upd)
	t.UpdatedAt = e.clock.Now()
	if err := s.Tasks().Update(t); err != nil {
		return err
	}
	result.UpdatedTasks = append(result.UpdatedTasks, t)
	return nil
}

// editRootThisInstance carves the current occurrence out of the series:
// clone the root into a detached instance, apply the update to the clone,
// and advance the series cursor past the skipped occurrence. The root's
// pattern version stays put.
func (e *Engine) editRootThisInstance(s Store, root *domain.Task, record *domain.RecurrencePatternRecord, upd TaskUpdate, result *EditResult) error {
	if !record.IsActive || record.NextDue == nil {
		// Inactive or exhausted series: this_instance is a no-op skip.
		e.log.WithField("task_id", root.ID).Debug("this_instance edit on inactive series skipped")
		return nil
	}
	occurrence := *record.NextDue

	// Duplicate-creation guard: a retry that already generated an instance
	// for this cursor position must not create a second one.
	if record.LastGenerated != nil && !record.LastGenerated.Before(occurrence) {
		e.log.WithField("task_id", root.ID).Debug("skip-instance already generated for cursor, no-op")
		return nil
	}

	clone := e.cloneForDetach(root, record, occurrence)
	applyFieldUpdates(clone, upd)

	next, err := NextOccurrence(record.CanonicalRule, occurrence)
	if err != nil {
		return err
	}
	expected := record.PatternVersion
	record.LastGenerated = &occurrence
	record.LastInstanceDate = &occurrence
	record.TotalInstancesCreated++
	record.NextDue = next
	if next == nil {
		record.IsActive = false
	}

	if err := s.Tasks().Create(clone); err != nil {
		return err
	}
	if err := s.Patterns().UpdateVersioned(record, expected); err != nil {
		return err
	}
	result.CreatedTasks = append(result.CreatedTasks, clone)
	result.UpdatedPatterns = append(result.UpdatedPatterns, record)
	return nil
}

// editInstanceThisInstance applies the update directly; a detached instance
// has no pattern interaction.
func (e *Engine) editInstanceThisInstance(s Store, inst *domain.Task, upd TaskUpdate, result *EditResult) error {
	applyFieldUpdates(inst, upd)
	inst.UpdatedAt = e.clock.Now()
	if err := s.Tasks().Update(inst); err != nil {
		return err
	}
	result.UpdatedTasks = append(result.UpdatedTasks, inst)
	return nil
}

// editRootThisAndFuture updates the root in place and, when the change set
// requires it, regenerates the rule and bumps the pattern version.
func (e *Engine) editRootThisAndFuture(s Store, root *domain.Task, record *domain.RecurrencePatternRecord, upd TaskUpdate, result *EditResult) error {
	cs := Classify(root, record, upd)

	newRule, err := e.candidateRule(root, record, upd, cs)
	if err != nil {
		return err
	}

	observed := root.RecurrenceVersion
	now := e.clock.Now()
	applyFieldUpdates(root, upd)
	root.UpdatedAt = now

	if cs.NeedsRegeneration() {
		expected := record.PatternVersion
		record.CanonicalRule = newRule
		if upd.Duration != nil {
			record.InstanceDuration = *upd.Duration
		} else if cs.HasDurationChanges && root.Duration != nil {
			// A due-date shift recomputed the duration during apply.
			record.InstanceDuration = *root.Duration
		}
		if upd.Pattern != nil {
			record.EndDate = upd.Pattern.EndDate
			record.EndOccurrences = upd.Pattern.EndOccurrences
			if upd.Pattern.Timezone != "" {
				record.Timezone = upd.Pattern.Timezone
			}
		}
		if err := e.recomputeCursor(record, root.StartDate); err != nil {
			return err
		}
		record.PatternVersion++
		if err := s.Patterns().UpdateVersioned(record, expected); err != nil {
			return err
		}
		root.RecurrenceVersion++
		root.LastRecurrenceUpdate = &now
		result.UpdatedPatterns = append(result.UpdatedPatterns, record)
	}

	if err := s.Tasks().UpdateVersioned(root, observed); err != nil {
		return err
	}
	result.UpdatedTasks = append(result.UpdatedTasks, root)
	return nil
}

// editInstanceThisAndFuture updates the detached instance; pattern fields in
// the update propagate to the root's record, since the instance itself no
// longer carries one.
func (e *Engine) editInstanceThisAndFuture(s Store, inst *domain.Task, upd TaskUpdate, result *EditResult) error {
	if upd.Pattern != nil {
		root, record, err := e.resolveRoot(s, inst)
		if err != nil {
			return err
		}
		rule, err := PatternToRule(*upd.Pattern, root.StartDate)
		if err != nil {
			return err
		}
		expected := record.PatternVersion
		record.CanonicalRule = rule
		record.EndDate = upd.Pattern.EndDate
		record.EndOccurrences = upd.Pattern.EndOccurrences
		if upd.Pattern.Timezone != "" {
			record.Timezone = upd.Pattern.Timezone
		}
		if err := e.recomputeCursor(record, root.StartDate); err != nil {
			return err
		}
		record.PatternVersion++
		if err := s.Patterns().UpdateVersioned(record, expected); err != nil {
			return err
		}
		now := e.clock.Now()
		rootObserved := root.RecurrenceVersion
		root.RecurrenceVersion++
		root.LastRecurrenceUpdate = &now
		if err := s.Tasks().UpdateVersioned(root, rootObserved); err != nil {
			return err
		}
		result.UpdatedTasks = append(result.UpdatedTasks, root)
		result.UpdatedPatterns = append(result.UpdatedPatterns, record)
	}

	return e.editInstanceThisInstance(s, inst, upd, result)
}

// editAllInstances updates the root (regenerating the pattern if needed) and
// pushes only the non-recurring field subset down to every existing instance.
func (e *Engine) editAllInstances(s Store, root *domain.Task, record *domain.RecurrencePatternRecord, upd TaskUpdate, result *EditResult) error {
	if err := e.editRootThisAndFuture(s, root, record, upd, result); err != nil {
		return err
	}

	instances, err := s.Tasks().FindByParentID(root.ID)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	for _, inst := range instances {
		if !applyNonRecurringUpdates(inst, upd) {
			continue
		}
		inst.UpdatedAt = now
		if err := s.Tasks().Update(inst); err != nil {
			return err
		}
		result.UpdatedTasks = append(result.UpdatedTasks, inst)
	}
	return nil
}

// DeleteSeries removes entities according to the scope matrix. Like edits,
// the whole operation is one transaction.
func (e *Engine) DeleteSeries(task *domain.Task, scope Scope) (*DeleteResult, error) {
	if _, err := ParseScope(string(scope)); err != nil {
		return nil, err
	}

	result := &DeleteResult{}
	err := e.store.Atomically(func(s Store) error {
		fresh, err := s.Tasks().FindByID(task.ID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return ErrTaskNotFound
		}
		if fresh.RecurrenceVersion != task.RecurrenceVersion {
			return &StaleVersionError{Entity: "task", ID: task.ID, Observed: task.RecurrenceVersion}
		}

		switch fresh.State() {
		case domain.StateStandalone:
			if err := s.Tasks().Delete(fresh.ID); err != nil {
				return err
			}
			result.DeletedTaskIDs = append(result.DeletedTaskIDs, fresh.ID)
			return nil

		case domain.StateSeriesRoot:
			root, record, err := e.loadSeries(s, fresh)
			if err != nil {
				return err
			}
			switch scope {
			case ScopeThisInstance:
				return e.deleteRootThisInstance(s, record, result)
			case ScopeThisAndFuture:
				return e.terminateSeries(s, root, record, result)
			case ScopeAllInstances:
				return e.deleteWholeSeries(s, root, record, result)
			}

		case domain.StateDetachedInstance:
			switch scope {
			case ScopeThisInstance:
				if err := s.Tasks().Delete(fresh.ID); err != nil {
					return err
				}
				result.DeletedTaskIDs = append(result.DeletedTaskIDs, fresh.ID)
				return nil
			case ScopeThisAndFuture:
				root, record, err := e.resolveRoot(s, fresh)
				if err != nil {
					return err
				}
				if err := s.Tasks().Delete(fresh.ID); err != nil {
					return err
				}
				result.DeletedTaskIDs = append(result.DeletedTaskIDs, fresh.ID)
				return e.terminateSeries(s, root, record, result)
			case ScopeAllInstances:
				root, record, err := e.resolveRoot(s, fresh)
				if err != nil {
					return err
				}
				return e.deleteWholeSeries(s, root, record, result)
			}
		}
		return &InvalidScopeError{Scope: string(scope)}
	})
	if err != nil {
		return nil, err
	}

	e.notify(Event{Type: "series_deleted", UserID: task.UserID, TaskID: task.ID,
		Detail: fmt.Sprintf("scope %s: %d tasks, %d patterns removed", scope, len(result.DeletedTaskIDs), len(result.DeletedPatternIDs))})
	return result, nil
}

// deleteRootThisInstance is a logical "skip one": the root is the series, so
// nothing is removed, only the cursor moves. The skipped occurrence is
// recorded as the cursor floor so a later rule regeneration cannot
// resurrect it.
func (e *Engine) deleteRootThisInstance(s Store, record *domain.RecurrencePatternRecord, result *DeleteResult) error {
	if !record.IsActive || record.NextDue == nil {
		return nil
	}
	occurrence := *record.NextDue
	next, err := NextOccurrence(record.CanonicalRule, occurrence)
	if err != nil {
		return err
	}
	expected := record.PatternVersion
	record.LastGenerated = &occurrence
	record.NextDue = next
	if next == nil {
		record.IsActive = false
	}
	if err := s.Patterns().UpdateVersioned(record, expected); err != nil {
		return err
	}
	result.UpdatedPatterns = append(result.UpdatedPatterns, record)
	return nil
}

// terminateSeries removes the pattern record and flips the root to a plain
// task; history already materialized as detached instances survives.
func (e *Engine) terminateSeries(s Store, root *domain.Task, record *domain.RecurrencePatternRecord, result *DeleteResult) error {
	if err := s.Patterns().Delete(record.ID); err != nil {
		return err
	}
	result.DeletedPatternIDs = append(result.DeletedPatternIDs, record.ID)

	observed := root.RecurrenceVersion
	now := e.clock.Now()
	root.IsRecurring = false
	root.RecurringPatternID = nil
	root.RecurrenceVersion++
	root.LastRecurrenceUpdate = &now
	root.UpdatedAt = now
	return s.Tasks().UpdateVersioned(root, observed)
}

// deleteWholeSeries removes the pattern record, every instance under the
// root, and the root itself.
func (e *Engine) deleteWholeSeries(s Store, root *domain.Task, record *domain.RecurrencePatternRecord, result *DeleteResult) error {
	if err := s.Patterns().Delete(record.ID); err != nil {
		return err
	}
	result.DeletedPatternIDs = append(result.DeletedPatternIDs, record.ID)

	instances, err := s.Tasks().FindByParentID(root.ID)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if err := s.Tasks().Delete(inst.ID); err != nil {
			return err
		}
		result.DeletedTaskIDs = append(result.DeletedTaskIDs, inst.ID)
	}
	if err := s.Tasks().Delete(root.ID); err != nil {
		return err
	}
	result.DeletedTaskIDs = append(result.DeletedTaskIDs, root.ID)
	return nil
}

// PreviewScope is the read-only impact summary used by the UI before commit.
func (e *Engine) PreviewScope(task *domain.Task, scope Scope, upd TaskUpdate) (*Preview, error) {
	if _, err := ParseScope(string(scope)); err != nil {
		return nil, err
	}
	fresh, err := e.store.Tasks().FindByID(task.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, ErrTaskNotFound
	}

	switch fresh.State() {
	case domain.StateStandalone:
		return &Preview{
			AffectedTaskIDs: []string{fresh.ID},
			Description:     "updates this task only",
		}, nil

	case domain.StateSeriesRoot:
		record, err := e.store.Patterns().FindByTaskID(fresh.ID)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, ErrPatternNotFound
		}
		return e.previewRoot(fresh, record, scope, upd)

	case domain.StateDetachedInstance:
		switch scope {
		case ScopeThisInstance:
			return &Preview{
				AffectedTaskIDs: []string{fresh.ID},
				Description:     "updates this occurrence only; the series is unaffected",
			}, nil
		case ScopeThisAndFuture:
			ids := []string{fresh.ID}
			desc := "updates this occurrence"
			if upd.Pattern != nil {
				ids = append(ids, *fresh.ParentTaskID)
				desc += " and propagates the new pattern to the series"
			}
			return &Preview{AffectedTaskIDs: ids, Description: desc}, nil
		default: // all_instances
			root, err := e.store.Tasks().FindByID(*fresh.ParentTaskID)
			if err != nil {
				return nil, err
			}
			if root == nil {
				return nil, ErrTaskNotFound
			}
			record, err := e.store.Patterns().FindByTaskID(root.ID)
			if err != nil {
				return nil, err
			}
			if record == nil {
				return nil, ErrPatternNotFound
			}
			return e.previewRoot(root, record, scope, upd)
		}
	}
	return nil, &InvalidScopeError{Scope: string(scope)}
}

func (e *Engine) previewRoot(root *domain.Task, record *domain.RecurrencePatternRecord, scope Scope, upd TaskUpdate) (*Preview, error) {
	cs := Classify(root, record, upd)
	switch scope {
	case ScopeThisInstance:
		if !record.IsActive || record.NextDue == nil {
			return &Preview{Description: "series is inactive; nothing to change"}, nil
		}
		return &Preview{
			AffectedTaskIDs: []string{root.ID},
			Description: fmt.Sprintf("detaches the %s occurrence into a standalone task and skips it in the series",
				record.NextDue.Format(time.RFC3339)),
		}, nil
	case ScopeThisAndFuture:
		desc := "updates the series root in place"
		if cs.NeedsRegeneration() {
			desc += fmt.Sprintf("; %s change regenerates the recurrence rule", cs.Severity)
		}
		return &Preview{AffectedTaskIDs: []string{root.ID}, Description: desc}, nil
	default: // all_instances
		instances, err := e.store.Tasks().FindByParentID(root.ID)
		if err != nil {
			return nil, err
		}
		ids := []string{root.ID}
		for _, inst := range instances {
			ids = append(ids, inst.ID)
		}
		return &Preview{
			AffectedTaskIDs: ids,
			Description:     fmt.Sprintf("updates the series root and %d existing occurrence(s)", len(instances)),
		}, nil
	}
}

// loadSeries fetches the pattern record owned by a series root.
func (e *Engine) loadSeries(s Store, root *domain.Task) (*domain.Task, *domain.RecurrencePatternRecord, error) {
	record, err := s.Patterns().FindByTaskID(root.ID)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, ErrPatternNotFound
	}
	return root, record, nil
}

// resolveRoot follows a detached instance's weak back-reference up to its
// series root and record.
func (e *Engine) resolveRoot(s Store, inst *domain.Task) (*domain.Task, *domain.RecurrencePatternRecord, error) {
	if inst.ParentTaskID == nil {
		return nil, nil, ErrTaskNotFound
	}
	root, err := s.Tasks().FindByID(*inst.ParentTaskID)
	if err != nil {
		return nil, nil, err
	}
	if root == nil {
		return nil, nil, ErrTaskNotFound
	}
	return e.loadSeries(s, root)
}

// candidateRule derives the rule the record would carry after this update,
// before anything is mutated. Pattern validation failures surface here and
// abort the operation with no writes.
func (e *Engine) candidateRule(root *domain.Task, record *domain.RecurrencePatternRecord, upd TaskUpdate, cs ChangeSet) (string, error) {
	effStart := root.StartDate
	if upd.StartDate != nil {
		effStart = *upd.StartDate
	}
	if upd.Pattern != nil {
		return PatternToRule(*upd.Pattern, effStart)
	}
	if !cs.NeedsRegeneration() {
		return record.CanonicalRule, nil
	}
	current, err := RuleToPattern(record.CanonicalRule)
	if err != nil {
		return "", err
	}
	if current.Frequency == FreqCustom {
		// Legacy hand-authored rule: keep the body, move the anchor.
		return rebaseRule(record.CanonicalRule, effStart), nil
	}
	return PatternToRule(current, effStart)
}

// recomputeCursor re-derives NextDue after a rule change without ever moving
// the cursor backwards over occurrences already consumed, whether they
// produced an instance or were skipped.
func (e *Engine) recomputeCursor(record *domain.RecurrencePatternRecord, start time.Time) error {
	after := start
	if record.LastGenerated != nil && record.LastGenerated.After(after) {
		after = *record.LastGenerated
	}
	next, err := NextOccurrence(record.CanonicalRule, after)
	if err != nil {
		return err
	}
	record.NextDue = next
	record.IsActive = next != nil
	return nil
}

// cloneForDetach copies the root's current fields into a new detached
// instance anchored at the given occurrence.
func (e *Engine) cloneForDetach(root *domain.Task, record *domain.RecurrencePatternRecord, occurrence time.Time) *domain.Task {
	now := e.clock.Now()
	clone := *root
	clone.ID = uuid.New().String()
	clone.IsRecurring = false
	clone.RecurringPatternID = nil
	parent := root.ID
	clone.ParentTaskID = &parent
	clone.InstanceNumber = record.TotalInstancesCreated + 1
	clone.StartDate = occurrence
	clone.Assignees = append([]string(nil), root.Assignees...)
	if root.Duration != nil {
		d := *root.Duration
		clone.Duration = &d
	}
	clone.SyncDueDate()
	clone.CreatedAt = now
	clone.UpdatedAt = now
	return &clone
}

// applyFieldUpdates copies every present field onto the task and restores
// the dueDate = startDate + duration invariant. Pattern fields are handled
// by the scope cells, never here.
func applyFieldUpdates(t *domain.Task, upd TaskUpdate) {
	applyNonRecurringUpdates(t, upd)
	if upd.StartDate != nil {
		t.StartDate = *upd.StartDate
	}
	if upd.Duration != nil {
		d := *upd.Duration
		t.Duration = &d
	}
	if upd.DueDate != nil && upd.Duration == nil {
		due := *upd.DueDate
		t.DueDate = &due
		if t.Duration != nil {
			// Setting one representation recomputes the other.
			if d, err := duration.Between(t.StartDate, due); err == nil {
				t.Duration = &d
			}
		}
	}
	t.SyncDueDate()
}

// applyNonRecurringUpdates copies only the title/description/priority/
// status/category/assignees subset, reporting whether anything changed.
func applyNonRecurringUpdates(t *domain.Task, upd TaskUpdate) bool {
	changed := false
	if upd.Title != nil && *upd.Title != t.Title {
		t.Title = *upd.Title
		changed = true
	}
	if upd.Description != nil && *upd.Description != t.Description {
		t.Description = *upd.Description
		changed = true
	}
	if upd.Priority != nil && *upd.Priority != t.Priority {
		t.Priority = *upd.Priority
		changed = true
	}
	if upd.Status != nil && *upd.Status != t.Status {
		t.Status = *upd.Status
		changed = true
	}
	if upd.Category != nil && *upd.Category != t.Category {
		t.Category = *upd.Category
		changed = true
	}
	if upd.Assignees != nil && !stringsEqual(*upd.Assignees, t.Assignees) {
		t.Assignees = append([]string(nil), (*upd.Assignees)...)
		changed = true
	}
	return changed
}

func (e *Engine) notify(event Event) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Notify(event); err != nil {
		e.log.WithError(err).WithField("task_id", event.TaskID).
			Warn("notification sink failed, mutation already committed")
	}
}

// rebaseRule swaps the DTSTART anchor of a rule while keeping the body.
func rebaseRule(rule string, start time.Time) string {
	dtstart := "DTSTART:" + start.UTC().Format(ruleTimeLayout)
	lines := strings.Split(rule, "\n")
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "DTSTART") {
			lines[i] = dtstart
			replaced = true
		}
	}
	if !replaced {
		lines = append([]string{dtstart}, lines...)
	}
	return strings.Join(lines, "\n")
}

func formatNextDue(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
