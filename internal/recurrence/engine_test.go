package recurrence_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"taskhub-backend/internal/recurrence"
	"taskhub-backend/internal/recurrence/duration"
	"taskhub-backend/internal/task/domain"
	"taskhub-backend/internal/task/repository"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type captureSink struct{ events []recurrence.Event }

func (c *captureSink) Notify(ev recurrence.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "engine_test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Task{}, &domain.RecurrencePatternRecord{}))
	return repository.NewGormStore(db)
}

func newTestEngine(t *testing.T) (*recurrence.Engine, repository.Store, *captureSink) {
	t.Helper()
	store := newTestStore(t)
	sink := &captureSink{}
	clock := fixedClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return recurrence.NewEngine(store, recurrence.WithClock(clock), recurrence.WithNotifier(sink)), store, sink
}

// seriesStart is a Monday, so the MO,WE,FR weekly fixture's first occurrence
// after it lands on Wednesday 2024-01-03.
var seriesStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func weeklyPattern() recurrence.Pattern {
	return recurrence.Pattern{
		Frequency:  recurrence.FreqWeekly,
		Interval:   1,
		DaysOfWeek: []int{1, 3, 5},
	}
}

func createWeeklySeries(t *testing.T, e *recurrence.Engine) (*domain.Task, *domain.RecurrencePatternRecord) {
	t.Helper()
	task := &domain.Task{
		UserID:    "user-1",
		Title:     "Weekly review",
		Priority:  domain.PriorityMedium,
		Status:    domain.TaskStatusPending,
		StartDate: seriesStart,
	}
	root, record, err := e.CreateSeries(task, weeklyPattern(), duration.Duration{Hours: 1})
	require.NoError(t, err)
	return root, record
}

func TestCreateSeries(t *testing.T) {
	e, store, sink := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	assert.True(t, root.IsRecurring)
	assert.Equal(t, domain.StateSeriesRoot, root.State())
	assert.Equal(t, 1, root.RecurrenceVersion)
	require.NotNil(t, root.RecurringPatternID)
	assert.Equal(t, record.ID, *root.RecurringPatternID)
	require.NotNil(t, root.DueDate)
	assert.True(t, root.DueDate.Equal(seriesStart.Add(time.Hour)))

	assert.Equal(t, 1, record.PatternVersion)
	assert.True(t, record.IsActive)
	require.NotNil(t, record.NextDue)
	assert.True(t, record.NextDue.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))

	persisted, err := store.Tasks().FindByID(root.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.True(t, persisted.IsRecurring)

	require.Len(t, sink.events, 1)
	assert.Equal(t, "series_created", sink.events[0].Type)
}

func TestCreateSeries_Validation(t *testing.T) {
	e, store, _ := newTestEngine(t)

	t.Run("Missing duration", func(t *testing.T) {
		task := &domain.Task{UserID: "user-1", Title: "No duration", StartDate: seriesStart}
		_, _, err := e.CreateSeries(task, weeklyPattern(), duration.Duration{})
		var vErr *recurrence.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "duration", vErr.Field)
	})

	t.Run("Both end conditions rejected with no writes", func(t *testing.T) {
		end := seriesStart.AddDate(0, 6, 0)
		three := 3
		p := weeklyPattern()
		p.EndDate = &end
		p.EndOccurrences = &three

		task := &domain.Task{UserID: "user-1", Title: "Conflicting ends", StartDate: seriesStart}
		_, _, err := e.CreateSeries(task, p, duration.Duration{Hours: 1})
		var vErr *recurrence.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "endCondition", vErr.Field)

		records, err := store.Patterns().FindAll()
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("Detached instance cannot become a root", func(t *testing.T) {
		parent := "some-root"
		task := &domain.Task{UserID: "user-1", Title: "Detached", StartDate: seriesStart, ParentTaskID: &parent}
		_, _, err := e.CreateSeries(task, weeklyPattern(), duration.Duration{Hours: 1})
		var vErr *recurrence.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("Existing series root cannot own a second record", func(t *testing.T) {
		root, record := createWeeklySeries(t, e)

		_, _, err := e.CreateSeries(root, weeklyPattern(), duration.Duration{Hours: 1})
		var vErr *recurrence.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "task", vErr.Field)

		// Still exactly one record for the series.
		fresh, err := store.Patterns().FindByTaskID(root.ID)
		require.NoError(t, err)
		require.NotNil(t, fresh)
		assert.Equal(t, record.ID, fresh.ID)
	})
}

func TestCreateSeries_DefaultTimezone(t *testing.T) {
	store := newTestStore(t)
	e := recurrence.NewEngine(store, recurrence.WithDefaultTimezone("Asia/Ho_Chi_Minh"))

	t.Run("Pattern without timezone gets the engine default", func(t *testing.T) {
		task := &domain.Task{UserID: "user-1", Title: "Local series", StartDate: seriesStart}
		_, record, err := e.CreateSeries(task, weeklyPattern(), duration.Duration{Hours: 1})
		require.NoError(t, err)
		assert.Equal(t, "Asia/Ho_Chi_Minh", record.Timezone)
	})

	t.Run("Explicit pattern timezone wins", func(t *testing.T) {
		p := weeklyPattern()
		p.Timezone = "Europe/Berlin"
		task := &domain.Task{UserID: "user-1", Title: "Berlin series", StartDate: seriesStart}
		_, record, err := e.CreateSeries(task, p, duration.Duration{Hours: 1})
		require.NoError(t, err)
		assert.Equal(t, "Europe/Berlin", record.Timezone)
	})
}

func TestEditSeries_RootThisInstance(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)
	occurrence := *record.NextDue

	title := "One-off agenda"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &title}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	require.Len(t, result.CreatedTasks, 1)
	assert.Empty(t, result.UpdatedTasks)

	inst := result.CreatedTasks[0]
	assert.Equal(t, domain.StateDetachedInstance, inst.State())
	require.NotNil(t, inst.ParentTaskID)
	assert.Equal(t, root.ID, *inst.ParentTaskID)
	assert.Equal(t, 1, inst.InstanceNumber)
	assert.Equal(t, title, inst.Title)
	assert.False(t, inst.IsRecurring)
	assert.True(t, inst.StartDate.Equal(occurrence))
	require.NotNil(t, inst.DueDate)
	assert.True(t, inst.DueDate.Equal(occurrence.Add(time.Hour)))

	// The root is untouched and the cursor moved past the detached occurrence.
	freshRoot, err := store.Tasks().FindByID(root.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weekly review", freshRoot.Title)
	assert.Equal(t, 1, freshRoot.RecurrenceVersion)

	freshRecord, err := store.Patterns().FindByID(record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, freshRecord.PatternVersion)
	assert.Equal(t, 1, freshRecord.TotalInstancesCreated)
	require.NotNil(t, freshRecord.LastGenerated)
	assert.True(t, freshRecord.LastGenerated.Equal(occurrence))
	require.NotNil(t, freshRecord.NextDue)
	assert.True(t, freshRecord.NextDue.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
}

func TestEditSeries_RootThisInstance_DuplicateGuard(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	// Simulate a retry whose first attempt already generated the instance for
	// the current cursor position.
	record.LastGenerated = record.NextDue
	require.NoError(t, store.Patterns().Update(record))

	title := "Retry"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &title}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	assert.Empty(t, result.CreatedTasks)

	instances, err := store.Tasks().FindByParentID(root.ID)
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestEditSeries_RootThisAndFuture(t *testing.T) {
	t.Run("Pattern change regenerates rule and bumps both versions", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		root, record := createWeeklySeries(t, e)

		daily := recurrence.Pattern{Frequency: recurrence.FreqDaily, Interval: 1}
		result, err := e.EditSeries(root, recurrence.TaskUpdate{Pattern: &daily}, recurrence.ScopeThisAndFuture)
		require.NoError(t, err)
		require.Len(t, result.UpdatedPatterns, 1)

		freshRecord, err := store.Patterns().FindByID(record.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, freshRecord.PatternVersion)
		assert.Contains(t, freshRecord.CanonicalRule, "FREQ=DAILY")
		require.NotNil(t, freshRecord.NextDue)
		assert.True(t, freshRecord.NextDue.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))

		freshRoot, err := store.Tasks().FindByID(root.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, freshRoot.RecurrenceVersion)
	})

	t.Run("Title-only change leaves versions alone", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		root, record := createWeeklySeries(t, e)

		title := "Renamed review"
		_, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &title}, recurrence.ScopeThisAndFuture)
		require.NoError(t, err)

		freshRoot, err := store.Tasks().FindByID(root.ID)
		require.NoError(t, err)
		assert.Equal(t, title, freshRoot.Title)
		assert.Equal(t, 1, freshRoot.RecurrenceVersion)

		freshRecord, err := store.Patterns().FindByID(record.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, freshRecord.PatternVersion)
	})

	t.Run("Duration change flows into the pattern record", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		root, record := createWeeklySeries(t, e)

		d := duration.Duration{Hours: 2, Minutes: 30}
		_, err := e.EditSeries(root, recurrence.TaskUpdate{Duration: &d}, recurrence.ScopeThisAndFuture)
		require.NoError(t, err)

		freshRecord, err := store.Patterns().FindByID(record.ID)
		require.NoError(t, err)
		assert.Equal(t, d, freshRecord.InstanceDuration)

		freshRoot, err := store.Tasks().FindByID(root.ID)
		require.NoError(t, err)
		require.NotNil(t, freshRoot.DueDate)
		assert.True(t, freshRoot.DueDate.Equal(seriesStart.Add(2*time.Hour+30*time.Minute)))
	})

	t.Run("Invalid pattern aborts with no writes", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		root, record := createWeeklySeries(t, e)

		bad := recurrence.Pattern{Frequency: recurrence.FreqWeekly, Interval: 1} // no days
		title := "Should not land"
		_, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &title, Pattern: &bad}, recurrence.ScopeThisAndFuture)
		var vErr *recurrence.ValidationError
		require.ErrorAs(t, err, &vErr)

		freshRoot, err := store.Tasks().FindByID(root.ID)
		require.NoError(t, err)
		assert.Equal(t, "Weekly review", freshRoot.Title)

		freshRecord, err := store.Patterns().FindByID(record.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, freshRecord.PatternVersion)
	})
}

func TestEditSeries_StaleVersion(t *testing.T) {
	e, _, _ := newTestEngine(t)
	root, _ := createWeeklySeries(t, e)
	stale := *root

	// A concurrent pattern edit bumps the root's recurrence version.
	daily := recurrence.Pattern{Frequency: recurrence.FreqDaily, Interval: 1}
	_, err := e.EditSeries(root, recurrence.TaskUpdate{Pattern: &daily}, recurrence.ScopeThisAndFuture)
	require.NoError(t, err)

	title := "Stale write"
	_, err = e.EditSeries(&stale, recurrence.TaskUpdate{Title: &title}, recurrence.ScopeThisAndFuture)
	var sErr *recurrence.StaleVersionError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "task", sErr.Entity)
}

func TestEditSeries_AllInstances(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, _ := createWeeklySeries(t, e)

	// Detach one instance first so propagation has a target.
	instTitle := "Detached one"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &instTitle}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	inst := result.CreatedTasks[0]

	title := "Everywhere"
	d := duration.Duration{Hours: 3}
	_, err = e.EditSeries(root, recurrence.TaskUpdate{Title: &title, Duration: &d}, recurrence.ScopeAllInstances)
	require.NoError(t, err)

	freshRoot, err := store.Tasks().FindByID(root.ID)
	require.NoError(t, err)
	assert.Equal(t, title, freshRoot.Title)
	require.NotNil(t, freshRoot.Duration)
	assert.Equal(t, d, *freshRoot.Duration)

	// Instances pick up only the non-recurring subset; their duration stays.
	freshInst, err := store.Tasks().FindByID(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, title, freshInst.Title)
	require.NotNil(t, freshInst.Duration)
	assert.Equal(t, duration.Duration{Hours: 1}, *freshInst.Duration)
}

func TestEditSeries_DetachedInstance(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	seed := "Seed detach"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &seed}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	inst := result.CreatedTasks[0]

	t.Run("this_instance touches only the instance", func(t *testing.T) {
		title := "Solo edit"
		_, err := e.EditSeries(inst, recurrence.TaskUpdate{Title: &title}, recurrence.ScopeThisInstance)
		require.NoError(t, err)

		freshInst, err := store.Tasks().FindByID(inst.ID)
		require.NoError(t, err)
		assert.Equal(t, title, freshInst.Title)

		freshRecord, err := store.Patterns().FindByID(record.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, freshRecord.PatternVersion)
	})

	t.Run("this_and_future propagates a new pattern to the root", func(t *testing.T) {
		daily := recurrence.Pattern{Frequency: recurrence.FreqDaily, Interval: 2}
		_, err := e.EditSeries(inst, recurrence.TaskUpdate{Pattern: &daily}, recurrence.ScopeThisAndFuture)
		require.NoError(t, err)

		freshRecord, err := store.Patterns().FindByID(record.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, freshRecord.PatternVersion)
		assert.Contains(t, freshRecord.CanonicalRule, "FREQ=DAILY;INTERVAL=2")

		freshRoot, err := store.Tasks().FindByID(root.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, freshRoot.RecurrenceVersion)
	})
}

func TestEditSeries_PromotesStandalone(t *testing.T) {
	e, store, _ := newTestEngine(t)

	plain := &domain.Task{
		UserID:    "user-1",
		Title:     "Plain task",
		StartDate: seriesStart,
		Duration:  &duration.Duration{Minutes: 45},
	}
	require.NoError(t, store.Tasks().Create(plain))

	daily := recurrence.Pattern{Frequency: recurrence.FreqDaily, Interval: 1}
	result, err := e.EditSeries(plain, recurrence.TaskUpdate{Pattern: &daily}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	require.Len(t, result.UpdatedPatterns, 1)

	fresh, err := store.Tasks().FindByID(plain.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSeriesRoot, fresh.State())
	assert.Equal(t, 2, fresh.RecurrenceVersion)

	record, err := store.Patterns().FindByTaskID(plain.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.IsActive)
}

func TestEditSeries_NotFound(t *testing.T) {
	e, _, _ := newTestEngine(t)
	title := "Ghost"
	_, err := e.EditSeries(&domain.Task{ID: "missing", RecurrenceVersion: 1},
		recurrence.TaskUpdate{Title: &title}, recurrence.ScopeThisInstance)
	assert.ErrorIs(t, err, recurrence.ErrTaskNotFound)
}

func TestEditSeries_InvalidScope(t *testing.T) {
	e, _, _ := newTestEngine(t)
	root, _ := createWeeklySeries(t, e)
	title := "Bad scope"
	_, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &title}, recurrence.Scope("everything"))
	var sErr *recurrence.InvalidScopeError
	assert.ErrorAs(t, err, &sErr)
}

func TestDeleteSeries_RootThisInstance(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	result, err := e.DeleteSeries(root, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	assert.Empty(t, result.DeletedTaskIDs)
	assert.Empty(t, result.DeletedPatternIDs)

	freshRecord, err := store.Patterns().FindByID(record.ID)
	require.NoError(t, err)
	require.NotNil(t, freshRecord.NextDue)
	assert.True(t, freshRecord.NextDue.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, freshRecord.PatternVersion)

	freshRoot, err := store.Tasks().FindByID(root.ID)
	require.NoError(t, err)
	require.NotNil(t, freshRoot)
	assert.True(t, freshRoot.IsRecurring)
}

func TestDeleteSeries_SkippedOccurrenceStaysSkipped(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	// Skip Jan 3; the cursor moves to Jan 5.
	_, err := e.DeleteSeries(root, recurrence.ScopeThisInstance)
	require.NoError(t, err)

	// A duration-only edit regenerates the rule text unchanged. The cursor
	// must not fall back to the first occurrence after the start date.
	d := duration.Duration{Hours: 2}
	_, err = e.EditSeries(root, recurrence.TaskUpdate{Duration: &d}, recurrence.ScopeThisAndFuture)
	require.NoError(t, err)

	fresh, err := store.Patterns().FindByID(record.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh.NextDue)
	assert.True(t, fresh.NextDue.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)),
		"skipped occurrence resurfaced as NextDue: %s", fresh.NextDue)
	require.NotNil(t, fresh.LastGenerated)
	assert.True(t, fresh.LastGenerated.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
}

func TestDeleteSeries_RootThisAndFuture(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	// Materialized history must survive termination.
	seed := "History"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &seed}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	inst := result.CreatedTasks[0]

	delResult, err := e.DeleteSeries(root, recurrence.ScopeThisAndFuture)
	require.NoError(t, err)
	assert.Equal(t, []string{record.ID}, delResult.DeletedPatternIDs)
	assert.Empty(t, delResult.DeletedTaskIDs)

	freshRoot, err := store.Tasks().FindByID(root.ID)
	require.NoError(t, err)
	require.NotNil(t, freshRoot)
	assert.False(t, freshRoot.IsRecurring)
	assert.Nil(t, freshRoot.RecurringPatternID)
	assert.Equal(t, domain.StateStandalone, freshRoot.State())
	assert.Equal(t, 2, freshRoot.RecurrenceVersion)

	gone, err := store.Patterns().FindByID(record.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	survivor, err := store.Tasks().FindByID(inst.ID)
	require.NoError(t, err)
	require.NotNil(t, survivor)
	assert.Equal(t, seed, survivor.Title)
}

func TestDeleteSeries_AllInstances(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	seed := "Doomed"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &seed}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	inst := result.CreatedTasks[0]

	delResult, err := e.DeleteSeries(root, recurrence.ScopeAllInstances)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{root.ID, inst.ID}, delResult.DeletedTaskIDs)
	assert.Equal(t, []string{record.ID}, delResult.DeletedPatternIDs)

	for _, id := range []string{root.ID, inst.ID} {
		task, err := store.Tasks().FindByID(id)
		require.NoError(t, err)
		assert.Nil(t, task)
	}
	gone, err := store.Patterns().FindByID(record.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDeleteSeries_DetachedInstanceThisInstance(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	seed := "Disposable"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &seed}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	inst := result.CreatedTasks[0]

	delResult, err := e.DeleteSeries(inst, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	assert.Equal(t, []string{inst.ID}, delResult.DeletedTaskIDs)

	gone, err := store.Tasks().FindByID(inst.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Series untouched.
	freshRecord, err := store.Patterns().FindByID(record.ID)
	require.NoError(t, err)
	require.NotNil(t, freshRecord)
	assert.True(t, freshRecord.IsActive)
}

func TestDeleteSeries_DetachedInstanceThisAndFuture(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	seed := "Cut-off point"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &seed}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	inst := result.CreatedTasks[0]

	delResult, err := e.DeleteSeries(inst, recurrence.ScopeThisAndFuture)
	require.NoError(t, err)
	assert.Equal(t, []string{inst.ID}, delResult.DeletedTaskIDs)
	assert.Equal(t, []string{record.ID}, delResult.DeletedPatternIDs)

	// The instance is gone and the series is terminated; the root lives on
	// as a plain task.
	gone, err := store.Tasks().FindByID(inst.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	goneRecord, err := store.Patterns().FindByID(record.ID)
	require.NoError(t, err)
	assert.Nil(t, goneRecord)

	freshRoot, err := store.Tasks().FindByID(root.ID)
	require.NoError(t, err)
	require.NotNil(t, freshRoot)
	assert.Equal(t, domain.StateStandalone, freshRoot.State())
	assert.Equal(t, 2, freshRoot.RecurrenceVersion)
}

func TestDeleteSeries_DetachedInstanceAllInstances(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	seed := "Whole-series delete entry point"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &seed}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	inst := result.CreatedTasks[0]

	delResult, err := e.DeleteSeries(inst, recurrence.ScopeAllInstances)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{root.ID, inst.ID}, delResult.DeletedTaskIDs)
	assert.Equal(t, []string{record.ID}, delResult.DeletedPatternIDs)

	for _, id := range []string{root.ID, inst.ID} {
		task, err := store.Tasks().FindByID(id)
		require.NoError(t, err)
		assert.Nil(t, task)
	}
	goneRecord, err := store.Patterns().FindByID(record.ID)
	require.NoError(t, err)
	assert.Nil(t, goneRecord)
}

func TestEditSeries_AllInstancesFromDetachedInstance(t *testing.T) {
	e, store, _ := newTestEngine(t)
	root, record := createWeeklySeries(t, e)

	seed := "Entry instance"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &seed}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	inst := result.CreatedTasks[0]

	title := "Renamed everywhere"
	_, err = e.EditSeries(inst, recurrence.TaskUpdate{Title: &title}, recurrence.ScopeAllInstances)
	require.NoError(t, err)

	freshRoot, err := store.Tasks().FindByID(root.ID)
	require.NoError(t, err)
	assert.Equal(t, title, freshRoot.Title)

	freshInst, err := store.Tasks().FindByID(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, title, freshInst.Title)

	// Title-only propagation does not regenerate the pattern.
	freshRecord, err := store.Patterns().FindByID(record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, freshRecord.PatternVersion)
}

func TestSeriesExhaustion(t *testing.T) {
	e, store, _ := newTestEngine(t)

	three := 3
	task := &domain.Task{
		UserID:    "user-1",
		Title:     "Three times only",
		StartDate: seriesStart,
	}
	root, record, err := e.CreateSeries(task,
		recurrence.Pattern{Frequency: recurrence.FreqDaily, Interval: 1, EndOccurrences: &three},
		duration.Duration{Minutes: 30})
	require.NoError(t, err)
	require.NotNil(t, record.NextDue)
	assert.True(t, record.NextDue.Equal(seriesStart.AddDate(0, 0, 1)))

	// Skip the two remaining occurrences; the second skip exhausts the series.
	_, err = e.DeleteSeries(root, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	_, err = e.DeleteSeries(root, recurrence.ScopeThisInstance)
	require.NoError(t, err)

	fresh, err := store.Patterns().FindByID(record.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh, "exhausted series keeps its record")
	assert.False(t, fresh.IsActive)
	assert.Nil(t, fresh.NextDue)

	t.Run("this_instance on an exhausted series is a no-op", func(t *testing.T) {
		title := "Nothing happens"
		result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &title}, recurrence.ScopeThisInstance)
		require.NoError(t, err)
		assert.Empty(t, result.CreatedTasks)
		assert.Empty(t, result.UpdatedTasks)
	})

	t.Run("A new unbounded pattern reactivates the series", func(t *testing.T) {
		weekly := weeklyPattern()
		_, err := e.EditSeries(root, recurrence.TaskUpdate{Pattern: &weekly}, recurrence.ScopeThisAndFuture)
		require.NoError(t, err)

		fresh, err := store.Patterns().FindByID(record.ID)
		require.NoError(t, err)
		assert.True(t, fresh.IsActive)
		assert.NotNil(t, fresh.NextDue)
		assert.Equal(t, 2, fresh.PatternVersion)
	})
}

func TestPreviewScope(t *testing.T) {
	e, _, _ := newTestEngine(t)
	root, _ := createWeeklySeries(t, e)

	seed := "Previewed"
	result, err := e.EditSeries(root, recurrence.TaskUpdate{Title: &seed}, recurrence.ScopeThisInstance)
	require.NoError(t, err)
	inst := result.CreatedTasks[0]

	t.Run("Root this_instance describes a detach", func(t *testing.T) {
		preview, err := e.PreviewScope(root, recurrence.ScopeThisInstance, recurrence.TaskUpdate{})
		require.NoError(t, err)
		assert.Equal(t, []string{root.ID}, preview.AffectedTaskIDs)
		assert.Contains(t, preview.Description, "detaches")
	})

	t.Run("Root all_instances lists every occurrence", func(t *testing.T) {
		preview, err := e.PreviewScope(root, recurrence.ScopeAllInstances, recurrence.TaskUpdate{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{root.ID, inst.ID}, preview.AffectedTaskIDs)
	})

	t.Run("Instance this_instance affects only itself", func(t *testing.T) {
		preview, err := e.PreviewScope(inst, recurrence.ScopeThisInstance, recurrence.TaskUpdate{})
		require.NoError(t, err)
		assert.Equal(t, []string{inst.ID}, preview.AffectedTaskIDs)
	})

	t.Run("Preview writes nothing", func(t *testing.T) {
		daily := recurrence.Pattern{Frequency: recurrence.FreqDaily, Interval: 1}
		_, err := e.PreviewScope(root, recurrence.ScopeThisAndFuture, recurrence.TaskUpdate{Pattern: &daily})
		require.NoError(t, err)

		fresh, err := e.PreviewScope(root, recurrence.ScopeThisAndFuture, recurrence.TaskUpdate{})
		require.NoError(t, err)
		assert.NotContains(t, fresh.Description, "regenerates")
	})
}
