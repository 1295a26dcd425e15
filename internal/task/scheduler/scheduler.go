package scheduler

import (
	"fmt"
	"time"

	"taskhub-backend/internal/notification"
	"taskhub-backend/internal/recurrence"
	"taskhub-backend/internal/task/repository"
	"taskhub-backend/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TaskReminderScheduler periodically finds tasks with due reminders and
// pushes them through the notification service. It only delivers reminders;
// it never fires or materializes recurring occurrences.
type TaskReminderScheduler struct {
	taskRepo repository.TaskRepository
	notifier *notification.Service
	cron     *cron.Cron
	interval time.Duration
	log      *logrus.Entry
}

// NewTaskReminderScheduler creates a new scheduler
func NewTaskReminderScheduler(taskRepo repository.TaskRepository, notifier *notification.Service, interval time.Duration) *TaskReminderScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TaskReminderScheduler{
		taskRepo: taskRepo,
		notifier: notifier,
		cron:     cron.New(),
		interval: interval,
		log:      logger.WithComponent("TaskScheduler"),
	}
}

// Start begins the scheduler loop
func (s *TaskReminderScheduler) Start() error {
	spec := fmt.Sprintf("@every %ds", int(s.interval.Seconds()))
	if _, err := s.cron.AddFunc(spec, s.checkAndSendReminders); err != nil {
		return err
	}

	s.log.WithField("interval", s.interval).Info("starting task reminder scheduler")
	// Run immediately on start
	s.checkAndSendReminders()
	s.cron.Start()
	return nil
}

// Stop gracefully stops the scheduler
func (s *TaskReminderScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// checkAndSendReminders finds tasks with due reminders and notifies them
func (s *TaskReminderScheduler) checkAndSendReminders() {
	now := time.Now()

	tasks, err := s.taskRepo.FindPendingReminders(now)
	if err != nil {
		s.log.WithError(err).Error("error finding pending reminders")
		return
	}

	if len(tasks) == 0 {
		return
	}

	s.log.WithField("count", len(tasks)).Info("found tasks with pending reminders")

	for _, task := range tasks {
		detail := "task is due"
		if task.DueDate != nil {
			detail = fmt.Sprintf("due %s", task.DueDate.Format("02/01/2006 15:04"))
		}

		_ = s.notifier.Notify(recurrence.Event{
			Type:   "task_reminder",
			UserID: task.UserID,
			TaskID: task.ID,
			Detail: detail,
		})

		// Mark reminder as sent regardless of delivery outcome to avoid
		// spamming on the next tick.
		if err := s.taskRepo.MarkReminderSent(task.ID); err != nil {
			s.log.WithError(err).WithField("task_id", task.ID).Error("error marking reminder as sent")
		}
	}
}
