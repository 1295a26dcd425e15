package notification

import (
	"sync"

	"taskhub-backend/internal/activity"
	"taskhub-backend/internal/recurrence"
	"taskhub-backend/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Subscriber receives committed series events, e.g. a websocket fan-out or a
// push sender. Subscribers must not block.
type Subscriber func(event recurrence.Event)

// Service is the in-process notification sink the recurrence engine reports
// committed mutations to. It writes the activity log and fans the event out
// to subscribers. Everything here is best-effort: a failure is logged and
// never propagated back to the triggering operation.
type Service struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	activityLog activity.Repository
	log         *logrus.Entry
}

// NewService creates a notification service backed by the activity log.
func NewService(activityLog activity.Repository) *Service {
	return &Service{
		activityLog: activityLog,
		log:         logger.WithComponent("NotificationService"),
	}
}

// Subscribe registers a fan-out target for future events.
func (s *Service) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// Notify implements recurrence.Notifier.
func (s *Service) Notify(event recurrence.Event) error {
	if s.activityLog != nil {
		entry := &activity.Entry{
			UserID: event.UserID,
			TaskID: event.TaskID,
			Action: event.Type,
			Detail: event.Detail,
		}
		if err := s.activityLog.Record(entry); err != nil {
			s.log.WithError(err).WithField("task_id", event.TaskID).
				Warn("failed to write activity entry")
		}
	}

	s.mu.RLock()
	subs := append([]Subscriber(nil), s.subscribers...)
	s.mu.RUnlock()
	for _, sub := range subs {
		sub(event)
	}
	return nil
}
