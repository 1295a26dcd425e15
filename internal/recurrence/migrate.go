package recurrence

import (
	"taskhub-backend/internal/recurrence/duration"
	"taskhub-backend/pkg/logger"
)

// ReconcileLegacyRules is a one-shot migration pass for pattern records
// persisted before the structured pattern schema existed: rule-string-only
// records with no instance duration. It re-derives the structured end
// condition from the stored rule and the duration from the owning task's
// start/due dates. Run once from cmd/migrate, not part of the steady-state
// API.
func ReconcileLegacyRules(store Store) (int, error) {
	log := logger.WithComponent("LegacyRuleMigration")

	records, err := store.Patterns().FindAll()
	if err != nil {
		return 0, err
	}

	migrated := 0
	for _, record := range records {
		if !record.InstanceDuration.IsZero() {
			continue
		}

		p, err := RuleToPattern(record.CanonicalRule)
		if err != nil {
			log.WithError(err).WithField("pattern_id", record.ID).
				Warn("unparseable legacy rule, leaving record untouched")
			continue
		}

		err = store.Atomically(func(s Store) error {
			task, err := s.Tasks().FindByID(record.TaskID)
			if err != nil {
				return err
			}
			if task == nil {
				log.WithField("pattern_id", record.ID).Warn("legacy record has no owning task, skipping")
				return nil
			}

			if task.DueDate != nil {
				if d, derr := duration.Between(task.StartDate, *task.DueDate); derr == nil {
					record.InstanceDuration = d
					task.Duration = &d
					if uerr := s.Tasks().Update(task); uerr != nil {
						return uerr
					}
				}
			}
			record.EndDate = p.EndDate
			record.EndOccurrences = p.EndOccurrences
			if record.NextDue == nil && record.IsActive {
				next, nerr := NextOccurrence(record.CanonicalRule, task.StartDate)
				if nerr != nil {
					return nerr
				}
				record.NextDue = next
				record.IsActive = next != nil
			}
			return s.Patterns().Update(record)
		})
		if err != nil {
			return migrated, err
		}
		migrated++
	}

	log.WithField("migrated", migrated).Info("legacy rule reconciliation finished")
	return migrated, nil
}
