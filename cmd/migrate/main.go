package main

import (
	"taskhub-backend/internal/recurrence"
	taskRepo "taskhub-backend/internal/task/repository"
	"taskhub-backend/pkg/config"
	"taskhub-backend/pkg/database"
	"taskhub-backend/pkg/logger"
)

// One-shot migration for pattern records persisted before the structured
// pattern schema: re-derives structured end conditions and instance
// durations from the stored rule strings. Safe to re-run; already-migrated
// records are skipped.
func main() {
	log := logger.WithComponent("Migrate")

	cfg := config.Load()
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	store := taskRepo.NewGormStore(db)
	migrated, err := recurrence.ReconcileLegacyRules(store)
	if err != nil {
		log.WithError(err).Fatal("legacy rule reconciliation failed")
	}
	log.WithField("migrated", migrated).Info("done")
}
