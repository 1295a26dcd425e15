package main

import (
	api "taskhub-backend/cmd/api"
	"taskhub-backend/internal/activity"
	authdomain "taskhub-backend/internal/auth/domain"
	authRepo "taskhub-backend/internal/auth/repository"
	authUsecase "taskhub-backend/internal/auth/usecase"
	"taskhub-backend/internal/notification"
	"taskhub-backend/internal/recurrence"
	taskdomain "taskhub-backend/internal/task/domain"
	taskRepo "taskhub-backend/internal/task/repository"
	"taskhub-backend/internal/task/scheduler"
	taskUsecase "taskhub-backend/internal/task/usecase"
	"taskhub-backend/pkg/config"
	"taskhub-backend/pkg/database"
	"taskhub-backend/pkg/logger"
)

func main() {
	log := logger.WithComponent("Main")

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&taskdomain.Task{},
		&taskdomain.RecurrencePatternRecord{},
		&activity.Entry{},
	); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	store := taskRepo.NewGormStore(db)
	activityRepo := activity.NewGormRepository(db)

	// Notification fan-out + activity log, fed by the engine post-commit
	notifService := notification.NewService(activityRepo)

	// Recurrence engine
	engine := recurrence.NewEngine(store,
		recurrence.WithNotifier(notifService),
		recurrence.WithDefaultTimezone(cfg.DefaultTimezone),
	)

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, cfg)
	taskUsecaseInstance := taskUsecase.NewTaskUsecase(store, engine, activityRepo)

	// Reminder scheduler
	reminderScheduler := scheduler.NewTaskReminderScheduler(store.TaskRepo(), notifService, cfg.ReminderInterval)
	if err := reminderScheduler.Start(); err != nil {
		log.WithError(err).Error("failed to start reminder scheduler")
	}
	defer reminderScheduler.Stop()

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, taskUsecaseInstance, cfg)

	// Start server
	log.WithField("port", cfg.Port).Info("server starting")
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}
