package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	api "ipo-reminder-backend/cmd/api"
	"ipo-reminder-backend/internal/notification"
	notificationDelivery "ipo-reminder-backend/internal/notification/delivery"
	notificationRepo "ipo-reminder-backend/internal/notification/repository"
	"ipo-reminder-backend/internal/notification/scheduler"
	notificationUsecase "ipo-reminder-backend/internal/notification/usecase"
	"ipo-reminder-backend/pkg/config"
	"ipo-reminder-backend/pkg/database"
	"ipo-reminder-backend/pkg/fcm"
	"ipo-reminder-backend/pkg/lock"
	"ipo-reminder-backend/pkg/logger"
	"ipo-reminder-backend/pkg/metrics"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logr, err := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logr.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewConnection(cfg.DatabaseURL)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logr.Fatal("failed to migrate database", zap.Error(err))
	}

	metrics.InitAPIMetrics()
	metrics.InitSchedulerMetrics()

	loc := cfg.Location()
	gateway := notificationRepo.NewGormGateway(db)
	reporter := notificationUsecase.NewReporter(gateway, loc)

	// Push delivery is optional; without credentials only the read endpoints run
	var runner notificationDelivery.TickRunner
	var notifier notificationDelivery.TestNotifier
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, cfg.FCMDryRun, logr.Named("fcm"))
		if err != nil {
			logr.Warn("failed to initialize FCM client, push notifications disabled", zap.Error(err))
		} else {
			sched, dispatcher := newScheduler(cfg, gateway, fcmClient, logr)
			sched.Start(ctx)
			defer sched.Stop()
			runner = sched
			notifier = dispatcher

			if cfg.GoogleProjectID != "" {
				startPubSubTrigger(ctx, cfg, sched, logr)
			} else {
				logr.Info("GOOGLE_PROJECT_ID not configured, pubsub trigger disabled")
			}
		}
	} else {
		logr.Warn("no Firebase credentials configured, scheduler disabled")
	}

	notificationHandler := notificationDelivery.NewNotificationHandler(reporter, runner, notifier, logr.Named("http"))
	handler := api.NewHandler(notificationHandler, cfg, logr.Named("http"))

	if err := handler.Start(ctx, ":"+cfg.Port); err != nil {
		logr.Fatal("failed to start server", zap.Error(err))
	}
}

func newScheduler(cfg *config.Config, gateway notificationRepo.Gateway, sender notificationUsecase.Sender, logr *zap.Logger) (*scheduler.NotificationScheduler, *notificationUsecase.Dispatcher) {
	loc := cfg.Location()
	scanner := notificationUsecase.NewScanner(gateway, gateway, gateway, loc, notificationUsecase.RetryPolicy{
		Backoff:     cfg.RetryBackoff,
		MaxAttempts: cfg.RetryMaxAttempts,
	}, logr.Named("scanner"))
	dispatcher := notificationUsecase.NewDispatcher(gateway, gateway, sender, notificationUsecase.DispatcherConfig{
		Timeout:  cfg.DeliveryTimeout,
		LeaseTTL: cfg.LeaseTTL,
		Location: loc,
	}, logr.Named("dispatcher"))

	sched := scheduler.NewNotificationScheduler(scanner, dispatcher, scheduler.Config{
		Interval: cfg.SchedulerInterval,
		Workers:  cfg.DispatchWorkers,
	}, logr.Named("scheduler"))

	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logr.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		sched.SetSharedLock(lock.NewRedisLocker(client, cfg.TickLockName, cfg.TickLockTTL))
		logr.Info("redis tick lock enabled", zap.String("key", cfg.TickLockName))
	}
	return sched, dispatcher
}

func startPubSubTrigger(ctx context.Context, cfg *config.Config, runner notification.TickRunner, logr *zap.Logger) {
	svc, err := notification.NewService(ctx, cfg.GoogleProjectID, cfg.PubSubTopic, cfg.GoogleCredentials, runner, logr.Named("pubsub"))
	if err != nil {
		logr.Error("failed to initialize pubsub trigger", zap.Error(err))
		return
	}
	go func() {
		defer svc.Close()
		svc.Start(ctx)
	}()
}
