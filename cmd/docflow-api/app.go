package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/internal/realtime"
	"github.com/noah-isme/docflow-api/internal/repository"
	"github.com/noah-isme/docflow-api/internal/service"
	"github.com/noah-isme/docflow-api/pkg/broker"
	"github.com/noah-isme/docflow-api/pkg/cache"
	"github.com/noah-isme/docflow-api/pkg/config"
	"github.com/noah-isme/docflow-api/pkg/database"
	"github.com/noah-isme/docflow-api/pkg/jobs"
	"github.com/noah-isme/docflow-api/pkg/logger"
	"github.com/noah-isme/docflow-api/pkg/storage"
)

// app holds the long-lived dependencies shared by the CLI commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client

	metrics  *service.MetricsService
	hub      *realtime.Hub
	stream   *service.EventStream
	producer *broker.Producer

	auth          *service.AuthService
	users         *service.UserService
	files         *service.FileService
	notifications *service.NotificationService
	reminders     *service.ReminderService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &app{cfg: cfg, logger: logr, db: db}

	a.redis, err = cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	var lease cache.Lease = cache.LocalLease{}
	if a.redis != nil {
		lease = cache.NewRedisLease(a.redis)
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	a.metrics = service.NewMetricsService()
	a.hub = realtime.NewHub(realtime.WithRecorder(a.metrics), realtime.WithLogger(logr))

	dispatcherOpts := []service.DispatcherOption{service.WithDispatcherMetrics(a.metrics)}
	if producer := broker.NewProducer(cfg.Events, logr); producer != nil {
		a.producer = producer
		a.stream = service.NewEventStream(producer, jobs.QueueConfig{
			Workers:    cfg.Events.Workers,
			BufferSize: cfg.Events.BufferSize,
			MaxRetries: cfg.Events.MaxRetries,
			OnDrop: func(jobs.Job, error) {
				a.metrics.RecordEventDropped("retries_exhausted")
			},
			Logger: logr,
		})
		dispatcherOpts = append(dispatcherOpts, service.WithEventMirror(a.stream))
	}
	dispatcher := service.NewEventDispatcher(a.hub, logr, dispatcherOpts...)

	validate := service.NewValidator()
	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)

	a.notifications = service.NewNotificationService(notificationRepo, a.metrics, logr)
	a.auth = service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	a.users = service.NewUserService(userRepo, dispatcher, validate, logr)
	a.files = service.NewFileService(
		db,
		fileRepo,
		sequenceRepo,
		a.notifications,
		service.NewRecipientResolver(userRepo),
		dispatcher,
		blobs,
		logr,
		service.WithFileMetrics(a.metrics),
		service.WithFileValidator(validate),
		service.WithMaxUploadSize(cfg.Storage.MaxUploadSize),
		service.WithFileLocation(cfg.Reminders.Location()),
		service.WithViewLinks(storage.NewViewLinkSigner(cfg.Storage.LinkSecret, cfg.Storage.LinkTTL)),
	)
	a.reminders = service.NewReminderService(
		fileRepo,
		userRepo,
		a.notifications,
		dispatcher,
		lease,
		cfg.Reminders,
		logr,
		service.WithReminderMetrics(a.metrics),
	)

	return a, nil
}

// Close releases connections in reverse order of creation. It is safe on a
// partially built app.
func (a *app) Close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.stream != nil {
		a.stream.Stop()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
