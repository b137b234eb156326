package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/realtime"
	"github.com/noah-isme/docflow-api/pkg/cache"
	"github.com/noah-isme/docflow-api/pkg/config"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
)

type reminderFileStore interface {
	ListDueReminders(ctx context.Context, from, to time.Time) ([]models.File, error)
	MarkReminderSent(ctx context.Context, id string) error
}

// ReminderService periodically notifies reviewers about files whose reminder
// time has arrived, and suggests reminder times for new uploads.
type ReminderService struct {
	files         reminderFileStore
	users         audienceDirectory
	notifications notificationWriter
	dispatcher    eventDispatcher
	lease         cache.Lease
	clock         Clock
	metrics       *MetricsService
	logger        *zap.Logger

	interval time.Duration
	leaseKey string
	leaseTTL time.Duration
	location *time.Location
}

// ReminderServiceOption customises a ReminderService.
type ReminderServiceOption func(*ReminderService)

// WithReminderClock overrides the sweep clock.
func WithReminderClock(clock Clock) ReminderServiceOption {
	return func(s *ReminderService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithReminderMetrics records sweep outcomes.
func WithReminderMetrics(metrics *MetricsService) ReminderServiceOption {
	return func(s *ReminderService) {
		s.metrics = metrics
	}
}

// NewReminderService constructs the scheduler. A nil lease always grants.
func NewReminderService(
	files reminderFileStore,
	users audienceDirectory,
	notifications notificationWriter,
	dispatcher eventDispatcher,
	lease cache.Lease,
	cfg config.ReminderConfig,
	logger *zap.Logger,
	opts ...ReminderServiceOption,
) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lease == nil {
		lease = cache.LocalLease{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = cfg.Interval - cfg.Interval/6
	}
	if cfg.LeaseKey == "" {
		cfg.LeaseKey = "docflow:reminder-sweep"
	}
	s := &ReminderService{
		files:         files,
		users:         users,
		notifications: notifications,
		dispatcher:    dispatcher,
		lease:         lease,
		clock:         RealClock{},
		logger:        logger,
		interval:      cfg.Interval,
		leaseKey:      cfg.LeaseKey,
		leaseTTL:      cfg.LeaseTTL,
		location:      cfg.Location(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on every interval tick until ctx is cancelled.
func (s *ReminderService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("reminder scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("reminder sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep sends every reminder that fell due during the last interval and
// returns how many were sent. Another process holding the lease makes the
// sweep a no-op.
func (s *ReminderService) Sweep(ctx context.Context) (int, error) {
	release, ok, err := s.lease.Acquire(ctx, s.leaseKey, s.leaseTTL)
	if err != nil {
		s.metrics.RecordReminderSweep("lease_error", 0)
		return 0, fmt.Errorf("acquire reminder lease: %w", err)
	}
	if !ok {
		s.metrics.RecordReminderSweep("skipped", 0)
		return 0, nil
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			s.logger.Warn("release reminder lease", zap.Error(err))
		}
	}()

	now := s.clock.Now()
	due, err := s.files.ListDueReminders(ctx, now.Add(-s.interval), now)
	if err != nil {
		s.metrics.RecordReminderSweep("error", 0)
		return 0, fmt.Errorf("list due reminders: %w", err)
	}

	sent := 0
	for i := range due {
		file := &due[i]
		if err := s.remind(ctx, file); err != nil {
			s.logger.Warn("reminder not delivered", zap.String("file_id", file.ID), zap.Error(err))
			continue
		}
		if err := s.files.MarkReminderSent(ctx, file.ID); err != nil {
			s.logger.Warn("reminder sent but not flagged", zap.String("file_id", file.ID), zap.Error(err))
			continue
		}
		sent++
	}

	s.metrics.RecordReminderSweep("ok", sent)
	if len(due) > 0 {
		s.logger.Info("reminder sweep finished", zap.Int("due", len(due)), zap.Int("sent", sent))
	}
	return sent, nil
}

func (s *ReminderService) remind(ctx context.Context, file *models.File) error {
	officers := models.RoleDepartment{Role: models.RoleProgramOfficer, Department: file.Department}
	s.dispatcher.Dispatch(ctx, models.Delivery{
		Event: models.EventReminder,
		Payload: models.ReminderPayload{
			FileID:     file.ID,
			FileName:   file.FileName,
			DueDate:    file.DueDate,
			ReminderAt: file.ReminderAt,
			UploadedBy: file.UploadedBy,
		},
		Channels:     []string{realtime.RoleKey(models.RoleAdmin), realtime.RoleDepartmentKey(officers.Role, officers.Department)},
		ExceptUserID: file.UploadedBy,
		Key:          file.ID,
	})

	users, err := s.users.ListByAudience(ctx, models.AudienceFilter{
		Roles:           []models.UserRole{models.RoleAdmin},
		RoleDepartments: []models.RoleDepartment{officers},
	})
	if err != nil {
		return fmt.Errorf("resolve reminder recipients: %w", err)
	}
	recipients := make([]string, 0, len(users))
	for _, u := range users {
		if u.ID != file.UploadedBy {
			recipients = append(recipients, u.ID)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	uploader := file.UploaderName
	if uploader == "" {
		uploader = file.UploadedBy
	}
	notification := &models.Notification{
		Recipients: recipients,
		Title:      "Reminder Due",
		Message:    fmt.Sprintf("%s's file is due soon.", uploader),
		CreatedBy:  file.UploadedBy,
		CreatedAt:  s.clock.Now(),
	}
	models.NotificationSnapshot(notification, file)
	if err := s.notifications.Create(ctx, nil, notification); err != nil {
		return err
	}
	s.dispatcher.Dispatch(ctx, models.Delivery{Event: models.EventNotificationNew, Payload: notification, Users: recipients, Key: file.ID})
	return nil
}

// SuggestReminder proposes a reminder time for a file due at due.
func (s *ReminderService) SuggestReminder(due time.Time) (*models.ReminderSuggestion, error) {
	now := s.clock.Now()
	if !due.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due date must be in the future")
	}
	return &models.ReminderSuggestion{DueDate: due, ReminderAt: SuggestReminder(due, now, s.location)}, nil
}

// SuggestReminder picks a reminder time scaled to how far away due is.
// Reminders a day or more out land at 10:00 in loc. A suggestion that would
// already be in the past becomes ten minutes from now.
func SuggestReminder(due, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lead := due.Sub(now)

	var at time.Time
	switch {
	case lead <= time.Hour:
		at = due.Add(-15 * time.Minute)
	case lead <= 3*time.Hour:
		at = due.Add(-time.Hour)
	case lead <= 24*time.Hour:
		at = due.Add(-3 * time.Hour)
	case lead <= 72*time.Hour:
		at = atTen(due.Add(-24*time.Hour), loc)
	default:
		at = atTen(due.Add(-48*time.Hour), loc)
	}

	if at.Before(now) {
		return now.Add(10 * time.Minute)
	}
	return at
}

func atTen(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 10, 0, 0, 0, loc)
}
