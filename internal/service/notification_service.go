package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/repository"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
)

type notificationStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	ListUnread(ctx context.Context, userID string) ([]models.Notification, error)
	ListAll(ctx context.Context, userID string) ([]models.Notification, error)
}

// NotificationService owns persisted notifications and their read state.
type NotificationService struct {
	repo    notificationStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationStore, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, metrics: metrics, logger: logger}
}

// Create persists n using exec, which may be an open transaction.
func (s *NotificationService) Create(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error {
	if n == nil || len(n.Recipients) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "notification requires recipients")
	}
	if n.Title == "" || n.CreatedBy == "" {
		return appErrors.Clone(appErrors.ErrValidation, "notification requires a title and creator")
	}
	if err := s.repo.Create(ctx, exec, n); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	s.metrics.RecordNotification()
	return nil
}

// ListUnread returns the caller's unread notifications, newest first.
func (s *NotificationService) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	items, err := s.repo.ListUnread(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// ListAll returns every notification addressed to the caller, newest first.
func (s *NotificationService) ListAll(ctx context.Context, userID string) ([]models.Notification, error) {
	items, err := s.repo.ListAll(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// MarkRead records that userID read the notification. Repeating it is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "notification id is required")
	}
	if _, err := s.repo.MarkRead(ctx, id, userID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		case errors.Is(err, repository.ErrNotRecipient):
			return appErrors.Clone(appErrors.ErrForbidden, "notification is not addressed to you")
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
		}
	}
	return nil
}

// MarkAllRead marks every unread notification of the actor and returns the
// number that changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor models.Actor) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.logger.Debug("notifications marked read", zap.String("user_id", actor.ID), zap.String("role", string(actor.Role)), zap.Int64("updated", updated))
	return updated, nil
}
