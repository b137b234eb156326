package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docflow-api/internal/models"
)

const notificationColumns = `id, recipients, title, message, file_id, file_unique_id, file_name, status, remarks, created_by, read_by, created_at`

// ErrNotRecipient is returned when a user marks a notification not addressed to them.
var ErrNotRecipient = errors.New("user is not a recipient")

// NotificationRepository persists notifications and their read state.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error {
	if n == nil {
		return fmt.Errorf("notification payload is nil")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}
	query := `INSERT INTO notifications (` + notificationColumns + `) VALUES (:id, :recipients, :title, :message, :file_id, :file_unique_id, :file_name, :status, :remarks, :created_by, :read_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// MarkRead adds userID to read_by. It reports whether the row changed;
// marking an already read notification is a no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	const query = `UPDATE notifications SET read_by = array_append(read_by, $2)
WHERE id = $1 AND $2 = ANY(recipients) AND NOT ($2 = ANY(read_by))`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	var recipient bool
	const check = `SELECT $2 = ANY(recipients) FROM notifications WHERE id = $1`
	if err := r.db.GetContext(ctx, &recipient, check, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
		return false, fmt.Errorf("check notification recipient: %w", err)
	}
	if !recipient {
		return false, ErrNotRecipient
	}
	return false, nil
}

// MarkAllRead marks every unread notification of userID and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const query = `UPDATE notifications SET read_by = array_append(read_by, $1)
WHERE $1 = ANY(recipients) AND NOT ($1 = ANY(read_by)) AND created_by <> $1`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read rows affected: %w", err)
	}
	return affected, nil
}

// ListUnread returns notifications userID has not read, newest first.
func (r *NotificationRepository) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
WHERE $1 = ANY(recipients) AND NOT ($1 = ANY(read_by)) AND created_by <> $1 ORDER BY created_at DESC`
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	return items, nil
}

// ListAll returns every notification addressed to userID that the user did
// not create, newest first.
func (r *NotificationRepository) ListAll(ctx context.Context, userID string) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
WHERE $1 = ANY(recipients) AND created_by <> $1 ORDER BY created_at DESC`
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}
