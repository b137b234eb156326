package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docflow-api/internal/models"
)

const fileSelect = `SELECT f.id, f.unique_id, f.file_name, f.file_size, f.file_type, f.storage_key, f.uploaded_by,
COALESCE(u.full_name, '') AS uploader_name, f.uploaded_at, f.status, f.department, f.forwarded_to,
f.final_decision_pending, f.remarks, f.due_date, f.reminder_at, f.reminder_sent, f.history, f.updated_at
FROM files f LEFT JOIN users u ON u.id = f.uploaded_by`

// FileRepository persists uploaded files and their workflow state.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Insert stores a new file row.
func (r *FileRepository) Insert(ctx context.Context, exec sqlx.ExtContext, file *models.File) error {
	if file == nil {
		return fmt.Errorf("file payload is nil")
	}
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if file.UploadedAt.IsZero() {
		file.UploadedAt = now
	}
	file.UpdatedAt = now

	const query = `INSERT INTO files (id, unique_id, file_name, file_size, file_type, storage_key, uploaded_by, uploaded_at, status, department, forwarded_to, final_decision_pending, remarks, due_date, reminder_at, reminder_sent, history, updated_at)
VALUES (:id, :unique_id, :file_name, :file_size, :file_type, :storage_key, :uploaded_by, :uploaded_at, :status, :department, :forwarded_to, :final_decision_pending, :remarks, :due_date, :reminder_at, :reminder_sent, :history, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, file); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetByID loads a file with its uploader name.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	if err := r.db.GetContext(ctx, &file, fileSelect+` WHERE f.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return &file, nil
}

// List returns files matching the filter, newest first, with the total count.
func (r *FileRepository) List(ctx context.Context, filter models.FileFilter) ([]models.File, int, error) {
	var conditions []string
	var args []interface{}

	if filter.UploadedBy != "" {
		args = append(args, filter.UploadedBy)
		conditions = append(conditions, fmt.Sprintf("f.uploaded_by = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		if filter.IncludeForwarded {
			conditions = append(conditions, fmt.Sprintf("(f.department = $%d OR f.forwarded_to = $%d)", len(args), len(args)))
		} else {
			conditions = append(conditions, fmt.Sprintf("f.department = $%d", len(args)))
		}
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY f.uploaded_at DESC LIMIT %d OFFSET %d", fileSelect, where, pageSize, offset)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list files: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM files f"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count files: %w", err)
	}
	return files, total, nil
}

// UpdateWorkflow writes the status, forward bookkeeping, remarks and history
// in a single statement. sql.ErrNoRows is returned when the file is gone.
func (r *FileRepository) UpdateWorkflow(ctx context.Context, exec sqlx.ExtContext, file *models.File) error {
	file.UpdatedAt = time.Now().UTC()
	const query = `UPDATE files SET status = :status, forwarded_to = :forwarded_to, final_decision_pending = :final_decision_pending,
remarks = :remarks, history = :history, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, file)
	if err != nil {
		return fmt.Errorf("update file workflow: %w", err)
	}
	return requireAffected(res, "update file workflow")
}

// Delete hard-removes a file row.
func (r *FileRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return requireAffected(res, "delete file")
}

// ListDueReminders selects submitted files whose reminder falls in (from, to]
// and has not been sent yet.
func (r *FileRepository) ListDueReminders(ctx context.Context, from, to time.Time) ([]models.File, error) {
	query := fileSelect + ` WHERE f.status = $1 AND f.reminder_sent = FALSE AND f.reminder_at > $2 AND f.reminder_at <= $3 ORDER BY f.reminder_at`
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, models.FileStatusSubmitted, from, to); err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return files, nil
}

// MarkReminderSent flags the reminder of a file as delivered.
func (r *FileRepository) MarkReminderSent(ctx context.Context, id string) error {
	const query = `UPDATE files SET reminder_sent = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
