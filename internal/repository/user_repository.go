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
	"github.com/lib/pq"

	"github.com/noah-isme/docflow-api/internal/models"
)

const userColumns = `id, email, password_hash, full_name, roll_number, role, department, created_at, updated_at`

// UserRepository provides database access for the user directory.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks a user up case-insensitively. A miss returns sql.ErrNoRows.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER($1)", email)
}

// FindByID returns the user or sql.ErrNoRows.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`, arg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("find user (%s): %w", where, err)
	}
	return &user, nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// userWhere accumulates positional predicates for the directory listing.
type userWhere struct {
	preds []string
	args  []interface{}
}

func (w *userWhere) add(pred string, arg interface{}) {
	w.args = append(w.args, arg)
	w.preds = append(w.preds, strings.ReplaceAll(pred, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *userWhere) String() string {
	if len(w.preds) == 0 {
		return "WHERE 1=1"
	}
	return "WHERE 1=1 AND " + strings.Join(w.preds, " AND ")
}

// List pages through the directory, newest first, and reports the total
// match count for the same filter.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var where userWhere
	if filter.Role != nil {
		where.add("role = ?", *filter.Role)
	}
	if filter.Department != "" {
		where.add("department = ?", filter.Department)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		where.add("(LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?)", "%"+term+"%")
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	users := []models.User{}
	listSQL := fmt.Sprintf("SELECT %s FROM users %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		userColumns, where.String(), size, (page-1)*size)
	if err := r.db.SelectContext(ctx, &users, listSQL, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users "+where.String(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// ListByAudience returns every user matching at least one clause of the filter.
func (r *UserRepository) ListByAudience(ctx context.Context, filter models.AudienceFilter) ([]models.User, error) {
	if filter.Empty() {
		return nil, nil
	}

	var clauses []string
	var args []interface{}
	if len(filter.UserIDs) > 0 {
		args = append(args, pq.Array(filter.UserIDs))
		clauses = append(clauses, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		args = append(args, pq.Array(roles))
		clauses = append(clauses, fmt.Sprintf("role = ANY($%d)", len(args)))
	}
	for _, rd := range filter.RoleDepartments {
		args = append(args, rd.Role, rd.Department)
		clauses = append(clauses, fmt.Sprintf("(role = $%d AND department = $%d)", len(args)-1, len(args)))
	}

	query := fmt.Sprintf("SELECT %s FROM users WHERE %s ORDER BY created_at", userColumns, strings.Join(clauses, " OR "))
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users by audience: %w", err)
	}
	return users, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, full_name, roll_number, role, department, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :roll_number, :role, :department, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update updates mutable fields of a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET email = :email, full_name = :full_name, roll_number = :roll_number, role = :role, department = :department, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Delete removes the user row.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
