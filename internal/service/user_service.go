package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/realtime"
	"github.com/noah-isme/docflow-api/internal/repository"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email      string            `json:"email" validate:"required,email"`
	FullName   string            `json:"fullName" validate:"required"`
	RollNumber string            `json:"rollNumber"`
	Role       models.UserRole   `json:"role" validate:"required,oneof=student program_officer admin"`
	Department models.Department `json:"department" validate:"omitempty,department"`
	Password   string            `json:"password" validate:"required,min=6"`
}

// UpdateUserRequest payload for updating users. Role is immutable; when
// sent it must match the stored role. Password, when set, resets the
// user's password.
type UpdateUserRequest struct {
	Email      string            `json:"email" validate:"required,email"`
	FullName   string            `json:"fullName" validate:"required"`
	RollNumber string            `json:"rollNumber"`
	Role       models.UserRole   `json:"role,omitempty" validate:"omitempty,oneof=student program_officer admin"`
	Department models.Department `json:"department" validate:"omitempty,department"`
	Password   string            `json:"password,omitempty" validate:"omitempty,min=6"`
}

// UserService handles admin user management and announces changes to the
// other connected admins.
type UserService struct {
	repo       userRepository
	dispatcher eventDispatcher
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, dispatcher eventDispatcher, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, dispatcher: dispatcher, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new user.
func (s *UserService) Create(ctx context.Context, actor models.Actor, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid create user payload")
	}
	if err := checkRoleDepartment(req.Role, req.Department); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     req.FullName,
		RollNumber:   req.RollNumber,
		Role:         req.Role,
		Department:   departmentFor(req.Role, req.Department),
		PasswordHash: string(passwordHash),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, mapUserWriteError(err, "failed to create user")
	}

	s.announce(ctx, actor, models.EventUserCreated, user)
	return user, nil
}

// Update modifies the user attributes and optionally resets the password.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Role != "" && req.Role != user.Role {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role cannot be changed")
	}
	if err := checkRoleDepartment(user.Role, req.Department); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != user.Email {
		if _, err := s.repo.FindByEmail(ctx, email); err == nil {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "email already exists")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
		}
	}

	var passwordHash []byte
	if req.Password != "" {
		if passwordHash, err = bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
	}

	user.Email = email
	user.FullName = req.FullName
	user.RollNumber = req.RollNumber
	user.Department = departmentFor(user.Role, req.Department)

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, mapUserWriteError(err, "failed to update user")
	}
	if passwordHash != nil {
		if err := s.repo.UpdatePassword(ctx, user.ID, string(passwordHash), time.Now().UTC()); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset password")
		}
		user.PasswordHash = string(passwordHash)
	}

	s.announce(ctx, actor, models.EventUserUpdated, user)
	return user, nil
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if id == actor.ID {
		return appErrors.Clone(appErrors.ErrValidation, "admins cannot delete their own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.announce(ctx, actor, models.EventUserDeleted, models.DeletedPayload{ID: id})
	return nil
}

func (s *UserService) announce(ctx context.Context, actor models.Actor, event models.EventName, payload interface{}) {
	s.logger.Info("user directory changed", zap.String("event", string(event)), zap.String("actor_id", actor.ID))
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(ctx, models.Delivery{
		Event:        event,
		Payload:      payload,
		Channels:     []string{realtime.RoleKey(models.RoleAdmin)},
		ExceptUserID: actor.ID,
	})
}

func checkRoleDepartment(role models.UserRole, dept models.Department) error {
	if role.RequiresDepartment() && dept == "" {
		return appErrors.Clone(appErrors.ErrValidation, "department is required for "+string(role))
	}
	if role == models.RoleStudent && !dept.IsOrigin() {
		return appErrors.Clone(appErrors.ErrValidation, "students belong to an academic department")
	}
	return nil
}

func departmentFor(role models.UserRole, dept models.Department) models.Department {
	if role == models.RoleAdmin {
		return ""
	}
	return dept
}

func mapUserWriteError(err error, message string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Clone(appErrors.ErrAlreadyExists, "email already exists")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
