package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/repository"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
)

type authRepoStub struct {
	users       map[string]*models.User
	createErr   error
	updatedHash string
}

func newAuthRepo(users ...*models.User) *authRepoStub {
	repo := &authRepoStub{users: map[string]*models.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) Create(ctx context.Context, user *models.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	user.ID = "new-user"
	r.users[user.ID] = user
	return nil
}

func (r *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	r.updatedHash = passwordHash
	return nil
}

func hashedUser(t *testing.T, base models.User, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	base.Email = base.ID + "@docflow.test"
	base.PasswordHash = string(hash)
	return &base
}

func newAuthService(repo authUserRepository) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "docflow-test"})
}

func TestAuthServiceSignInIssuesDepartmentClaims(t *testing.T) {
	user := hashedUser(t, officerCS, "password123")
	svc := newAuthService(newAuthRepo(user))

	resp, err := svc.SignIn(context.Background(), models.SignInRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.DepartmentCS, resp.User.Department)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, officerCS.ID, claims.UserID)
	assert.Equal(t, models.RoleProgramOfficer, claims.Role)
	assert.Equal(t, models.DepartmentCS, claims.Department)
	assert.Equal(t, "docflow-test", claims.Issuer)

	assert.Equal(t, actorOf(officerCS), claims.Actor())
}

func TestAuthServiceSignInRejectsBadCredentials(t *testing.T) {
	user := hashedUser(t, studentCS, "password123")
	svc := newAuthService(newAuthRepo(user))
	ctx := context.Background()

	_, err := svc.SignIn(ctx, models.SignInRequest{Email: user.Email, Password: "wrong"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials.Code))

	_, err = svc.SignIn(ctx, models.SignInRequest{Email: "nobody@docflow.test", Password: "password123"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials.Code))

	_, err = svc.SignIn(ctx, models.SignInRequest{Email: "not-an-email", Password: "x"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestAuthServiceSignUpCreatesStudent(t *testing.T) {
	repo := newAuthRepo()
	svc := newAuthService(repo)

	resp, err := svc.SignUp(context.Background(), models.SignUpRequest{
		Email:      "New.Student@Docflow.test",
		Password:   "secret1",
		FullName:   "New Student",
		RollNumber: "21K-0001",
		Department: models.DepartmentSE,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.Equal(t, "new.student@docflow.test", repo.users["new-user"].Email)
	assert.NotEqual(t, "secret1", repo.users["new-user"].PasswordHash)
}

func TestAuthServiceSignUpRules(t *testing.T) {
	existing := hashedUser(t, studentCS, "password123")
	repo := newAuthRepo(existing)
	svc := newAuthService(repo)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, models.SignUpRequest{Email: existing.Email, Password: "secret1", FullName: "x", RollNumber: "1", Department: models.DepartmentCS})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrAlreadyExists.Code))

	_, err = svc.SignUp(ctx, models.SignUpRequest{Email: "fin@docflow.test", Password: "secret1", FullName: "x", RollNumber: "1", Department: models.DepartmentFin})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	repo.createErr = repository.ErrDuplicate
	_, err = svc.SignUp(ctx, models.SignUpRequest{Email: "race@docflow.test", Password: "secret1", FullName: "x", RollNumber: "1", Department: models.DepartmentCS})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrAlreadyExists.Code))
}

func TestAuthServiceChangePassword(t *testing.T) {
	user := hashedUser(t, studentCS, "password123")
	repo := newAuthRepo(user)
	svc := newAuthService(repo)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID, models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpass1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	require.NoError(t, svc.ChangePassword(ctx, user.ID, models.ChangePasswordRequest{OldPassword: "password123", NewPassword: "newpass1"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.updatedHash), []byte("newpass1")))

	err = svc.ChangePassword(ctx, "ghost", models.ChangePasswordRequest{OldPassword: "password123", NewPassword: "newpass1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestAuthServiceValidateTokenRejectsForeignSecret(t *testing.T) {
	user := hashedUser(t, adminUser, "password123")
	issuer := NewAuthService(newAuthRepo(user), nil, nil, AuthConfig{AccessTokenSecret: "other"})
	resp, err := issuer.SignIn(context.Background(), models.SignInRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)

	_, err = newAuthService(newAuthRepo()).ValidateToken(resp.AccessToken)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}
