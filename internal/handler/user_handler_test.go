package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/service"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
)

type fakeUserService struct {
	filter  models.UserFilter
	created service.CreateUserRequest
	actor   models.Actor
	deleted string
	err     error
}

func (f *fakeUserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	f.filter = filter
	return []models.User{{ID: "u1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, f.err
}

func (f *fakeUserService) Get(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id}, f.err
}

func (f *fakeUserService) Create(ctx context.Context, actor models.Actor, req service.CreateUserRequest) (*models.User, error) {
	f.actor, f.created = actor, req
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: "u2", Email: req.Email, Role: req.Role}, nil
}

func (f *fakeUserService) Update(ctx context.Context, actor models.Actor, id string, req service.UpdateUserRequest) (*models.User, error) {
	return &models.User{ID: id, Email: req.Email}, f.err
}

func (f *fakeUserService) Delete(ctx context.Context, actor models.Actor, id string) error {
	f.deleted = id
	return f.err
}

var adminClaims = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, FullName: "Root"}

func TestUserHandlerListFilters(t *testing.T) {
	svc := &fakeUserService{}
	handler := NewUserHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/admin/users?role=program_officer&department=Fin&search=ali", nil, adminClaims)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.Role)
	assert.Equal(t, models.RoleProgramOfficer, *svc.filter.Role)
	assert.Equal(t, models.DepartmentFin, svc.filter.Department)
	assert.Equal(t, "ali", svc.filter.Search)
}

func TestUserHandlerCreatePassesActor(t *testing.T) {
	svc := &fakeUserService{}
	handler := NewUserHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/admin/users", []byte(`{"email":"po@docflow.test","fullName":"PO","role":"program_officer","department":"Exam","password":"secret1"}`), adminClaims)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "admin-1", svc.actor.ID)
	assert.Equal(t, models.DepartmentExam, svc.created.Department)
}

func TestUserHandlerDeleteErrors(t *testing.T) {
	svc := &fakeUserService{err: appErrors.Clone(appErrors.ErrNotFound, "user not found")}
	handler := NewUserHandler(svc)

	c, rec := newTestContext(http.MethodDelete, "/admin/users/ghost", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	handler.Delete(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ghost", svc.deleted)
}
