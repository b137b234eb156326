package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load file: %w", Clone(ErrNotFound, "file not found"))
	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
	assert.Equal(t, "file not found", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrForbidden, "only admins may delete users")
	assert.Equal(t, "forbidden", ErrForbidden.Message)
	assert.Equal(t, "only admins may delete users", clone.Message)
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("review: %w", Clone(ErrInvalidTransition, "file is not forwarded"))
	assert.True(t, HasCode(err, ErrInvalidTransition.Code))
	assert.False(t, HasCode(err, ErrForbidden.Code))
	assert.False(t, HasCode(sql.ErrNoRows, ErrNotFound.Code))
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("forward: %w", Clone(ErrNotFound, "file not found"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrForbidden)
}

type signUpPayload struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

func TestInvalidListsFields(t *testing.T) {
	err := validator.New().Struct(signUpPayload{Email: "nope", Password: "123"})
	require.Error(t, err)

	appErr := Invalid(err, "invalid signup payload")
	assert.Equal(t, ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, []FieldError{{Field: "email", Rule: "email"}, {Field: "password", Rule: "min"}}, appErr.Fields)

	plain := Invalid(fmt.Errorf("bad json"), "invalid payload")
	assert.Empty(t, plain.Fields)
}
