package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/docflow-api/internal/models"
)

// NewValidator returns a validator with the department rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
		return models.Department(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("origin_department", func(fl validator.FieldLevel) bool {
		return models.Department(fl.Field().String()).IsOrigin()
	})
	_ = v.RegisterValidation("review_department", func(fl validator.FieldLevel) bool {
		return models.Department(fl.Field().String()).IsReview()
	})
	return v
}
