package service

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	appErrors "github.com/noah-isme/hims-api/pkg/errors"
)

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// requireID rejects identifiers that are not well-formed UUIDs.
func requireID(id, kind string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid "+kind+" id format")
	}
	return nil
}

func fieldError(field, message string) *appErrors.Error {
	appErr := appErrors.Clone(appErrors.ErrValidation, "validation failed")
	appErr.Details = []appErrors.FieldError{{Field: field, Message: message}}
	return appErr
}
