package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/fee-ledger-api/internal/models"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
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

// validationError converts the first failed rule into a field-named
// validation error.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fe.Field() + " is required"
	case "datetime":
		msg = fe.Field() + " must be a calendar date (YYYY-MM-DD)"
	case "oneof":
		msg = fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	return appErrors.Validation(fe.Field(), msg)
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, appErrors.Validation(field, field+" must be a calendar date (YYYY-MM-DD)")
	}
	return t, nil
}

// storageError keeps typed errors and wraps everything else as a substrate failure.
func storageError(err error, message string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Storage(err, message)
}
