package shared

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"spherelink/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the process-wide validator; it caches struct metadata.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct checks s against its `validate` tags and reports the first
// failing field as a domain validation error.
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) || len(fes) == 0 {
		return domain.ValidationCause(err, "invalid input")
	}
	return domain.Validation("%s", describe(fes[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "latitude":
		return fmt.Sprintf("%s must be a valid latitude (-90 to 90)", fe.Field())
	case "longitude":
		return fmt.Sprintf("%s must be a valid longitude (-180 to 180)", fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
