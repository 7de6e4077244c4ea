package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrValidationFailed wraps every error returned by Validate.
var ErrValidationFailed = errors.New("validation failed")

var (
	validate     *validator.Validate
	validateOnce sync.Once
	validateErr  error
)

func initValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && d.IsPositive()
	}); err != nil {
		return nil, fmt.Errorf("failed to register positive_decimal: %w", err)
	}
	return v, nil
}

// Validate checks msg against its validate struct tags.
func Validate(msg any) error {
	validateOnce.Do(func() {
		validate, validateErr = initValidator()
	})
	if validateErr != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, validateErr)
	}

	if err := validate.Struct(msg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s", ErrValidationFailed, describe(fieldErrs[0]))
		}
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "positive_decimal":
		return fmt.Sprintf("%s must be a positive amount", field)
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
