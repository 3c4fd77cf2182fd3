package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"opsuite/pkg/apperr"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func GetValidator() *validator.Validate {
	once.Do(initValidator)
	return validate
}

func initValidator() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// report json names, not Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// Struct validates v and wraps failures in apperr.ErrValidation.
func Struct(v any) error {
	if err := GetValidator().Struct(v); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrValidation, strings.Join(ParseErrors(err), " // "))
	}
	return nil
}

func ParseErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, prettyError(e))
	}
	return errs
}

func prettyError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " field is required"
	case "email":
		return e.Field() + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", e.Field(), strings.ReplaceAll(e.Param(), " ", ", "))
	case "min":
		if e.Type().Kind() == reflect.String {
			return fmt.Sprintf("%s length must be greater than or equal to %s", e.Field(), e.Param())
		}
		if e.Type().Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be greater than or equal to %s", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be less than or equal to %s", e.Field(), e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", e.Field(), e.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", e.Field(), e.Param())
	default:
		return e.Error()
	}
}
