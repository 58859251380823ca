// Package validation turns go-playground/validator struct tags into field
// errors a form can show next to its inputs.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	dErrors "meridian/pkg/domain-errors"
	s "meridian/pkg/string"
)

var (
	slugPattern       = regexp.MustCompile(`^[a-z0-9]+$`)
	postalCodePattern = regexp.MustCompile(`^\d{8}$`)
)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("postalcode", func(fl validator.FieldLevel) bool {
		return postalCodePattern.MatchString(s.Digits(fl.Field().String()))
	})
	_ = v.RegisterValidation("document", func(fl validator.FieldLevel) bool {
		n := len(s.Digits(fl.Field().String()))
		return n == 11 || n == 14
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		n := len(s.Digits(fl.Field().String()))
		return n == 10 || n == 11
	})
	_ = v.RegisterValidation("accepted", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.Bool && fl.Field().Bool()
	})
	return v
}

// FieldError is one message bound to a form field. Field is empty for
// messages that concern the whole form.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Fields validates v and returns every failing field in declaration order.
func Fields(v any) []FieldError {
	err := defaultValidator.Struct(v)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []FieldError{{Message: "invalid form"}}
	}
	out := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, FieldError{Field: fieldName(fe), Message: fieldMessage(fe)})
	}
	return out
}

// Validate validates a struct and returns a validation domain error carrying
// every field error.
func Validate(v any) error {
	fields := Fields(v)
	if len(fields) == 0 {
		return nil
	}
	return dErrors.Wrap(Combine(fields), dErrors.CodeValidation, ErrorMessage(fields))
}

// Combine aggregates field errors; multierr.Errors recovers them.
func Combine(fields []FieldError) error {
	errs := make([]error, 0, len(fields))
	for _, f := range fields {
		errs = append(errs, f)
	}
	return multierr.Combine(errs...)
}

// ErrorMessage returns the message of the first field error.
func ErrorMessage(fields []FieldError) string {
	if len(fields) == 0 {
		return "invalid form"
	}
	return fields[0].Error()
}

func fieldName(fe validator.FieldError) string {
	if name := fe.Field(); name != "" {
		return s.ToSnakeCase(name)
	}
	return s.ToSnakeCase(fe.StructField())
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required", "notblank":
		if fe.Kind() == reflect.Bool {
			return "must be accepted"
		}
		return "is required"
	case "accepted":
		return "must be accepted"
	case "email":
		return "must be a valid email"
	case "url", "http_url":
		return "must be a valid url"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have exactly %s characters", fe.Param())
	case "eqfield":
		return fmt.Sprintf("must match %s", s.ToSnakeCase(fe.Param()))
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "slug":
		return "must contain only lowercase letters and digits"
	case "postalcode":
		return "must have 8 digits"
	case "document":
		return "must be a CPF (11 digits) or CNPJ (14 digits)"
	case "phone":
		return "must have 10 or 11 digits"
	default:
		return "is invalid"
	}
}
