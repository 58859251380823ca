package wizard

import (
	"context"

	"meridian/pkg/validation"
)

// FieldError is one message bound to a form field.
type FieldError = validation.FieldError

// Result is the outcome of one validation hook.
type Result struct {
	Valid  bool
	Errors []FieldError
}

// Messages flattens the errors for display.
func (r Result) Messages() []string {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Error())
	}
	return out
}

// Err aggregates the errors, or returns nil when there are none.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return validation.Combine(r.Errors)
}

func Valid() Result {
	return Result{Valid: true}
}

func Invalid(errs ...FieldError) Result {
	return Result{Errors: errs}
}

// Failed reports err as an invalid step with a form-level message.
func Failed(err error) Result {
	return Result{Errors: []FieldError{{Message: err.Error()}}}
}

// Validator checks one step. It may block on I/O and should honor ctx.
type Validator func(ctx context.Context) Result

// Struct validates the value returned by form at call time against its
// validate tags.
func Struct(form func() any) Validator {
	return func(context.Context) Result {
		errs := validation.Fields(form())
		if len(errs) > 0 {
			return Invalid(errs...)
		}
		return Valid()
	}
}
