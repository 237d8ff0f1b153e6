package services

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrForbidden is returned when an actor lacks the trust tier an operation
// requires.
var ErrForbidden = errors.New("actor is not authorized for this operation")

// FieldError is a single invariant violation tied to an input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every violated invariant from one validation
// pass. Callers always see the full list, never just the first failure.
type ValidationError struct {
	Violations []FieldError `json:"violations"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Field+" "+v.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Violations = append(e.Violations, FieldError{Field: field, Message: message})
}

func (e *ValidationError) empty() bool {
	return len(e.Violations) == 0
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
