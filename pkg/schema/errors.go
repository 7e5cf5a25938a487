package schema

import (
	"errors"
	"fmt"
)

// ErrSchemaInvalid indicates the canonical schema JSON failed an invariant
// (empty suggested_queries, dangling relationship reference, etc).
var ErrSchemaInvalid = errors.New("canonical schema invalid")

// ValidationError wraps ErrSchemaInvalid with the specific violation,
// following the teacher's pkg/config/errors.go ValidationError shape.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("canonical schema invalid: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaInvalid
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
