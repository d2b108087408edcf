package distribution

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("distribution: validation failed")
	// ErrUnauthorized marks a request rejected before any side effect.
	ErrUnauthorized = errors.New("distribution: unauthorized")
	// ErrConfiguration marks missing or unusable runtime configuration.
	ErrConfiguration = errors.New("distribution: configuration error")
	// ErrStorage marks a failure of the underlying store.
	ErrStorage = errors.New("distribution: storage error")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string
	Message string
	Type    string
}

// ValidationError collects field-level validation failures.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError orders fields by column position so responses are stable.
// Fields that are not record columns are dropped.
func NewValidationError(fields ...FieldError) *ValidationError {
	ordered := make([]FieldError, 0, len(fields))
	for _, column := range Columns {
		for _, fieldErr := range fields {
			if fieldErr.Field == column {
				ordered = append(ordered, fieldErr)
			}
		}
	}
	return &ValidationError{Fields: ordered}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("%s: %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("%d invalid fields", len(e.Fields))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ServiceError carries a stable code of the form <operation>.<reason>.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "distribution.service.new"
	opAppend     = "distribution.append"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
