package bind

import (
	"errors"
	"fmt"
)

// Validator validates a decoded value before it is bound to a struct.
type Validator interface {
	// Validate checks if the value is valid.
	// Returns nil if valid, or an error describing the validation failure.
	Validate(v any) error
}

// ValidatorFunc is a function adapter for Validator.
type ValidatorFunc func(v any) error

// Validate implements the Validator interface.
func (f ValidatorFunc) Validate(v any) error {
	return f(v)
}

// Sentinel errors for binding
var (
	ErrValidationFailed = errors.New("bind: validation failed")
	ErrBindingFailed    = errors.New("bind: binding failed")
	ErrInvalidSchema    = errors.New("bind: invalid schema")
	ErrCyclicValue      = errors.New("bind: value graph contains a cycle")
)

// ValidationError represents a validation failure.
type ValidationError struct {
	Field  string // Struct field (if applicable)
	Value  any    // The value that failed validation
	Reason string // Human-readable reason
	Err    error  // Underlying error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("bind: validation failed for field %q: %s", e.Field, e.reason())
	}
	return fmt.Sprintf("bind: validation failed: %s", e.reason())
}

func (e *ValidationError) reason() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrValidationFailed
}

// BindError represents a failure to map a decoded graph onto a struct.
type BindError struct {
	Op  string // "decode" or "convert"
	Err error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind: %s failed: %v", e.Op, e.Err)
}

func (e *BindError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrBindingFailed
}

// IsValidationFailed checks if an error is a validation failure.
func IsValidationFailed(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrValidationFailed) || errors.As(err, &ve)
}
