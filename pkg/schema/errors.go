package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeSecurity   = "SECURITY_ERROR"
	ErrCodeCapability = "CAPABILITY_ERROR"
	ErrCodeCondition  = "CONDITION_ERROR"
	ErrCodeTemplate   = "TEMPLATE_ERROR"
	ErrCodeHandler    = "HANDLER_ERROR"
	ErrCodeExecution  = "EXECUTION_ERROR"
	ErrCodeRetry      = "RETRY_ERROR"
	ErrCodeStore      = "STORE_ERROR"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeNotFound   = "NOT_FOUND"
)

// EngineError is the structured error type for all engine operations.
// Transient is an explicit marker consulted by the retry policy; it is never
// inferred from the message or the error's dynamic type.
type EngineError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	StepName  string         `json:"step_name,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Transient bool           `json:"transient,omitempty"`
	Cause     error          `json:"-"`
}

func (e *EngineError) Error() string {
	if e.StepName != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepName, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// NewError creates a new EngineError.
func NewError(code, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// NewErrorf creates a new EngineError with a formatted message.
func NewErrorf(code, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step name to the error.
func (e *EngineError) WithStep(stepName string) *EngineError {
	e.StepName = stepName
	return e
}

// WithCause attaches an underlying cause.
func (e *EngineError) WithCause(err error) *EngineError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *EngineError) WithDetails(details map[string]any) *EngineError {
	e.Details = details
	return e
}

// AsTransient marks the error as eligible for retry.
func (e *EngineError) AsTransient() *EngineError {
	e.Transient = true
	return e
}

// IsTransient reports whether err carries the explicit transient marker.
// Plain errors and unmarked EngineErrors are never transient.
func IsTransient(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Transient
	}
	return false
}
