package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the decision framework

var (
	// ErrValidation indicates bad caller input; never retried
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates a referenced entity is absent
	ErrNotFound = errors.New("resource not found")

	// ErrAIService indicates a transient AI collaborator failure
	ErrAIService = errors.New("ai service error")

	// ErrDatabase indicates a transient persistence failure
	ErrDatabase = errors.New("database error")

	// ErrParsing indicates malformed model output; triggers a typed fallback, not a retry
	ErrParsing = errors.New("parsing error")

	// ErrPermission indicates insufficient permissions
	ErrPermission = errors.New("permission denied")

	// ErrRateLimit indicates an API rate limit was exceeded
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnknown is the catch-all; always logged with full context
	ErrUnknown = errors.New("unknown error")
)

// Retryable reports whether err belongs to a transient class that may be
// retried with backoff. Validation and parsing errors are never retryable.
func Retryable(err error) bool {
	return errors.Is(err, ErrAIService) ||
		errors.Is(err, ErrDatabase) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimit)
}

// AppError wraps an error with a stable id, severity and structured context
// for later analytics. User-facing callers see Message; Err stays internal.
type AppError struct {
	ID       string
	Code     string
	Message  string
	Severity Level
	Function string
	Context  map[string]interface{}
	Err      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// UserMessage returns the clean caller-facing message without internal context
func (e *AppError) UserMessage() string {
	return e.Message
}

// NewAppError creates a new application error
func NewAppError(id, code, message string, severity Level, function string, ctx map[string]interface{}, err error) *AppError {
	return &AppError{
		ID:       id,
		Code:     code,
		Message:  message,
		Severity: severity,
		Function: function,
		Context:  ctx,
		Err:      err,
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap ties field-level validation errors into the taxonomy
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
