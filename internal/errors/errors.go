// Package errors provides the structured error types used to classify why a
// build-deploy cycle stopped, so the CLI can pick an exit code from the cause
// instead of from message text.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCategory represents the category of an error for classification
type ErrorCategory string

const (
	// Bad input: missing file, missing key, unknown builder kind.
	CategoryConfig ErrorCategory = "config"

	// Another run of the same project holds the lock.
	CategoryConcurrency ErrorCategory = "concurrency"

	// The host is not prepared for a run (checkout missing).
	CategoryEnvironment ErrorCategory = "environment"

	// Filesystem and state persistence problems.
	CategoryFileSystem ErrorCategory = "filesystem"

	// Anything we did not expect.
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityBenign  ErrorSeverity = "benign"  // Stops execution, nothing is wrong with the site
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// ClassifiedError is a structured error with category, severity and context.
type ClassifiedError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for ClassifiedError
type ContextFields map[string]any

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new ClassifiedError
func New(category ErrorCategory, severity ErrorSeverity, message string) *ClassifiedError {
	return &ClassifiedError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new ClassifiedError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *ClassifiedError {
	return &ClassifiedError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// AsClassified returns the first ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if stdErrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if ce, ok := AsClassified(err); ok {
		return ce.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not classified
func GetCategory(err error) ErrorCategory {
	if ce, ok := AsClassified(err); ok {
		return ce.Category
	}
	return CategoryInternal
}

// Is and As re-export the standard library helpers so callers importing this
// package under the name errors keep access to them.
func Is(err, target error) bool { return stdErrors.Is(err, target) }

func As(err error, target any) bool { return stdErrors.As(err, target) }
