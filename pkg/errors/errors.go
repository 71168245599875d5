// Package errors defines the categorized error type used across the
// reconciliation engine.
//
// Errors carry a category (which collaborator or stage failed), a specific
// code, an optional remediation suggestion, and arbitrary context values.
// Stack traces are captured through github.com/pkg/errors so that unexpected
// failures can be diagnosed from logs.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory identifies which part of the engine an error originates from.
type ErrorCategory string

const (
	CategoryFetch          ErrorCategory = "fetch"
	CategoryPersistence    ErrorCategory = "persistence"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConflict       ErrorCategory = "conflict"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

const (
	// Fetch errors
	CodeSourceUnavailable ErrorCode = "source_unavailable"
	CodeQueryFailed       ErrorCode = "query_failed"

	// Persistence errors
	CodeWriteFailed         ErrorCode = "write_failed"
	CodeConstraintViolation ErrorCode = "constraint_violation"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"

	// Conflict errors
	CodeAlreadyReconciled ErrorCode = "already_reconciled"

	// Reconciliation errors
	CodeMatchingFailed ErrorCode = "matching_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// EngineError is the error type returned by the reconciliation engine and its
// persistence collaborators.
type EngineError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate process exit code for the error.
func (e *EngineError) GetExitCode() int {
	switch e.Category {
	case CategoryFetch:
		return 2
	case CategoryValidation:
		return 3
	case CategoryConflict:
		return 4
	case CategoryPersistence, CategoryReconciliation, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error.
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error.
func (e *EngineError) WithSuggestion(suggestion string) *EngineError {
	e.Suggestion = suggestion
	return e
}

// New creates a new EngineError.
func New(category ErrorCategory, code ErrorCode, message string) *EngineError {
	return &EngineError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with EngineError context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *EngineError {
	if err == nil {
		return nil
	}

	return &EngineError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// FetchError creates an error for a failed upstream fetch.
func FetchError(code ErrorCode, source string, err error) *EngineError {
	message := fmt.Sprintf("failed to fetch %s", source)
	result := wrapOrNew(err, CategoryFetch, code, message)
	return result.
		WithSuggestion("check that the data source is reachable and try again").
		WithContext("source", source)
}

// PersistenceError creates an error for a failed write to the ledger.
func PersistenceError(code ErrorCode, operation string, err error) *EngineError {
	message := fmt.Sprintf("persistence failed during %s", operation)
	result := wrapOrNew(err, CategoryPersistence, code, message)
	return result.
		WithSuggestion("verify the ledger is writable; the batch was not applied").
		WithContext("operation", operation)
}

// ValidationError creates an error for invalid input data or configuration.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *EngineError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use RFC 3339 timestamps or YYYY-MM-DD dates"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", field, value)
		suggestion = "check the configuration documentation for valid values"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	result := wrapOrNew(err, CategoryValidation, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ParseError creates an error for a malformed record in an input file.
func ParseError(code ErrorCode, file string, line int, column string, err error) *EngineError {
	var message string
	switch code {
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
	default:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s'", file, line, column)
	}

	result := wrapOrNew(err, CategoryValidation, code, message)
	return result.
		WithSuggestion("correct the record or check the column mapping").
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column)
}

// ConflictError creates an error for a transaction that is already reconciled.
func ConflictError(side, transactionID string) *EngineError {
	return New(CategoryConflict, CodeAlreadyReconciled,
		fmt.Sprintf("%s transaction is already reconciled", side)).
		WithSuggestion("only unreconciled transactions can be matched").
		WithContext("side", side).
		WithContext("transaction_id", transactionID)
}

// ReconciliationError creates an error for a failure inside the matching run.
func ReconciliationError(code ErrorCode, operation string, err error) *EngineError {
	message := fmt.Sprintf("reconciliation error during %s", operation)
	result := wrapOrNew(err, CategoryReconciliation, code, message)
	return result.
		WithSuggestion("review the input data and matching configuration").
		WithContext("operation", operation)
}

// InternalError creates an error for an unexpected internal failure.
func InternalError(operation string, err error) *EngineError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	result := wrapOrNew(err, CategoryInternal, CodeUnexpectedError, message)
	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

func wrapOrNew(err error, category ErrorCategory, code ErrorCode, message string) *EngineError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// IsEngineError checks if an error is an EngineError.
func IsEngineError(err error) bool {
	_, ok := err.(*EngineError)
	return ok
}

// AsEngineError extracts an EngineError from an error chain.
func AsEngineError(err error) (*EngineError, bool) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// IsConflict reports whether the error chain contains an already-reconciled
// conflict.
func IsConflict(err error) bool {
	if engineErr, ok := AsEngineError(err); ok {
		return engineErr.Category == CategoryConflict
	}
	return false
}

// FormatForDisplay renders an error for end users, including the suggestion
// and any context values on separate lines.
func FormatForDisplay(err error) string {
	engineErr, ok := AsEngineError(err)
	if !ok {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString(engineErr.Message)
	if engineErr.Suggestion != "" {
		b.WriteString("\n  suggestion: ")
		b.WriteString(engineErr.Suggestion)
	}
	for key, value := range engineErr.Context {
		b.WriteString(fmt.Sprintf("\n  %s: %v", key, value))
	}
	return b.String()
}
