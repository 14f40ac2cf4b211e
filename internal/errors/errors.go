package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"

	// ErrCodeInvalidPayload indicates a job payload failed schema validation
	// or its kind is not registered for the target queue.
	ErrCodeInvalidPayload ErrorCode = "invalid_payload"
	// ErrCodeUnsupportedJobKind indicates a leased job carries a kind no
	// handler is registered for.
	ErrCodeUnsupportedJobKind ErrorCode = "unsupported_job_kind"
	// ErrCodeCircularRecipeReference indicates a cycle in a recipe's
	// sub-recipe graph.
	ErrCodeCircularRecipeReference ErrorCode = "circular_recipe_reference"
	// ErrCodeNoPricingData indicates a recipe has no priced leaf ingredients at all.
	ErrCodeNoPricingData ErrorCode = "no_pricing_data"
	// ErrCodeInvalidAmount indicates a negative commission amount.
	ErrCodeInvalidAmount ErrorCode = "invalid_amount"
	// ErrCodeQueueSaturated indicates the target queue rejected an enqueue
	// because its pending depth exceeds the admission ceiling.
	ErrCodeQueueSaturated ErrorCode = "queue_saturated"
	// ErrCodeUnauthorized indicates a cross-tenant realtime subscription attempt.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// InvalidPayload creates a new InvalidPayload error.
func InvalidPayload(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidPayload, Message: message}
}

// InvalidPayloadf creates a new InvalidPayload error with formatted message.
func InvalidPayloadf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInvalidPayload, Message: fmt.Sprintf(format, args...)}
}

// UnsupportedJobKind creates a new UnsupportedJobKind error.
func UnsupportedJobKind(message string) *AppError {
	return &AppError{Code: ErrCodeUnsupportedJobKind, Message: message}
}

// CircularRecipeReference creates a new CircularRecipeReference error.
func CircularRecipeReference(message string) *AppError {
	return &AppError{Code: ErrCodeCircularRecipeReference, Message: message}
}

// NoPricingData creates a new NoPricingData error.
func NoPricingData(message string) *AppError {
	return &AppError{Code: ErrCodeNoPricingData, Message: message}
}

// InvalidAmount creates a new InvalidAmount error.
func InvalidAmount(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidAmount, Message: message}
}

// QueueSaturated creates a new QueueSaturated error.
func QueueSaturated(message string) *AppError {
	return &AppError{Code: ErrCodeQueueSaturated, Message: message}
}

// Unauthorized creates a new Unauthorized error.
func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// IsQueueSaturated checks if an error is a QueueSaturated error.
func IsQueueSaturated(err error) bool { return isCode(err, ErrCodeQueueSaturated) }

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool { return isCode(err, ErrCodeUnauthorized) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// permanentCodes are error categories that must never be retried: the job is
// routed straight to the dead-letter surface.
var permanentCodes = map[ErrorCode]struct{}{
	ErrCodeInvalidPayload:          {},
	ErrCodeUnsupportedJobKind:      {},
	ErrCodeCircularRecipeReference: {},
	ErrCodeNoPricingData:           {},
	ErrCodeInvalidAmount:           {},
	ErrCodeQueueSaturated:          {},
	ErrCodeUnauthorized:            {},
	ErrCodeValidation:              {},
	ErrCodeConflict:                {},
	ErrCodeNotFound:                {},
}

// IsPermanent reports whether the error class never benefits from a retry.
// Transient I/O failures (internal, timeout, canceled, plain errors) remain
// retryable under the queue's backoff policy.
func IsPermanent(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	_, ok := permanentCodes[appErr.Code]
	return ok
}
