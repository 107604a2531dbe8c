package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes used across the engine
const (
	CodeAlreadyGenerated = "ALREADY_GENERATED"
	CodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	CodeTemplateInactive = "TEMPLATE_INACTIVE"
	CodeTemplateEmpty    = "TEMPLATE_EMPTY"
	CodeDelivery         = "DELIVERY_ERROR"
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
)

// AppError represents an application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// AsAppError extracts an AppError from err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// NewAlreadyGeneratedError marks a generation that already completed for the
// idempotency key. Callers treat this as a benign outcome, not a failure.
func NewAlreadyGeneratedError(message string) *AppError {
	return &AppError{Code: CodeAlreadyGenerated, Message: message}
}

// NewTemplateNotFoundError creates an error for a missing routine template
func NewTemplateNotFoundError(message string, err error) *AppError {
	return &AppError{Code: CodeTemplateNotFound, Message: message, Err: err}
}

// NewTemplateInactiveError creates an error for a disabled routine template
func NewTemplateInactiveError(message string) *AppError {
	return &AppError{Code: CodeTemplateInactive, Message: message}
}

// NewTemplateEmptyError creates an error for a template with no active tasks
func NewTemplateEmptyError(message string) *AppError {
	return &AppError{Code: CodeTemplateEmpty, Message: message}
}

// NewDeliveryError wraps a transient delivery channel failure
func NewDeliveryError(message string, err error) *AppError {
	return &AppError{Code: CodeDelivery, Message: message, Err: err}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Err: err}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, Err: err}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}
