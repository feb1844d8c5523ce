package errors

import (
	"errors"
	"fmt"
	"maps"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeInvalidCredentials indicates a wrong password or unknown account on login.
	ErrCodeInvalidCredentials ErrorCode = "invalid_credentials"
	// ErrCodeAccountAlreadyExists indicates sign-up with an email that is already registered.
	ErrCodeAccountAlreadyExists ErrorCode = "account_already_exists"
	// ErrCodeWeakPassword indicates a password below the provider's minimum strength.
	ErrCodeWeakPassword ErrorCode = "weak_password"
	// ErrCodeInvalidEmailFormat indicates a malformed email address.
	ErrCodeInvalidEmailFormat ErrorCode = "invalid_email_format"
	// ErrCodePopupCancelled indicates the federated login flow was closed, blocked or cancelled.
	ErrCodePopupCancelled ErrorCode = "popup_cancelled"
	// ErrCodeRequiresRecentLogin indicates a sensitive operation needs a fresh re-authentication.
	ErrCodeRequiresRecentLogin ErrorCode = "requires_recent_login"
	// ErrCodeNotAuthenticated indicates an operation that needs a session was attempted without one.
	ErrCodeNotAuthenticated ErrorCode = "not_authenticated"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeValidationFailed indicates local field validation failed.
	ErrCodeValidationFailed ErrorCode = "validation_failed"
	// ErrCodeUnknown indicates an unclassified provider or gateway failure.
	ErrCodeUnknown ErrorCode = "unknown"
)

// defaultMessages holds the user-facing message for each code.
var defaultMessages = map[ErrorCode]string{ //nolint:gochecknoglobals // read-only lookup table
	ErrCodeInvalidCredentials:   "Invalid email or password",
	ErrCodeAccountAlreadyExists: "This email is already registered",
	ErrCodeWeakPassword:         "Password should be at least 6 characters",
	ErrCodeInvalidEmailFormat:   "Please enter a valid email address",
	ErrCodePopupCancelled:       "The sign-in popup was closed before completing the sign-in.",
	ErrCodeRequiresRecentLogin: "This operation requires recent authentication. " +
		"Please log out and log back in before retrying",
	ErrCodeNotAuthenticated: "You must be signed in to do that.",
	ErrCodeNotFound:         "The requested record was not found.",
	ErrCodeValidationFailed: "Please fix the errors below.",
	ErrCodeUnknown:          "An error occurred. Please try again.",
}

// DefaultMessage returns the user-facing message registered for code.
func DefaultMessage(code ErrorCode) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return defaultMessages[ErrCodeUnknown]
}

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message, safe to show to users
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// Fields holds per-field messages for validation failures (optional)
	Fields map[string]string
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

// UserMessage returns the message to display. It never includes the cause.
func (e *AppError) UserMessage() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return DefaultMessage(e.Code)
}

// FieldErrors returns a copy of the per-field messages, folding Field into the map.
func (e *AppError) FieldErrors() map[string]string {
	if e == nil {
		return nil
	}
	out := make(map[string]string, len(e.Fields)+1)
	maps.Copy(out, e.Fields)
	if e.Field != "" {
		if _, ok := out[e.Field]; !ok {
			out[e.Field] = e.UserMessage()
		}
	}
	return out
}

// New creates an AppError with the default message for code.
func New(code ErrorCode) *AppError {
	return &AppError{Code: code, Message: DefaultMessage(code)}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: message,
	}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotAuthenticated creates a new NotAuthenticated error with the default message.
func NotAuthenticated() *AppError {
	return New(ErrCodeNotAuthenticated)
}

// ValidationFailed creates a validation error carrying per-field messages.
func ValidationFailed(fields map[string]string) *AppError {
	cp := make(map[string]string, len(fields))
	maps.Copy(cp, fields)
	return &AppError{
		Code:    ErrCodeValidationFailed,
		Message: DefaultMessage(ErrCodeValidationFailed),
		Fields:  cp,
	}
}

// ValidationField creates a new validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidationFailed,
		Message: message,
		Field:   field,
	}
}

// Validationf creates a new validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeValidationFailed,
		Message: fmt.Sprintf(format, args...),
	}
}

// Unknown wraps err as an unclassified failure with the default message.
func Unknown(err error) *AppError {
	return &AppError{
		Code:    ErrCodeUnknown,
		Message: DefaultMessage(ErrCodeUnknown),
		Cause:   err,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsValidation checks if an error is a ValidationFailed error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidationFailed)
}

// IsNotAuthenticated checks if an error is a NotAuthenticated error.
func IsNotAuthenticated(err error) bool {
	return isCode(err, ErrCodeNotAuthenticated)
}

// IsAccountAlreadyExists checks if an error is an AccountAlreadyExists error.
func IsAccountAlreadyExists(err error) bool {
	return isCode(err, ErrCodeAccountAlreadyExists)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Field
	}
	return ""
}
