// Package errors provides custom error types for the Cogi API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind groups error codes by how callers are expected to react.
type Kind string

const (
	// KindValidation is bad input shape; recoverable, no retry.
	KindValidation Kind = "validation"
	// KindAuth covers unknown users, bad credentials, lockout and token failures.
	KindAuth Kind = "auth"
	// KindConflict is a uniqueness violation such as a duplicate registration.
	KindConflict Kind = "conflict"
	// KindNotFound is a missing resource.
	KindNotFound Kind = "not_found"
	// KindDependency is a failure of an external capability (mail, captcha, completion).
	KindDependency Kind = "dependency"
	// KindPersistence is a store failure; the whole user action should be retried.
	KindPersistence Kind = "persistence"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Kind       Kind   `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so wrapped
// copies of a sentinel still match it.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Kind:       sentinel.Kind,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Kind:       sentinel.Kind,
		Internal:   sentinel.Internal,
	}
}

// Validation errors.
var (
	ErrInvalidInput       = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest, Kind: KindValidation}
	ErrEmptyMessage       = &AppError{Code: "EMPTY_MESSAGE", Message: "Message cannot be empty", StatusCode: http.StatusBadRequest, Kind: KindValidation}
	ErrEmptyTitle         = &AppError{Code: "EMPTY_TITLE", Message: "Title cannot be empty", StatusCode: http.StatusBadRequest, Kind: KindValidation}
	ErrMissingIdentifier  = &AppError{Code: "MISSING_IDENTIFIER", Message: "A thread identifier is required", StatusCode: http.StatusBadRequest, Kind: KindValidation}
	ErrWeakPassword       = &AppError{Code: "WEAK_PASSWORD", Message: "Password is too weak", StatusCode: http.StatusBadRequest, Kind: KindValidation}
	ErrPasswordMismatch   = &AppError{Code: "PASSWORD_MISMATCH", Message: "Passwords do not match", StatusCode: http.StatusBadRequest, Kind: KindValidation}
	ErrInvalidDateOfBirth = &AppError{Code: "INVALID_DATE_OF_BIRTH", Message: "Invalid date of birth", StatusCode: http.StatusBadRequest, Kind: KindValidation}
	ErrCaptchaFailed      = &AppError{Code: "CAPTCHA_FAILED", Message: "CAPTCHA verification failed", StatusCode: http.StatusBadRequest, Kind: KindValidation}
)

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized, Kind: KindAuth}
	ErrUnknownUser        = &AppError{Code: "UNKNOWN_USER", Message: "Unknown user", StatusCode: http.StatusUnauthorized, Kind: KindAuth}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Incorrect email or password", StatusCode: http.StatusUnauthorized, Kind: KindAuth}
	ErrUnconfirmed        = &AppError{Code: "UNCONFIRMED", Message: "Please confirm your email before logging in", StatusCode: http.StatusForbidden, Kind: KindAuth}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Too many failed attempts, account is locked", StatusCode: http.StatusLocked, Kind: KindAuth}
	ErrTokenExpired       = &AppError{Code: "TOKEN_EXPIRED", Message: "The link has expired", StatusCode: http.StatusBadRequest, Kind: KindAuth}
	ErrTokenInvalid       = &AppError{Code: "TOKEN_INVALID", Message: "The link is invalid", StatusCode: http.StatusBadRequest, Kind: KindAuth}
	ErrSessionExpired     = &AppError{Code: "SESSION_EXPIRED", Message: "Session expired due to inactivity", StatusCode: http.StatusUnauthorized, Kind: KindAuth}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden, Kind: KindAuth}
)

// Conflict errors.
var (
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "This email is already registered", StatusCode: http.StatusConflict, Kind: KindConflict}
)

// Not found errors.
var (
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound, Kind: KindNotFound}
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "No account associated with this email", StatusCode: http.StatusNotFound, Kind: KindNotFound}
	ErrThreadNotFound = &AppError{Code: "THREAD_NOT_FOUND", Message: "Thread not found", StatusCode: http.StatusNotFound, Kind: KindNotFound}
)

// Dependency errors.
var (
	ErrMailUnavailable    = &AppError{Code: "MAIL_UNAVAILABLE", Message: "Error sending email", StatusCode: http.StatusServiceUnavailable, Kind: KindDependency}
	ErrCaptchaUnavailable = &AppError{Code: "CAPTCHA_UNAVAILABLE", Message: "CAPTCHA verification is unavailable", StatusCode: http.StatusServiceUnavailable, Kind: KindDependency}
)

// Persistence errors.
var (
	ErrStoreUnavailable = &AppError{Code: "STORE_UNAVAILABLE", Message: "The store is unavailable, please retry", StatusCode: http.StatusInternalServerError, Kind: KindPersistence}
	ErrInternalServer   = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError, Kind: KindPersistence}
)

// KindOf returns the Kind of err if it is an AppError, or KindPersistence otherwise.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindPersistence
}
