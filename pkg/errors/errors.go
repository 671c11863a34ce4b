package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the error shape rendered to API consumers. Internal is kept
// for logs and never serialised.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap exposes the internal cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches by code, so copies made by WithInternal still match their sentinel.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if e == nil || !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy carrying err as its logged cause.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// New builds an application error.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

var (
	ErrUnauthorized       = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", "Incorrect email or password", http.StatusUnauthorized)
	ErrAccountLocked      = New("ACCOUNT_LOCKED", "Account temporarily locked, try again later", http.StatusTooManyRequests)
	// ErrInvalidOrExpired never says which check failed.
	ErrInvalidOrExpired  = New("INVALID_OR_EXPIRED", "The code or link is invalid or has expired", http.StatusBadRequest)
	ErrAlreadyRegistered = New("ALREADY_REGISTERED", "Email already registered", http.StatusConflict)
	ErrForbidden         = New("FORBIDDEN", "Permission denied", http.StatusForbidden)
	ErrNotFound          = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrBadRequest        = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrInternalServer    = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrRateLimit         = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
)

// FromError returns the AppError in err's chain, or ErrInternalServer
// wrapping err when there is none.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest is a BAD_REQUEST with a caller supplied message.
func NewBadRequest(message string) *AppError {
	return New(ErrBadRequest.Code, message, ErrBadRequest.StatusCode)
}
