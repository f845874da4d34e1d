// Package apperror defines the application's error taxonomy.
//
// Services return these typed errors; the HTTP layer translates them to
// status codes in one place (handler.writeError). Each sentinel below is a
// category that errors.Is() can match anywhere in a wrapped chain.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrDuplicateEmail     = errors.New("duplicate email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRemoteProvider     = errors.New("identity provider error")
)

// AppError carries a category sentinel plus a message safe to show callers.
// The Message never contains raw error strings from remote systems.
type AppError struct {
	Err     error  // category sentinel (one of the Err* vars above)
	Message string // human-readable, client-safe message
	Field   string // optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// DuplicateEmail reports that an email address is already registered.
// The message deliberately doesn't say which system reported the conflict.
func DuplicateEmail(email string) *AppError {
	return &AppError{
		Err:     ErrDuplicateEmail,
		Message: fmt.Sprintf("the email %s is already in use by another account", email),
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "incorrect email or password",
	}
}

func EmailNotVerified() *AppError {
	return &AppError{
		Err:     ErrEmailNotVerified,
		Message: "email not verified. Please check your inbox and confirm your account",
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// RemoteProvider wraps an identity-provider failure that doesn't map to a
// more specific category. The underlying error stays in the chain for
// logging, but Message is generic so nothing internal leaks to clients.
func RemoteProvider(err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrRemoteProvider, err),
		Message: "the identity provider could not process the request",
	}
}
