package domain

import (
	"errors"
	"fmt"
	"net/http"
)

type ValidationKind string

const (
	MissingFields    ValidationKind = "missing_fields"
	InvalidEmail     ValidationKind = "invalid_email"
	PasswordTooShort ValidationKind = "password_too_short"
	PasswordMismatch ValidationKind = "password_mismatch"
)

// ValidationError never leaves the client; Message is shown to the user.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	ErrMissingFields    = &ValidationError{Kind: MissingFields, Message: "Please fill in all fields"}
	ErrInvalidEmail     = &ValidationError{Kind: InvalidEmail, Message: "Please enter a valid email address"}
	ErrPasswordTooShort = &ValidationError{Kind: PasswordTooShort, Message: "Password must be at least 8 characters long"}
	ErrPasswordMismatch = &ValidationError{Kind: PasswordMismatch, Message: "Passwords do not match"}
)

var (
	ErrTransport         = errors.New("identity service unreachable")
	ErrCorruptSession    = errors.New("corrupt session")
	ErrIncompleteSession = errors.New("session requires token and user")
	ErrUnauthorized      = errors.New("unauthorized")
)

// ServiceError is a non-2xx answer from the identity service. Detail is
// empty when the service gave no structured reason.
type ServiceError struct {
	Status int
	Detail string
}

func (e *ServiceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("identity service: %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("identity service: %d %s", e.Status, http.StatusText(e.Status))
}

func (e *ServiceError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// UserMessage picks the text shown for a failed call: the service detail
// verbatim when present, the fallback otherwise.
func UserMessage(err error, fallback string) string {
	var se *ServiceError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	return fallback
}
