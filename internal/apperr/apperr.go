// Package apperr defines the operational error taxonomy shared by the
// service and handler layers. Every error carries a stable machine code
// and the HTTP status it maps to; anything that is not an *Error surfaces
// to the client as a generic 500 with no internal detail.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Error struct {
	Code    string
	Status  int
	Message string
	Err     error // underlying cause, for errors.Is / errors.As

	// LockedUntil is set only on ACCOUNT_LOCKED errors.
	LockedUntil *time.Time
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on the stable code so wrapped copies compare equal to the
// sentinel they were derived from.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func Validation(message string) *Error {
	return &Error{Code: "VALIDATION_ERROR", Status: http.StatusBadRequest, Message: message}
}

func Authentication(message string) *Error {
	return &Error{Code: "AUTH_ERROR", Status: http.StatusUnauthorized, Message: message}
}

func TokenExpired() *Error {
	return &Error{Code: "TOKEN_EXPIRED", Status: http.StatusUnauthorized, Message: "token has expired"}
}

func Forbidden(message string) *Error {
	return &Error{Code: "FORBIDDEN", Status: http.StatusForbidden, Message: message}
}

func NotFound(resource string) *Error {
	return &Error{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: resource + " not found"}
}

func Conflict(message string) *Error {
	return &Error{Code: "CONFLICT", Status: http.StatusConflict, Message: message}
}

// AccountLocked carries the lock expiry so clients can show when to retry.
func AccountLocked(until time.Time) *Error {
	return &Error{
		Code:        "ACCOUNT_LOCKED",
		Status:      http.StatusLocked,
		Message:     "account locked after too many failed login attempts",
		LockedUntil: &until,
	}
}

// Wrap attaches an underlying cause while keeping code and status.
func Wrap(appErr *Error, err error) *Error {
	clone := *appErr
	clone.Err = err
	return &clone
}

// From extracts the *Error from an error chain, or nil.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
