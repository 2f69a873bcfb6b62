package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		code   string
		status int
	}{
		{Validation("bad input"), "VALIDATION_ERROR", http.StatusBadRequest},
		{Authentication("bad credentials"), "AUTH_ERROR", http.StatusUnauthorized},
		{TokenExpired(), "TOKEN_EXPIRED", http.StatusUnauthorized},
		{Forbidden("no"), "FORBIDDEN", http.StatusForbidden},
		{NotFound("entry"), "NOT_FOUND", http.StatusNotFound},
		{Conflict("duplicate"), "CONFLICT", http.StatusConflict},
		{AccountLocked(time.Now()), "ACCOUNT_LOCKED", http.StatusLocked},
	}

	for _, c := range cases {
		if c.err.Code != c.code {
			t.Errorf("Expected code %s, got %s", c.code, c.err.Code)
		}
		if c.err.Status != c.status {
			t.Errorf("%s: expected status %d, got %d", c.code, c.status, c.err.Status)
		}
	}
}

func TestError_WrapPreservesCode(t *testing.T) {
	cause := errors.New("row not found")
	wrapped := Wrap(NotFound("user"), cause)

	if !errors.Is(wrapped, NotFound("user")) {
		t.Error("Expected wrapped error to match same-code sentinel")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Expected Unwrap to expose the cause")
	}
}

func TestFrom_ThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("login failed: %w", Authentication("invalid credentials"))

	appErr := From(err)
	if appErr == nil {
		t.Fatal("Expected From to find the app error")
	}
	if appErr.Code != "AUTH_ERROR" {
		t.Errorf("Expected AUTH_ERROR, got %s", appErr.Code)
	}
}

func TestFrom_PlainError(t *testing.T) {
	if From(errors.New("boom")) != nil {
		t.Error("Expected nil for a non-app error")
	}
}

func TestAccountLocked_CarriesExpiry(t *testing.T) {
	until := time.Now().Add(30 * time.Minute)
	err := AccountLocked(until)

	if err.LockedUntil == nil || !err.LockedUntil.Equal(until) {
		t.Errorf("Expected lock expiry %v, got %v", until, err.LockedUntil)
	}
}
