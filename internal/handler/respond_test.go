package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/greencore/api/internal/apperr"
)

func TestRespondJSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	respondJSON(rec, http.StatusCreated, map[string]string{"id": "42"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data["id"] != "42" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{apperr.Validation("bad input"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{apperr.Authentication("nope"), http.StatusUnauthorized, "AUTH_ERROR"},
		{apperr.TokenExpired(), http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{apperr.Forbidden("no"), http.StatusForbidden, "FORBIDDEN"},
		{apperr.NotFound("user"), http.StatusNotFound, "NOT_FOUND"},
		{apperr.Conflict("dup"), http.StatusConflict, "CONFLICT"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		respondError(rec, tc.err)

		if rec.Code != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d", tc.wantCode, rec.Code, tc.wantStatus)
		}

		var body struct {
			Success bool `json:"success"`
			Error   struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Success {
			t.Errorf("%s: success should be false", tc.wantCode)
		}
		if body.Error.Code != tc.wantCode {
			t.Errorf("code = %q, want %q", body.Error.Code, tc.wantCode)
		}
	}
}

func TestRespondErrorWrappedKeepsCode(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := apperr.Wrap(apperr.NotFound("entry"), errors.New("sql: no rows"))
	respondError(rec, wrapped)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, errors.New("pq: connection refused to db-internal:5432"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", body.Error.Code)
	}
	if body.Error.Message != "internal server error" {
		t.Errorf("internal detail leaked: %q", body.Error.Message)
	}
}

func TestRespondErrorAccountLockedCarriesExpiry(t *testing.T) {
	rec := httptest.NewRecorder()
	until := time.Now().Add(30 * time.Minute)
	respondError(rec, apperr.AccountLocked(until))

	if rec.Code != http.StatusLocked {
		t.Fatalf("status = %d, want 423", rec.Code)
	}

	var body struct {
		Error struct {
			Code        string `json:"code"`
			LockedUntil string `json:"lockedUntil"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "ACCOUNT_LOCKED" {
		t.Errorf("code = %q", body.Error.Code)
	}
	if body.Error.LockedUntil == "" {
		t.Error("expected lockedUntil timestamp")
	}
}
