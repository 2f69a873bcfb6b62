package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/greencore/api/internal/apperr"
)

// All endpoints share one response envelope:
//
//	{"success": true,  "data": ...}
//	{"success": false, "error": {"code": "...", "message": "..."}}
type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	LockedUntil string `json:"lockedUntil,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(successEnvelope{Success: true, Data: data})
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondError maps an error to the envelope. Anything outside the
// apperr taxonomy becomes a generic 500 with no internal detail.
func respondError(w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	if appErr == nil {
		slog.Error("unhandled error", "error", err)
		appErr = &apperr.Error{
			Code:    "INTERNAL_ERROR",
			Status:  http.StatusInternalServerError,
			Message: "internal server error",
		}
	}

	body := errorBody{Code: appErr.Code, Message: appErr.Message}
	if appErr.LockedUntil != nil {
		body.LockedUntil = appErr.LockedUntil.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	encodeErr := json.NewEncoder(w).Encode(errorEnvelope{Success: false, Error: body})
	if encodeErr != nil {
		slog.Error("failed to encode error response", "error", encodeErr)
	}
}

// decodeJSON reads a request body into dst. Unknown fields pass
// through; clients may send more than a handler reads.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	if err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// paginated wraps list data with its total for list endpoints.
type paginated struct {
	Items any `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}
