package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/znz-systems/emailfilter/internal/apperr"
	"github.com/znz-systems/emailfilter/internal/logging"
)

// jsonResponse is the envelope for plain error responses.
type jsonResponse struct {
	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses. Field errors are returned
// as a {"field": ["message"]} object; anything unrecognised is logged and
// reported as an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr *apperr.ValidationError
		cErr *apperr.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, vErr.Fields)
	case errors.As(err, &cErr):
		writeJSON(w, http.StatusConflict, cErr.Fields)
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, jsonResponse{Error: "not found"})
	default:
		logging.FromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, jsonResponse{Error: "internal server error"})
	}
}

// decodeBody reads a JSON body no larger than limit bytes into v. It writes
// the error response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, jsonResponse{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, apperr.FieldErrors{"non_field_errors": {"request body must be valid JSON"}})
		return false
	}
	return true
}
