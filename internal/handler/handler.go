// Package handler exposes the chore service as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chora/internal/apperr"
	"github.com/dukerupert/chora/internal/dateutil"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps an apperr kind onto a status code. Remote and unknown
// failures have already been logged where they happened, so only the
// generic retry message is sent.
func writeAppError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		writeError(w, http.StatusBadRequest, apperr.Message(err))
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, apperr.Message(err))
	case errors.Is(err, apperr.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, apperr.Message(err))
	default:
		writeError(w, http.StatusInternalServerError, "failed to "+action+", please retry")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// dateRange reads the optional from/to query parameters. A missing bound
// is returned as the zero time.
func dateRange(r *http.Request) (from, to time.Time, err error) {
	if s := r.URL.Query().Get("from"); s != "" {
		if from, err = dateutil.Parse(s); err != nil {
			return
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		to, err = dateutil.Parse(s)
	}
	return
}

// logUnexpected logs errors that are not apperr kinds. apperr.Remote errors
// are logged by the service that produced them.
func logUnexpected(logger *slog.Logger, msg string, err error, args ...any) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		logger.Error(msg, append(args, "error", err)...)
	}
}
