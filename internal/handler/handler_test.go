package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/chora/internal/apperr"
)

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperr.Validation("add chore", "title is required"), http.StatusBadRequest, "title is required"},
		{"not found", apperr.NotFound("join group", "Group not found"), http.StatusNotFound, "Group not found"},
		{"permission", apperr.PermissionDenied("toggle completion", "only the assignee can update this chore"), http.StatusForbidden, "only the assignee can update this chore"},
		{"remote", apperr.Remote("fetch chores", errors.New("connection reset")), http.StatusInternalServerError, "failed to load chores, please retry"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "failed to load chores, please retry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAppError(rec, tt.err, "load chores")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["error"] != tt.message {
				t.Errorf("error = %q, want %q", body["error"], tt.message)
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/reports?from=2024-01-01&to=2024-01-07", nil)
	from, to, err := dateRange(r)
	if err != nil {
		t.Fatal(err)
	}
	if !from.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("range = %v..%v", from, to)
	}

	from, to, err = dateRange(httptest.NewRequest("GET", "/api/reports", nil))
	if err != nil || !from.IsZero() || !to.IsZero() {
		t.Errorf("open range = %v..%v, %v", from, to, err)
	}

	if _, _, err := dateRange(httptest.NewRequest("GET", "/api/reports?to=yesterday", nil)); err == nil {
		t.Error("expected error for bad date")
	}
}
