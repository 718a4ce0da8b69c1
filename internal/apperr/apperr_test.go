package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindsMatchWithErrorsIs(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{NotFound("join group", "group not found"), ErrNotFound},
		{Validation("add chore", "title is required"), ErrValidation},
		{PermissionDenied("toggle", "not assigned"), ErrPermissionDenied},
		{Remote("list chores", errors.New("boom")), ErrRemote},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.kind) {
			t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
		}
		wrapped := fmt.Errorf("handler: %w", tt.err)
		if !errors.Is(wrapped, tt.kind) {
			t.Errorf("wrapped error lost kind %v", tt.kind)
		}
	}
}

func TestKindsDoNotCrossMatch(t *testing.T) {
	err := Validation("add chore", "title is required")
	if errors.Is(err, ErrNotFound) {
		t.Error("validation error matched ErrNotFound")
	}
}

func TestRemoteUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Remote("toggle completion", cause)
	if !errors.Is(err, cause) {
		t.Error("expected Remote to unwrap to its cause")
	}
	if Remote("noop", nil) != nil {
		t.Error("Remote(nil) should be nil")
	}
}

func TestMessage(t *testing.T) {
	if got := Message(Validation("add chore", "title is required")); got != "title is required" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(errors.New("plain")); got != "" {
		t.Errorf("Message(plain) = %q, want empty", got)
	}
}
