package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:    "u1",
		GroupID:   "1704110400000",
		SessionID: "s1",
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got != ac {
		t.Errorf("FromContext = %+v, want %+v", got, ac)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestAccessors(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: "u7", GroupID: "g42", SessionID: "s9"})
	if UserID(ctx) != "u7" {
		t.Errorf("UserID = %q, want u7", UserID(ctx))
	}
	if GroupID(ctx) != "g42" {
		t.Errorf("GroupID = %q, want g42", GroupID(ctx))
	}
	if SessionID(ctx) != "s9" {
		t.Errorf("SessionID = %q, want s9", SessionID(ctx))
	}
}

func TestAccessorsMissing(t *testing.T) {
	ctx := context.Background()
	if UserID(ctx) != "" || GroupID(ctx) != "" || SessionID(ctx) != "" {
		t.Error("expected empty strings for missing context")
	}
}
