package handler

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/chora/internal/database"
	"github.com/dukerupert/chora/internal/docstore"
	"github.com/dukerupert/chora/internal/schedule"
	"github.com/dukerupert/chora/internal/store"
)

func TestPruneFiltersDropsEndedSessions(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	docs := docstore.NewSQLite(db)
	t.Cleanup(func() { docs.Close() })
	sessions := store.NewSessionStore(docs)
	h := NewScheduleHandler(nil, nil, time.Sunday, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := t.Context()

	live, err := sessions.Create(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	ended, err := sessions.Create(ctx, "u2", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := sessions.Delete(ctx, ended.Token); err != nil {
		t.Fatal(err)
	}

	h.filters[live.Token] = schedule.OnlyMember("u1")
	h.filters[ended.Token] = schedule.OnlyMember("u2")
	h.filters["not-a-token"] = schedule.OnlyMember("u3")

	if n := h.PruneFilters(ctx, sessions); n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
	if _, ok := h.filter(live.Token).Selected(); !ok {
		t.Error("filter of live session was dropped")
	}
	if _, ok := h.filter(ended.Token).Selected(); ok {
		t.Error("filter of deleted session was kept")
	}
}
