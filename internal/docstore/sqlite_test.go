package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dukerupert/chora/internal/database"
)

func setupSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	s := NewSQLite(db)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := setupSQLite(t)

	snap, err := s.Get(context.Background(), "groups", "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot, got %+v", snap)
	}
}

func TestSetAndGet(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	if err := s.Set(ctx, "groups", "g1", Doc{"name": "Home", "owner": "u1"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	snap, err := s.Get(ctx, "groups", "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := Doc{"name": "Home", "owner": "u1"}
	if diff := cmp.Diff(want, snap.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestSetMergeKeepsOtherFields(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	if err := s.Set(ctx, "users", "u1", Doc{"email": "a@example.com", "username": "ann"}, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "users", "u1", Doc{"groupId": "123"}, true); err != nil {
		t.Fatal(err)
	}

	snap, _ := s.Get(ctx, "users", "u1")
	want := Doc{"email": "a@example.com", "username": "ann", "groupId": "123"}
	if diff := cmp.Diff(want, snap.Data); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestSetWithoutMergeReplaces(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	s.Set(ctx, "users", "u1", Doc{"email": "a@example.com", "username": "ann"}, false)
	s.Set(ctx, "users", "u1", Doc{"username": "annie"}, false)

	snap, _ := s.Get(ctx, "users", "u1")
	if diff := cmp.Diff(Doc{"username": "annie"}, snap.Data); diff != "" {
		t.Errorf("replace mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeUpsertSingleRecordPerKey(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	col := Path("groups", "g1", "dailyCompletions")

	for i := 0; i < 3; i++ {
		if err := s.Set(ctx, col, "c1_2024-01-08", Doc{"choreId": "c1", "date": "2024-01-08", "completed": true}, true); err != nil {
			t.Fatal(err)
		}
	}
	snaps, err := s.Query(ctx, col)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d records, want 1", len(snaps))
	}
}

func TestQueryFilters(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	s.Set(ctx, "users", "u1", Doc{"groupId": "g1", "username": "ann"}, false)
	s.Set(ctx, "users", "u2", Doc{"groupId": "g2", "username": "bob"}, false)
	s.Set(ctx, "users", "u3", Doc{"groupId": "g1", "username": "cy"}, false)

	snaps, err := s.Query(ctx, "users", Where("groupId", "g1"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var ids []string
	for _, sn := range snaps {
		ids = append(ids, sn.ID)
	}
	if diff := cmp.Diff([]string{"u1", "u3"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryBoolFilter(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	col := Path("groups", "g1", "dailyCompletions")

	s.Set(ctx, col, "a", Doc{"completed": true}, false)
	s.Set(ctx, col, "b", Doc{"completed": false}, false)

	snaps, err := s.Query(ctx, col, Where("completed", true))
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].ID != "a" {
		t.Errorf("got %+v, want only a", snaps)
	}
}

func TestQueryScopesCollections(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	s.Set(ctx, Path("groups", "g1", "chores"), "c1", Doc{"title": "dishes"}, false)
	s.Set(ctx, Path("groups", "g2", "chores"), "c2", Doc{"title": "trash"}, false)

	snaps, _ := s.Query(ctx, Path("groups", "g1", "chores"))
	if len(snaps) != 1 || snaps[0].ID != "c1" {
		t.Errorf("got %+v, want only c1", snaps)
	}
}

func TestAddGeneratesIDs(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	col := Path("groups", "g1", "chores")

	id1, err := s.Add(ctx, col, Doc{"title": "dishes"})
	if err != nil {
		t.Fatal(err)
	}
	id2, _ := s.Add(ctx, col, Doc{"title": "trash"})
	if id1 == "" || id1 == id2 {
		t.Errorf("ids = %q, %q; want distinct non-empty", id1, id2)
	}
}

func TestDelete(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	s.Set(ctx, "groups", "g1", Doc{"name": "Home"}, false)
	if err := s.Delete(ctx, "groups", "g1"); err != nil {
		t.Fatal(err)
	}
	snap, _ := s.Get(ctx, "groups", "g1")
	if snap != nil {
		t.Error("expected document to be gone")
	}
	if err := s.Delete(ctx, "groups", "g1"); err != nil {
		t.Errorf("deleting a missing document should succeed, got %v", err)
	}
}

func TestRejectsBadPaths(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "groups/g1", "x"); err == nil {
		t.Error("expected error for document path used as collection")
	}
	if err := s.Set(ctx, "groups", "a/b", Doc{}, false); err == nil {
		t.Error("expected error for id containing slash")
	}
	if _, err := s.Query(ctx, "users", Where("group'; DROP", "x")); err == nil {
		t.Error("expected error for unsafe filter field")
	}
}

func TestEncodeDecode(t *testing.T) {
	type rec struct {
		ChoreID   string `json:"choreId"`
		Completed bool   `json:"completed"`
	}
	d, err := Encode(rec{ChoreID: "c1", Completed: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Doc{"choreId": "c1", "completed": true}, d); diff != "" {
		t.Errorf("encode mismatch (-want +got):\n%s", diff)
	}
	var back rec
	if err := Decode(d, &back); err != nil {
		t.Fatal(err)
	}
	if back.ChoreID != "c1" || !back.Completed {
		t.Errorf("decode = %+v", back)
	}
}

func TestCreateRejectsExistingID(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	if err := s.Create(ctx, "groups", "g1", Doc{"owner": "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.Create(ctx, "groups", "g1", Doc{"owner": "u2"})
	if !errors.Is(err, ErrExists) {
		t.Fatalf("second create err = %v, want ErrExists", err)
	}

	snap, err := s.Get(ctx, "groups", "g1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Data["owner"] != "u1" {
		t.Errorf("owner = %v, want u1", snap.Data["owner"])
	}

	// Same id in another collection is a different document.
	if err := s.Create(ctx, "users", "g1", Doc{}); err != nil {
		t.Errorf("create in other collection: %v", err)
	}
}
