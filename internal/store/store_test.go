package store

import (
	"testing"

	"github.com/dukerupert/chora/internal/database"
	"github.com/dukerupert/chora/internal/docstore"
)

func setupTestDocs(t *testing.T) *docstore.SQLite {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	docs := docstore.NewSQLite(db)
	t.Cleanup(func() { docs.Close() })
	return docs
}
