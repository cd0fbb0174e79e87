package services

import (
	"database/sql"
	"testing"

	"github.com/lendingdesk/lending-api/internal/database"
)

// newTestDB opens a migrated in-memory database. A single connection keeps
// every query on the same in-memory instance.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}
