package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// NewMemoryDB opens a private in-memory SQLite database that is closed when
// the test ends. The pool is pinned to one connection because every
// :memory: connection is a separate database.
func NewMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("In-memory database ping failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
