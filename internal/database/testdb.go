package database

import (
	"database/sql"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE shopping_items (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id           TEXT NOT NULL,
    user_name         TEXT NOT NULL,
    product_title     TEXT NOT NULL,
    product_url       TEXT,
    product_image_url TEXT,
    price             REAL CHECK (price IS NULL OR price >= 0),
    quantity          INTEGER NOT NULL CHECK (quantity >= 1),
    status            TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'ordered')),
    added_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// NewTestConnections creates fresh in-memory sqlite connections with
// the schema applied, cleaned up when the test finishes.
func NewTestConnections(t *testing.T) *Connections {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	// A single connection keeps every query on the same in-memory database.
	sqldb.SetMaxOpenConns(1)

	if _, err := sqldb.Exec(testSchema); err != nil {
		sqldb.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	return &Connections{Writer: db, Reader: db}
}
