// Package sqlite opens the embedded database shared by the sync-job and
// entity stores and applies the schema on startup.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite" // Register sqlite driver
)

//go:embed migrations/001_initial.sql
var schema string

// DB is a migrated, pragma-configured database handle.
type DB struct {
	*sql.DB
}

func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection, so a second connection
	// would see none of the migrated tables. Pin the pool to one.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// WAL lets the HTTP handlers read while workers write job counters;
	// busy_timeout keeps those writers from failing on a briefly held lock.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{db}, nil
}
