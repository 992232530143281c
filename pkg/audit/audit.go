// Package audit implements the session lifecycle audit log: an
// append-only record of connect/disconnect/game_start/abort events,
// independent of and much smaller than the out-of-scope per-player
// replay store (spec §1).
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver, selectable by config
	_ "github.com/lib/pq"              // PostgreSQL driver, selectable by config
	_ "github.com/mattn/go-sqlite3"    // SQLite driver, the default
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS session_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event TEXT NOT NULL,
	client_id TEXT NOT NULL,
	detail TEXT NOT NULL,
	occurred_at_ms INTEGER NOT NULL
)`

// Store is a single-writer append-only audit log, backed by
// database/sql with a pluggable driver selected by name.
type Store struct {
	db          *sql.DB
	insertQuery string
}

// Open opens (creating if necessary) an audit store using driverName
// ("sqlite3", "mysql", or "postgres") against dsn.
func Open(driverName, dsn string) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: opening %s database: %w", driverName, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("audit: pinging %s database: %w", driverName, err)
	}
	if driverName == "sqlite3" {
		if _, err := db.Exec(createTableSQL); err != nil {
			return nil, fmt.Errorf("audit: creating table: %w", err)
		}
	}
	return &Store{db: db, insertQuery: insertQueryFor(driverName)}, nil
}

// insertQueryFor returns the parameterized insert statement for
// driverName, since postgres uses $1-style placeholders where
// sqlite3/mysql use "?".
func insertQueryFor(driverName string) string {
	if driverName == "postgres" {
		return `INSERT INTO session_events (event, client_id, detail, occurred_at_ms) VALUES ($1, $2, $3, $4)`
	}
	return `INSERT INTO session_events (event, client_id, detail, occurred_at_ms) VALUES (?, ?, ?, ?)`
}

// LogEvent appends one session lifecycle event. clientID may be empty
// for session-wide events (e.g. "abort").
func (s *Store) LogEvent(ctx context.Context, event, clientID, detail string) error {
	_, err := s.db.ExecContext(ctx, s.insertQuery,
		event, clientID, detail, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("audit: logging event %q: %w", event, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
