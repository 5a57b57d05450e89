// Package audit records operational counters for psubd: how many
// connections have been accepted, how many times each packet type has
// moved through the hub. It is strictly a counters store, not a message
// log: psubd never persists or replays message bodies.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database connection that backs the audit counters.
type Store struct {
	db *sql.DB
}

// Open initializes the database connection, creating directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures the counters table exists.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS event_counters (
		event TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	);`)
	if err != nil {
		return fmt.Errorf("init audit schema: %w", err)
	}
	return nil
}

// Event names recorded by Incr.
const (
	EventConnect     = "connect"
	EventDisconnect  = "disconnect"
	EventPublish     = "publish"
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventQuery       = "query"
)

// Incr increments the named event counter by one.
func (s *Store) Incr(ctx context.Context, event string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO event_counters (event, count) VALUES (?, 1)
		ON CONFLICT(event) DO UPDATE SET count = count + 1, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`, event)
	if err != nil {
		return fmt.Errorf("increment counter %s: %w", event, err)
	}
	return nil
}

// Counters returns the current value of every recorded event counter.
func (s *Store) Counters(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event, count FROM event_counters`)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var event string
		var count int64
		if err := rows.Scan(&event, &count); err != nil {
			return nil, fmt.Errorf("scan counter row: %w", err)
		}
		out[event] = count
	}
	return out, rows.Err()
}
