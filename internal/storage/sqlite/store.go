// Package sqlite persists the engine's diagnostic telemetry: the catalog
// cache (built reference catalogs keyed by content hash) and the session
// event log consumed by the offline report tool. Schema is managed with
// embedded golang-migrate migrations.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the sqlite database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies any pending
// migrations. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite does not tolerate concurrent writers on one handle.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database. Safe to call more than once.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for read-only tooling (the report generator).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Note: we don't close m because it would close the underlying DB
	// connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// GetCatalog returns the cached catalog blob for the content hash.
func (s *Store) GetCatalog(hash string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.QueryRow(
		`SELECT catalog_blob FROM catalog_cache WHERE content_hash = ?`, hash,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("catalog cache get: %w", err)
	}
	return blob, true, nil
}

// PutCatalog stores (or replaces) the catalog blob for the content hash.
func (s *Store) PutCatalog(hash string, blob []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO catalog_cache (content_hash, catalog_blob, created_unix_nanos)
		 VALUES (?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET
		   catalog_blob = excluded.catalog_blob,
		   created_unix_nanos = excluded.created_unix_nanos`,
		hash, blob, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("catalog cache put: %w", err)
	}
	return nil
}

// SessionEvent is one row of the session event log.
type SessionEvent struct {
	SessionID   string
	EventType   string
	Marker      string
	Code        string
	Message     string
	TSUnixNanos int64
}

// InsertEvent appends one event to the session log.
func (s *Store) InsertEvent(ev SessionEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO session_events (session_id, event_type, marker, code, message, ts_unix_nanos)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.SessionID, ev.EventType, ev.Marker, ev.Code, ev.Message, ev.TSUnixNanos,
	)
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// ListEvents returns all events for a session ordered by timestamp. An
// empty sessionID returns every session's events.
func (s *Store) ListEvents(sessionID string) ([]SessionEvent, error) {
	query := `SELECT session_id, event_type, marker, code, message, ts_unix_nanos
	          FROM session_events`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY ts_unix_nanos ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list session events: %w", err)
	}
	defer rows.Close()

	var out []SessionEvent
	for rows.Next() {
		var ev SessionEvent
		if err := rows.Scan(&ev.SessionID, &ev.EventType, &ev.Marker, &ev.Code, &ev.Message, &ev.TSUnixNanos); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// EventCount is one row of the per-marker detection summary.
type EventCount struct {
	Marker string
	Count  int
}

// CountEventsByMarker aggregates events of one type per marker, most
// frequent first. Used by the session report tool.
func (s *Store) CountEventsByMarker(eventType string) ([]EventCount, error) {
	rows, err := s.db.Query(
		`SELECT marker, COUNT(*) AS n FROM session_events
		 WHERE event_type = ? AND marker != ''
		 GROUP BY marker ORDER BY n DESC, marker ASC`, eventType,
	)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	var out []EventCount
	for rows.Next() {
		var ec EventCount
		if err := rows.Scan(&ec.Marker, &ec.Count); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}
