// Package auditstore optionally mirrors the in-memory replay log to
// Postgres so alert and system-event history survives a daemon
// restart. It is entirely optional: with no DSN configured, nothing
// in the daemon touches this package. When configured and the
// database is briefly unreachable, writes fail over to an on-disk
// spool and get replayed once the database comes back, the same
// pattern the teacher used for its own audit log.
package auditstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/replay"
)

// Store mirrors replay.Event rows into Postgres, with disk-spool
// failover when the database is unreachable.
type Store struct {
	db  *sql.DB
	log *obslog.Logger
}

// New wraps an already-open database connection. Callers are expected
// to have run migrations (see the migrations/ directory) before
// passing db in.
func New(db *sql.DB, log *obslog.Logger) *Store {
	if log == nil {
		log = obslog.New("auditstore")
	}
	return &Store{db: db, log: log}
}

// Open opens a Postgres connection from dsn and verifies it with Ping.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("auditstore: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditstore: ping: %w", err)
	}
	return db, nil
}

// WriteEvent mirrors event into the audit_events table, deduping by
// event_id so a replayed spool entry is never double-counted. On a DB
// error it spools event to disk instead of returning an error to the
// caller, matching the teacher's "never let the audit sink take down
// the request path" behavior.
func (s *Store) WriteEvent(ctx context.Context, event replay.Event) error {
	const query = `
		INSERT INTO audit_events (
			event_id, event_type, camera_id, camera_name, rule_id, rule_name, message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.EventID, event.EventType, event.CameraID, event.CameraName,
		event.RuleID, event.RuleName, event.Message, event.Timestamp,
	)
	if err != nil {
		s.log.Printf("write failed, spooling event %s: %v", event.EventID, err)
		if spoolErr := spoolEvent(event); spoolErr != nil {
			return fmt.Errorf("auditstore: db write failed (%v) and spool failed: %w", err, spoolErr)
		}
		return nil
	}
	return nil
}

// Filter narrows a Query call. An empty EventType matches every type.
type Filter struct {
	EventType string
	CameraID  string
	Limit     int
}

// Query returns matching events, most recent first.
func (s *Store) Query(ctx context.Context, f Filter) ([]replay.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT event_id, event_type, camera_id, camera_name, rule_id, rule_name, message, created_at
		FROM audit_events
		WHERE ($1 = '' OR event_type = $1) AND ($2 = '' OR camera_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, f.EventType, f.CameraID, limit)
	if err != nil {
		return nil, fmt.Errorf("auditstore: query: %w", err)
	}
	defer rows.Close()

	var events []replay.Event
	for rows.Next() {
		var e replay.Event
		if err := rows.Scan(&e.EventID, &e.EventType, &e.CameraID, &e.CameraName, &e.RuleID, &e.RuleName, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("auditstore: scan: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
