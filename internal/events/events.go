// Package events keeps a local history of trigger firings in sqlite. The
// IPC event file only ever holds the latest check; this store is what lets
// an operator ask "what fired overnight" after the fact.
package events

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// schema.sql is the baseline schema, applied on open. Later changes ship
// as migrations; the baseline stays compatible with migration version 1.
//
//go:embed schema.sql
var schemaSQL string

type Store struct {
	*sql.DB
}

// Open opens (creating if necessary) the event database at path and applies
// the baseline schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single-writer daemon, but external tooling may read concurrently.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db}, nil
}

// Record is one evaluated check worth remembering. Details holds the
// evaluator's diagnostic map, stored as JSON text.
type Record struct {
	EventID     string
	TriggerID   string
	TriggerName string
	Status      string
	Triggered   bool
	Reason      string
	Details     map[string]interface{}
	CreatedAt   time.Time
}

// RecordEvent inserts a record, assigning a fresh event id when none is
// set, and returns the id.
func (s *Store) RecordEvent(r Record) (string, error) {
	if r.EventID == "" {
		r.EventID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	details := "{}"
	if r.Details != nil {
		b, err := json.Marshal(r.Details)
		if err != nil {
			return "", fmt.Errorf("encode details: %w", err)
		}
		details = string(b)
	}

	_, err := s.Exec(`
		INSERT INTO trigger_events
			(event_id, trigger_id, trigger_name, status, triggered, reason, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.EventID, r.TriggerID, r.TriggerName, r.Status, boolToInt(r.Triggered),
		r.Reason, details, r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return r.EventID, nil
}

// RecentEvents returns up to limit records, newest first.
func (s *Store) RecentEvents(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Query(`
		SELECT event_id, trigger_id, trigger_name, status, triggered, reason, details, created_at
		FROM trigger_events
		ORDER BY created_at DESC, event_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var triggered int
		var reason, details sql.NullString
		var created string
		if err := rows.Scan(&r.EventID, &r.TriggerID, &r.TriggerName, &r.Status,
			&triggered, &reason, &details, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.Triggered = triggered != 0
		r.Reason = reason.String
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &r.Details); err != nil {
				r.Details = nil
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountSince returns how many events fired (triggered only) at or after
// the given time.
func (s *Store) CountSince(since time.Time) (int, error) {
	var n int
	err := s.QueryRow(`
		SELECT COUNT(*) FROM trigger_events
		WHERE triggered = 1 AND created_at >= ?`,
		since.UTC().Format(time.RFC3339Nano),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// PruneBefore deletes records older than cutoff and reports how many went.
func (s *Store) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := s.Exec(`DELETE FROM trigger_events WHERE created_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
