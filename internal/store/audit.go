// Package store provides a libsql-backed audit log implementing the
// EventSink contract. The engine itself never persists anything; hosts that
// want a durable trail attach this sink (or their own).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/idle-engine/idle/pkg/schema"
)

// AuditLog appends redacted run events to an embedded libsql database with a
// per-correlation monotonically increasing sequence.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog opens (or creates) the audit database at the given path. The
// path should be a file URI, e.g. "file:/var/lib/idle/audit.db".
func NewAuditLog(dbPath string) (*AuditLog, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Connection-level PRAGMAs. Some return rows, so QueryRow is used.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	a := &AuditLog{db: db}
	if err := a.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *AuditLog) migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_events (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			correlation_id TEXT NOT NULL,
			sequence       INTEGER NOT NULL,
			event_type     TEXT NOT NULL,
			message        TEXT NOT NULL,
			actor          TEXT,
			step_name      TEXT,
			data           TEXT,
			timestamp_utc  TEXT NOT NULL,
			UNIQUE (correlation_id, sequence)
		)`)
	if err != nil {
		return fmt.Errorf("migrate audit log: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_run_events_correlation ON run_events (correlation_id, sequence)`)
	if err != nil {
		return fmt.Errorf("index audit log: %w", err)
	}
	return nil
}

// WriteEvent appends one event. Satisfies schema.EventSink. The sequence
// read and insert share a transaction so concurrent writers cannot
// interleave.
func (a *AuditLog) WriteEvent(ctx context.Context, event *schema.Event) error {
	if event == nil {
		return schema.NewError(schema.ErrCodeStore, "event is nil")
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM run_events WHERE correlation_id = ?`,
		event.CorrelationID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	var data any
	if event.Data != nil {
		encoded, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("encode event data: %w", err)
		}
		data = string(encoded)
	}

	ts := event.TimestampUTC
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_events (correlation_id, sequence, event_type, message, actor, step_name, data, timestamp_utc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.CorrelationID, seq, event.Type, event.Message,
		nullStr(event.Actor), nullStr(event.StepName), data, ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return tx.Commit()
}

// Events returns all events for a correlation ID ordered by sequence.
func (a *AuditLog) Events(ctx context.Context, correlationID string) ([]*schema.Event, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT event_type, message, actor, step_name, data, timestamp_utc
		 FROM run_events WHERE correlation_id = ? ORDER BY sequence ASC`,
		correlationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*schema.Event
	for rows.Next() {
		var (
			event     schema.Event
			actor     sql.NullString
			stepName  sql.NullString
			data      sql.NullString
			timestamp string
		)
		if err := rows.Scan(&event.Type, &event.Message, &actor, &stepName, &data, &timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.CorrelationID = correlationID
		event.Actor = actor.String
		event.StepName = stepName.String
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &event.Data); err != nil {
				return nil, fmt.Errorf("decode event data: %w", err)
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			event.TimestampUTC = ts
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// Close closes the database.
func (a *AuditLog) Close() error {
	return a.db.Close()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
