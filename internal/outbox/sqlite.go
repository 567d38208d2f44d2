package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var _ Outbox = (*SQLite)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS outbox (
    record_type TEXT NOT NULL,
    record_id   TEXT NOT NULL,
    action      TEXT NOT NULL CHECK(action IN ('modified', 'deleted')),
    marked_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (record_type, record_id)
);
CREATE INDEX IF NOT EXISTS idx_outbox_record ON outbox(record_id);
`

// SQLite is the sqlite-backed Outbox implementation.
type SQLite struct {
	conn *sql.DB
}

// Open opens (or creates) the outbox database at the given path.
func Open(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create outbox dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create outbox schema: %w", err)
	}

	return &SQLite{conn: conn}, nil
}

// Close closes the outbox database.
func (o *SQLite) Close() error {
	return o.conn.Close()
}

// MarkDirty upserts the entry; a later action for the same record replaces
// the earlier one.
func (o *SQLite) MarkDirty(ctx context.Context, recordType, recordID string, action Action) error {
	_, err := o.conn.ExecContext(ctx,
		`INSERT INTO outbox (record_type, record_id, action, marked_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(record_type, record_id) DO UPDATE SET action = excluded.action, marked_at = excluded.marked_at`,
		recordType, recordID, string(action), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark dirty %s/%s: %w", recordType, recordID, err)
	}
	return nil
}

// Drain returns all dirty entries, oldest first.
func (o *SQLite) Drain(ctx context.Context) ([]Entry, error) {
	rows, err := o.conn.QueryContext(ctx,
		`SELECT record_type, record_id, action, marked_at FROM outbox ORDER BY marked_at, record_id`)
	if err != nil {
		return nil, fmt.Errorf("drain outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.RecordType, &e.RecordID, &action, &e.MarkedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.Action = Action(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes the entry for the (type, id) pair, if any.
func (o *SQLite) Clear(ctx context.Context, recordType, recordID string) error {
	_, err := o.conn.ExecContext(ctx,
		`DELETE FROM outbox WHERE record_type = ? AND record_id = ?`, recordType, recordID)
	if err != nil {
		return fmt.Errorf("clear %s/%s: %w", recordType, recordID, err)
	}
	return nil
}

// ClearRecord removes any entry for the record id regardless of type.
func (o *SQLite) ClearRecord(ctx context.Context, recordID string) error {
	_, err := o.conn.ExecContext(ctx, `DELETE FROM outbox WHERE record_id = ?`, recordID)
	if err != nil {
		return fmt.Errorf("clear record %s: %w", recordID, err)
	}
	return nil
}
