// Package localstore is the client's durable record cache: the records this
// device currently believes in, fed by local edits and by imports from the
// server.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anders/showsync/internal/engine"
	"github.com/anders/showsync/internal/sync"
)

var _ engine.LocalStore = (*LocalStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS records (
    id          TEXT PRIMARY KEY,
    record_type TEXT NOT NULL DEFAULT 'record',
    body        TEXT NOT NULL,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// LocalRecord is one locally cached record.
type LocalRecord struct {
	ID         string
	RecordType string
	Body       json.RawMessage
	UpdatedAt  time.Time
}

// LocalStore is the sqlite-backed client cache.
type LocalStore struct {
	conn *sql.DB
}

// Open opens (or creates) the local record cache at the given path.
func Open(dbPath string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create local store dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
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
		return nil, fmt.Errorf("create local store schema: %w", err)
	}

	return &LocalStore{conn: conn}, nil
}

// Close closes the local store.
func (l *LocalStore) Close() error {
	return l.conn.Close()
}

// Read returns the current local body of a record, or nil when absent.
func (l *LocalStore) Read(ctx context.Context, recordType, recordID string) (json.RawMessage, error) {
	var body string
	err := l.conn.QueryRowContext(ctx,
		`SELECT body FROM records WHERE id = ?`, recordID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", recordID, err)
	}
	return json.RawMessage(body), nil
}

// Apply durably writes a record pulled from the server. The pulled body
// replaces the local one wholesale.
func (l *LocalStore) Apply(ctx context.Context, rec sync.Record) error {
	_, err := l.conn.ExecContext(ctx,
		`INSERT INTO records (id, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		rec.ID, string(rec.Body), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply record %s: %w", rec.ID, err)
	}
	return nil
}

// Remove deletes a record that was tombstoned remotely. Removing an absent
// record succeeds.
func (l *LocalStore) Remove(ctx context.Context, recordID string) error {
	_, err := l.conn.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, recordID)
	if err != nil {
		return fmt.Errorf("remove record %s: %w", recordID, err)
	}
	return nil
}

// Set stores a local edit. The caller is responsible for marking the record
// dirty in the outbox so the next export pushes it.
func (l *LocalStore) Set(ctx context.Context, recordType, recordID string, body json.RawMessage) error {
	_, err := l.conn.ExecContext(ctx,
		`INSERT INTO records (id, record_type, body, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET record_type = excluded.record_type, body = excluded.body, updated_at = excluded.updated_at`,
		recordID, recordType, string(body), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set record %s: %w", recordID, err)
	}
	return nil
}

// List returns every cached record ordered by id.
func (l *LocalStore) List(ctx context.Context) ([]LocalRecord, error) {
	rows, err := l.conn.QueryContext(ctx,
		`SELECT id, record_type, body, updated_at FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []LocalRecord
	for rows.Next() {
		var rec LocalRecord
		var body string
		if err := rows.Scan(&rec.ID, &rec.RecordType, &body, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Body = json.RawMessage(body)
		out = append(out, rec)
	}
	return out, rows.Err()
}
