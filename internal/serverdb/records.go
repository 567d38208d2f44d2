package serverdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/anders/showsync/internal/sync"
)

// Get returns the record with the given id, or nil when absent.
func (s *RecordStore) Get(ctx context.Context, id string) (*sync.Record, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, revision, body, pending, tombstoned FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

// Put writes the record under compare-and-swap on the revision token. An
// empty revision inserts; a non-empty one updates the matching row. Either
// way a stale token yields sync.ErrRevisionMismatch.
func (s *RecordStore) Put(ctx context.Context, rec *sync.Record) (*sync.Record, error) {
	pending, err := json.Marshal(rec.Pending.IDs())
	if err != nil {
		return nil, fmt.Errorf("marshal pending set: %w", err)
	}
	body := rec.Body
	if body == nil {
		body = json.RawMessage("null")
	}

	revision := newRevision()

	var res sql.Result
	if rec.Revision == "" {
		res, err = s.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO records (id, revision, body, pending, tombstoned) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, revision, string(body), string(pending), rec.Tombstoned)
	} else {
		res, err = s.conn.ExecContext(ctx,
			`UPDATE records SET revision = ?, body = ?, pending = ?, tombstoned = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND revision = ?`,
			revision, string(body), string(pending), rec.Tombstoned, rec.ID, rec.Revision)
	}
	if err != nil {
		return nil, fmt.Errorf("put record %s: %w", rec.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, sync.ErrRevisionMismatch
	}

	stored := rec.Clone()
	stored.Revision = revision
	return stored, nil
}

// Purge physically removes the record, compare-and-swapped on the revision.
// Purging an absent record succeeds; a live row under a different revision is
// a mismatch.
func (s *RecordStore) Purge(ctx context.Context, id, revision string) error {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM records WHERE id = ? AND revision = ?`, id, revision)
	if err != nil {
		return fmt.Errorf("purge record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		if err := s.conn.QueryRowContext(ctx, `SELECT 1 FROM records WHERE id = ?`, id).Scan(&exists); err == sql.ErrNoRows {
			return nil // already purged
		}
		return sync.ErrRevisionMismatch
	}
	return nil
}

// All returns every non-purged record.
func (s *RecordStore) All(ctx context.Context) ([]sync.Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, revision, body, pending, tombstoned FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// PendingFor returns records whose pending set still contains the device.
func (s *RecordStore) PendingFor(ctx context.Context, deviceID string) ([]sync.Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, revision, body, pending, tombstoned FROM records
		 WHERE EXISTS (SELECT 1 FROM json_each(records.pending) WHERE json_each.value = ?)
		 ORDER BY id`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("query pending records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*sync.Record, error) {
	var rec sync.Record
	var body, pending string
	if err := row.Scan(&rec.ID, &rec.Revision, &body, &pending, &rec.Tombstoned); err != nil {
		return nil, err
	}
	rec.Body = json.RawMessage(body)
	var ids []string
	if err := json.Unmarshal([]byte(pending), &ids); err != nil {
		return nil, fmt.Errorf("decode pending set: %w", err)
	}
	rec.Pending = sync.NewDeviceSet(ids...)
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]sync.Record, error) {
	var out []sync.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
