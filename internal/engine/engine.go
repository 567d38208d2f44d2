// Package engine drives the client side of a sync exchange: exporting dirty
// records from the outbox and importing pending records from the server.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anders/showsync/internal/outbox"
	"github.com/anders/showsync/internal/sync"
	"github.com/anders/showsync/internal/syncclient"
)

// LocalStore is the client's persistent cache as seen by the engine. The
// storage engine behind it is external; it only needs transactional
// read/write of rows.
type LocalStore interface {
	// Read returns the current local body of a record, or nil when the
	// record no longer exists locally.
	Read(ctx context.Context, recordType, recordID string) (json.RawMessage, error)

	// Apply durably writes a pulled record. The pulled version is
	// authoritative for the whole body (last writer wins).
	Apply(ctx context.Context, rec sync.Record) error

	// Remove durably deletes a record that was tombstoned remotely.
	Remove(ctx context.Context, recordID string) error
}

// Engine coordinates a full export/import cycle for one device.
type Engine struct {
	client *syncclient.Client
	outbox outbox.Outbox
	local  LocalStore
}

// New creates an Engine.
func New(client *syncclient.Client, ob outbox.Outbox, local LocalStore) *Engine {
	return &Engine{client: client, outbox: ob, local: local}
}

// ExportResult summarises an export pass.
type ExportResult struct {
	Pushed  int
	Deleted int
	Failed  []FailedEntry
}

// FailedEntry records an outbox entry whose push failed; it stays in the
// outbox for the next cycle.
type FailedEntry struct {
	Entry outbox.Entry
	Err   error
}

// ImportResult summarises an import pass.
type ImportResult struct {
	Applied int
	Removed int
}

// Export drains the outbox and pushes each dirty record to the server. An
// entry is cleared only after the server acknowledged the push; a failed
// entry is kept so the next cycle retries it. Failures do not abort the pass.
func (e *Engine) Export(ctx context.Context) (ExportResult, error) {
	var res ExportResult

	entries, err := e.outbox.Drain(ctx)
	if err != nil {
		return res, fmt.Errorf("drain outbox: %w", err)
	}

	for _, entry := range entries {
		if err := e.exportOne(ctx, entry, &res); err != nil {
			slog.Warn("export entry failed", "type", entry.RecordType, "id", entry.RecordID, "err", err)
			res.Failed = append(res.Failed, FailedEntry{Entry: entry, Err: err})
			continue
		}
		if err := e.outbox.Clear(ctx, entry.RecordType, entry.RecordID); err != nil {
			return res, fmt.Errorf("clear outbox entry %s/%s: %w", entry.RecordType, entry.RecordID, err)
		}
	}
	return res, nil
}

func (e *Engine) exportOne(ctx context.Context, entry outbox.Entry, res *ExportResult) error {
	switch entry.Action {
	case outbox.ActionDeleted:
		if err := e.client.DeleteRecord(ctx, entry.RecordID); err != nil {
			return err
		}
		res.Deleted++
		return nil

	case outbox.ActionModified:
		body, err := e.local.Read(ctx, entry.RecordType, entry.RecordID)
		if err != nil {
			return fmt.Errorf("read local record: %w", err)
		}
		if body == nil {
			// Record vanished locally after being marked dirty; the
			// delete path owns it now.
			return nil
		}
		if _, err := e.client.PushRecord(ctx, entry.RecordID, body); err != nil {
			return err
		}
		res.Pushed++
		return nil

	default:
		return fmt.Errorf("unknown outbox action %q", entry.Action)
	}
}

// Import pulls the records pending for this device, applies each one locally,
// acknowledges it, and clears any outbox entry for it — the pulled version
// supersedes unsent local edits at whole-record granularity. A record is
// acknowledged only after it was durably applied.
func (e *Engine) Import(ctx context.Context) (ImportResult, error) {
	resp, err := e.client.PullPending(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("pull pending: %w", err)
	}
	return e.applyAll(ctx, resp.Data, true)
}

// Bootstrap performs a bulk first-time sync: pulls every record on the server
// and applies it locally. Pending entries for this device are acknowledged
// along the way.
func (e *Engine) Bootstrap(ctx context.Context) (ImportResult, error) {
	resp, err := e.client.PullAll(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("pull all: %w", err)
	}
	return e.applyAll(ctx, resp.Data, false)
}

func (e *Engine) applyAll(ctx context.Context, recs []sync.Record, ackAll bool) (ImportResult, error) {
	var res ImportResult

	for _, rec := range recs {
		if rec.Tombstoned {
			if err := e.local.Remove(ctx, rec.ID); err != nil {
				return res, fmt.Errorf("remove record %s: %w", rec.ID, err)
			}
			res.Removed++
		} else {
			if err := e.local.Apply(ctx, rec); err != nil {
				return res, fmt.Errorf("apply record %s: %w", rec.ID, err)
			}
			res.Applied++
		}

		if ackAll || rec.Pending.Has(e.client.DeviceID) {
			if err := e.client.AcknowledgePending(ctx, rec.ID); err != nil {
				return res, fmt.Errorf("acknowledge record %s: %w", rec.ID, err)
			}
		}

		if err := e.outbox.ClearRecord(ctx, rec.ID); err != nil {
			return res, fmt.Errorf("clear outbox for record %s: %w", rec.ID, err)
		}
	}
	return res, nil
}

// Sync runs one full exchange: export, then import.
func (e *Engine) Sync(ctx context.Context) (ExportResult, ImportResult, error) {
	exp, err := e.Export(ctx)
	if err != nil {
		return exp, ImportResult{}, err
	}
	imp, err := e.Import(ctx)
	return exp, imp, err
}
