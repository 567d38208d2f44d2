// Package outbox tracks locally dirty records between sync exchanges. An
// entry means the record was created/modified or deleted locally since the
// last successful push; entries are keyed by (record type, record id) and a
// later action replaces an earlier one.
package outbox

import (
	"context"
	"time"
)

// Action classifies what happened to a record locally.
type Action string

const (
	ActionModified Action = "modified"
	ActionDeleted  Action = "deleted"
)

// Entry is a single dirty record awaiting export.
type Entry struct {
	RecordType string
	RecordID   string
	Action     Action
	MarkedAt   time.Time
}

// Outbox is the contract the local cache exposes to the sync engine. The
// cache's own storage engine stays behind this boundary.
type Outbox interface {
	// MarkDirty upserts an entry; the last action for a (type, id) pair wins.
	MarkDirty(ctx context.Context, recordType, recordID string, action Action) error

	// Drain returns all dirty entries, oldest first. It does not remove them;
	// entries are cleared one by one as pushes are acknowledged.
	Drain(ctx context.Context) ([]Entry, error)

	// Clear removes the entry for the given (type, id) pair, if any.
	Clear(ctx context.Context, recordType, recordID string) error

	// ClearRecord removes any entry for the record id regardless of type.
	// Used when a pulled record supersedes an unsent local edit.
	ClearRecord(ctx context.Context, recordID string) error
}
