package outbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestOutbox(t *testing.T) *SQLite {
	t.Helper()
	o, err := Open(filepath.Join(t.TempDir(), "outbox.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { o.Close() })
	return o
}

func TestMarkDirtyAndDrain(t *testing.T) {
	o := openTestOutbox(t)
	ctx := context.Background()

	if err := o.MarkDirty(ctx, "show", "s1", ActionModified); err != nil {
		t.Fatalf("MarkDirty failed: %v", err)
	}
	if err := o.MarkDirty(ctx, "show", "s2", ActionDeleted); err != nil {
		t.Fatalf("MarkDirty failed: %v", err)
	}

	entries, err := o.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RecordID != "s1" || entries[0].Action != ActionModified {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].RecordID != "s2" || entries[1].Action != ActionDeleted {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
	if entries[0].MarkedAt.IsZero() {
		t.Error("MarkedAt not recorded")
	}
}

func TestMarkDirtyLastActionWins(t *testing.T) {
	o := openTestOutbox(t)
	ctx := context.Background()

	if err := o.MarkDirty(ctx, "show", "s1", ActionModified); err != nil {
		t.Fatalf("MarkDirty failed: %v", err)
	}
	if err := o.MarkDirty(ctx, "show", "s1", ActionDeleted); err != nil {
		t.Fatalf("MarkDirty failed: %v", err)
	}

	entries, err := o.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after upsert, got %d", len(entries))
	}
	if entries[0].Action != ActionDeleted {
		t.Errorf("expected deleted to replace modified, got %s", entries[0].Action)
	}
}

func TestDrainOrder(t *testing.T) {
	o := openTestOutbox(t)
	ctx := context.Background()

	// Distinct timestamps so marked_at ordering is deterministic.
	for i, id := range []string{"c", "a", "b"} {
		if err := o.MarkDirty(ctx, "show", id, ActionModified); err != nil {
			t.Fatalf("MarkDirty failed: %v", err)
		}
		if i < 2 {
			time.Sleep(5 * time.Millisecond)
		}
	}

	entries, err := o.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].RecordID != "c" {
		t.Errorf("oldest entry should drain first, got %s", entries[0].RecordID)
	}
}

func TestClear(t *testing.T) {
	o := openTestOutbox(t)
	ctx := context.Background()

	if err := o.MarkDirty(ctx, "show", "s1", ActionModified); err != nil {
		t.Fatalf("MarkDirty failed: %v", err)
	}
	if err := o.Clear(ctx, "show", "s1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := o.Clear(ctx, "show", "s1"); err != nil {
		t.Errorf("clearing an absent entry should succeed, got %v", err)
	}

	entries, err := o.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty outbox, got %d entries", len(entries))
	}
}

func TestClearRecordIgnoresType(t *testing.T) {
	o := openTestOutbox(t)
	ctx := context.Background()

	if err := o.MarkDirty(ctx, "show", "s1", ActionModified); err != nil {
		t.Fatalf("MarkDirty failed: %v", err)
	}
	if err := o.MarkDirty(ctx, "episode", "s1", ActionModified); err != nil {
		t.Fatalf("MarkDirty failed: %v", err)
	}
	if err := o.MarkDirty(ctx, "show", "s2", ActionModified); err != nil {
		t.Fatalf("MarkDirty failed: %v", err)
	}

	if err := o.ClearRecord(ctx, "s1"); err != nil {
		t.Fatalf("ClearRecord failed: %v", err)
	}

	entries, err := o.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(entries) != 1 || entries[0].RecordID != "s2" {
		t.Errorf("expected only s2 to remain, got %+v", entries)
	}
}
