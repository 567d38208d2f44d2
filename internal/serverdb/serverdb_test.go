package serverdb

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/anders/showsync/internal/sync"
)

func openTestDB(t *testing.T) *ServerDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "sync.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file not created")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	pending := sync.NewDeviceSet()
	pending.Add("dev-b")
	pending.Add("dev-a")

	stored, err := db.Records().Put(ctx, &sync.Record{
		ID:      "r1",
		Body:    json.RawMessage(`{"title":"pilot","watched":true}`),
		Pending: pending,
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if stored.Revision == "" {
		t.Fatal("Put did not assign a revision")
	}

	got, err := db.Records().Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored record")
	}
	if got.Revision != stored.Revision {
		t.Errorf("revision mismatch: got %s, want %s", got.Revision, stored.Revision)
	}
	if string(got.Body) != `{"title":"pilot","watched":true}` {
		t.Errorf("body not preserved verbatim: %s", got.Body)
	}
	if ids := got.Pending.IDs(); len(ids) != 2 || ids[0] != "dev-a" || ids[1] != "dev-b" {
		t.Errorf("pending set mismatch: %v", ids)
	}
	if got.Tombstoned {
		t.Error("record unexpectedly tombstoned")
	}
}

func TestGetMissingRecordReturnsNil(t *testing.T) {
	db := openTestDB(t)

	got, err := db.Records().Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestPutCompareAndSwap(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, err := db.Records().Put(ctx, &sync.Record{ID: "r1", Body: json.RawMessage(`{"v":1}`)})
	if err != nil {
		t.Fatalf("initial Put failed: %v", err)
	}

	second, err := db.Records().Put(ctx, &sync.Record{ID: "r1", Revision: first.Revision, Body: json.RawMessage(`{"v":2}`)})
	if err != nil {
		t.Fatalf("update Put failed: %v", err)
	}
	if second.Revision == first.Revision {
		t.Error("update did not rotate the revision")
	}

	// Stale writer loses.
	_, err = db.Records().Put(ctx, &sync.Record{ID: "r1", Revision: first.Revision, Body: json.RawMessage(`{"v":3}`)})
	if !errors.Is(err, sync.ErrRevisionMismatch) {
		t.Errorf("expected ErrRevisionMismatch, got %v", err)
	}

	// Inserting with a revision set means someone purged it underneath us.
	_, err = db.Records().Put(ctx, &sync.Record{ID: "r2", Revision: "stale"})
	if !errors.Is(err, sync.ErrRevisionMismatch) {
		t.Errorf("expected ErrRevisionMismatch for phantom insert, got %v", err)
	}
}

func TestPurge(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	stored, err := db.Records().Put(ctx, &sync.Record{ID: "r1", Body: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := db.Records().Purge(ctx, "r1", "wrong"); !errors.Is(err, sync.ErrRevisionMismatch) {
		t.Errorf("expected ErrRevisionMismatch, got %v", err)
	}
	if err := db.Records().Purge(ctx, "r1", stored.Revision); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if err := db.Records().Purge(ctx, "r1", stored.Revision); err != nil {
		t.Errorf("purging an absent record should succeed, got %v", err)
	}

	got, err := db.Records().Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Error("record survived purge")
	}
}

func TestPendingForUsesJSONIndex(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	put := func(id string, devices ...string) {
		pending := sync.NewDeviceSet()
		for _, d := range devices {
			pending.Add(d)
		}
		if _, err := db.Records().Put(ctx, &sync.Record{ID: id, Body: json.RawMessage(`{}`), Pending: pending}); err != nil {
			t.Fatalf("Put %s failed: %v", id, err)
		}
	}

	put("r1", "dev-a", "dev-b")
	put("r2", "dev-b")
	put("r3")

	recs, err := db.Records().PendingFor(ctx, "dev-b")
	if err != nil {
		t.Fatalf("PendingFor failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 pending records, got %d", len(recs))
	}

	none, err := db.Records().PendingFor(ctx, "dev-z")
	if err != nil {
		t.Fatalf("PendingFor failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no pending records, got %d", len(none))
	}
}

func TestAllIncludesTombstones(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Records().Put(ctx, &sync.Record{ID: "live", Body: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := db.Records().Put(ctx, &sync.Record{ID: "dead", Body: json.RawMessage(`{}`), Tombstoned: true}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	recs, err := db.Records().All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	var sawTombstone bool
	for _, rec := range recs {
		if rec.ID == "dead" && rec.Tombstoned {
			sawTombstone = true
		}
	}
	if !sawTombstone {
		t.Error("tombstone flag not persisted")
	}
}

func TestDeviceRegistry(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	dev, err := db.Devices().Create(ctx, "bedroom")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if dev.ID == "" {
		t.Fatal("Create did not assign an id")
	}
	if dev.Authorized {
		t.Error("new device must start unauthorized")
	}

	if err := db.Devices().Rename(ctx, dev.ID, "bedroom tv"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if err := db.Devices().SetAuthorized(ctx, dev.ID, true); err != nil {
		t.Fatalf("SetAuthorized failed: %v", err)
	}

	got, err := db.Devices().Get(ctx, dev.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Name != "bedroom tv" || !got.Authorized {
		t.Errorf("unexpected device state: %+v", got)
	}

	all, err := db.Devices().List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 device, got %d", len(all))
	}

	if err := db.Devices().SetAuthorized(ctx, "ghost", true); err == nil {
		t.Error("authorizing an unknown device should fail")
	}

	if err := db.Devices().Delete(ctx, dev.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	gone, err := db.Devices().Get(ctx, dev.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gone != nil {
		t.Error("device survived delete")
	}
	if err := db.Devices().Delete(ctx, dev.ID); err != nil {
		t.Errorf("deleting an absent device should succeed, got %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sync.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if v := db.getSchemaVersion(); v != ServerSchemaVersion {
		t.Errorf("schema version = %d, want %d", v, ServerSchemaVersion)
	}
	db.Close()

	// Reopening must not re-run applied migrations.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()
	if v := db.getSchemaVersion(); v != ServerSchemaVersion {
		t.Errorf("schema version after reopen = %d, want %d", v, ServerSchemaVersion)
	}
}
