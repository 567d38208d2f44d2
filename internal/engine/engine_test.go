package engine

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anders/showsync/internal/api"
	"github.com/anders/showsync/internal/memstore"
	"github.com/anders/showsync/internal/outbox"
	"github.com/anders/showsync/internal/sync"
	"github.com/anders/showsync/internal/syncclient"
)

// fakeLocal is an in-memory LocalStore keyed by record id.
type fakeLocal struct {
	bodies map[string]json.RawMessage
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{bodies: make(map[string]json.RawMessage)}
}

func (l *fakeLocal) Read(ctx context.Context, recordType, recordID string) (json.RawMessage, error) {
	body, ok := l.bodies[recordID]
	if !ok {
		return nil, nil
	}
	return body, nil
}

func (l *fakeLocal) Apply(ctx context.Context, rec sync.Record) error {
	l.bodies[rec.ID] = rec.Body
	return nil
}

func (l *fakeLocal) Remove(ctx context.Context, recordID string) error {
	delete(l.bodies, recordID)
	return nil
}

// testEnv bundles one device's engine with a handle on the shared server.
type testEnv struct {
	engine *Engine
	client *syncclient.Client
	outbox *outbox.SQLite
	local  *fakeLocal
}

// newSyncServer starts an in-process server and returns its base URL plus the
// device registry for authorization.
func newSyncServer(t *testing.T) (string, *memstore.DeviceRegistry) {
	t.Helper()

	devices := memstore.NewDeviceRegistry()
	srv, err := api.NewServer(api.Config{
		ListenAddr:     ":0",
		RateLimitPush:  100000,
		RateLimitPull:  100000,
		RateLimitOther: 100000,
	}, api.Backend{
		Records: memstore.NewRecordStore(),
		Devices: devices,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, devices
}

// newDevice registers an authorized device against the server and wires a full
// engine (client, sqlite outbox, in-memory local store) for it.
func newDevice(t *testing.T, baseURL string, devices *memstore.DeviceRegistry, name string) *testEnv {
	t.Helper()

	client := syncclient.New(baseURL, "")
	id, err := client.Register(context.Background(), name)
	require.NoError(t, err)
	require.NoError(t, devices.SetAuthorized(context.Background(), id, true))

	ob, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ob.Close() })

	local := newFakeLocal()
	return &testEnv{
		engine: New(client, ob, local),
		client: client,
		outbox: ob,
		local:  local,
	}
}

func TestExportPushesDirtyRecords(t *testing.T) {
	baseURL, devices := newSyncServer(t)
	dev := newDevice(t, baseURL, devices, "phone")
	ctx := context.Background()

	dev.local.bodies["s1"] = json.RawMessage(`{"title":"pilot"}`)
	require.NoError(t, dev.outbox.MarkDirty(ctx, "show", "s1", outbox.ActionModified))
	require.NoError(t, dev.outbox.MarkDirty(ctx, "show", "s2", outbox.ActionDeleted))

	res, err := dev.engine.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 1, res.Deleted)
	assert.Empty(t, res.Failed)

	entries, err := dev.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "exported entries must be cleared")

	all, err := dev.client.PullAll(ctx)
	require.NoError(t, err)
	require.Len(t, all.Data, 1)
	assert.Equal(t, "s1", all.Data[0].ID)
	assert.JSONEq(t, `{"title":"pilot"}`, string(all.Data[0].Body))
}

func TestExportSkipsVanishedLocalRecord(t *testing.T) {
	baseURL, devices := newSyncServer(t)
	dev := newDevice(t, baseURL, devices, "phone")
	ctx := context.Background()

	// Dirty-marked but gone locally: nothing to push, entry is consumed.
	require.NoError(t, dev.outbox.MarkDirty(ctx, "show", "gone", outbox.ActionModified))

	res, err := dev.engine.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Pushed)
	assert.Empty(t, res.Failed)

	entries, err := dev.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportKeepsFailedEntries(t *testing.T) {
	baseURL, devices := newSyncServer(t)
	dev := newDevice(t, baseURL, devices, "phone")
	ctx := context.Background()

	// Revoke authorization so the push is rejected.
	require.NoError(t, devices.SetAuthorized(ctx, dev.client.DeviceID, false))

	dev.local.bodies["s1"] = json.RawMessage(`{}`)
	require.NoError(t, dev.outbox.MarkDirty(ctx, "show", "s1", outbox.ActionModified))

	res, err := dev.engine.Export(ctx)
	require.NoError(t, err, "a failed entry must not abort the pass")
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, syncclient.ErrForbidden)

	entries, err := dev.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed entry stays queued for the next cycle")
}

func TestImportAppliesAcksAndSupersedesLocalEdits(t *testing.T) {
	baseURL, devices := newSyncServer(t)
	a := newDevice(t, baseURL, devices, "phone")
	b := newDevice(t, baseURL, devices, "laptop")
	ctx := context.Background()

	_, err := a.client.PushRecord(ctx, "s1", json.RawMessage(`{"watched":true}`))
	require.NoError(t, err)

	// B has an unsent local edit of the same record; the pulled version wins
	// whole-record and the outbox entry is dropped.
	b.local.bodies["s1"] = json.RawMessage(`{"watched":false}`)
	require.NoError(t, b.outbox.MarkDirty(ctx, "show", "s1", outbox.ActionModified))

	res, err := b.engine.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 0, res.Removed)
	assert.JSONEq(t, `{"watched":true}`, string(b.local.bodies["s1"]))

	entries, err := b.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "superseded local edit must leave the outbox")

	// The ack cleared B's pending entry on the server.
	pending, err := b.client.PullPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending.Data)
}

func TestImportRemovesTombstonedRecords(t *testing.T) {
	baseURL, devices := newSyncServer(t)
	a := newDevice(t, baseURL, devices, "phone")
	b := newDevice(t, baseURL, devices, "laptop")
	ctx := context.Background()

	_, err := a.client.PushRecord(ctx, "s1", json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = b.engine.Import(ctx)
	require.NoError(t, err)
	require.Contains(t, b.local.bodies, "s1")

	require.NoError(t, a.client.DeleteRecord(ctx, "s1"))

	res, err := b.engine.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.NotContains(t, b.local.bodies, "s1")

	// B's ack drained the tombstone, so the server purged the record.
	all, err := a.client.PullAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all.Data)
}

func TestBootstrapAppliesEverything(t *testing.T) {
	baseURL, devices := newSyncServer(t)
	a := newDevice(t, baseURL, devices, "phone")
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		_, err := a.client.PushRecord(ctx, id, json.RawMessage(`{"id":"`+id+`"}`))
		require.NoError(t, err)
	}

	// A fresh device bootstraps from the full record set even though nothing
	// is pending for it.
	b := newDevice(t, baseURL, devices, "laptop")
	res, err := b.engine.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Len(t, b.local.bodies, 2)
}

func TestSyncRunsExportThenImport(t *testing.T) {
	baseURL, devices := newSyncServer(t)
	a := newDevice(t, baseURL, devices, "phone")
	b := newDevice(t, baseURL, devices, "laptop")
	ctx := context.Background()

	// A has a local edit queued; B has already pushed a different record.
	a.local.bodies["s1"] = json.RawMessage(`{"from":"a"}`)
	require.NoError(t, a.outbox.MarkDirty(ctx, "show", "s1", outbox.ActionModified))
	_, err := b.client.PushRecord(ctx, "s2", json.RawMessage(`{"from":"b"}`))
	require.NoError(t, err)

	exp, imp, err := a.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, exp.Pushed)
	assert.Equal(t, 1, imp.Applied)
	assert.Contains(t, a.local.bodies, "s2")

	// B imports A's record on its next cycle.
	_, imp, err = b.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, imp.Applied)
	assert.Contains(t, b.local.bodies, "s1")
}
