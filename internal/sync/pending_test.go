package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func devs(ids ...string) []Device {
	out := make([]Device, len(ids))
	for i, id := range ids {
		out[i] = Device{ID: id, Authorized: true}
	}
	return out
}

func TestFanOutExcludesOrigin(t *testing.T) {
	rec := &Record{ID: "r1"}
	fanOut(rec, devs("a", "b", "c"), "b")

	assert.Equal(t, []string{"a", "c"}, rec.Pending.IDs())
}

func TestFanOutReplacesPreviousSet(t *testing.T) {
	rec := &Record{ID: "r1", Pending: NewDeviceSet("stale")}
	fanOut(rec, devs("a", "b"), "a")

	assert.Equal(t, []string{"b"}, rec.Pending.IDs())
}

func TestFanOutSoleDevice(t *testing.T) {
	rec := &Record{ID: "r1"}
	fanOut(rec, devs("a"), "a")

	assert.Empty(t, rec.Pending.IDs())
}

func TestAcknowledgeRemovesDevice(t *testing.T) {
	rec := &Record{ID: "r1", Pending: NewDeviceSet("a", "b")}

	purge := acknowledge(rec, "a")

	assert.False(t, purge)
	assert.Equal(t, []string{"b"}, rec.Pending.IDs())
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	rec := &Record{ID: "r1", Pending: NewDeviceSet("a", "b")}

	acknowledge(rec, "a")
	purge := acknowledge(rec, "a")

	assert.False(t, purge)
	assert.Equal(t, []string{"b"}, rec.Pending.IDs())
}

func TestAcknowledgeSignalsPurgeOnDrainedTombstone(t *testing.T) {
	rec := &Record{ID: "r1", Tombstoned: true, Pending: NewDeviceSet("a")}

	assert.True(t, acknowledge(rec, "a"))
}

func TestAcknowledgeNoPurgeWithoutTombstone(t *testing.T) {
	rec := &Record{ID: "r1", Pending: NewDeviceSet("a")}

	assert.False(t, acknowledge(rec, "a"))
	assert.Empty(t, rec.Pending.IDs())
}
