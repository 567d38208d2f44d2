package sync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceSetMarshalsSorted(t *testing.T) {
	s := NewDeviceSet("c", "a", "b")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b","c"]`, string(data))
}

func TestDeviceSetRoundTrip(t *testing.T) {
	var s DeviceSet
	require.NoError(t, json.Unmarshal([]byte(`["x","y"]`), &s))

	assert.True(t, s.Has("x"))
	assert.True(t, s.Has("y"))
	assert.False(t, s.Has("z"))
	assert.Equal(t, []string{"x", "y"}, s.IDs())
}

func TestDeviceSetRemoveAbsent(t *testing.T) {
	s := NewDeviceSet("a")
	s.Remove("missing")
	assert.Equal(t, []string{"a"}, s.IDs())
}

func TestRecordCloneIsIndependent(t *testing.T) {
	rec := &Record{
		ID:      "r1",
		Body:    json.RawMessage(`{"x":1}`),
		Pending: NewDeviceSet("a", "b"),
	}

	clone := rec.Clone()
	clone.Pending.Remove("a")
	clone.Body[0] = ' '

	assert.True(t, rec.Pending.Has("a"))
	assert.Equal(t, json.RawMessage(`{"x":1}`), rec.Body)
}
