package sync

import (
	"encoding/json"
	"sort"
	"time"
)

// Record is an opaque unit of synchronized data. The body belongs to the
// calling domain layer; the sync core only manages the pending set and the
// tombstone flag around it.
type Record struct {
	ID         string          `json:"id"`
	Revision   string          `json:"revision"`
	Body       json.RawMessage `json:"body"`
	Pending    DeviceSet       `json:"pending"`
	Tombstoned bool            `json:"tombstoned"`
}

// Device is a registered client identity. A freshly created device is not
// authorized (read-only) until explicitly promoted.
type Device struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Authorized bool      `json:"authorized"`
	CreatedAt  time.Time `json:"created_at"`
}

// DeviceSet is an unordered set of device ids. It marshals as a sorted JSON
// array so serialized records (and their checksums) are deterministic.
type DeviceSet map[string]struct{}

// NewDeviceSet builds a set from the given ids.
func NewDeviceSet(ids ...string) DeviceSet {
	s := make(DeviceSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s DeviceSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s DeviceSet) Add(id string) {
	s[id] = struct{}{}
}

// Remove deletes id from the set. Removing an absent id is a no-op.
func (s DeviceSet) Remove(id string) {
	delete(s, id)
}

// IDs returns the members in sorted order.
func (s DeviceSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy of the set.
func (s DeviceSet) Clone() DeviceSet {
	c := make(DeviceSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// MarshalJSON serializes the set as a sorted array of ids.
func (s DeviceSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON reads an array of ids.
func (s *DeviceSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewDeviceSet(ids...)
	return nil
}

// Clone returns a deep copy of the record. Stores hand out clones so callers
// can mutate freely before writing back.
func (r *Record) Clone() *Record {
	c := *r
	c.Pending = r.Pending.Clone()
	if r.Body != nil {
		c.Body = make(json.RawMessage, len(r.Body))
		copy(c.Body, r.Body)
	}
	return &c
}
