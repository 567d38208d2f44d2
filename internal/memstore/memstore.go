// Package memstore provides in-memory implementations of the sync store
// interfaces. They back the tests and are usable for single-process setups
// where durability does not matter.
package memstore

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/anders/showsync/internal/sync"
)

var (
	_ sync.RecordStore    = (*RecordStore)(nil)
	_ sync.DeviceRegistry = (*DeviceRegistry)(nil)
)

// RecordStore is a mutex-guarded in-memory sync.RecordStore.
type RecordStore struct {
	mu   stdsync.Mutex
	recs map[string]*sync.Record
}

// NewRecordStore creates an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{recs: make(map[string]*sync.Record)}
}

// Get returns a copy of the record, or nil when absent.
func (s *RecordStore) Get(ctx context.Context, id string) (*sync.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// Put writes the record under compare-and-swap on the revision token and
// returns the stored copy with a fresh revision.
func (s *RecordStore) Put(ctx context.Context, rec *sync.Record) (*sync.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.recs[rec.ID]
	if ok && existing.Revision != rec.Revision {
		return nil, sync.ErrRevisionMismatch
	}
	if !ok && rec.Revision != "" {
		return nil, sync.ErrRevisionMismatch
	}

	stored := rec.Clone()
	stored.Revision = uuid.NewString()
	if stored.Pending == nil {
		stored.Pending = sync.NewDeviceSet()
	}
	s.recs[rec.ID] = stored
	return stored.Clone(), nil
}

// Purge physically removes the record, compare-and-swapped on the revision.
// Purging an absent record succeeds.
func (s *RecordStore) Purge(ctx context.Context, id, revision string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.recs[id]
	if !ok {
		return nil
	}
	if existing.Revision != revision {
		return sync.ErrRevisionMismatch
	}
	delete(s.recs, id)
	return nil
}

// All returns copies of every stored record.
func (s *RecordStore) All(ctx context.Context) ([]sync.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sync.Record, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, *rec.Clone())
	}
	return out, nil
}

// PendingFor returns copies of records still pending for the device.
func (s *RecordStore) PendingFor(ctx context.Context, deviceID string) ([]sync.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sync.Record
	for _, rec := range s.recs {
		if rec.Pending.Has(deviceID) {
			out = append(out, *rec.Clone())
		}
	}
	return out, nil
}

// DeviceRegistry is a mutex-guarded in-memory sync.DeviceRegistry.
type DeviceRegistry struct {
	mu   stdsync.Mutex
	devs map[string]*sync.Device
}

// NewDeviceRegistry creates an empty DeviceRegistry.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{devs: make(map[string]*sync.Device)}
}

// Get returns a copy of the device, or nil when absent.
func (r *DeviceRegistry) Get(ctx context.Context, id string) (*sync.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, ok := r.devs[id]
	if !ok {
		return nil, nil
	}
	cp := *dev
	return &cp, nil
}

// List returns copies of all registered devices.
func (r *DeviceRegistry) List(ctx context.Context) ([]sync.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sync.Device, 0, len(r.devs))
	for _, dev := range r.devs {
		out = append(out, *dev)
	}
	return out, nil
}

// Create registers a new, unauthorized device with the given name.
func (r *DeviceRegistry) Create(ctx context.Context, name string) (*sync.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev := &sync.Device{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	r.devs[dev.ID] = dev
	cp := *dev
	return &cp, nil
}

// Rename changes the device's display name.
func (r *DeviceRegistry) Rename(ctx context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, ok := r.devs[id]
	if !ok {
		return nil
	}
	dev.Name = name
	return nil
}

// SetAuthorized flips the device's write authorization.
func (r *DeviceRegistry) SetAuthorized(ctx context.Context, id string, authorized bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, ok := r.devs[id]
	if !ok {
		return nil
	}
	dev.Authorized = authorized
	return nil
}

// Delete removes the device. Deleting an absent device succeeds.
func (r *DeviceRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devs, id)
	return nil
}
