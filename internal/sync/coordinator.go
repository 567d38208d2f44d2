package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// defaultCASRetries bounds how often a read-modify-write is retried after a
// revision mismatch before ErrConflict is surfaced.
const defaultCASRetries = 5

// ErrPayloadInvalid means the push payload could not be parsed or carried no
// record id.
var ErrPayloadInvalid = errors.New("invalid record payload")

// Coordinator implements the server-side sync protocol on top of injected
// record and device backends. It holds no state of its own beyond the retry
// budget, so concurrent instances are safe as long as they share the same
// stores.
type Coordinator struct {
	records RecordStore
	devices DeviceRegistry
	retries int
}

// NewCoordinator creates a Coordinator. casRetries <= 0 selects the default
// retry budget.
func NewCoordinator(records RecordStore, devices DeviceRegistry, casRetries int) *Coordinator {
	if casRetries <= 0 {
		casRetries = defaultCASRetries
	}
	return &Coordinator{records: records, devices: devices, retries: casRetries}
}

// pushEnvelope is the wire shape of a pushed record: the id plus the opaque
// domain body.
type pushEnvelope struct {
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body"`
}

// Push ingests a record mutation from a device. The declared checksum is
// verified against the exact payload bytes before anything else touches the
// store. On success it returns the stored record and the checksum, which the
// API layer echoes as the response ETag.
func (c *Coordinator) Push(ctx context.Context, deviceID string, payload []byte, declaredSum string) (*Record, string, error) {
	if deviceID == "" {
		return nil, "", ErrDeviceMissing
	}

	sum := Checksum(payload)
	if !strings.EqualFold(declaredSum, sum) {
		return nil, "", fmt.Errorf("%w: declared %q, computed %q", ErrChecksumMismatch, declaredSum, sum)
	}

	if err := c.requireWriter(ctx, deviceID); err != nil {
		return nil, "", err
	}

	var env pushEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	if env.ID == "" {
		return nil, "", fmt.Errorf("%w: missing id", ErrPayloadInvalid)
	}

	var stored *Record
	err := c.withRetry(func() error {
		existing, err := c.records.Get(ctx, env.ID)
		if err != nil {
			return err
		}

		rec := &Record{ID: env.ID, Body: env.Body}
		if existing != nil {
			// Carry the revision forward so the write is a
			// compare-and-swap, not a blind overwrite.
			rec.Revision = existing.Revision
		}

		devices, err := c.devices.List(ctx)
		if err != nil {
			return err
		}
		fanOut(rec, devices, deviceID)

		stored, err = c.records.Put(ctx, rec)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return stored, sum, nil
}

// Delete marks a record as tombstoned and fans the tombstone out to all other
// devices; when no other device exists the record is purged outright. A record
// that is already tombstoned is treated as an acknowledgement from the
// deleting device rather than a new tombstone. Deleting a record that does
// not exist is already-converged, not an error.
func (c *Coordinator) Delete(ctx context.Context, deviceID, recordID string) error {
	if deviceID == "" {
		return ErrDeviceMissing
	}
	if err := c.requireWriter(ctx, deviceID); err != nil {
		return err
	}

	return c.withRetry(func() error {
		rec, err := c.records.Get(ctx, recordID)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		if rec.Tombstoned {
			return c.ackOne(ctx, rec, deviceID)
		}

		rec.Tombstoned = true
		devices, err := c.devices.List(ctx)
		if err != nil {
			return err
		}
		fanOut(rec, devices, deviceID)

		// With no other device registered there is nobody left to
		// acknowledge the tombstone, so it is deleted right away
		// instead of persisted.
		if len(rec.Pending) == 0 {
			return c.records.Purge(ctx, rec.ID, rec.Revision)
		}

		_, err = c.records.Put(ctx, rec)
		return err
	})
}

// PullAll returns every non-purged record regardless of pending status, plus
// a checksum over the serialized result set for bulk-transfer verification.
// Read-only devices may pull.
func (c *Coordinator) PullAll(ctx context.Context, deviceID string) ([]Record, string, error) {
	if err := c.requireDevice(ctx, deviceID); err != nil {
		return nil, "", err
	}
	recs, err := c.records.All(ctx)
	if err != nil {
		return nil, "", err
	}
	return checksummed(recs)
}

// PullPending returns the records still pending for the given device, plus a
// checksum over the serialized result set.
func (c *Coordinator) PullPending(ctx context.Context, deviceID string) ([]Record, string, error) {
	if err := c.requireDevice(ctx, deviceID); err != nil {
		return nil, "", err
	}
	recs, err := c.records.PendingFor(ctx, deviceID)
	if err != nil {
		return nil, "", err
	}
	return checksummed(recs)
}

// AcknowledgePending retires the device from the record's pending set after
// the client has durably applied the pulled record, purging a tombstoned
// record once its set drains. Repeated acknowledgement of an already-cleared
// pair succeeds silently.
func (c *Coordinator) AcknowledgePending(ctx context.Context, deviceID, recordID string) error {
	if err := c.requireDevice(ctx, deviceID); err != nil {
		return err
	}
	return c.withRetry(func() error {
		rec, err := c.records.Get(ctx, recordID)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		return c.ackOne(ctx, rec, deviceID)
	})
}

// Register creates a new device when claimedID is empty, or renames an
// existing one (registration doubles as a rename/claim operation). New
// devices start read-only until promoted out of band. Returns the device id.
func (c *Coordinator) Register(ctx context.Context, claimedID, name string) (string, error) {
	if claimedID == "" {
		dev, err := c.devices.Create(ctx, name)
		if err != nil {
			return "", err
		}
		slog.Info("device registered", "device", dev.ID, "name", name)
		return dev.ID, nil
	}

	dev, err := c.devices.Get(ctx, claimedID)
	if err != nil {
		return "", err
	}
	if dev == nil {
		return "", ErrDeviceUnknown
	}
	if err := c.devices.Rename(ctx, claimedID, name); err != nil {
		return "", err
	}
	return claimedID, nil
}

// Deregister retires the device from every record's pending set and then
// removes it from the registry. Only the device itself may deregister
// (self-authorizing, no promotion needed). An already-deregistered device is
// success. The sweep runs before the row is removed so no record is ever left
// referencing a nonexistent device id; a crash mid-sweep is safe to resume
// because each acknowledgement is idempotent.
func (c *Coordinator) Deregister(ctx context.Context, callerID, targetID string) error {
	if callerID == "" {
		return ErrDeviceMissing
	}
	if callerID != targetID {
		return ErrNotSelf
	}

	dev, err := c.devices.Get(ctx, targetID)
	if err != nil {
		return err
	}
	if dev == nil {
		return nil
	}

	if err := c.retireDevice(ctx, targetID); err != nil {
		return err
	}
	return c.devices.Delete(ctx, targetID)
}

// retireDevice acknowledges every record still pending for the device.
func (c *Coordinator) retireDevice(ctx context.Context, deviceID string) error {
	recs, err := c.records.PendingFor(ctx, deviceID)
	if err != nil {
		return err
	}
	for i := range recs {
		id := recs[i].ID
		err := c.withRetry(func() error {
			rec, err := c.records.Get(ctx, id)
			if err != nil {
				return err
			}
			if rec == nil {
				return nil
			}
			return c.ackOne(ctx, rec, deviceID)
		})
		if err != nil {
			return fmt.Errorf("retire %s from record %s: %w", deviceID, id, err)
		}
	}
	if len(recs) > 0 {
		slog.Debug("retired device from pending sets", "device", deviceID, "records", len(recs))
	}
	return nil
}

// ackOne applies a single acknowledgement to an already-loaded record,
// purging when the pending set drains on a tombstone.
func (c *Coordinator) ackOne(ctx context.Context, rec *Record, deviceID string) error {
	if !rec.Pending.Has(deviceID) {
		return nil
	}
	if acknowledge(rec, deviceID) {
		return c.records.Purge(ctx, rec.ID, rec.Revision)
	}
	_, err := c.records.Put(ctx, rec)
	return err
}

// requireWriter resolves the device and checks it may mutate records.
func (c *Coordinator) requireWriter(ctx context.Context, deviceID string) error {
	dev, err := c.devices.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if dev == nil {
		return ErrDeviceUnknown
	}
	if !dev.Authorized {
		return ErrReadOnly
	}
	return nil
}

// requireDevice resolves the device without requiring write authorization.
func (c *Coordinator) requireDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return ErrDeviceMissing
	}
	dev, err := c.devices.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if dev == nil {
		return ErrDeviceUnknown
	}
	return nil
}

// withRetry runs a read-modify-write closure, retrying on revision mismatch
// up to the budget. Each attempt must re-read inside the closure.
func (c *Coordinator) withRetry(fn func() error) error {
	for attempt := 0; attempt < c.retries; attempt++ {
		err := fn()
		if errors.Is(err, ErrRevisionMismatch) {
			slog.Debug("revision conflict, retrying", "attempt", attempt+1)
			continue
		}
		return err
	}
	return ErrConflict
}

// checksummed sorts records by id and computes the MD5 checksum over the
// serialized set. Sorting plus DeviceSet's sorted marshalling keeps the
// digest stable across store implementations.
func checksummed(recs []Record) ([]Record, string, error) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	if recs == nil {
		recs = []Record{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, "", fmt.Errorf("serialize records: %w", err)
	}
	return recs, Checksum(data), nil
}
