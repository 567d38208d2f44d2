package sync

// fanOut resets the record's pending set to every registered device except
// the origin. With no other devices registered the set comes out empty, which
// makes a tombstoned record immediately eligible for purge.
func fanOut(rec *Record, devices []Device, originID string) {
	pending := make(DeviceSet, len(devices))
	for _, d := range devices {
		if d.ID == originID {
			continue
		}
		pending.Add(d.ID)
	}
	rec.Pending = pending
}

// acknowledge removes deviceID from the record's pending set. Acknowledging a
// device that is not in the set is a no-op. The returned flag tells the
// caller to purge the record instead of persisting it: true exactly when the
// set drained to empty while the record is tombstoned.
func acknowledge(rec *Record, deviceID string) (purge bool) {
	rec.Pending.Remove(deviceID)
	return rec.Tombstoned && len(rec.Pending) == 0
}
