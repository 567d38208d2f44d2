package sync

import "errors"

// Error kinds surfaced by the coordinator. The API layer maps these to HTTP
// statuses; checksum mismatch and unknown device stay distinct kinds even
// though both map to 400, so clients can tell them apart programmatically.
var (
	// ErrDeviceMissing means the request carried no device id at all.
	ErrDeviceMissing = errors.New("device id is required")

	// ErrDeviceUnknown means the device id is not in the registry.
	ErrDeviceUnknown = errors.New("device not registered")

	// ErrChecksumMismatch means the recomputed body checksum did not match
	// the declared one. Guards transport corruption, not tampering.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrReadOnly means the device is registered but not authorized to mutate.
	ErrReadOnly = errors.New("device is read-only")

	// ErrNotSelf means a device tried to deregister a different device.
	ErrNotSelf = errors.New("devices may only deregister themselves")

	// ErrConflict means the compare-and-swap retry budget was exhausted.
	ErrConflict = errors.New("too many concurrent updates, try again")
)
