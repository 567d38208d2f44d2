package sync

import (
	"crypto/md5"
	"encoding/hex"
)

// Checksum returns the MD5 hex digest of the given bytes. Clients compute it
// over the exact request body; the server recomputes it over the received
// bytes before any state mutation and echoes it back as an integrity ack.
func Checksum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
