package uploads

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateUUIDv7 returns a time-ordered UUID string. The leading 48 bits
// carry a millisecond timestamp so identifiers sort roughly by creation time.
func GenerateUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err == nil {
		return id.String(), nil
	}
	// The library only fails when the entropy source does; retry by hand with
	// the RFC 9562 layout: 48-bit timestamp, version nibble 7, variant 10.
	var raw [16]byte
	timestampMS := uint64(time.Now().UnixMilli())
	var timestampBytes [8]byte
	binary.BigEndian.PutUint64(timestampBytes[:], timestampMS)
	copy(raw[0:6], timestampBytes[2:8])
	if _, err := rand.Read(raw[6:]); err != nil {
		return "", fmt.Errorf("failed to generate identifier: %w", err)
	}
	raw[6] = (raw[6] & 0x0f) | 0x70
	raw[8] = (raw[8] & 0x3f) | 0x80

	id, err = uuid.FromBytes(raw[:])
	if err != nil {
		return "", fmt.Errorf("failed to build identifier: %w", err)
	}
	return id.String(), nil
}
