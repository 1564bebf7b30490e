// Package anonymize provides a deterministic, keyed 64-bit hash of
// memcache key bytes, so that a profile records which keys repeat
// without ever storing or reproducing their original content
// (spec.md §4.4).
package anonymize

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Hasher computes a keyed hash of key bytes. The same Hasher (i.e. the
// same salt) always maps the same key bytes to the same hash; different
// Hashers are independent.
type Hasher struct {
	k0, k1 uint64
}

// NewHasher derives a Hasher from an explicit salt. Both halves of the
// SipHash key are derived from the salt so that a single 64-bit
// configuration value is enough to reproduce a run's hashing.
func NewHasher(salt uint64) Hasher {
	return Hasher{k0: salt, k1: salt ^ 0x9e3779b97f4a7c15}
}

// NewHasherFromClock derives a Hasher from the current time, for runs
// that did not pin an explicit --salt (spec.md §4.4: "a process-wide
// salt taken from configuration or a monotonic clock reading at
// startup").
func NewHasherFromClock() (Hasher, uint64) {
	salt := uint64(time.Now().UnixNano())
	return NewHasher(salt), salt
}

// RandomSalt draws a salt from the OS CSPRNG. Exposed for callers that
// want a salt independent of wall-clock resolution rather than relying
// on NewHasherFromClock.
func RandomSalt() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable on any
		// supported platform; fall back to the clock rather than panic.
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Hash returns the keyed hash of key. It never copies key beyond what
// SipHash's block processing requires internally.
func (h Hasher) Hash(key []byte) uint64 {
	return siphash24(h.k0, h.k1, key)
}
