// Package profile defines the fixed-layout event record captured from
// memcache traffic, the rolling metadata that summarizes a capture run,
// and the binary writer/streamer pair that persists and replays them.
//
// The wire format is deliberately simple: a sequence of length-prefixed
// records followed by a length-prefixed metadata footer and a magic
// trailer. See Writer and Streamer.
package profile

import "github.com/memtap/memcap/internal/optionals"

// Variant enumerates the memcache operations this pipeline recognizes.
// The numeric values are part of the wire format (see wire.go) and must
// not be renumbered.
type Variant uint8

const (
	Get Variant = iota
	Set
	Delete
	Noop
)

func (v Variant) String() string {
	switch v {
	case Get:
		return "get"
	case Set:
		return "set"
	case Delete:
		return "delete"
	case Noop:
		return "noop"
	default:
		return "unknown"
	}
}

// Flags is a bit set over event properties. Reserved bits must stay zero
// so that future flags can be added without breaking older readers that
// mask them out rather than reject them.
type Flags uint8

const (
	FlagQuiet    Flags = 1 << 0
	FlagHasValue Flags = 1 << 1
)

// Event is one captured memcache command, stripped of its original key
// and value bytes. ConnectionID is a dense 16-bit tag assigned by the
// record orchestrator's interner (see record.Interner), not a raw port
// number.
type Event struct {
	TimestampMicros uint64
	ConnectionID    uint16
	Command         Variant
	Flags           Flags
	KeyHash         uint64
	KeySize         uint32
	ValueSize       optionals.Optional[uint32]
}

// HasValue reports whether ValueSize is present. It must always agree
// with Flags&FlagHasValue, which callers constructing an Event are
// responsible for keeping in sync (see NewEvent).
func (e Event) HasValue() bool {
	return e.ValueSize.IsSome()
}

// NewEvent builds an Event and sets FlagHasValue exactly when valueSize
// is present. It does not check the command-specific invariants (a
// positive value size for Set and none for Get/Delete/Noop, a zero key
// size only for Noop): arguments that break them are stored as given.
func NewEvent(ts uint64, connID uint16, cmd Variant, keyHash uint64, keySize uint32, valueSize optionals.Optional[uint32]) Event {
	ev := Event{
		TimestampMicros: ts,
		ConnectionID:    connID,
		Command:         cmd,
		KeyHash:         keyHash,
		KeySize:         keySize,
		ValueSize:       valueSize,
	}
	if valueSize.IsSome() {
		ev.Flags |= FlagHasValue
	}
	return ev
}
