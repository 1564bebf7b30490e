package profile

import (
	"encoding/binary"

	"github.com/memtap/memcap/internal/optionals"
	"github.com/pkg/errors"
)

// Magic terminates every profile file, trailing the length-prefixed
// metadata footer. A profile that does not end in these four bytes is
// considered truncated or corrupt.
const Magic uint32 = 0xDEADBEEF

// CurrentVersion is the only ProfileMetadata.Version this package will
// read. Per spec.md §9 (open question): the wire size of ValueSize has
// changed across revisions, so a reader must refuse any version but the
// current one rather than guess at a reinterpretation.
const CurrentVersion uint8 = 2

var (
	// ErrBadMagic is returned when the magic field at the start of the
	// metadata footer does not match Magic.
	ErrBadMagic = errors.New("profile: bad magic trailer")
	// ErrUnsupportedVersion is returned when ProfileMetadata.Version is
	// not CurrentVersion.
	ErrUnsupportedVersion = errors.New("profile: unsupported metadata version")
)

const (
	valueSizeAbsent  uint8 = 0
	valueSizePresent uint8 = 1
)

// encodeEvent appends the canonical little-endian encoding of ev to buf,
// in the field order declared in spec.md §6, and returns the grown
// slice.
func encodeEvent(buf []byte, ev Event) []byte {
	var scratch [8]byte

	binary.LittleEndian.PutUint64(scratch[:8], ev.TimestampMicros)
	buf = append(buf, scratch[:8]...)

	binary.LittleEndian.PutUint16(scratch[:2], ev.ConnectionID)
	buf = append(buf, scratch[:2]...)

	buf = append(buf, byte(ev.Command), byte(ev.Flags))

	binary.LittleEndian.PutUint64(scratch[:8], ev.KeyHash)
	buf = append(buf, scratch[:8]...)

	binary.LittleEndian.PutUint32(scratch[:4], ev.KeySize)
	buf = append(buf, scratch[:4]...)

	if vs, ok := ev.ValueSize.Get(); ok {
		buf = append(buf, valueSizePresent)
		binary.LittleEndian.PutUint32(scratch[:4], vs)
		buf = append(buf, scratch[:4]...)
	} else {
		buf = append(buf, valueSizeAbsent)
	}

	return buf
}

// eventWireLen is the number of bytes encodeEvent writes for ev. Callers
// that need to size a buffer before encoding (the Writer) use this to
// avoid an intermediate allocation.
func eventWireLen(ev Event) int {
	n := 8 + 2 + 1 + 1 + 8 + 4 + 1
	if ev.ValueSize.IsSome() {
		n += 4
	}
	return n
}

// decodeEvent parses one event body (the bytes after the length
// prefix). It returns an error if buf is shorter than the fields it
// declares, which can only happen if the length prefix lied or the file
// is truncated.
func decodeEvent(buf []byte) (Event, error) {
	const minLen = 8 + 2 + 1 + 1 + 8 + 4 + 1
	if len(buf) < minLen {
		return Event{}, errors.Errorf("profile: event body too short: %d bytes", len(buf))
	}

	var ev Event
	ev.TimestampMicros = binary.LittleEndian.Uint64(buf[0:8])
	ev.ConnectionID = binary.LittleEndian.Uint16(buf[8:10])
	ev.Command = Variant(buf[10])
	ev.Flags = Flags(buf[11])
	ev.KeyHash = binary.LittleEndian.Uint64(buf[12:20])
	ev.KeySize = binary.LittleEndian.Uint32(buf[20:24])

	tag := buf[24]
	switch tag {
	case valueSizePresent:
		if len(buf) < minLen+4 {
			return Event{}, errors.New("profile: truncated value_size field")
		}
		ev.ValueSize = optionals.Some(binary.LittleEndian.Uint32(buf[25:29]))
	case valueSizeAbsent:
		ev.ValueSize = optionals.None[uint32]()
	default:
		return Event{}, errors.Errorf("profile: invalid value_size tag %d", tag)
	}

	return ev, nil
}

// encodeMetadata appends the canonical little-endian encoding of m,
// following the field order in spec.md §6.
func encodeMetadata(buf []byte, m Metadata) []byte {
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], Magic)
	buf = append(buf, scratch[:4]...)

	buf = append(buf, m.Version)

	binary.LittleEndian.PutUint64(scratch[:8], m.TotalEvents)
	buf = append(buf, scratch[:8]...)

	binary.LittleEndian.PutUint64(scratch[:8], m.FirstTimestampMicros)
	buf = append(buf, scratch[:8]...)
	binary.LittleEndian.PutUint64(scratch[:8], m.LastTimestampMicros)
	buf = append(buf, scratch[:8]...)

	binary.LittleEndian.PutUint32(scratch[:4], m.UniqueConnections)
	buf = append(buf, scratch[:4]...)

	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(m.CommandDistribution)))
	buf = append(buf, scratch[:4]...)

	// Deterministic order keeps the footer byte-stable for identical
	// runs.
	for _, v := range []Variant{Get, Set, Delete, Noop} {
		count, ok := m.CommandDistribution[v]
		if !ok {
			continue
		}
		buf = append(buf, byte(v))
		binary.LittleEndian.PutUint64(scratch[:8], count)
		buf = append(buf, scratch[:8]...)
	}

	return buf
}

func decodeMetadata(buf []byte) (Metadata, error) {
	const headerLen = 4 + 1 + 8 + 8 + 8 + 4 + 4
	if len(buf) < headerLen {
		return Metadata{}, errors.New("profile: metadata body too short")
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return Metadata{}, ErrBadMagic
	}

	version := buf[4]
	if version != CurrentVersion {
		return Metadata{}, errors.Wrapf(ErrUnsupportedVersion, "got version %d, want %d", version, CurrentVersion)
	}

	m := Metadata{
		Version:              version,
		TotalEvents:          binary.LittleEndian.Uint64(buf[5:13]),
		FirstTimestampMicros: binary.LittleEndian.Uint64(buf[13:21]),
		LastTimestampMicros:  binary.LittleEndian.Uint64(buf[21:29]),
		UniqueConnections:    binary.LittleEndian.Uint32(buf[29:33]),
		CommandDistribution:  map[Variant]uint64{},
	}

	numEntries := binary.LittleEndian.Uint32(buf[33:37])
	off := headerLen
	for i := uint32(0); i < numEntries; i++ {
		if off+9 > len(buf) {
			return Metadata{}, errors.New("profile: truncated command_distribution entry")
		}
		variant := Variant(buf[off])
		count := binary.LittleEndian.Uint64(buf[off+1 : off+9])
		m.CommandDistribution[variant] = count
		off += 9
	}

	return m, nil
}
