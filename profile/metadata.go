package profile

import "github.com/memtap/memcap/internal/sets"

// Metadata is the rolling, then finalized, summary of a profile: counts,
// timestamp range, and the distribution of command variants. It is
// mutated only by a Writer and serialized as the trailing footer of the
// profile file (spec.md §3, §6).
type Metadata struct {
	Version              uint8
	TotalEvents          uint64
	FirstTimestampMicros uint64
	LastTimestampMicros  uint64
	UniqueConnections    uint32
	CommandDistribution  map[Variant]uint64
}

// metadataBuilder accumulates Metadata across a stream of Write calls.
// It is not safe for concurrent use; the record orchestrator's writer is
// single-owner per spec.md §3.
type metadataBuilder struct {
	total        uint64
	firstTS      uint64
	lastTS       uint64
	haveFirst    bool
	distribution map[Variant]uint64
	connections  sets.Set[uint16]
}

func newMetadataBuilder() *metadataBuilder {
	return &metadataBuilder{
		distribution: make(map[Variant]uint64),
		connections:  sets.New[uint16](),
	}
}

func (b *metadataBuilder) observe(ev Event) {
	b.total++
	if !b.haveFirst || ev.TimestampMicros < b.firstTS {
		b.firstTS = ev.TimestampMicros
		b.haveFirst = true
	}
	if ev.TimestampMicros > b.lastTS {
		b.lastTS = ev.TimestampMicros
	}
	b.distribution[ev.Command]++
	b.connections.Insert(ev.ConnectionID)
}

func (b *metadataBuilder) finish() Metadata {
	dist := make(map[Variant]uint64, len(b.distribution))
	for k, v := range b.distribution {
		dist[k] = v
	}
	return Metadata{
		Version:              CurrentVersion,
		TotalEvents:          b.total,
		FirstTimestampMicros: b.firstTS,
		LastTimestampMicros:  b.lastTS,
		UniqueConnections:    uint32(b.connections.Size()),
		CommandDistribution:  dist,
	}
}
