// Package record implements the single-threaded capture-to-profile
// pipeline: pull frames from a capture.Source, strip and reassemble
// TCP payloads, parse memcache commands, anonymize keys, and append
// profile.Events (spec.md §4.6).
package record

import (
	"github.com/OneOfOne/xxhash"

	"github.com/memtap/memcap/capture/link"
)

// maxConnections bounds the dense connection_id space: profile.Event
// stores ConnectionID as a uint16 (spec.md §4.4).
const maxConnections = 1 << 16

// ConnectionIdentity is the direction-independent identity of a TCP
// connection: both endpoints, normalized so that either direction of
// the same connection produces the same identity.
type ConnectionIdentity struct {
	EndpointA string
	PortA     uint16
	EndpointB string
	PortB     uint16
}

// NormalizeFlow collapses a FlowKey down to a direction-independent
// ConnectionIdentity by sorting the two endpoints lexicographically,
// so a request and its response key to the same identity regardless of
// which side is "src" in a given packet.
func NormalizeFlow(key link.FlowKey) ConnectionIdentity {
	aAddr, aPort, bAddr, bPort := key.SrcIP, key.SrcPort, key.DstIP, key.DstPort
	if endpointLess(key.DstIP, key.DstPort, key.SrcIP, key.SrcPort) {
		aAddr, aPort, bAddr, bPort = key.DstIP, key.DstPort, key.SrcIP, key.SrcPort
	}
	return ConnectionIdentity{EndpointA: aAddr, PortA: aPort, EndpointB: bAddr, PortB: bPort}
}

func endpointLess(ip1 string, port1 uint16, ip2 string, port2 uint16) bool {
	if ip1 != ip2 {
		return ip1 < ip2
	}
	return port1 < port2
}

func (c ConnectionIdentity) bucketHash() uint64 {
	h := xxhash.New64()
	h.Write([]byte(c.EndpointA))
	h.Write([]byte{byte(c.PortA >> 8), byte(c.PortA)})
	h.Write([]byte(c.EndpointB))
	h.Write([]byte{byte(c.PortB >> 8), byte(c.PortB)})
	return h.Sum64()
}

// Interner assigns a dense uint16 connection_id to each distinct
// connection seen, using an xxhash-keyed map for the identity lookup
// (spec.md §4.4). Once maxConnections distinct connections have been
// seen, further distinct connections share an overflow bucket rather
// than erroring, so Run never fails purely due to having watched
// a long-lived capture with high connection churn.
type Interner struct {
	ids      map[uint64]uint16
	next     uint16
	overflow bool
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{ids: make(map[uint64]uint16)}
}

// ID returns the dense connection_id for identity, assigning a new one
// on first sight.
func (in *Interner) ID(identity ConnectionIdentity) uint16 {
	h := identity.bucketHash()
	if id, ok := in.ids[h]; ok {
		return id
	}

	if in.overflow {
		return maxConnections - 1
	}

	id := in.next
	in.ids[h] = id
	if in.next == maxConnections-1 {
		in.overflow = true
	} else {
		in.next++
	}
	return id
}

// Count returns the number of distinct connection_ids assigned so far.
func (in *Interner) Count() int {
	return len(in.ids)
}
