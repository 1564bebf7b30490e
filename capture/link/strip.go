// Package link extracts TCP payload bytes from captured packets and
// carries forward a small bounded per-flow buffer across frames
// (spec.md §4.2). It deliberately does not perform full reassembly:
// out-of-order or retransmitted segments are not reordered, matching
// the reduced-fidelity, bounded-memory behavior the specification
// calls for.
package link

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

// ErrNotTCP is returned by Strip when a packet carries no TCP segment,
// or the TCP segment is not addressed to the configured port.
var ErrNotTCP = errors.New("link: packet is not a TCP segment on the configured port")

// FlowKey identifies one direction of one TCP connection by the address
// and port of both endpoints (spec.md §4.2). Traffic in the opposite direction of the same connection has
// its Src/Dst fields swapped; record.Interner is what collapses the
// two directions of a connection onto one dense connection_id.
type FlowKey struct {
	SrcIP   string
	SrcPort uint16
	DstIP   string
	DstPort uint16
}

// Strip decodes a packet down to its TCP payload, rejecting anything
// that isn't a TCP segment with either endpoint on port. It never
// copies the payload: the returned slice aliases the packet's backing
// array, valid only until the next packet is decoded by the same
// gopacket.Packet machinery.
func Strip(pkt gopacket.Packet, port uint16) (FlowKey, []byte, error) {
	netLayer := pkt.NetworkLayer()
	if netLayer == nil {
		return FlowKey{}, nil, ErrNotTCP
	}

	var srcIP, dstIP net.IP
	switch l := netLayer.(type) {
	case *layers.IPv4:
		srcIP, dstIP = l.SrcIP, l.DstIP
	case *layers.IPv6:
		srcIP, dstIP = l.SrcIP, l.DstIP
	default:
		return FlowKey{}, nil, ErrNotTCP
	}

	tcp, ok := pkt.TransportLayer().(*layers.TCP)
	if !ok {
		return FlowKey{}, nil, ErrNotTCP
	}

	if tcp.SrcPort != layers.TCPPort(port) && tcp.DstPort != layers.TCPPort(port) {
		return FlowKey{}, nil, ErrNotTCP
	}

	key := FlowKey{
		SrcIP:   srcIP.String(),
		SrcPort: uint16(tcp.SrcPort),
		DstIP:   dstIP.String(),
		DstPort: uint16(tcp.DstPort),
	}
	return key, tcp.LayerPayload(), nil
}
