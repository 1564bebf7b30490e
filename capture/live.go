package capture

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
)

// defaultSnapLen matches tcpdump's default, as does mel2oo-go-pcap's
// pcap.FileReader/DeviceReader.
const defaultSnapLen = 262144

// LiveSource opens a named interface in promiscuous mode and applies a
// "tcp port P" BPF filter (spec.md §4.1, variant 1).
type LiveSource struct {
	iface string
	port  uint16

	received atomic.Uint64
	dropped  atomic.Uint64
	bytes    atomic.Uint64
}

var _ Source = (*LiveSource)(nil)

func NewLiveSource(iface string, port uint16) *LiveSource {
	return &LiveSource{iface: iface, port: port}
}

func (s *LiveSource) Describe() string {
	return fmt.Sprintf("live interface %s (tcp port %d)", s.iface, s.port)
}

func (s *LiveSource) IsFinite() bool { return false }

func (s *LiveSource) Stats() (Counters, bool) {
	return Counters{
		Received: s.received.Load(),
		Dropped:  s.dropped.Load(),
		Bytes:    s.bytes.Load(),
	}, true
}

func (s *LiveSource) Frames(ctx context.Context) (<-chan Frame, error) {
	handle, err := pcap.OpenLive(s.iface, defaultSnapLen, true, pcap.BlockForever)
	if err != nil {
		return nil, errors.Wrapf(err, "capture: open live interface %s", s.iface)
	}

	if err := handle.SetBPFFilter(bpfFilterForPort(s.port)); err != nil {
		handle.Close()
		return nil, errors.Wrap(err, "capture: set BPF filter")
	}

	out := make(chan Frame, 64)
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := packetSource.Packets()

	go func() {
		defer handle.Close()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case pkt, ok := <-packets:
				if !ok {
					return
				}
				s.received.Add(1)
				s.bytes.Add(uint64(len(pkt.Data())))
				select {
				case out <- Frame{Packet: pkt}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
