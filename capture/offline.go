package capture

import (
	"context"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
)

// OfflineSource reads a capture file and applies the same "tcp port P"
// BPF filter a live interface would (spec.md §4.1, variant 2). It is
// finite: Frames' channel closes when the file is exhausted.
type OfflineSource struct {
	path string
	port uint16
}

var _ Source = (*OfflineSource)(nil)

func NewOfflineSource(path string, port uint16) *OfflineSource {
	return &OfflineSource{path: path, port: port}
}

func (s *OfflineSource) Describe() string {
	return fmt.Sprintf("offline capture %s (tcp port %d)", s.path, s.port)
}

func (s *OfflineSource) IsFinite() bool { return true }

// Stats is unavailable for the offline source: there's nothing being
// dropped or actively received once the file is on disk.
func (s *OfflineSource) Stats() (Counters, bool) {
	return Counters{}, false
}

func (s *OfflineSource) Frames(ctx context.Context) (<-chan Frame, error) {
	handle, err := pcap.OpenOffline(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "capture: open capture file %s", s.path)
	}

	if err := handle.SetBPFFilter(bpfFilterForPort(s.port)); err != nil {
		handle.Close()
		return nil, errors.Wrap(err, "capture: set BPF filter")
	}

	out := make(chan Frame, 64)
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())

	go func() {
		defer handle.Close()
		defer close(out)

		for pkt := range packetSource.Packets() {
			select {
			case <-ctx.Done():
				return
			case out <- Frame{Packet: pkt}:
			}
		}
	}()

	return out, nil
}

func bpfFilterForPort(port uint16) string {
	return fmt.Sprintf("tcp port %d", port)
}
