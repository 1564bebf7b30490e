package capture

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
)

// TapReader yields already-reassembled application-layer byte records
// from a kernel ring buffer, per the kernel tap byte contract in
// spec.md §6: {u64 sock_id, u16 sport, u16 dport, u32 data_len, u8
// data[data_len]}. ReadRecord returns io.EOF when the underlying ring
// is closed.
//
// TapReader is implemented by the eBPF loader, which is an external
// collaborator: this package only consumes the byte contract, and never
// compiles, loads, or attaches the kernel-side program (spec.md §1).
type TapReader interface {
	ReadRecord() (TapPayload, error)
	Close() error
}

// TapOpener constructs a TapReader for the named interface, filtering
// (where possible) to the given port. When no TapOpener has been
// registered for this build, "ebpf:" source selection fails with
// ErrCapabilityUnavailable.
type TapOpener func(iface string, port uint16) (TapReader, error)

// tapOpener is nil until something registers a real implementation via
// RegisterTapOpener. No such implementation ships in this module: the
// compiled eBPF program and its loader are out of scope (spec.md §1),
// so by default "ebpf:" sources always fail with
// ErrCapabilityUnavailable, exactly as spec.md §4.1 specifies.
var tapOpener TapOpener

// RegisterTapOpener wires a concrete kernel tap implementation into the
// "ebpf:" source selection path. Call it from an init function in a
// platform-specific build that knows how to load and attach the
// tracepoint program.
func RegisterTapOpener(opener TapOpener) {
	tapOpener = opener
}

// KernelTapSource consumes a TapReader and emits Frame values carrying
// already-extracted application-layer payloads; no IP/TCP header strip
// is needed for this source (spec.md §4.1, variant 3; §4.2).
type KernelTapSource struct {
	iface  string
	port   uint16
	reader TapReader

	received atomic.Uint64
	dropped  atomic.Uint64
	bytes    atomic.Uint64
}

var _ Source = (*KernelTapSource)(nil)

func newKernelTapSource(iface string, port uint16) (*KernelTapSource, error) {
	if tapOpener == nil {
		return nil, errors.Wrap(ErrCapabilityUnavailable, "capture: no kernel tap implementation registered for this build")
	}
	reader, err := tapOpener(iface, port)
	if err != nil {
		return nil, errors.Wrap(err, "capture: open kernel tap")
	}
	return &KernelTapSource{iface: iface, port: port, reader: reader}, nil
}

func (s *KernelTapSource) Describe() string {
	return fmt.Sprintf("kernel tap %s (tcp port %d)", s.iface, s.port)
}

// IsFinite is false: the tap runs until its ring buffer is closed by
// the caller canceling the context, just like a live interface.
func (s *KernelTapSource) IsFinite() bool { return false }

func (s *KernelTapSource) Stats() (Counters, bool) {
	return Counters{
		Received: s.received.Load(),
		Dropped:  s.dropped.Load(),
		Bytes:    s.bytes.Load(),
	}, true
}

func (s *KernelTapSource) Frames(ctx context.Context) (<-chan Frame, error) {
	out := make(chan Frame, 64)

	go func() {
		defer close(out)
		defer s.reader.Close()

		for {
			if ctx.Err() != nil {
				return
			}

			rec, err := s.reader.ReadRecord()
			if err != nil {
				if err != io.EOF {
					s.dropped.Add(1)
				}
				return
			}

			// The kernel-side dport extraction is a placeholder
			// (spec.md §9): re-filter by port in userspace rather
			// than trust rec.Dport and rec.Sport blindly.
			if rec.Dport != s.port && rec.Sport != s.port {
				continue
			}

			s.received.Add(1)
			s.bytes.Add(uint64(len(rec.Data)))

			payload := rec
			select {
			case out <- Frame{TapPayload: &payload}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
