// Package capture provides the polymorphic packet/byte producer that
// feeds the record pipeline: a live interface, an offline capture file,
// or (on Linux) a kernel socket tap. Exactly one Source is owned,
// exclusively, by the record orchestrator's single thread (spec.md §3,
// §4.1).
package capture

import (
	"context"
	"os"
	"strings"

	"github.com/google/gopacket"
	"github.com/pkg/errors"
)

// ErrCapabilityUnavailable is returned by NewSource when the caller asks
// for the "ebpf:" kernel tap on a build or platform that does not
// support it.
var ErrCapabilityUnavailable = errors.New("capture: requested capability unavailable")

const ebpfPrefix = "ebpf:"

// Counters are best-effort statistics a Source may be able to report.
// Not every backend can populate every field; Stats' second return
// value reports whether any counters are available at all.
type Counters struct {
	Received uint64
	Dropped  uint64
	Bytes    uint64
}

// Frame is one unit of work handed to the record orchestrator. Exactly
// one of Packet or TapPayload is set: frame-yielding sources (live
// interface, offline file) set Packet and rely on the record
// orchestrator's link-layer strip step; the kernel tap sets TapPayload
// directly, since its bytes are already application-layer (spec.md
// §4.1, §4.2, §6).
type Frame struct {
	Packet     gopacket.Packet
	TapPayload *TapPayload
}

// TapPayload is already-reassembled application-layer data delivered by
// the kernel socket tap, per the kernel tap byte contract in spec.md §6.
// SockID is advisory bookkeeping only; Sport/Dport must be re-filtered
// by userspace because the kernel-side port extraction is a placeholder
// (spec.md §9, open question).
type TapPayload struct {
	SockID uint64
	Sport  uint16
	Dport  uint16
	Data   []byte
}

// Source is the minimal capability set every capture backend
// implements (spec.md §4.1).
type Source interface {
	// Frames returns a channel of frames destined for the configured
	// TCP port. The channel is closed when the source is exhausted
	// (finite sources) or ctx is canceled.
	Frames(ctx context.Context) (<-chan Frame, error)

	// Describe returns a human-readable label for logging.
	Describe() string

	// IsFinite reports whether the source terminates on its own
	// (offline file, kernel stream closed) rather than running until
	// canceled (live interface).
	IsFinite() bool

	// Stats returns best-effort counters and whether any are available.
	Stats() (Counters, bool)
}

// NewSource implements the selection policy from spec.md §4.1: an
// "ebpf:"-prefixed identifier selects the kernel tap; an identifier
// naming an existing regular file selects the offline reader; anything
// else is treated as a live interface name.
func NewSource(id string, port uint16) (Source, error) {
	if strings.HasPrefix(id, ebpfPrefix) {
		iface := strings.TrimPrefix(id, ebpfPrefix)
		return newKernelTapSource(iface, port)
	}

	if info, err := os.Stat(id); err == nil && info.Mode().IsRegular() {
		return NewOfflineSource(id, port), nil
	}

	return NewLiveSource(id, port), nil
}
