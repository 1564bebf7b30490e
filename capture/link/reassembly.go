package link

import (
	"sync"

	"github.com/pkg/errors"
)

// DefaultMaxFlowBuffer bounds how many unconsumed bytes a single flow
// may accumulate before Reassembler gives up on it (spec.md §4.2).
const DefaultMaxFlowBuffer = 64 * 1024

// ErrFlowBufferOverflow is returned by Feed when appending a segment
// would push a flow's unconsumed tail past its byte budget. The flow's
// buffer is reset to empty so the connection can resynchronize on
// whatever arrives next, rather than wedging permanently.
var ErrFlowBufferOverflow = errors.New("link: flow buffer overflow")

// Reassembler carries forward unconsumed bytes per FlowKey across
// frames. It is not a TCP reassembler: segments are appended in
// capture order with no sequence-number tracking, reordering, or gap
// detection. Callers that need a command parser to see a contiguous
// byte stream are expected to call Consume after every successful
// parse so the buffer only ever holds the as-yet-unparsed tail.
type Reassembler struct {
	mu       sync.Mutex
	maxBytes int
	buffers  map[FlowKey][]byte
	overflow map[FlowKey]uint64
}

// NewReassembler builds a Reassembler with the given per-flow byte
// budget. A maxBytes of 0 selects DefaultMaxFlowBuffer.
func NewReassembler(maxBytes int) *Reassembler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFlowBuffer
	}
	return &Reassembler{
		maxBytes: maxBytes,
		buffers:  make(map[FlowKey][]byte),
		overflow: make(map[FlowKey]uint64),
	}
}

// Feed appends segment to the named flow's buffer and returns the
// flow's full unconsumed byte range. If the append would exceed the
// configured budget, the flow's buffer is dropped and Feed returns
// ErrFlowBufferOverflow; the caller should treat whatever commands
// were mid-parse for that flow as lost.
func (r *Reassembler) Feed(key FlowKey, segment []byte) ([]byte, error) {
	if len(segment) == 0 {
		return r.snapshot(key), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	buf := r.buffers[key]
	if len(buf)+len(segment) > r.maxBytes {
		delete(r.buffers, key)
		r.overflow[key]++
		return nil, ErrFlowBufferOverflow
	}

	buf = append(buf, segment...)
	r.buffers[key] = buf
	return buf, nil
}

// Consume discards the first n bytes of key's buffer, e.g. after a
// parser reports how much of the buffer it accepted.
func (r *Reassembler) Consume(key FlowKey, n int) {
	if n <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.buffers[key]
	if !ok {
		return
	}
	if n >= len(buf) {
		delete(r.buffers, key)
		return
	}

	remaining := make([]byte, len(buf)-n)
	copy(remaining, buf[n:])
	r.buffers[key] = remaining
}

// OverflowCount reports how many times key's buffer has been reset due
// to exceeding the byte budget.
func (r *Reassembler) OverflowCount(key FlowKey) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overflow[key]
}

// Forget drops all buffered state for a flow, e.g. once its connection
// is known to be closed.
func (r *Reassembler) Forget(key FlowKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buffers, key)
}

func (r *Reassembler) snapshot(key FlowKey) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers[key]
}
