package stats

import (
	"time"

	"github.com/memtap/memcap/profile"
)

// Local is the per-connection state a single ConnectionTask owns
// exclusively; it is merged into the run-wide Aggregator on a fixed
// cadence rather than synchronized on every operation (spec.md §4.9,
// §4.11).
type Local struct {
	latencies *Histogram
	successes map[profile.Variant]uint64
	errors    map[string]uint64
}

// NewLocal returns an empty Local.
func NewLocal() *Local {
	return &Local{
		latencies: NewHistogram(),
		successes: make(map[profile.Variant]uint64),
		errors:    make(map[string]uint64),
	}
}

// RecordSuccess logs a completed operation and its latency.
func (l *Local) RecordSuccess(cmd profile.Variant, latency time.Duration) {
	l.latencies.Record(cmd, latency)
	l.successes[cmd]++
}

// RecordError logs a failed operation under a short error-kind label
// (e.g. "timeout", "connection-error", "protocol-mismatch").
func (l *Local) RecordError(kind string) {
	l.errors[kind]++
}

// Snapshot returns a detached copy of the local state and resets Local
// to empty. Snapshots are delta reports (spec.md §4.11): the caller is
// expected to merge each one into the Aggregator exactly once, so
// repeated snapshots over a long-running connection never double-count
// the same operation.
func (l *Local) Snapshot() ConnectionSnapshot {
	snap := ConnectionSnapshot{
		Latencies: l.latencies,
		Successes: l.successes,
		Errors:    l.errors,
	}
	l.latencies = NewHistogram()
	l.successes = make(map[profile.Variant]uint64)
	l.errors = make(map[string]uint64)
	return snap
}

// ConnectionSnapshot is a detached, mergeable copy of Local's state.
//
// Named distinctly from the per-command Snapshot type above: this one
// covers a whole connection's state, not one command variant's
// latency distribution.
type ConnectionSnapshot struct {
	Latencies *Histogram
	Successes map[profile.Variant]uint64
	Errors    map[string]uint64
}
