// Package stats aggregates replay latency and outcome counts per
// command variant, using HdrHistogram so per-connection snapshots can
// be merged into a single run-wide view without losing percentile
// accuracy (spec.md §4.11, §9).
package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/memtap/memcap/profile"
)

// histogramMaxMicros bounds tracked latencies at one minute; anything
// slower is clamped into the top bucket rather than rejected, so a
// single pathological response never aborts a run.
const histogramMaxMicros = int64(60 * time.Second / time.Microsecond)

// significantFigures trades memory for precision: 3 significant digits
// keeps relative error under 0.1% across the full latency range.
const significantFigures = 3

// Histogram wraps one HdrHistogram per memcache command variant.
type Histogram struct {
	byCommand map[profile.Variant]*hdrhistogram.Histogram
}

// NewHistogram returns an empty, zero-valued Histogram.
func NewHistogram() *Histogram {
	return &Histogram{byCommand: make(map[profile.Variant]*hdrhistogram.Histogram)}
}

// Record adds one latency sample for cmd.
func (h *Histogram) Record(cmd profile.Variant, latency time.Duration) {
	hist := h.byCommand[cmd]
	if hist == nil {
		hist = hdrhistogram.New(1, histogramMaxMicros, significantFigures)
		h.byCommand[cmd] = hist
	}
	micros := latency.Microseconds()
	if micros < 1 {
		micros = 1
	}
	if micros > histogramMaxMicros {
		micros = histogramMaxMicros
	}
	hist.RecordValue(micros) // nolint:errcheck
}

// Merge folds other's counts into h, leaving other unchanged.
func (h *Histogram) Merge(other *Histogram) {
	for cmd, hist := range other.byCommand {
		target := h.byCommand[cmd]
		if target == nil {
			target = hdrhistogram.New(1, histogramMaxMicros, significantFigures)
			h.byCommand[cmd] = target
		}
		target.Merge(hist)
	}
}

// Snapshot describes one command variant's latency distribution.
type Snapshot struct {
	Count int64
	Min   time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Percentiles returns a Snapshot per command variant that has at least
// one recorded sample.
func (h *Histogram) Percentiles() map[profile.Variant]Snapshot {
	out := make(map[profile.Variant]Snapshot, len(h.byCommand))
	for cmd, hist := range h.byCommand {
		out[cmd] = Snapshot{
			Count: hist.TotalCount(),
			Min:   time.Duration(hist.Min()) * time.Microsecond,
			P50:   time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond,
			P95:   time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond,
			P99:   time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond,
			Max:   time.Duration(hist.Max()) * time.Microsecond,
		}
	}
	return out
}
