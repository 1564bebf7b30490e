package stats

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/memtap/memcap/profile"
)

// progressInterval is the cadence of the 5-second run-wide progress
// line (spec.md §4.11); per-connection snapshots arrive separately,
// every 2 seconds.
const progressInterval = 5 * time.Second

// Aggregator is the single owner of run-wide replay statistics. Every
// ConnectionTask pushes its Local snapshots through Merge; nothing else
// touches this state directly, so no locking is needed beyond guarding
// against concurrent Merge/Snapshot calls from different goroutines.
type Aggregator struct {
	mu        sync.Mutex
	started   time.Time
	latencies *Histogram
	successes map[profile.Variant]uint64
	errors    map[string]uint64
}

// NewAggregator returns an empty Aggregator, timestamped at creation.
func NewAggregator() *Aggregator {
	return &Aggregator{
		started:   time.Now(),
		latencies: NewHistogram(),
		successes: make(map[profile.Variant]uint64),
		errors:    make(map[string]uint64),
	}
}

// Merge folds one connection's snapshot into the run-wide totals.
func (a *Aggregator) Merge(snap ConnectionSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.latencies.Merge(snap.Latencies)
	for cmd, n := range snap.Successes {
		a.successes[cmd] += n
	}
	for kind, n := range snap.Errors {
		a.errors[kind] += n
	}
}

// Report is a point-in-time summary of the whole run.
type Report struct {
	ElapsedSecs      float64
	TotalOperations  uint64
	ThroughputPerSec float64
	Operations       map[profile.Variant]Snapshot
	Successes        map[profile.Variant]uint64
	Errors           map[string]uint64
}

// Snapshot assembles the current Report without resetting any state.
func (a *Aggregator) Snapshot() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	var total uint64
	successes := make(map[profile.Variant]uint64, len(a.successes))
	for cmd, n := range a.successes {
		successes[cmd] = n
		total += n
	}
	errs := make(map[string]uint64, len(a.errors))
	for kind, n := range a.errors {
		errs[kind] = n
		total += n
	}

	elapsed := time.Since(a.started).Seconds()
	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(total) / elapsed
	}

	return Report{
		ElapsedSecs:      elapsed,
		TotalOperations:  total,
		ThroughputPerSec: throughput,
		Operations:       a.latencies.Percentiles(),
		Successes:        successes,
		Errors:           errs,
	}
}

// RunProgressLoop logs a Report on progressInterval until stop is
// closed, matching the cadence spec.md §4.11 describes for the
// in-flight CLI progress line.
func (a *Aggregator) RunProgressLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r := a.Snapshot()
			logrus.WithFields(logrus.Fields{
				"elapsed_secs": r.ElapsedSecs,
				"operations":   r.TotalOperations,
				"throughput":   r.ThroughputPerSec,
			}).Info("replay: progress")
		}
	}
}
