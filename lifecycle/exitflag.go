// Package lifecycle provides the cooperative shutdown primitive shared
// by the record and replay pipelines: a single atomic flag that every
// goroutine polls, set exactly once by a signal handler or a deadline
// timer (spec.md §4.9, §5).
package lifecycle

import (
	"sync"
	"sync/atomic"
)

// ExitFlag is a cooperative stop signal. It is safe to read from many
// goroutines; only the owner that calls Signal should ever set it.
type ExitFlag struct {
	set      atomic.Bool
	once     sync.Once
	done     chan struct{}
	initOnce sync.Once
}

func (f *ExitFlag) lazyInit() {
	f.initOnce.Do(func() {
		f.done = make(chan struct{})
	})
}

// Signal marks the flag set and closes the channel returned by Done.
// Idempotent.
func (f *ExitFlag) Signal() {
	f.lazyInit()
	f.set.Store(true)
	f.once.Do(func() { close(f.done) })
}

// IsSet reports whether Signal has been called.
func (f *ExitFlag) IsSet() bool {
	return f.set.Load()
}

// Done returns a channel that is closed once Signal has been called,
// so a select loop can wait on shutdown without polling.
func (f *ExitFlag) Done() <-chan struct{} {
	f.lazyInit()
	return f.done
}
