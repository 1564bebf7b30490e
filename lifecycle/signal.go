package lifecycle

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// WatchSignals sets flag when the process receives SIGINT or SIGTERM,
// and returns a stop function the caller should defer to release the
// underlying signal channel.
func WatchSignals(flag *ExitFlag) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			logrus.WithField("signal", sig).Info("lifecycle: received shutdown signal")
			flag.Signal()
		case <-done:
		}
	}()

	return func() {
		close(done)
		signal.Stop(ch)
	}
}

// WatchDeadline sets flag once d has elapsed. A non-positive d disables
// the deadline and returns a no-op stop function (spec.md §6, the
// supplemented --deadline flag).
func WatchDeadline(flag *ExitFlag, d time.Duration) (stop func()) {
	if d <= 0 {
		return func() {}
	}

	timer := time.AfterFunc(d, func() {
		logrus.WithField("deadline", d).Info("lifecycle: deadline elapsed")
		flag.Signal()
	})

	return func() {
		timer.Stop()
	}
}
