package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExitFlagStartsUnset(t *testing.T) {
	var f ExitFlag
	assert.False(t, f.IsSet())
}

func TestExitFlagSignalIsIdempotent(t *testing.T) {
	var f ExitFlag
	f.Signal()
	f.Signal()
	assert.True(t, f.IsSet())
}

func TestWatchDeadlineSetsFlagAfterElapsed(t *testing.T) {
	var f ExitFlag
	stop := WatchDeadline(&f, 10*time.Millisecond)
	defer stop()

	assert.Eventually(t, f.IsSet, 200*time.Millisecond, 5*time.Millisecond)
}

func TestWatchDeadlineDisabledByNonPositiveDuration(t *testing.T) {
	var f ExitFlag
	stop := WatchDeadline(&f, 0)
	defer stop()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, f.IsSet())
}
