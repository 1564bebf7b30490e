package replay

import (
	"github.com/sirupsen/logrus"

	"github.com/memtap/memcap/lifecycle"
	"github.com/memtap/memcap/profile"
)

// ConnectionQueueDepth bounds how many events a ConnectionTask may
// have buffered ahead of it, so one slow connection can't let the
// reader run arbitrarily far ahead of the rest of the run (spec.md
// §4.8).
const ConnectionQueueDepth = 1000

// ReaderTask streams a profile's events, applies the configured
// LoopPolicy, and fans events out to one channel per connection_id. It
// owns the profile.Streamer exclusively.
type ReaderTask struct {
	streamer *profile.Streamer
	policy   LoopPolicy
	exit     *lifecycle.ExitFlag
}

// NewReaderTask builds a ReaderTask over streamer.
func NewReaderTask(streamer *profile.Streamer, policy LoopPolicy, exit *lifecycle.ExitFlag) *ReaderTask {
	return &ReaderTask{streamer: streamer, policy: policy, exit: exit}
}

// Run streams events until the loop policy is satisfied or the exit
// flag is set, dispatching each event to the channel for its
// connection_id, creating that channel (and its consumer, via newConn)
// on first sight. Run closes every channel it created before
// returning, signaling each ConnectionTask to finish up.
func (r *ReaderTask) Run(newConn func(connID uint16) chan<- profile.Event) error {
	channels := make(map[uint16]chan<- profile.Event)
	defer func() {
		for _, ch := range channels {
			close(ch)
		}
	}()

	iteration := 0
	for {
		if r.exit.IsSet() {
			return nil
		}

		if err := r.streamer.Reset(); err != nil {
			return err
		}

		for {
			if r.exit.IsSet() {
				return nil
			}

			ev, ok, err := r.streamer.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}

			ch, exists := channels[ev.ConnectionID]
			if !exists {
				ch = newConn(ev.ConnectionID)
				channels[ev.ConnectionID] = ch
			}
			ch <- ev
		}

		iteration++
		logrus.WithField("iteration", iteration).Debug("replay: reader completed a pass")
		if r.policy.Done(iteration) {
			return nil
		}
	}
}
