package replay

import (
	"sync"

	"github.com/memtap/memcap/lifecycle"
	"github.com/memtap/memcap/profile"
	"github.com/memtap/memcap/protocol/memcache"
	"github.com/memtap/memcap/stats"
)

// Run wires a ReaderTask to one ConnectionTask per connection_id and
// blocks until the reader finishes (loop policy satisfied, exit flag
// set, or a streaming error) and every ConnectionTask has drained its
// channel (spec.md §4.8, §4.9).
func Run(streamer *profile.Streamer, policy LoopPolicy, target string, mode memcache.Mode, exit *lifecycle.ExitFlag, agg *stats.Aggregator) error {
	var wg sync.WaitGroup

	reader := NewReaderTask(streamer, policy, exit)
	err := reader.Run(func(connID uint16) chan<- profile.Event {
		ch := make(chan profile.Event, ConnectionQueueDepth)
		task := NewConnectionTask(target, mode, exit, agg)

		wg.Add(1)
		go func() {
			defer wg.Done()
			task.Run(ch)
		}()

		return ch
	})

	wg.Wait()
	return err
}
