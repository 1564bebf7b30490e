package replay

import (
	"bufio"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/memtap/memcap/lifecycle"
	"github.com/memtap/memcap/profile"
	"github.com/memtap/memcap/protocol/memcache"
	"github.com/memtap/memcap/stats"
)

// snapshotInterval is how often a ConnectionTask pushes its Local
// stats into the shared Aggregator (spec.md §4.9, §4.11).
const snapshotInterval = 2 * time.Second

// dialTimeout bounds how long ConnectionTask.Run waits to establish
// its outbound connection before giving up.
const dialTimeout = 5 * time.Second

// ConnectionTask owns exactly one net.Conn to the replay target. It
// consumes events handed to it by a ReaderTask, synthesizes wire
// bytes, sends them, reads and classifies the response, and reports
// latency and outcome into its own Local stats (spec.md §4.9).
type ConnectionTask struct {
	target string
	mode   memcache.Mode
	exit   *lifecycle.ExitFlag
	agg    *stats.Aggregator
	local  *stats.Local
}

// NewConnectionTask builds a ConnectionTask that dials target lazily,
// on the first event it receives.
func NewConnectionTask(target string, mode memcache.Mode, exit *lifecycle.ExitFlag, agg *stats.Aggregator) *ConnectionTask {
	return &ConnectionTask{target: target, mode: mode, exit: exit, agg: agg, local: stats.NewLocal()}
}

// Run drains events until the channel is closed by its ReaderTask,
// pushing a final snapshot into the Aggregator before returning.
//
// Once the exit flag is set, Run stops dialing and stops sending
// commands but keeps receiving from events (discarding them) until the
// channel closes, rather than returning immediately: the ReaderTask is
// a single goroutine fanning out to every connection's channel in turn,
// so a task that stops receiving while its buffer is full would block
// that goroutine forever (spec.md §4.9, §5).
func (c *ConnectionTask) Run(events <-chan profile.Event) {
	defer c.flush()

	var conn net.Conn
	var reader *bufio.Reader
	lastSnapshot := time.Now()
	draining := false

	for ev := range events {
		if draining || c.exit.IsSet() {
			draining = true
			continue
		}

		if conn == nil {
			var err error
			conn, err = net.DialTimeout("tcp", c.target, dialTimeout)
			if err != nil {
				logrus.WithError(err).WithField("target", c.target).Warn("replay: dial failed")
				c.local.RecordError("dial-failed")
				continue
			}
			reader = bufio.NewReader(conn)
			defer conn.Close()
		}

		if err := c.roundTrip(conn, reader, ev); err != nil {
			kind := classifyError(err)
			c.local.RecordError(kind)

			// A connection error (reset, broken pipe, closed by the
			// target) means conn itself is no longer usable;
			// unlike a protocol mismatch, there is no wire position to
			// recover from, so the task terminates rather than keep
			// writing into a dead socket (spec.md §4.9(6)).
			if kind == "connection-error" {
				logrus.WithError(err).WithField("target", c.target).Error("replay: connection error, terminating task")
				conn.Close()
				conn = nil
				draining = true
				continue
			}
		}

		if time.Since(lastSnapshot) >= snapshotInterval {
			c.flush()
			lastSnapshot = time.Now()
		}
	}
}

func (c *ConnectionTask) roundTrip(conn net.Conn, reader *bufio.Reader, ev profile.Event) error {
	wire := memcache.Synthesize(ev, c.mode)

	start := time.Now()
	if _, err := conn.Write(wire); err != nil {
		return errors.Wrap(err, "replay: write command")
	}

	if err := readResponse(reader, ev, c.mode); err != nil {
		return err
	}

	c.local.RecordSuccess(ev.Command, time.Since(start))
	return nil
}

func (c *ConnectionTask) flush() {
	c.agg.Merge(c.local.Snapshot())
}

func classifyError(err error) string {
	if errors.Is(err, ErrProtocolMismatch) {
		return "protocol-mismatch"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "connection-error"
}
