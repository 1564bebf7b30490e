package replay

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtap/memcap/internal/optionals"
	"github.com/memtap/memcap/lifecycle"
	"github.com/memtap/memcap/profile"
	"github.com/memtap/memcap/protocol/memcache"
	"github.com/memtap/memcap/stats"
)

// fakeMemcacheServer accepts one connection and replies STORED to
// every "set" line it reads and END to every "get" line, closing its
// side once a read fails (e.g. when the client disconnects).
func fakeMemcacheServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch {
			case len(line) >= 3 && line[:3] == "set":
				// discard the value line that follows
				if _, err := r.ReadString('\n'); err != nil {
					return
				}
				conn.Write([]byte("STORED\r\n"))
			case len(line) >= 3 && line[:3] == "get":
				conn.Write([]byte("END\r\n"))
			}
		}
	}()

	return ln.Addr().String(), func() { ln.Close() }
}

func TestConnectionTaskRoundTripsAgainstFakeServer(t *testing.T) {
	addr, stop := fakeMemcacheServer(t)
	defer stop()

	var exit lifecycle.ExitFlag
	agg := stats.NewAggregator()
	task := NewConnectionTask(addr, memcache.ASCII, &exit, agg)

	events := make(chan profile.Event, 2)
	events <- profile.NewEvent(1, 1, profile.Set, 0xdead, 3, optionals.Some(uint32(3)))
	events <- profile.NewEvent(2, 1, profile.Get, 0xdead, 3, optionals.None[uint32]())
	close(events)

	done := make(chan struct{})
	go func() { task.Run(events); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectionTask.Run did not return in time")
	}

	report := agg.Snapshot()
	assert.EqualValues(t, 1, report.Successes[profile.Set])
	assert.EqualValues(t, 1, report.Successes[profile.Get])
	assert.Empty(t, report.Errors)
}

func TestConnectionTaskDrainsBufferedEventsAfterExitFlag(t *testing.T) {
	addr, stop := fakeMemcacheServer(t)
	defer stop()

	var exit lifecycle.ExitFlag
	agg := stats.NewAggregator()
	task := NewConnectionTask(addr, memcache.ASCII, &exit, agg)

	// All three events are buffered, and the exit flag is already set,
	// before Run ever starts; Run must still receive (drain) every one
	// of them rather than return immediately, so a ReaderTask blocked on
	// ch<-ev is never stuck waiting on a task that stopped listening.
	events := make(chan profile.Event, 4)
	events <- profile.NewEvent(1, 1, profile.Get, 0xdead, 3, optionals.None[uint32]())
	events <- profile.NewEvent(2, 1, profile.Get, 0xbeef, 3, optionals.None[uint32]())
	events <- profile.NewEvent(3, 1, profile.Get, 0xbeef, 3, optionals.None[uint32]())
	close(events)
	exit.Signal()

	done := make(chan struct{})
	go func() { task.Run(events); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectionTask.Run did not drain and return in time")
	}
}

func TestConnectionTaskTerminatesOnConnectionError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close() // reset immediately, so the next write fails
	}()
	defer ln.Close()

	var exit lifecycle.ExitFlag
	agg := stats.NewAggregator()
	task := NewConnectionTask(addr, memcache.ASCII, &exit, agg)

	events := make(chan profile.Event, 2)
	events <- profile.NewEvent(1, 1, profile.Get, 0xdead, 3, optionals.None[uint32]())
	events <- profile.NewEvent(2, 1, profile.Get, 0xdead, 3, optionals.None[uint32]())
	close(events)

	done := make(chan struct{})
	go func() { task.Run(events); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectionTask.Run did not return in time")
	}

	report := agg.Snapshot()
	assert.EqualValues(t, 1, report.Errors["connection-error"])
}
