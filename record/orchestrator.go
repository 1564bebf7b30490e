package record

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/memtap/memcap/anonymize"
	"github.com/memtap/memcap/capture"
	"github.com/memtap/memcap/capture/link"
	"github.com/memtap/memcap/internal/optionals"
	"github.com/memtap/memcap/profile"
	"github.com/memtap/memcap/protocol/memcache"
)

// Options configures a single recording run (spec.md §4.6, §6).
type Options struct {
	Source        capture.Source
	Port          uint16
	Hasher        anonymize.Hasher
	MaxFlowBuffer int
}

// Run drains src's frames on the calling goroutine until the source is
// exhausted or ctx is canceled, parsing memcache commands out of each
// connection's byte stream and appending anonymized events to w. Run
// always calls w.Finish before returning, even on error, so a partial
// profile is still readable.
//
// This is the single cooperative thread spec.md §3 describes: there is
// no concurrency here by design, so a slow parse or a stalled capture
// source simply makes the whole pipeline slow rather than racing with
// itself.
func Run(ctx context.Context, opts Options, w *profile.Writer) error {
	frames, err := opts.Source.Frames(ctx)
	if err != nil {
		_ = w.Finish()
		return errors.Wrap(err, "record: open capture source")
	}

	reassembler := link.NewReassembler(opts.MaxFlowBuffer)
	interner := NewInterner()
	started := time.Now()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case frame, ok := <-frames:
			if !ok {
				break loop
			}
			if err := processFrame(frame, opts, reassembler, interner, w); err != nil {
				logrus.WithError(err).Warn("record: dropping frame")
			}
		}
	}

	if finishErr := w.Finish(); finishErr != nil && runErr == nil {
		runErr = errors.Wrap(finishErr, "record: finish profile")
	}

	fields := logrus.Fields{
		"connections": interner.Count(),
		"elapsed":     time.Since(started),
	}
	if counters, ok := opts.Source.Stats(); ok {
		fields["received"] = counters.Received
		fields["dropped"] = counters.Dropped
		fields["bytes"] = counters.Bytes
	}
	logrus.WithFields(fields).Info("record: run complete")

	return runErr
}

func processFrame(frame capture.Frame, opts Options, reassembler *link.Reassembler, interner *Interner, w *profile.Writer) error {
	if frame.TapPayload != nil {
		// SockID disambiguates connections that happen to share a port
		// pair; the kernel tap has no IP addresses to offer (spec.md §6).
		sock := fmt.Sprintf("sock:%d", frame.TapPayload.SockID)
		key := link.FlowKey{
			SrcIP:   sock,
			SrcPort: frame.TapPayload.Sport,
			DstIP:   sock,
			DstPort: frame.TapPayload.Dport,
		}
		return feedConnection(key, frame.TapPayload.Data, opts, reassembler, interner, w)
	}

	key, payload, err := link.Strip(frame.Packet, opts.Port)
	if err != nil {
		if errors.Is(err, link.ErrNotTCP) {
			return nil
		}
		return err
	}
	return feedConnection(key, payload, opts, reassembler, interner, w)
}

func feedConnection(key link.FlowKey, payload []byte, opts Options, reassembler *link.Reassembler, interner *Interner, w *profile.Writer) error {
	buf, err := reassembler.Feed(key, payload)
	if err != nil {
		return err
	}

	identity := NormalizeFlow(key)
	connID := interner.ID(identity)
	now := uint64(time.Now().UnixMicro())

	consumed := 0
	for {
		cmd, n, err := memcache.Parse(buf[consumed:])
		if errors.Is(err, memcache.ErrNeedMore) {
			break
		}
		if errors.Is(err, memcache.ErrProtocol) {
			consumed += n
			continue
		}
		if err != nil {
			return err
		}

		ev, err := buildEvent(now, connID, cmd, buf[consumed:consumed+n], opts.Hasher)
		if err != nil {
			return err
		}
		if err := w.Write(ev); err != nil {
			return errors.Wrap(err, "record: write event")
		}

		consumed += n
	}

	reassembler.Consume(key, consumed)
	return nil
}

func buildEvent(ts uint64, connID uint16, cmd memcache.Command, raw []byte, hasher anonymize.Hasher) (profile.Event, error) {
	key := raw[cmd.KeyOffset : cmd.KeyOffset+cmd.KeyLen]
	keyHash := hasher.Hash(key)

	valueSize := optionals.None[uint32]()
	if n, ok := cmd.ValueLen.Get(); ok {
		valueSize = optionals.Some(uint32(n))
	}

	return profile.NewEvent(ts, connID, cmd.Verb, keyHash, uint32(cmd.KeyLen), valueSize), nil
}
