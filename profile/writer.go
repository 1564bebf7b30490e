package profile

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Writer accepts one Event at a time, buffers it, and on Finish flushes
// a length-prefixed metadata footer followed by the magic trailer.
// Writes are buffered (spec.md §4.5); callers that need durability
// should pass an *os.File and call Sync after Finish returns.
type Writer struct {
	w    *bufio.Writer
	meta *metadataBuilder
	done bool
}

// NewWriter wraps dst in a buffered writer. dst is typically an *os.File
// opened for the record run's output path.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{
		w:    bufio.NewWriter(dst),
		meta: newMetadataBuilder(),
	}
}

// Write encodes ev with its 16-bit length prefix and rolls it into the
// pending metadata. It is an error to call Write after Finish.
func (wr *Writer) Write(ev Event) error {
	if wr.done {
		return errors.New("profile: write after finish")
	}

	body := encodeEvent(make([]byte, 0, eventWireLen(ev)), ev)
	if len(body) > 0xFFFF {
		return errors.Errorf("profile: encoded event too large (%d bytes)", len(body))
	}

	if err := writeLengthPrefixed(wr.w, body); err != nil {
		return errors.Wrap(err, "profile: write event")
	}

	wr.meta.observe(ev)
	return nil
}

// Finish serializes the rolling metadata as the footer, writes the
// magic trailer, and flushes the underlying buffer. It is idempotent:
// calling it twice is a no-op returning nil the second time.
func (wr *Writer) Finish() error {
	if wr.done {
		return nil
	}
	wr.done = true

	m := wr.meta.finish()
	body := encodeMetadata(make([]byte, 0, 64), m)
	if len(body) > 0xFFFF {
		return errors.Errorf("profile: encoded metadata too large (%d bytes)", len(body))
	}

	if err := writeLengthPrefixed(wr.w, body); err != nil {
		return errors.Wrap(err, "profile: write metadata footer")
	}

	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], Magic)
	if _, err := wr.w.Write(magic[:]); err != nil {
		return errors.Wrap(err, "profile: write magic trailer")
	}

	if err := wr.w.Flush(); err != nil {
		return errors.Wrap(err, "profile: flush")
	}
	return nil
}

func writeLengthPrefixed(w io.Writer, body []byte) error {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
