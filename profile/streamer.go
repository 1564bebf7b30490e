package profile

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Streamer performs forward iteration over a profile file written by
// Writer. Next returns events in file order; once the trailing metadata
// blob is recognized (its length-prefixed body is immediately followed
// by the magic trailer), Next reports end-of-stream and Metadata()
// becomes valid. Reset rewinds to the beginning, which loop policies
// other than "once" use to replay a profile more than once (spec.md
// §4.7, §4.8).
type Streamer struct {
	src  io.ReadSeeker
	r    *bufio.Reader
	meta Metadata
	done bool
}

// NewStreamer wraps src, which must be positioned at the start of a
// profile (NewStreamer does not seek on construction).
func NewStreamer(src io.ReadSeeker) *Streamer {
	return &Streamer{
		src: src,
		r:   bufio.NewReader(src),
	}
}

// Next returns the next event in the profile. When the stream is
// exhausted it returns (Event{}, false, nil); Metadata() then holds the
// finalized footer. A non-nil error indicates the profile is truncated
// or malformed (bad magic, unsupported version, short record).
func (s *Streamer) Next() (Event, bool, error) {
	if s.done {
		return Event{}, false, nil
	}

	lengthBuf := make([]byte, 2)
	if _, err := io.ReadFull(s.r, lengthBuf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Event{}, false, errors.New("profile: stream ended without magic trailer")
		}
		return Event{}, false, errors.Wrap(err, "profile: read length prefix")
	}
	length := binary.LittleEndian.Uint16(lengthBuf)

	body := make([]byte, length)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return Event{}, false, errors.Wrap(err, "profile: read record body")
	}

	if s.looksLikeFinalMetadata() {
		m, err := decodeMetadata(body)
		if err != nil {
			return Event{}, false, err
		}
		var trailer [4]byte
		if _, err := io.ReadFull(s.r, trailer[:]); err != nil {
			return Event{}, false, errors.Wrap(err, "profile: read magic trailer")
		}
		s.meta = m
		s.done = true
		return Event{}, false, nil
	}

	ev, err := decodeEvent(body)
	if err != nil {
		return Event{}, false, err
	}
	return ev, true, nil
}

// looksLikeFinalMetadata peeks the four bytes immediately following the
// record just read and reports whether they equal Magic, per the
// streamer algorithm in spec.md §4.7.
func (s *Streamer) looksLikeFinalMetadata() bool {
	peeked, err := s.r.Peek(4)
	if err != nil || len(peeked) != 4 {
		return false
	}
	return binary.LittleEndian.Uint32(peeked) == Magic
}

// Metadata returns the finalized footer. Valid only after Next has
// returned ok=false with a nil error.
func (s *Streamer) Metadata() (Metadata, bool) {
	if !s.done {
		return Metadata{}, false
	}
	return s.meta, true
}

// Reset rewinds the streamer to the beginning of the profile so it can
// be iterated again (loop policies Times(N) and Infinite).
func (s *Streamer) Reset() error {
	if _, err := s.src.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "profile: reset seek")
	}
	s.r = bufio.NewReader(s.src)
	s.done = false
	s.meta = Metadata{}
	return nil
}
