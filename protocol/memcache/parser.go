// Package memcache recognizes memcache ASCII and meta text protocol
// commands inside a byte buffer without copying key bytes, and, for
// replay, synthesizes deterministic command bytes from an event record.
// The binary memcache protocol is out of scope (spec.md §1).
package memcache

import (
	"bytes"
	"strconv"

	"github.com/memtap/memcap/internal/optionals"
	"github.com/memtap/memcap/profile"
	"github.com/pkg/errors"
)

// ErrNeedMore indicates buf does not yet contain a complete command;
// the caller should append more bytes and call Parse again.
var ErrNeedMore = errors.New("memcache: need more data")

// ErrProtocol indicates buf starts with something that is not a
// recognized command. It is non-fatal: the returned consumed count
// advances past the offending line so the caller can resynchronize on
// the next call (spec.md §4.3, §7).
var ErrProtocol = errors.New("memcache: protocol error")

// Command describes one recognized memcache command. KeyOffset/KeyLen
// locate the key within the buffer passed to Parse; the parser never
// copies the key bytes themselves.
type Command struct {
	Verb      profile.Variant
	KeyOffset int
	KeyLen    int
	ValueLen  optionals.Optional[int]
}

// Parse looks for one complete command at the start of buf. It returns
// exactly one of: (Command, n, nil) with n > 0 bytes consumed; (Command{},
// 0, ErrNeedMore); or (Command{}, n, ErrProtocol) with n > 0 bytes to
// skip before retrying. It never returns success with zero bytes
// consumed (spec.md §8, parser progress property).
func Parse(buf []byte) (Command, int, error) {
	start := skipLeadingWhitespace(buf)
	if start == len(buf) {
		return Command{}, 0, ErrNeedMore
	}

	nl := bytes.IndexByte(buf[start:], '\n')
	if nl == -1 {
		return Command{}, 0, ErrNeedMore
	}
	nl += start

	lineEnd := nl
	if lineEnd > start && buf[lineEnd-1] == '\r' {
		lineEnd--
	}
	consumedLine := nl + 1

	fields := splitFields(buf[start:lineEnd], start)
	if len(fields) == 0 {
		return Command{}, consumedLine, ErrProtocol
	}

	verbTok := buf[fields[0].start:fields[0].end]
	info, ok := lookupVerb(verbTok)
	if !ok {
		return Command{}, consumedLine, ErrProtocol
	}

	switch info.variant {
	case profile.Noop:
		return Command{
			Verb:     profile.Noop,
			ValueLen: optionals.None[int](),
		}, consumedLine, nil

	case profile.Get, profile.Delete:
		if len(fields) < 2 {
			return Command{}, consumedLine, ErrProtocol
		}
		key := fields[1]
		return Command{
			Verb:      info.variant,
			KeyOffset: key.start,
			KeyLen:    key.end - key.start,
			ValueLen:  optionals.None[int](),
		}, consumedLine, nil

	case profile.Set:
		return parseSet(buf, verbTok, fields, consumedLine)
	}

	return Command{}, consumedLine, ErrProtocol
}

// parseSet handles both "set key flags exptime bytes" and "ms key bytes
// ..." forms. The value block is exactly bytes octets followed by
// CRLF, per spec.md §4.3.
func parseSet(buf []byte, verbTok []byte, fields []span, consumedLine int) (Command, int, error) {
	if len(fields) < 2 {
		return Command{}, consumedLine, ErrProtocol
	}
	key := fields[1]

	bytesIdx := 4
	if metaSetVerbs[lowerASCII(verbTok)] {
		bytesIdx = 2
	}
	if len(fields) <= bytesIdx {
		return Command{}, consumedLine, ErrProtocol
	}

	bytesTok := fields[bytesIdx]
	n, err := strconv.Atoi(string(buf[bytesTok.start:bytesTok.end]))
	if err != nil || n < 0 {
		return Command{}, consumedLine, ErrProtocol
	}

	valueStart := consumedLine
	need := valueStart + n + 2
	if len(buf) < need {
		return Command{}, 0, ErrNeedMore
	}
	if buf[valueStart+n] != '\r' || buf[valueStart+n+1] != '\n' {
		return Command{}, consumedLine, ErrProtocol
	}

	return Command{
		Verb:      profile.Set,
		KeyOffset: key.start,
		KeyLen:    key.end - key.start,
		ValueLen:  optionals.Some(n),
	}, need, nil
}

type span struct {
	start, end int
}

// splitFields tokenizes a command line on runs of spaces, returning
// absolute offsets into the original buffer (base is where line begins
// in that buffer).
func splitFields(line []byte, base int) []span {
	var fields []span
	i := 0
	for i < len(line) {
		for i < len(line) && line[i] == ' ' {
			i++
		}
		if i >= len(line) {
			break
		}
		j := i
		for j < len(line) && line[j] != ' ' {
			j++
		}
		fields = append(fields, span{base + i, base + j})
		i = j
	}
	return fields
}

func skipLeadingWhitespace(buf []byte) int {
	i := 0
	for i < len(buf) && (buf[i] == ' ' || buf[i] == '\t') {
		i++
	}
	return i
}
