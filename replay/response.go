package replay

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/memtap/memcap/profile"
	"github.com/memtap/memcap/protocol/memcache"
)

// ErrProtocolMismatch indicates the target's response didn't match any
// outcome this command's verb can produce. ConnectionTask counts it as a
// "protocol-mismatch" error and keeps using the same connection.
var ErrProtocolMismatch = errors.New("replay: response did not match expected verb outcome")

// readResponse consumes exactly one target response for ev from r,
// classifying it as a hit/stored/deleted success or a well-formed miss
// (both count as successful replay: spec.md §4.9 only cares that the
// wire round-trip completed, not that the target happened to already
// hold the key). It returns ErrProtocolMismatch when the response cannot
// be attributed to ev's verb at all, and a wrapped read error when the
// response cannot be read from r.
func readResponse(r *bufio.Reader, ev profile.Event, mode memcache.Mode) error {
	line, err := readLine(r)
	if err != nil {
		return err
	}

	switch mode {
	case memcache.ASCII:
		return readASCIIResponse(r, ev, line)
	default:
		return readMetaResponse(r, ev, line)
	}
}

func readASCIIResponse(r *bufio.Reader, ev profile.Event, line string) error {
	switch ev.Command {
	case profile.Get:
		if line == "END" {
			return nil
		}
		if strings.HasPrefix(line, "VALUE ") {
			if err := discardValueBlock(r, line, 3); err != nil {
				return err
			}
			return expectLine(r, "END")
		}
		return ErrProtocolMismatch

	case profile.Set:
		if line == "STORED" || line == "NOT_STORED" {
			return nil
		}
		return ErrProtocolMismatch

	case profile.Delete:
		if line == "DELETED" || line == "NOT_FOUND" {
			return nil
		}
		return ErrProtocolMismatch

	case profile.Noop:
		if strings.HasPrefix(line, "VERSION") {
			return nil
		}
		return ErrProtocolMismatch
	}
	return ErrProtocolMismatch
}

func readMetaResponse(r *bufio.Reader, ev profile.Event, line string) error {
	switch ev.Command {
	case profile.Get:
		if line == "EN" {
			return nil
		}
		if strings.HasPrefix(line, "VA ") {
			return discardValueBlock(r, line, 1)
		}
		return ErrProtocolMismatch

	case profile.Set:
		if line == "HD" || line == "NS" {
			return nil
		}
		return ErrProtocolMismatch

	case profile.Delete:
		if line == "HD" || line == "NF" {
			return nil
		}
		return ErrProtocolMismatch

	case profile.Noop:
		if line == "MN" {
			return nil
		}
		return ErrProtocolMismatch
	}
	return ErrProtocolMismatch
}

// discardValueBlock reads and discards the data block following a
// "VALUE ..." or "VA ..." header line, using the field at sizeFieldIdx
// (0-indexed, space-separated) as the byte count.
func discardValueBlock(r *bufio.Reader, headerLine string, sizeFieldIdx int) error {
	fields := strings.Fields(headerLine)
	if len(fields) <= sizeFieldIdx {
		return ErrProtocolMismatch
	}
	size, err := strconv.Atoi(fields[sizeFieldIdx])
	if err != nil || size < 0 {
		return ErrProtocolMismatch
	}

	buf := make([]byte, size+2) // data + trailing CRLF
	if _, err := readFull(r, buf); err != nil {
		return err
	}
	return nil
}

func expectLine(r *bufio.Reader, want string) error {
	line, err := readLine(r)
	if err != nil {
		return err
	}
	if line != want {
		return ErrProtocolMismatch
	}
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	raw, err := r.ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "replay: read response line")
	}
	return strings.TrimRight(raw, "\r\n"), nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, errors.Wrap(err, "replay: read response value block")
		}
	}
	return n, nil
}
