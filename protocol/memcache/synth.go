package memcache

import (
	"fmt"
	"strconv"

	"github.com/memtap/memcap/profile"
)

// Mode selects which on-wire rendering Synthesize produces.
type Mode int

const (
	ASCII Mode = iota
	Meta
)

// valueFiller is the fixed byte used for synthesized Set value bodies.
// It renders as 'x', a visually obvious placeholder that can never be
// mistaken for real captured data (spec.md §4.10 — values are never
// reproduced).
const valueFiller = 'x'

// SynthesizeKey renders ev.KeyHash as lowercase hex, repeated or
// truncated to exactly ev.KeySize bytes. Hex digits never include
// space, CR, or LF, so the result is always safe to place directly in
// a command line (spec.md §4.10).
func SynthesizeKey(ev profile.Event) []byte {
	hex := fmt.Sprintf("%016x", ev.KeyHash)
	key := make([]byte, ev.KeySize)
	for i := range key {
		key[i] = hex[i%len(hex)]
	}
	return key
}

// SynthesizeValue renders the fixed filler byte repeated to exactly n
// bytes.
func SynthesizeValue(n uint32) []byte {
	val := make([]byte, n)
	for i := range val {
		val[i] = valueFiller
	}
	return val
}

// Synthesize renders the deterministic on-wire command bytes for ev in
// the given Mode. Given the same event and mode, the output is
// byte-identical across runs (spec.md §4.10 determinism property).
func Synthesize(ev profile.Event, mode Mode) []byte {
	key := SynthesizeKey(ev)

	switch mode {
	case ASCII:
		return synthesizeASCII(ev, key)
	case Meta:
		return synthesizeMeta(ev, key)
	default:
		return synthesizeMeta(ev, key)
	}
}

func synthesizeASCII(ev profile.Event, key []byte) []byte {
	switch ev.Command {
	case profile.Get:
		return []byte("get " + string(key) + "\r\n")
	case profile.Set:
		size, _ := ev.ValueSize.Get()
		val := SynthesizeValue(size)
		line := "set " + string(key) + " 0 0 " + strconv.Itoa(int(size)) + "\r\n"
		out := make([]byte, 0, len(line)+len(val)+2)
		out = append(out, line...)
		out = append(out, val...)
		out = append(out, '\r', '\n')
		return out
	case profile.Delete:
		return []byte("delete " + string(key) + "\r\n")
	case profile.Noop:
		return []byte("version\r\n")
	}
	return nil
}

func synthesizeMeta(ev profile.Event, key []byte) []byte {
	switch ev.Command {
	case profile.Get:
		return []byte("mg " + string(key) + " v\r\n")
	case profile.Set:
		size, _ := ev.ValueSize.Get()
		val := SynthesizeValue(size)
		line := "ms " + string(key) + " " + strconv.Itoa(int(size)) + "\r\n"
		out := make([]byte, 0, len(line)+len(val)+2)
		out = append(out, line...)
		out = append(out, val...)
		out = append(out, '\r', '\n')
		return out
	case profile.Delete:
		return []byte("md " + string(key) + "\r\n")
	case profile.Noop:
		return []byte("mn\r\n")
	}
	return nil
}
