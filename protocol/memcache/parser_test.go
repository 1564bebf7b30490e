package memcache

import (
	"testing"

	"github.com/memtap/memcap/internal/optionals"
	"github.com/memtap/memcap/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGetSynonyms(t *testing.T) {
	for _, verb := range []string{"get", "gets", "mg", "GET"} {
		buf := []byte(verb + " mykey\r\n")
		cmd, n, err := Parse(buf)
		require.NoError(t, err, verb)
		assert.Equal(t, profile.Get, cmd.Verb, verb)
		assert.Equal(t, "mykey", string(buf[cmd.KeyOffset:cmd.KeyOffset+cmd.KeyLen]), verb)
		assert.Equal(t, len(buf), n, verb)
		assert.False(t, cmd.ValueLen.IsSome(), verb)
	}
}

func TestParseSetText(t *testing.T) {
	buf := []byte("set kkkk 0 0 3\r\nxxx\r\n")
	cmd, n, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, profile.Set, cmd.Verb)
	assert.Equal(t, "kkkk", string(buf[cmd.KeyOffset:cmd.KeyOffset+cmd.KeyLen]))
	vs, ok := cmd.ValueLen.Get()
	require.True(t, ok)
	assert.Equal(t, 3, vs)
	assert.Equal(t, len(buf), n)
}

func TestParseSetMeta(t *testing.T) {
	buf := []byte("ms kkkk 3\r\nxxx\r\n")
	cmd, n, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, profile.Set, cmd.Verb)
	vs, ok := cmd.ValueLen.Get()
	require.True(t, ok)
	assert.Equal(t, 3, vs)
	assert.Equal(t, len(buf), n)
}

func TestParseDeleteAndNoop(t *testing.T) {
	cmd, n, err := Parse([]byte("delete foo\r\n"))
	require.NoError(t, err)
	assert.Equal(t, profile.Delete, cmd.Verb)
	assert.Equal(t, 12, n)

	cmd, n, err = Parse([]byte("noop\r\n"))
	require.NoError(t, err)
	assert.Equal(t, profile.Noop, cmd.Verb)
	assert.Equal(t, 6, n)

	cmd, n, err = Parse([]byte("mn\r\n"))
	require.NoError(t, err)
	assert.Equal(t, profile.Noop, cmd.Verb)
	assert.Equal(t, 4, n)
}

func TestParseNeedMoreOnIncompleteLine(t *testing.T) {
	_, n, err := Parse([]byte("get my"))
	assert.Equal(t, ErrNeedMore, err)
	assert.Equal(t, 0, n)
}

func TestParseNeedMoreOnIncompleteValue(t *testing.T) {
	_, n, err := Parse([]byte("set kkkk 0 0 5\r\nxx"))
	assert.Equal(t, ErrNeedMore, err)
	assert.Equal(t, 0, n)
}

func TestParseResynchronizesOnUnknownVerb(t *testing.T) {
	buf := []byte("gibberish\r\nget key\r\n")
	cmd, n, err := Parse(buf)
	assert.Equal(t, ErrProtocol, err)
	require.Greater(t, n, 0)

	cmd, n2, err := Parse(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, profile.Get, cmd.Verb)
	assert.Equal(t, 3, cmd.KeyLen)
	assert.Equal(t, len(buf)-n, n2)
}

func TestParseNeverConsumesZeroOnSuccessOrProtocolError(t *testing.T) {
	cases := [][]byte{
		[]byte("get a\r\n"),
		[]byte("unknown\r\n"),
		[]byte("\r\n"),
	}
	for _, buf := range cases {
		_, n, err := Parse(buf)
		if err == ErrNeedMore {
			continue
		}
		assert.Greater(t, n, 0, string(buf))
	}
}

func TestSynthesizeParseRoundTrip(t *testing.T) {
	events := []profile.Event{
		profile.NewEvent(0, 0, profile.Get, 0x1234567890abcdef, 7, optionals.None[uint32]()),
		profile.NewEvent(0, 0, profile.Set, 0x1234567890abcdef, 4, optionals.Some(uint32(9))),
		profile.NewEvent(0, 0, profile.Delete, 0xffee, 3, optionals.None[uint32]()),
		profile.NewEvent(0, 0, profile.Noop, 0, 0, optionals.None[uint32]()),
	}

	for _, mode := range []Mode{ASCII, Meta} {
		for _, ev := range events {
			wire := Synthesize(ev, mode)
			cmd, n, err := Parse(wire)
			require.NoError(t, err, "mode=%v ev=%+v", mode, ev)
			assert.Equal(t, len(wire), n)
			assert.Equal(t, ev.Command, cmd.Verb)
			assert.Equal(t, int(ev.KeySize), cmd.KeyLen)
			gotVS, gotOK := cmd.ValueLen.Get()
			wantVS, wantOK := ev.ValueSize.Get()
			assert.Equal(t, wantOK, gotOK)
			if wantOK {
				assert.Equal(t, int(wantVS), gotVS)
			}
		}
	}
}

func TestSynthesizeExactWireBytes(t *testing.T) {
	keyHash := uint64(0x1111111111111111)
	setEv := profile.NewEvent(0, 0, profile.Set, keyHash, 4, optionals.Some(uint32(3)))
	getEv := profile.NewEvent(0, 0, profile.Get, keyHash, 4, optionals.None[uint32]())

	key := SynthesizeKey(setEv)
	require.Equal(t, 4, len(key))

	var out []byte
	out = append(out, Synthesize(setEv, ASCII)...)
	out = append(out, Synthesize(getEv, ASCII)...)

	expected := "set " + string(key) + " 0 0 3\r\nxxx\r\nget " + string(key) + "\r\n"
	assert.Equal(t, expected, string(out))
}
