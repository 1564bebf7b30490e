package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedCarriesForwardUnconsumedTail(t *testing.T) {
	r := NewReassembler(0)
	key := FlowKey{SrcIP: "10.0.0.1", SrcPort: 5555, DstPort: 11211}

	buf, err := r.Feed(key, []byte("get fo"))
	require.NoError(t, err)
	assert.Equal(t, []byte("get fo"), buf)

	buf, err = r.Feed(key, []byte("o\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("get foo\r\n"), buf)
}

func TestConsumeDropsParsedPrefix(t *testing.T) {
	r := NewReassembler(0)
	key := FlowKey{SrcIP: "10.0.0.1", SrcPort: 5555, DstPort: 11211}

	_, err := r.Feed(key, []byte("get foo\r\nget bar\r\n"))
	require.NoError(t, err)

	r.Consume(key, len("get foo\r\n"))
	buf, err := r.Feed(key, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("get bar\r\n"), buf)
}

func TestFeedOverflowResetsBufferAndCounts(t *testing.T) {
	r := NewReassembler(8)
	key := FlowKey{SrcIP: "10.0.0.1", SrcPort: 5555, DstPort: 11211}

	_, err := r.Feed(key, []byte("1234567"))
	require.NoError(t, err)

	_, err = r.Feed(key, []byte("89"))
	assert.ErrorIs(t, err, ErrFlowBufferOverflow)
	assert.EqualValues(t, 1, r.OverflowCount(key))

	buf, err := r.Feed(key, nil)
	require.NoError(t, err)
	assert.Empty(t, buf)
}

func TestForgetClearsFlowState(t *testing.T) {
	r := NewReassembler(0)
	key := FlowKey{SrcIP: "10.0.0.1", SrcPort: 5555, DstPort: 11211}

	_, err := r.Feed(key, []byte("get foo\r\n"))
	require.NoError(t, err)

	r.Forget(key)
	buf, err := r.Feed(key, nil)
	require.NoError(t, err)
	assert.Empty(t, buf)
}
