package capture

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceSelectsOfflineForRegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "capture-*.pcap")
	require.NoError(t, err)
	f.Close()

	src, err := NewSource(f.Name(), 11211)
	require.NoError(t, err)
	_, ok := src.(*OfflineSource)
	assert.True(t, ok, "expected *OfflineSource, got %T", src)
	assert.True(t, src.IsFinite())
}

func TestNewSourceSelectsLiveForNonFileIdentifier(t *testing.T) {
	src, err := NewSource("eth0", 11211)
	require.NoError(t, err)
	_, ok := src.(*LiveSource)
	assert.True(t, ok, "expected *LiveSource, got %T", src)
	assert.False(t, src.IsFinite())
}

func TestNewSourceRejectsEBPFWithoutRegisteredOpener(t *testing.T) {
	tapOpener = nil
	_, err := NewSource("ebpf:eth0", 11211)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
}
