package capture

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTapReader struct {
	records []TapPayload
	closed  bool
}

func (f *fakeTapReader) ReadRecord() (TapPayload, error) {
	if len(f.records) == 0 {
		return TapPayload{}, io.EOF
	}
	rec := f.records[0]
	f.records = f.records[1:]
	return rec, nil
}

func (f *fakeTapReader) Close() error {
	f.closed = true
	return nil
}

func TestRegisterTapOpenerIsUsedBySourceSelection(t *testing.T) {
	t.Cleanup(func() { tapOpener = nil })

	fake := &fakeTapReader{records: []TapPayload{
		{SockID: 1, Sport: 40000, Dport: 11211, Data: []byte("get a\r\n")},
	}}
	RegisterTapOpener(func(iface string, port uint16) (TapReader, error) {
		assert.Equal(t, "eth0", iface)
		assert.Equal(t, uint16(11211), port)
		return fake, nil
	})

	src, err := NewSource("ebpf:eth0", 11211)
	require.NoError(t, err)
	_, ok := src.(*KernelTapSource)
	assert.True(t, ok, "expected *KernelTapSource, got %T", src)
}

func TestKernelTapSourceRefiltersByPort(t *testing.T) {
	fake := &fakeTapReader{records: []TapPayload{
		{SockID: 1, Sport: 40000, Dport: 9999, Data: []byte("wrong port")},
		{SockID: 2, Sport: 40001, Dport: 11211, Data: []byte("get a\r\n")},
	}}

	src := &KernelTapSource{iface: "eth0", port: 11211, reader: fake}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frames, err := src.Frames(ctx)
	require.NoError(t, err)

	var got []Frame
	for frame := range frames {
		got = append(got, frame)
	}

	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].TapPayload.SockID)
	assert.True(t, fake.closed)
}
