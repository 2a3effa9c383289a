package framer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

func TestFrameRoundTrip(t *testing.T) {
	f := NewLengthPrefixedFramer(0)
	var buf bytes.Buffer

	first := &Frame{Version: 4, Flags: Flags(0).WithCompression(2) | FlagEncrypted, Payload: []byte("abc")}
	require.NoError(t, f.WriteFrame(&buf, first))
	require.NoError(t, f.WriteFrame(&buf, &Frame{Version: 2}))
	assert.Equal(t, []byte{'P', 'M', 4, 0x82, 0, 0, 0, 3, 'a', 'b', 'c'}, buf.Bytes()[:11])

	got, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	assert.Equal(t, uint8(2), got.Flags.Compression())
	assert.True(t, got.Flags.Encrypted())
	assert.Equal(t, []byte{'P', 'M', 4, 0x82}, got.AAD())

	got, err = f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got.Payload)
	assert.False(t, got.Flags.Encrypted())

	_, err = f.ReadFrame(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestFrameErrors(t *testing.T) {
	f := NewLengthPrefixedFramer(4)

	err := f.WriteFrame(io.Discard, &Frame{Payload: make([]byte, 5)})
	assert.ErrorIs(t, err, merr.ErrStreamFrameTooLarge)
	assert.ErrorIs(t, f.WriteFrame(io.Discard, nil), merr.ErrParameterMissing)

	_, err = f.ReadFrame(bytes.NewReader([]byte{'X', 'M', 4, 0, 0, 0, 0, 0}))
	assert.ErrorIs(t, err, merr.ErrStreamFrameInvalid)

	_, err = f.ReadFrame(bytes.NewReader([]byte{'P', 'M', 4, 0, 0, 0, 0, 9}))
	assert.ErrorIs(t, err, merr.ErrStreamFrameTooLarge)

	_, err = f.ReadFrame(bytes.NewReader([]byte{'P', 'M', 4}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = f.ReadFrame(bytes.NewReader([]byte{'P', 'M', 4, 0, 0, 0, 0, 3, 'a'}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
