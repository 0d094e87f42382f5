package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynchRoundTrip(t *testing.T) {
	for _, n := range []uint32{0, 1, 127, 128, 16384, MaxSynchsafe} {
		s, err := Synch(n)
		require.NoError(t, err)
		assert.Equal(t, n, Unsynch(s))
	}
}

func TestSynchKnownValues(t *testing.T) {
	s, err := Synch(0x0FFFFFFF)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7F7F7F7F), s)
	assert.Equal(t, uint32(0x0FFFFFFF), Unsynch(0x7F7F7F7F))

	_, err = Synch(0x10000000)
	assert.ErrorIs(t, err, ErrTooMuchData)
}

func TestDecodeUnsynch(t *testing.T) {
	out, err := DecodeUnsynch([]byte{0xFF, 0x00, 0x1A, 0xFF, 0x00, 0x15})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x1A, 0xFF, 0x15}, out)

	_, err = DecodeUnsynch([]byte{0xFF, 0xE0, 0x00})
	assert.ErrorIs(t, err, ErrBadSyncText)
}

func TestVINTAllWidths(t *testing.T) {
	// All eight encodings of the value 2, one per octet width 1..8.
	for length := 1; length <= 8; length++ {
		enc, err := EncodeVINT(2, length, false)
		require.NoError(t, err)
		require.Len(t, enc, length)

		got, err := DecodeVINT(enc, false, 8)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), got.Value)
		assert.Equal(t, length, got.Length)
	}
}

func TestVINTMinimalLength(t *testing.T) {
	enc, err := EncodeVINT(2, 1, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0b1000_0010}, enc)
}

func TestTextRoundTrip(t *testing.T) {
	cases := []struct {
		enc Encoding
		s   string
	}{
		{Latin1, "hello"},
		{UTF8, "héllo é"},
		{UTF16BOM, "hello"},
		{UTF16BE, "hello"},
	}
	for _, c := range cases {
		enc, err := EncodeText(c.enc, c.s, false)
		require.NoError(t, err)
		got, err := DecodeText(c.enc, enc, nil)
		require.NoError(t, err)
		assert.Equal(t, c.s, got)
	}
}

func TestStripTrailingNUL(t *testing.T) {
	assert.Equal(t, "foo", StripTrailingNUL("foo\x00\x00"))
	assert.Equal(t, "foo\x00bar", StripTrailingNUL("foo\x00bar"))
}

func TestExtendedFloatRoundTrip(t *testing.T) {
	for _, f := range []float64{44100, 48000, 22050, 8000} {
		enc, err := EncodeExtended80(f)
		require.NoError(t, err)
		got, err := DecodeExtended80(enc)
		require.NoError(t, err)
		assert.InDelta(t, f, got, 0.01)
	}
}
