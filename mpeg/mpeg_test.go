package mpeg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaderXingExample(t *testing.T) {
	// FF FB 90 64: MPEG1 Layer III, bitrate index 9 (128kbps), sample rate
	// index 0 (44100), not padded, joint stereo — matches the worked Xing example.
	h, ok := parseHeader([4]byte{0xFF, 0xFB, 0x90, 0x64})
	require.True(t, ok)
	assert.Equal(t, Version1, h.Version)
	assert.Equal(t, LayerIII, h.Layer)
	assert.Equal(t, 128, h.Bitrate)
	assert.Equal(t, 44100, h.SampleRate)
	assert.Equal(t, JointStereo, h.ChannelMode)
}

func TestParseHeaderRejectsBadSync(t *testing.T) {
	_, ok := parseHeader([4]byte{0x00, 0xFB, 0x90, 0x64})
	assert.False(t, ok)
}

func TestParseHeaderRejectsReservedBitrate(t *testing.T) {
	_, ok := parseHeader([4]byte{0xFF, 0xFB, 0xF0, 0x64})
	assert.False(t, ok)
}

func TestFindFirstFrameSkipsJunkPrefix(t *testing.T) {
	frame := []byte{0xFF, 0xFB, 0x90, 0x64}
	h, _ := parseHeader([4]byte(frame))
	length := h.Length()

	var buf bytes.Buffer
	buf.Write([]byte("junk-bytes-before-sync"))
	buf.Write(frame)
	buf.Write(make([]byte, length-4))
	buf.Write(frame)
	buf.Write(make([]byte, length-4))

	r := bytes.NewReader(buf.Bytes())
	offset, got, err := FindFirstFrame(r)
	require.NoError(t, err)
	assert.EqualValues(t, len("junk-bytes-before-sync"), offset)
	assert.Equal(t, Version1, got.Version)
	assert.Equal(t, LayerIII, got.Layer)
}

func TestReadXingDuration(t *testing.T) {
	frame := []byte{0xFF, 0xFB, 0x90, 0x64}
	h, _ := parseHeader([4]byte(frame))

	var buf bytes.Buffer
	buf.Write(frame)
	buf.Write(make([]byte, xingSideInfoOffset(h.Version, h.ChannelMode)))
	buf.WriteString("Xing")
	buf.Write([]byte{0, 0, 0, 0x3}) // flags: frames + bytes present
	buf.Write([]byte{0, 0, 0x3, 0xE8})
	buf.Write([]byte{0, 0x1, 0, 0})
	buf.Write(make([]byte, h.Length()-buf.Len())) // fill out the first frame
	buf.Write(frame)                              // second header confirms the sync
	buf.Write(make([]byte, 64))                   // padding so the seek doesn't hit EOF

	r := bytes.NewReader(buf.Bytes())
	props, err := ReadProperties(r, int64(buf.Len()))
	require.NoError(t, err)
	assert.True(t, props.VBR)
	assert.InDelta(t, 26.122, props.Duration.Seconds(), 0.01)
}
