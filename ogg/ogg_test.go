package ogg

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-flac/flacvorbis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vorbisIDHeader(channels byte, sampleRate uint32) []byte {
	body := make([]byte, 30)
	body[0] = 1
	copy(body[1:7], "vorbis")
	binary.LittleEndian.PutUint32(body[7:11], 0) // vorbis_version
	body[11] = channels
	binary.LittleEndian.PutUint32(body[12:16], sampleRate)
	body[28] = 0xB8 // blocksize nibble placeholder
	body[29] = 1    // framing bit
	return body
}

func buildVorbisStream(t *testing.T, title string) []byte {
	t.Helper()
	const serial = 0xC0FFEE

	idBody := vorbisIDHeader(2, 44100)
	idPage := buildPage(0x2, serial, 0, []byte{byte(len(idBody))}, idBody)

	cmt := flacvorbis.New()
	cmt.Vendor = "test-vendor"
	require.NoError(t, cmt.Add("TITLE", title))
	block := cmt.Marshal()
	require.NotEmpty(t, block.Data)

	var comment bytes.Buffer
	comment.WriteByte(3)
	comment.WriteString("vorbis")
	comment.Write(block.Data)
	comment.WriteByte(1)

	setup := []byte("fake-setup-header-bytes")
	headerPages := paginate([][]byte{comment.Bytes(), setup}, serial, 1, false)

	audioBody := []byte("audio-frame-data")
	audioSeq := uint32(1 + len(headerPages))
	audioPage := buildPage(0x4, serial, audioSeq, []byte{byte(len(audioBody))}, audioBody)

	var buf bytes.Buffer
	buf.Write(idPage)
	for _, p := range headerPages {
		buf.Write(p)
	}
	buf.Write(audioPage)
	return buf.Bytes()
}

func TestReadFromParsesVorbisStream(t *testing.T) {
	raw := buildVorbisStream(t, "Loveless")
	s, err := ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, Vorbis, s.Codec)
	assert.EqualValues(t, 2, s.Channels)
	assert.EqualValues(t, 44100, s.SampleRate)
	require.NotNil(t, s.Comments)

	tag, err := s.Split()
	require.NoError(t, err)
	assert.Equal(t, "Loveless", tag.Title())
}

func TestWriteToRoundTrip(t *testing.T) {
	raw := buildVorbisStream(t, "Loveless")
	s, err := ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)

	tag, err := s.Split()
	require.NoError(t, err)
	tag.SetTitle("Screamadelica")

	merged, err := Merge(s, tag)
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = WriteTo(merged, &out)
	require.NoError(t, err)

	again, err := ReadFrom(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	gotTag, err := again.Split()
	require.NoError(t, err)
	assert.Equal(t, "Screamadelica", gotTag.Title())
}

func TestPacketLacingExactMultipleOf255(t *testing.T) {
	entries := packetLacing(make([]byte, 255))
	require.Len(t, entries, 2)
	assert.EqualValues(t, 255, entries[0].value)
	assert.EqualValues(t, 0, entries[1].value)
}

func TestOggCRC32Deterministic(t *testing.T) {
	a := oggCRC32([]byte("hello ogg"))
	b := oggCRC32([]byte("hello ogg"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, oggCRC32([]byte("hello oGg")))
}
