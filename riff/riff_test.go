package riff

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func le32(n uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, n)
	return b
}

func buildWAV(title string) []byte {
	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:2], 1) // PCM
	binary.LittleEndian.PutUint16(fmtChunk[2:4], 2) // channels
	binary.LittleEndian.PutUint32(fmtChunk[4:8], 44100)
	binary.LittleEndian.PutUint32(fmtChunk[8:12], 176400)
	binary.LittleEndian.PutUint16(fmtChunk[12:14], 4)
	binary.LittleEndian.PutUint16(fmtChunk[14:16], 16)

	dataChunk := []byte("abcd")

	inam := append([]byte(title), 0)
	var info bytes.Buffer
	info.WriteString("INFO")
	info.WriteString("INAM")
	info.Write(le32(uint32(len(inam))))
	info.Write(inam)

	var body bytes.Buffer
	body.WriteString("fmt ")
	body.Write(le32(uint32(len(fmtChunk))))
	body.Write(fmtChunk)
	body.WriteString("data")
	body.Write(le32(uint32(len(dataChunk))))
	body.Write(dataChunk)
	body.WriteString("LIST")
	body.Write(le32(uint32(info.Len())))
	body.Write(info.Bytes())

	var out bytes.Buffer
	out.WriteString("RIFF")
	out.Write(le32(uint32(4 + body.Len())))
	out.WriteString("WAVE")
	out.Write(body.Bytes())
	return out.Bytes()
}

func buildAIFF(name string) []byte {
	rate, err := codec.EncodeExtended80(44100)
	if err != nil {
		panic(err)
	}
	comm := make([]byte, 18)
	binary.BigEndian.PutUint16(comm[0:2], 1)
	binary.BigEndian.PutUint32(comm[2:6], 44100) // sample frames
	binary.BigEndian.PutUint16(comm[6:8], 16)
	copy(comm[8:18], rate[:])

	nameChunk := []byte(name)

	var body bytes.Buffer
	body.WriteString("COMM")
	body.Write(be32(uint32(len(comm))))
	body.Write(comm)
	body.WriteString("NAME")
	body.Write(be32(uint32(len(nameChunk))))
	body.Write(nameChunk)
	if len(nameChunk)%2 == 1 {
		body.WriteByte(0)
	}

	var out bytes.Buffer
	out.WriteString("FORM")
	out.Write(be32(uint32(4 + body.Len())))
	out.WriteString("AIFF")
	out.Write(body.Bytes())
	return out.Bytes()
}

func be32(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func TestReadFromParsesWAVInfo(t *testing.T) {
	raw := buildWAV("Loveless")
	s, err := ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, WAV, s.Form)
	assert.EqualValues(t, 2, s.Channels)
	assert.EqualValues(t, 44100, s.SampleRate)
	assert.EqualValues(t, 16, s.BitsPerSample)
	require.NotNil(t, s.Info)

	tag, err := s.Info.Split()
	require.NoError(t, err)
	assert.Equal(t, "Loveless", tag.Title())
}

func TestReadFromParsesAIFFComm(t *testing.T) {
	raw := buildAIFF("Screamadelica")
	s, err := ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, AIFF, s.Form)
	assert.EqualValues(t, 1, s.Channels)
	assert.EqualValues(t, 44100, s.SampleRate)
	assert.EqualValues(t, 16, s.BitsPerSample)
	require.NotNil(t, s.Text)

	tag, err := s.Text.Split()
	require.NoError(t, err)
	assert.Equal(t, "Screamadelica", tag.Title())
}

func TestWriteToWAVRoundTrip(t *testing.T) {
	raw := buildWAV("Loveless")
	s, err := ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)

	tag, err := s.Info.Split()
	require.NoError(t, err)
	tag.SetTitle("Nowhere")

	s.Info = Merge(s.Info, tag)

	var out bytes.Buffer
	_, err = WriteTo(s, &out)
	require.NoError(t, err)

	again, err := ReadFrom(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	gotTag, err := again.Info.Split()
	require.NoError(t, err)
	assert.Equal(t, "Nowhere", gotTag.Title())
}

func TestReadFromRejectsBadMarker(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader([]byte("XXXXxxxxXXXX")))
	assert.Error(t, err)
}
