package flac

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamInfoBlock() []byte {
	b := make([]byte, 34)
	b[0], b[1] = 0x10, 0x00 // min block size
	b[2], b[3] = 0x10, 0x00 // max block size
	// sample rate 44100 (20 bits), channels 2 (3 bits), bps 16 (5 bits),
	// total samples 0 (36 bits), packed big-endian into bytes 10..17
	bits := uint64(44100)<<44 | uint64(1)<<41 | uint64(15)<<36
	for i := 0; i < 8; i++ {
		b[10+i] = byte(bits >> (56 - 8*uint(i)))
	}
	return b
}

func buildFLAC(extra ...[]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("fLaC")

	blocks := append([][]byte{streamInfoBlock()}, extra...)
	for i, body := range blocks {
		last := i == len(blocks)-1
		typ := byte(0)
		if i > 0 {
			typ = 1 // padding placeholder, type doesn't matter for this fixture
		}
		if last {
			typ |= 0x80
		}
		size := len(body)
		buf.WriteByte(typ)
		buf.WriteByte(byte(size >> 16))
		buf.WriteByte(byte(size >> 8))
		buf.WriteByte(byte(size))
		buf.Write(body)
	}
	return buf.Bytes()
}

func TestReadFromParsesStreamInfo(t *testing.T) {
	raw := buildFLAC()
	s, err := ReadFrom(bytes.NewReader(raw), true)
	require.NoError(t, err)
	assert.EqualValues(t, 44100, s.Info.SampleRate)
	assert.EqualValues(t, 2, s.Info.Channels)
	assert.EqualValues(t, 16, s.Info.BitsPerSample)
}

func TestReadFromRejectsMissingMarker(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader([]byte("XXXX")), true)
	assert.Error(t, err)
}

func TestReadFromRejectsShortStreamInfo(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.WriteByte(0x80) // last block, type STREAMINFO
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.WriteByte(10) // size 10, below the 18-byte minimum
	buf.Write(make([]byte, 10))

	_, err := ReadFrom(bytes.NewReader(buf.Bytes()), true)
	assert.Error(t, err)
}
