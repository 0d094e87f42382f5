package probs

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func le32(n uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, n)
	return b
}

func le16(n uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, n)
	return b
}

func buildWavPackBlock(flags uint32, totalSamples, samples uint32, blockData []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("wvpk")
	rest := make([]byte, 0, 28)
	rest = append(rest, le32(uint32(24+len(blockData)))...) // block_size
	rest = append(rest, le16(0x407)...)                     // version
	rest = append(rest, 0, 0)                                // track number
	rest = append(rest, le32(totalSamples)...)
	rest = append(rest, 0, 0, 0, 0) // block index
	rest = append(rest, le32(samples)...)
	rest = append(rest, le32(flags)...)
	rest = append(rest, 0, 0, 0, 0) // crc
	buf.Write(rest)
	buf.Write(blockData)
	return buf.Bytes()
}

func TestReadWavPackSingleBlockStereo16(t *testing.T) {
	flags := uint32(wvFlagInitialBlock | wvFlagFinalBlock)
	flags |= 9 << 23          // sample-rate index 9 -> 44100
	flags |= (2 - 1) & 0x3    // bytes-per-sample = 2 -> 16 bit, no shift
	block := buildWavPackBlock(flags, 44100, 44100, []byte{0x01, 0x02, 0x03, 0x04})

	r := bytes.NewReader(block)
	props, err := ReadWavPack(r, int64(len(block)))
	require.NoError(t, err)
	assert.EqualValues(t, 44100, props.SampleRate)
	assert.EqualValues(t, 16, props.BitDepth)
	assert.EqualValues(t, 2, props.Channels)
	assert.True(t, props.Lossless)
	assert.InDelta(t, 1.0, props.Duration.Seconds(), 0.01)
}

func TestReadWavPackMonoHybrid(t *testing.T) {
	flags := uint32(wvFlagInitialBlock | wvFlagFinalBlock | wvFlagMono | wvFlagHybridCompression)
	flags |= 9 << 23
	flags |= 1 // bytes-per-sample = 2

	block := buildWavPackBlock(flags, 22050, 22050, nil)
	r := bytes.NewReader(block)
	props, err := ReadWavPack(r, int64(len(block)))
	require.NoError(t, err)
	assert.EqualValues(t, 1, props.Channels)
	assert.False(t, props.Lossless)
	assert.InDelta(t, 0.5, props.Duration.Seconds(), 0.01)
}

func buildAPEAudioModern(sampleRate, blocksPerFrame, finalFrameBlocks, totalFrames uint32, channels, bitsPerSample uint16) []byte {
	var buf bytes.Buffer
	buf.Write(le16(3990)) // version
	descriptor := make([]byte, 46)
	binary.LittleEndian.PutUint32(descriptor[2:6], 52) // descriptor_len == nominal, no extra skip
	buf.Write(descriptor)

	header := make([]byte, 24)
	// header[0:4] compression type + format flags, unused
	binary.LittleEndian.PutUint32(header[4:8], blocksPerFrame)
	binary.LittleEndian.PutUint32(header[8:12], finalFrameBlocks)
	binary.LittleEndian.PutUint32(header[12:16], totalFrames)
	binary.LittleEndian.PutUint16(header[16:18], bitsPerSample)
	binary.LittleEndian.PutUint16(header[18:20], channels)
	binary.LittleEndian.PutUint32(header[20:24], sampleRate)
	buf.Write(header)
	return buf.Bytes()
}

func TestReadAPEAudioModern(t *testing.T) {
	raw := buildAPEAudioModern(44100, 73728, 1000, 10, 2, 16)
	r := bytes.NewReader(raw)
	props, err := ReadAPEAudio(r, 123456, 123500)
	require.NoError(t, err)
	assert.EqualValues(t, 3990, props.Version)
	assert.EqualValues(t, 44100, props.SampleRate)
	assert.EqualValues(t, 16, props.BitDepth)
	assert.EqualValues(t, 2, props.Channels)
	assert.Greater(t, props.Duration.Seconds(), 0.0)
	assert.Greater(t, props.OverallBitrate, uint32(0))
}

func mpcSize(n uint64) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var out []byte
	for n > 0 {
		out = append([]byte{byte(n & 0x7F)}, out...)
		n >>= 7
	}
	for i := 0; i < len(out)-1; i++ {
		out[i] |= 0x80
	}
	return out
}

// buildMPCPacket encodes key+size+payload where size counts the whole
// packet including the key and the size field itself — a fixed point since
// the size field's own length can depend on the total it encodes.
func buildMPCPacket(key string, payload []byte) []byte {
	sizeLen := 1
	for {
		total := uint64(2 + sizeLen + len(payload))
		candidate := mpcSize(total)
		if len(candidate) == sizeLen {
			var buf bytes.Buffer
			buf.WriteString(key)
			buf.Write(candidate)
			buf.Write(payload)
			return buf.Bytes()
		}
		sizeLen = len(candidate)
	}
}

func TestReadMusepackSV8(t *testing.T) {
	shBody := make([]byte, 0, 10)
	shBody = append(shBody, 0, 0, 0, 0) // crc
	shBody = append(shBody, 8)          // stream version
	shBody = append(shBody, mpcSize(44100*2)...)
	shBody = append(shBody, mpcSize(0)...)
	flagsByte := byte(0) << 5 // rate index 0 -> 44100
	chanByte := byte((2 - 1) << 4)
	shBody = append(shBody, flagsByte, chanByte)

	var stream bytes.Buffer
	stream.Write(buildMPCPacket("SH", shBody))
	stream.Write(buildMPCPacket("SE", nil))

	props, err := ReadMusepackSV8(bytes.NewReader(stream.Bytes()), 50000)
	require.NoError(t, err)
	assert.EqualValues(t, 44100, props.SampleRate)
	assert.EqualValues(t, 2, props.Channels)
	assert.EqualValues(t, 8, props.StreamVersion)
	assert.InDelta(t, 2.0, props.Duration.Seconds(), 0.01)
}

func buildSV4to6Header(bitrate uint32, streamVersion uint32, maxBand, blockSize uint32, frameCount uint32) []byte {
	word0 := (bitrate&0x1FF)<<23 | (streamVersion&0x3FF)<<11 | (maxBand&0x1F)<<6 | (blockSize & 0x3F)
	words := make([]byte, 32)
	binary.LittleEndian.PutUint32(words[0:4], word0)
	binary.LittleEndian.PutUint32(words[4:8], frameCount)
	return words
}

func TestReadMusepackSV4to6(t *testing.T) {
	raw := buildSV4to6Header(0, 6, 10, 1, 1001)
	props, err := ReadMusepackSV4to6(bytes.NewReader(raw), 60000)
	require.NoError(t, err)
	assert.EqualValues(t, 6, props.StreamVersion)
	assert.EqualValues(t, 44100, props.SampleRate)
	assert.EqualValues(t, 2, props.Channels)
	assert.EqualValues(t, 1001, props.FrameCount)
	assert.Greater(t, props.Duration.Seconds(), 0.0)
}

func TestReadMusepackSV4to6RejectsBadVersion(t *testing.T) {
	raw := buildSV4to6Header(0, 9, 0, 1, 100)
	_, err := ReadMusepackSV4to6(bytes.NewReader(raw), 1000)
	assert.Error(t, err)
}

func buildDSF(sampleRate, sampleCount uint64, channels uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("DSD ")
	buf.Write(make([]byte, 24)) // chunk size, file size, metadata pointer

	var fmtBody bytes.Buffer
	fmtBody.Write(le32(1))                  // format version
	fmtBody.Write(le32(0))                  // format id
	fmtBody.Write(le32(1))                  // channel type (stereo)
	fmtBody.Write(le32(channels))           // channel count
	fmtBody.Write(le32(uint32(sampleRate))) // sampling frequency
	fmtBody.Write(le32(1))                  // bits per sample
	sampleCountBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(sampleCountBuf, sampleCount)
	fmtBody.Write(sampleCountBuf) // sample count
	fmtBody.Write(le32(4096))     // block size per channel
	fmtBody.Write(le32(0))        // reserved

	buf.WriteString("fmt ")
	sizeBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(sizeBuf, uint64(12+fmtBody.Len()))
	buf.Write(sizeBuf)
	buf.Write(fmtBody.Bytes())
	return buf.Bytes()
}

func TestReadDSF(t *testing.T) {
	raw := buildDSF(2822400, 2822400*2, 2)
	props, err := ReadDSF(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.EqualValues(t, 2822400, props.SampleRate)
	assert.InDelta(t, 2.0, props.Duration.Seconds(), 0.01)
}

func TestReadDSFRejectsBadMarker(t *testing.T) {
	_, err := ReadDSF(bytes.NewReader([]byte("XXXXXXXXXXXXXXXXXXXXXXXXXXXX")))
	assert.Error(t, err)
}
