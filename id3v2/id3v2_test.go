package id3v2

import (
	"bytes"
	"testing"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/go-tagengine/tagengine/picture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := &Header{Version: V2_4, Unsynchronisation: false, ExtendedHeader: false, Footer: false, Size: 1024}
	enc, err := EncodeHeader(h, h.Size)
	require.NoError(t, err)

	got, err := ReadHeader(bytes.NewReader(enc))
	require.NoError(t, err)
	assert.Equal(t, h.Version, got.Version)
	assert.Equal(t, h.Size, got.Size)
}

func TestFrameHeaderUpgrade22(t *testing.T) {
	assert.Equal(t, "TALB", upgradeID("TAL", V2_2))
	assert.Equal(t, "APIC", upgradeID("PIC", V2_2))
	assert.Equal(t, "XXX", upgradeID("XXX", V2_2)) // unmapped passes through
	assert.Equal(t, "TALB", upgradeID("TALB", V2_3))
}

func TestFrameHeaderRoundTripV24(t *testing.T) {
	flags := FrameFlags{TagAlterPreservation: true, DataLengthIndicator: true}
	enc, err := encodeFrameHeader("TIT2", 42, flags, V2_4)
	require.NoError(t, err)

	fh, err := readFrameHeader(bytes.NewReader(enc), V2_4)
	require.NoError(t, err)
	assert.Equal(t, "TIT2", fh.id)
	assert.Equal(t, uint32(42), fh.size)
	assert.True(t, fh.flags.TagAlterPreservation)
	assert.True(t, fh.flags.DataLengthIndicator)
}

func TestTextFrameRoundTrip(t *testing.T) {
	body, err := EncodeText(codec.UTF8, []string{"Screamadelica"}, false)
	require.NoError(t, err)

	_, values, err := DecodeText(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"Screamadelica"}, values)
}

func TestMultiValuedTextFrame(t *testing.T) {
	body, err := EncodeText(codec.UTF8, []string{"Rock", "Psychedelia"}, false)
	require.NoError(t, err)

	joined, values, err := DecodeText(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rock", "Psychedelia"}, values)
	assert.Equal(t, "Rock/Psychedelia", joined)
}

func TestUserTextRoundTrip(t *testing.T) {
	body, err := EncodeUserText(codec.UTF16BOM, "REPLAYGAIN_TRACK_GAIN", "-6.50 dB", false)
	require.NoError(t, err)

	desc, content, err := DecodeUserText(body)
	require.NoError(t, err)
	assert.Equal(t, "REPLAYGAIN_TRACK_GAIN", desc)
	assert.Equal(t, "-6.50 dB", content)
}

func TestCommentRoundTrip(t *testing.T) {
	body, err := EncodeComment(codec.UTF8, "eng", "", "a great tune", false)
	require.NoError(t, err)

	lang, desc, text, err := DecodeComment(body)
	require.NoError(t, err)
	assert.Equal(t, "eng", lang)
	assert.Equal(t, "", desc)
	assert.Equal(t, "a great tune", text)
}

func TestPopularimeterRoundTrip(t *testing.T) {
	body, err := EncodePopularimeter("user@example.com", 196, 12)
	require.NoError(t, err)

	email, rating, counter, err := DecodePopularimeter(body)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)
	assert.Equal(t, uint8(196), rating)
	assert.Equal(t, uint64(12), counter)
}

func TestTagReadWriteSplitRoundTrip(t *testing.T) {
	tag := &Tag{OriginalVersion: V2_4}
	tag.addFrame(Frame{ID: "TIT2", Value: Value{Kind: KindText, Text: "Loaded"}})
	tag.addFrame(Frame{ID: "TRCK", Value: Value{Kind: KindText, Text: "3/12"}})

	pic := picture.New(byte(picture.CoverFront), picture.MimeJPEG, "", []byte{0xFF, 0xD8, 0xFF, 0xE0})
	tag.addFrame(Frame{ID: "APIC", Value: Value{Kind: KindPicture, Picture: pic}})

	var buf bytes.Buffer
	_, err := WriteTo(tag, WriteOptions{PreferredPadding: 10}, &buf)
	require.NoError(t, err)

	reread, err := ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, reread.Len())

	neutral, err := reread.Split()
	require.NoError(t, err)
	assert.Equal(t, "Loaded", neutral.Title())
	num, total := neutral.Track()
	assert.Equal(t, 3, num)
	assert.Equal(t, 12, total)
	require.Len(t, neutral.Pictures(), 1)
}

func TestDuplicateFrameMergePolicy(t *testing.T) {
	tag := &Tag{OriginalVersion: V2_4}
	tag.addFrame(Frame{ID: "TIT2", Value: Value{Kind: KindText, Text: "First"}})
	tag.addFrame(Frame{ID: "TIT2", Value: Value{Kind: KindText, Text: "Second"}})
	require.Len(t, tag.Frames, 1)
	assert.Equal(t, "Second", tag.Frames[0].Value.Text)

	tag.addFrame(Frame{ID: "TXXX", Value: Value{Kind: KindUserText, Description: "A", Text: "1"}})
	tag.addFrame(Frame{ID: "TXXX", Value: Value{Kind: KindUserText, Description: "B", Text: "2"}})
	require.Len(t, tag.Frames, 3)
}
