package tagengine

import (
	"bytes"
	"testing"

	"github.com/go-tagengine/tagengine/ape"
	"github.com/go-tagengine/tagengine/id3v1"
	"github.com/go-tagengine/tagengine/ioref"
	"github.com/go-tagengine/tagengine/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAPEFile(title string) []byte {
	audio := append([]byte("MAC "), make([]byte, 64)...)
	tag := &ape.Tag{Version: 2000, Items: []ape.Item{{Key: "Title", Kind: ape.KindText, Text: title}}}
	var buf bytes.Buffer
	if _, err := ape.WriteTo(tag, &buf); err != nil {
		panic(err)
	}
	return append(audio, buf.Bytes()...)
}

func buildID3v2ThenFLAC() []byte {
	var hdr bytes.Buffer
	hdr.WriteString("ID3")
	hdr.Write([]byte{4, 0, 0})       // version 2.4.0, flags 0
	hdr.Write([]byte{0, 0, 0, 10})   // synchsafe size: 10 bytes of body follow
	hdr.Write(make([]byte, 10))      // tag body (no frames)
	hdr.WriteString("fLaC")
	hdr.Write(make([]byte, 40))
	return hdr.Bytes()
}

func TestClassifyMagicBytes(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want FileType
	}{
		{"ape", buildAPEFile("x"), APE},
		{"flac", append([]byte("fLaC"), make([]byte, 40)...), FLAC},
		{"aiff", append([]byte("FORM"), make([]byte, 20)...), AIFF},
		{"wavpack", append([]byte("wvpk"), make([]byte, 20)...), WavPack},
		{"wav", append(append([]byte("RIFF"), 0, 0, 0, 0), []byte("WAVE")...), WAV},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := ioref.NewMemFile(tc.data)
			ft, err := Classify(f)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ft)
		})
	}
}

func TestClassifySkipsLeadingID3v2(t *testing.T) {
	f := ioref.NewMemFile(buildID3v2ThenFLAC())
	ft, err := Classify(f)
	require.NoError(t, err)
	assert.Equal(t, FLAC, ft)
}

func TestReadWriteRemoveAPETagRoundTrip(t *testing.T) {
	f := ioref.NewMemFile(buildAPEFile("Loveless"))

	tf, err := ReadFrom(f, DefaultParseOptions())
	require.NoError(t, err)
	require.Equal(t, APE, tf.Type)

	apeTag, ok := tf.Native(item.APE).(*ape.Tag)
	require.True(t, ok)
	apeTag.Items = append(apeTag.Items, ape.Item{Key: "Artist", Kind: ape.KindText, Text: "My Bloody Valentine"})

	require.NoError(t, WriteTo(f, apeTag, DefaultWriteOptions()))

	tf2, err := ReadFrom(f, DefaultParseOptions())
	require.NoError(t, err)
	apeTag2, ok := tf2.Native(item.APE).(*ape.Tag)
	require.True(t, ok)
	var sawArtist bool
	for _, it := range apeTag2.Items {
		if it.Key == "Artist" {
			sawArtist = true
			assert.Equal(t, "My Bloody Valentine", it.Text)
		}
	}
	assert.True(t, sawArtist)

	require.NoError(t, RemoveFrom(f, item.APE))

	tf3, err := ReadFrom(f, DefaultParseOptions())
	require.NoError(t, err)
	assert.Nil(t, tf3.Native(item.APE))
}

func TestWriteToAppendsID3v1AfterExistingAPETag(t *testing.T) {
	f := ioref.NewMemFile(buildAPEFile("x"))

	require.NoError(t, WriteTo(f, &id3v1.Tag{Title: "Bleach", Artist: "Nirvana", Track: 4, Genre: 17}, DefaultWriteOptions()))

	tf, err := ReadFrom(f, DefaultParseOptions())
	require.NoError(t, err)
	assert.Equal(t, APE, tf.Type)

	v1, ok := tf.Native(item.ID3v1).(*id3v1.Tag)
	require.True(t, ok)
	assert.Equal(t, "Bleach", v1.Title)
	assert.EqualValues(t, 4, v1.Track)

	// The original APE tag must still be intact alongside the new ID3v1 one.
	_, ok = tf.Native(item.APE).(*ape.Tag)
	assert.True(t, ok)
}
