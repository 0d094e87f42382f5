package id3v1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildV11(title, artist, album, year, comment string, track, genre uint8) []byte {
	var buf bytes.Buffer
	buf.WriteString("TAG")
	buf.Write(padded(title, 30))
	buf.Write(padded(artist, 30))
	buf.Write(padded(album, 30))
	buf.Write(padded(year, 4))
	buf.Write(padded(comment, 28))
	buf.WriteByte(0)
	buf.WriteByte(track)
	buf.WriteByte(genre)
	return buf.Bytes()
}

func padded(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

func TestReadFromParsesV11Fields(t *testing.T) {
	data := buildV11("Loveless", "My Bloody Valentine", "Loveless", "1991", "great record", 1, 17)
	tag, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "Loveless", tag.Title)
	assert.Equal(t, "My Bloody Valentine", tag.Artist)
	assert.Equal(t, "1991", tag.Year)
	assert.EqualValues(t, 1, tag.Track)
	assert.EqualValues(t, 17, tag.Genre)
}

func TestReadFromRejectsMissingPreamble(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader(make([]byte, Size)))
	assert.Error(t, err)
}

func TestWriteToRoundTrips(t *testing.T) {
	tag := &Tag{Title: "Bleach", Artist: "Nirvana", Track: 4, Genre: 17}
	var out bytes.Buffer
	_, err := WriteTo(tag, &out)
	require.NoError(t, err)
	require.Len(t, out.Bytes(), Size)

	roundTrip, err := ReadFrom(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Bleach", roundTrip.Title)
	assert.EqualValues(t, 4, roundTrip.Track)
}

func TestSplitMapsGenre(t *testing.T) {
	tag := &Tag{Title: "Bleach", Genre: 17}
	neutral, err := tag.Split()
	require.NoError(t, err)
	assert.Equal(t, "Rock", neutral.Genre())
}

func TestMergeRoundTripsGenre(t *testing.T) {
	neutral, err := (&Tag{Genre: 17, Title: "Bleach"}).Split()
	require.NoError(t, err)
	merged := Merge(&Tag{}, neutral)
	assert.EqualValues(t, 17, merged.Genre)
	assert.Equal(t, "Bleach", merged.Title)
}
