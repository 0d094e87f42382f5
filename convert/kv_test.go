package convert

import (
	"testing"

	"github.com/go-tagengine/tagengine/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTable = FieldTable{
	Fields: map[item.Key]string{
		item.TrackTitle:  "TITLE",
		item.TrackArtist: "ARTIST",
	},
	CaseInsensitive: true,
}

func TestSplitMergeRoundTrip(t *testing.T) {
	pairs := []KV{
		{Key: "title", Value: "Loveless"},
		{Key: "VENDOR_SPECIFIC", Value: "x"},
	}
	tag := Split(item.VorbisComments, pairs, testTable)
	require.Equal(t, "Loveless", tag.Title())

	back := Merge(tag, testTable)
	require.Len(t, back, 2)
	assert.Equal(t, "TITLE", back[0].Key)
	assert.Equal(t, "VENDOR_SPECIFIC", back[1].Key)
}
