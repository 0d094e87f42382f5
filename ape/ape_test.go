package ape

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemTableRoundTrip(t *testing.T) {
	items := []Item{
		{Key: "Title", Kind: KindText, Text: "Screamadelica"},
		{Key: "Track", Kind: KindText, Text: "3"},
	}
	b := encodeItems(items)
	got, err := parseItems(b)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Screamadelica", got[0].Text)
	assert.Equal(t, "3", got[1].Text)
}

func TestTagReadWriteRoundTrip(t *testing.T) {
	tag := &Tag{Version: 2000, Items: []Item{
		{Key: "Title", Kind: KindText, Text: "Loveless"},
		{Key: "Artist", Kind: KindText, Text: "My Bloody Valentine"},
	}}

	var buf bytes.Buffer
	_, err := WriteTo(tag, &buf)
	require.NoError(t, err)

	r := bytes.NewReader(buf.Bytes())
	got, err := ReadFrom(r)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Loveless", got.Items[0].Text)

	neutral, err := got.Split()
	require.NoError(t, err)
	assert.Equal(t, "Loveless", neutral.Title())
	assert.Equal(t, "My Bloody Valentine", neutral.Artist())
}

func TestTagWithTrailingID3v1(t *testing.T) {
	tag := &Tag{Version: 2000, Items: []Item{
		{Key: "Title", Kind: KindText, Text: "X"},
	}}
	var buf bytes.Buffer
	_, err := WriteTo(tag, &buf)
	require.NoError(t, err)
	buf.Write(append([]byte("TAG"), make([]byte, 125)...))

	r := bytes.NewReader(buf.Bytes())
	got, err := ReadFrom(r)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "X", got.Items[0].Text)
}
