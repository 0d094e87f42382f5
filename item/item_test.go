package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(n int) *int { return &n }

func TestParseNumberPair(t *testing.T) {
	cases := []struct {
		in          string
		number, tot *int
	}{
		{"1/2", ptr(1), ptr(2)},
		{"010/011", ptr(10), ptr(11)},
		{" 1 / 2 ", ptr(1), ptr(2)},
		{"1//2", nil, nil},
		{"a/b", nil, nil},
		{"5", ptr(5), nil},
	}
	for _, c := range cases {
		n, total := ParseNumberPair(c.in)
		if c.number == nil {
			assert.Nil(t, n, "input %q", c.in)
		} else {
			assert.Equal(t, *c.number, *n, "input %q", c.in)
		}
		if c.tot == nil {
			assert.Nil(t, total, "input %q", c.in)
		} else {
			assert.Equal(t, *c.tot, *total, "input %q", c.in)
		}
	}
}

func TestTagTrackDisc(t *testing.T) {
	tag := New(VorbisComments)
	tag.SetTrack(3, 12)
	n, total := tag.Track()
	assert.Equal(t, 3, n)
	assert.Equal(t, 12, total)

	tag.SetDisc(1, 0)
	n, total = tag.Disc()
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, total)
}

func TestTagInsertReplaces(t *testing.T) {
	tag := New(ID3v2)
	tag.Insert(Known(TrackTitle, NewText("a")))
	tag.Insert(Known(TrackTitle, NewText("b")))
	assert.Equal(t, 1, tag.Len())
	assert.Equal(t, "b", tag.Title())
}
