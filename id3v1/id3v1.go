// Package id3v1 implements the ID3v1/ID3v1.1 tag engine: a fixed 128-byte
// trailer of Latin-1 fields, the "TAG" magic at its head, and the ID3v1.1
// track-number convention (a trailing NUL before the track byte in the
// comment field).
//
// Grounded on ape.go's end-of-stream "TAG" scan (ReadFrom here is the same
// shape, minus the APEv2 footer step) and on other_examples/id3v1.go's
// fixed-width field layout and genre-byte lookup, restructured around this
// module's codec.DecodeText/StripTrailingNUL helpers and the shared
// internal/id3genre table instead of a private genre slice.
package id3v1

import (
	"io"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/go-tagengine/tagengine/internal/id3genre"
	"github.com/go-tagengine/tagengine/item"
	"github.com/pkg/errors"
)

const Size = 128

// Tag is the in-memory ID3v1 tag. Track is 0 when the file predates
// ID3v1.1 (no zero-byte/track-byte convention present in the comment
// field).
type Tag struct {
	Title   string
	Artist  string
	Album   string
	Year    string
	Comment string
	Track   uint8
	Genre   uint8
}

// TagType implements tagengine.NativeTag.
func (t *Tag) TagType() item.TagType { return item.ID3v1 }

// Len implements tagengine.NativeTag: ID3v1 has no variable item count, so
// this reports the number of non-empty fixed fields.
func (t *Tag) Len() int {
	n := 0
	for _, s := range []string{t.Title, t.Artist, t.Album, t.Year, t.Comment} {
		if s != "" {
			n++
		}
	}
	if t.Track > 0 {
		n++
	}
	if t.Genre != 0xFF {
		n++
	}
	return n
}

// IsEmpty implements tagengine.NativeTag.
func (t *Tag) IsEmpty() bool { return t.Len() == 0 }

// ReadFrom locates and parses a 128-byte ID3v1 tag at the very end of the
// stream.
func ReadFrom(r io.ReadSeeker) (*Tag, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "id3v1: seeking to end")
	}
	if end < Size {
		return nil, errors.New("id3v1: stream too short for a tag")
	}
	buf := make([]byte, Size)
	if _, err := r.Seek(end-Size, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "id3v1: reading trailer")
	}
	if string(buf[0:3]) != "TAG" {
		return nil, errors.New("id3v1: missing TAG preamble")
	}

	title := fixedField(buf[3:33])
	artist := fixedField(buf[33:63])
	album := fixedField(buf[63:93])
	year := fixedField(buf[93:97])
	commentField := buf[97:127]
	genre := buf[127]

	var comment string
	var track uint8
	if commentField[28] == 0 && commentField[29] != 0 {
		comment = fixedField(commentField[:28])
		track = commentField[29]
	} else {
		comment = fixedField(commentField)
	}

	return &Tag{
		Title: title, Artist: artist, Album: album, Year: year,
		Comment: comment, Track: track, Genre: genre,
	}, nil
}

func fixedField(b []byte) string {
	s, err := codec.DecodeText(codec.Latin1, b, nil)
	if err != nil {
		return ""
	}
	return codec.StripTrailingNUL(s)
}

// WriteTo serializes t as a 128-byte ID3v1.1 tag (a Track > 0 always uses
// the ID3v1.1 comment-field convention; Track == 0 fills the full 30-byte
// comment field per classic ID3v1).
func WriteTo(t *Tag, w io.Writer) (int64, error) {
	buf := make([]byte, Size)
	copy(buf[0:3], "TAG")
	putFixed(buf[3:33], t.Title)
	putFixed(buf[33:63], t.Artist)
	putFixed(buf[63:93], t.Album)
	putFixed(buf[93:97], t.Year)
	if t.Track > 0 {
		putFixed(buf[97:125], t.Comment)
		buf[125] = 0
		buf[126] = t.Track
	} else {
		putFixed(buf[97:127], t.Comment)
	}
	buf[127] = t.Genre

	n, err := w.Write(buf)
	return int64(n), err
}

func putFixed(dst []byte, s string) {
	enc, err := codec.EncodeText(codec.Latin1, s, false)
	if err != nil {
		return
	}
	copy(dst, enc)
}

// Split converts the native tag into the neutral item.Tag (§4.15): the
// genre byte maps through the shared ID3v1 genre table, Track == 0 is
// treated as absent (classic ID3v1 carries no track number at all).
func (t *Tag) Split() (*item.Tag, error) {
	out := item.New(item.ID3v1)
	out.SetTitle(t.Title)
	out.SetArtist(t.Artist)
	out.SetAlbum(t.Album)
	out.SetYear(t.Year)
	out.SetComment(t.Comment)
	if t.Track > 0 {
		out.SetTrack(int(t.Track), 0)
	}
	if name := id3genre.Name(t.Genre); name != "" {
		out.SetGenre(name)
	}
	return out, nil
}

// Merge builds a native tag from tag's neutral items, completing the §4.15
// split/merge pair. Every ID3v1 field has a neutral counterpart, so
// remainder is not consulted. Genre names with no match in the fixed ID3v1
// table fall back to 0xFF ("unknown"), the conventional ID3v1 sentinel.
func Merge(remainder *Tag, tag *item.Tag) *Tag {
	out := &Tag{Genre: 0xFF}
	out.Title = tag.Title()
	out.Artist = tag.Artist()
	out.Album = tag.Album()
	out.Year = tag.Year()
	out.Comment = tag.Comment()
	if n, _ := tag.Track(); n > 0 && n <= 255 {
		out.Track = uint8(n)
	}
	if genre := tag.Genre(); genre != "" {
		for i, name := range id3genre.Table {
			if name == genre {
				out.Genre = uint8(i)
				break
			}
		}
	}
	return out
}
