// Package ape implements the APE v1/v2 tag engine (C6): footer/header
// discovery at end-of-stream, the item table codec, and split/merge with
// the neutral item.Tag.
//
// Grounded on dhowden-tag's end-of-stream footer scan pattern (id3v1.go
// does the same "TAG" trailer scan this package reuses before looking for
// APEv2) and on original_source/lofty's ape/header.rs field layout.
package ape

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/go-tagengine/tagengine/convert"
	"github.com/go-tagengine/tagengine/item"
	"github.com/go-tagengine/tagengine/picture"
	"github.com/pkg/errors"
)

const (
	preamble   = "APETAGEX"
	footerSize = 32
	id3v1Size  = 128
)

// ValueKind is the APE item's type tag (flags bits 1..2, §4.6).
type ValueKind int

const (
	KindText ValueKind = iota
	KindBinary
	KindLocator
)

// Item is one parsed APE tag entry.
type Item struct {
	Key      string
	Kind     ValueKind
	Text     string // valid when Kind == KindText or KindLocator
	Binary   []byte // valid when Kind == KindBinary
	ReadOnly bool
}

// Tag is the in-memory APE tag.
type Tag struct {
	Version   uint32 // 1000 or 2000
	HasHeader bool
	Items     []Item
}

// TagType implements tagengine.NativeTag.
func (t *Tag) TagType() item.TagType { return item.APE }

// Len implements tagengine.NativeTag.
func (t *Tag) Len() int { return len(t.Items) }

// IsEmpty implements tagengine.NativeTag.
func (t *Tag) IsEmpty() bool { return len(t.Items) == 0 }

type footer struct {
	version   uint32
	size      uint32 // items + footer (32 bytes); excludes any header
	itemCount uint32
	flags     uint32
}

const (
	flagHasHeader = 1 << 31
	flagIsHeader  = 1 << 29
	flagReadOnly  = 1 << 0
)

func parseFooter(b [footerSize]byte) (*footer, error) {
	if string(b[0:8]) != preamble {
		return nil, errors.New("ape: missing APETAGEX preamble")
	}
	return &footer{
		version:   binary.LittleEndian.Uint32(b[8:12]),
		size:      binary.LittleEndian.Uint32(b[12:16]),
		itemCount: binary.LittleEndian.Uint32(b[16:20]),
		flags:     binary.LittleEndian.Uint32(b[20:24]),
	}, nil
}

// ReadFrom locates and parses an APE tag at the end of the stream (after
// skipping a trailing ID3v1 tag, if present) per §4.6.
func ReadFrom(r io.ReadSeeker) (*Tag, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "ape: seeking to end")
	}

	tail := end
	var id3v1Buf [3]byte
	if end >= id3v1Size {
		if _, err := r.Seek(end-id3v1Size, io.SeekStart); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, id3v1Buf[:]); err != nil {
			return nil, err
		}
		if string(id3v1Buf[:]) == "TAG" {
			tail = end - id3v1Size
		}
	}

	if tail < footerSize {
		return nil, errors.New("ape: stream too short for a tag footer")
	}
	var footerBuf [footerSize]byte
	if _, err := r.Seek(tail-footerSize, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, footerBuf[:]); err != nil {
		return nil, err
	}
	ft, err := parseFooter(footerBuf)
	if err != nil {
		return nil, err
	}
	if ft.size < footerSize {
		return nil, errors.New("ape: tag size smaller than footer itself")
	}

	itemsStart := tail - int64(ft.size)
	if itemsStart < 0 {
		return nil, errors.New("ape: tag size overruns start of file")
	}
	itemsLen := int64(ft.size) - footerSize
	itemBuf := make([]byte, itemsLen)
	if _, err := r.Seek(itemsStart, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, itemBuf); err != nil {
		return nil, errors.Wrap(err, "ape: reading item table")
	}

	items, err := parseItems(itemBuf)
	if err != nil {
		return nil, err
	}

	return &Tag{
		Version:   ft.version,
		HasHeader: ft.flags&flagHasHeader != 0,
		Items:     items,
	}, nil
}

func parseItems(b []byte) ([]Item, error) {
	var items []Item
	for len(b) > 0 {
		if len(b) < 8 {
			return nil, errors.New("ape: truncated item header")
		}
		valueSize := binary.LittleEndian.Uint32(b[0:4])
		flags := binary.LittleEndian.Uint32(b[4:8])
		rest := b[8:]

		keyBytes, tail, err := codec.SplitTerminated(codec.Latin1, rest)
		if err != nil {
			return nil, errors.Wrap(err, "ape: reading item key")
		}
		key, err := codec.DecodeText(codec.Latin1, keyBytes, nil)
		if err != nil {
			return nil, err
		}
		if uint32(len(tail)) < valueSize {
			return nil, errors.New("ape: item value overruns item table")
		}
		value := tail[:valueSize]
		b = tail[valueSize:]

		kind := ValueKind((flags >> 1) & 0x3)
		it := Item{Key: key, Kind: kind, ReadOnly: flags&flagReadOnly != 0}
		switch kind {
		case KindBinary:
			it.Binary = append([]byte(nil), value...)
		default:
			text, err := codec.DecodeText(codec.UTF8, value, nil)
			if err != nil {
				return nil, err
			}
			it.Text = text
		}
		items = append(items, it)
	}
	return items, nil
}

func encodeItems(items []Item) []byte {
	var buf bytes.Buffer
	for _, it := range items {
		var value []byte
		switch it.Kind {
		case KindBinary:
			value = it.Binary
		default:
			value, _ = codec.EncodeText(codec.UTF8, it.Text, false)
		}
		var sizeBuf, flagsBuf [4]byte
		binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(value)))
		flags := uint32(it.Kind) << 1
		if it.ReadOnly {
			flags |= flagReadOnly
		}
		binary.LittleEndian.PutUint32(flagsBuf[:], flags)
		buf.Write(sizeBuf[:])
		buf.Write(flagsBuf[:])
		buf.WriteString(it.Key)
		buf.WriteByte(0)
		buf.Write(value)
	}
	return buf.Bytes()
}

func encodeFooterOrHeader(version uint32, size, itemCount uint32, hasHeader, isHeader bool) []byte {
	b := make([]byte, footerSize)
	copy(b[0:8], preamble)
	binary.LittleEndian.PutUint32(b[8:12], version)
	binary.LittleEndian.PutUint32(b[12:16], size)
	binary.LittleEndian.PutUint32(b[16:20], itemCount)
	var flags uint32
	if hasHeader {
		flags |= flagHasHeader
	}
	if isHeader {
		flags |= flagIsHeader
	}
	binary.LittleEndian.PutUint32(b[20:24], flags)
	return b
}

// WriteTo serializes the full APE tag (optional header + items + footer)
// to w.
func WriteTo(t *Tag, w io.Writer) (int64, error) {
	body := encodeItems(t.Items)
	tagSize := uint32(len(body)) + footerSize
	version := t.Version
	if version == 0 {
		version = 2000
	}

	var n int64
	if t.HasHeader {
		h := encodeFooterOrHeader(version, tagSize, uint32(len(t.Items)), true, true)
		wn, err := w.Write(h)
		n += int64(wn)
		if err != nil {
			return n, err
		}
	}
	wn, err := w.Write(body)
	n += int64(wn)
	if err != nil {
		return n, err
	}
	f := encodeFooterOrHeader(version, tagSize, uint32(len(t.Items)), t.HasHeader, false)
	wn, err = w.Write(f)
	n += int64(wn)
	return n, err
}

// --- Split (C15): ape.Tag -> item.Tag --------------------------------------

var fieldTable = convert.FieldTable{
	CaseInsensitive: true,
	Fields: map[item.Key]string{
		item.TrackTitle:   "Title",
		item.TrackArtist:  "Artist",
		item.AlbumTitle:   "Album",
		item.AlbumArtist:  "Album Artist",
		item.Composer:     "Composer",
		item.Copyright:    "Copyright",
		item.Publisher:    "Publisher",
		item.Genre:        "Genre",
		item.Comment:      "Comment",
		item.RecordingDate: "Year",
		item.ISRC:         "ISRC",
		item.Language:     "Language",
		item.Label:        "Label",
		item.EncodedBy:    "EncodedBy",
		item.Lyrics:       "Lyrics",
		item.Barcode:      "Barcode",
		item.CatalogNumber: "CatalogNumber",
		item.ReplayGainAlbumGain: "REPLAYGAIN_ALBUM_GAIN",
		item.ReplayGainAlbumPeak: "REPLAYGAIN_ALBUM_PEAK",
		item.ReplayGainTrackGain: "REPLAYGAIN_TRACK_GAIN",
		item.ReplayGainTrackPeak: "REPLAYGAIN_TRACK_PEAK",
		item.MusicBrainzTrackId:    "MUSICBRAINZ_TRACKID",
		item.MusicBrainzArtistId:   "MUSICBRAINZ_ARTISTID",
		item.MusicBrainzReleaseId:  "MUSICBRAINZ_ALBUMID",
	},
}

const (
	coverFrontKey = "Cover Art (front)"
	coverBackKey  = "Cover Art (back)"
)

// Split converts the native tag into the neutral item.Tag (§4.15): "Cover
// Art (*)" binary items become pictures via the APE picture adapter
// (§4.3), "Track"/"Disc" combined fields split per §4.4, everything else
// goes through the shared flat key/value conversion layer.
func (t *Tag) Split() (*item.Tag, error) {
	var pairs []convert.KV
	var trackField, discField string

	out := item.New(item.APE)
	for _, it := range t.Items {
		switch {
		case it.Kind == KindBinary && (it.Key == coverFrontKey || it.Key == coverBackKey):
			p, err := picture.DecodeAPE(it.Binary)
			if err != nil {
				return nil, errors.Wrapf(err, "ape: decoding %q", it.Key)
			}
			if it.Key == coverFrontKey {
				p.PicType = byte(picture.CoverFront)
			} else {
				p.PicType = byte(picture.CoverBack)
			}
			out.PushPicture(p)
		case it.Kind == KindBinary:
			out.Push(item.Raw(it.Key, item.NewBinary(it.Binary)))
		case equalFold(it.Key, "Track"):
			trackField = it.Text
		case equalFold(it.Key, "Disc"):
			discField = it.Text
		case it.Kind == KindLocator:
			out.Push(item.Raw(it.Key, item.NewLocator(it.Text)))
		default:
			pairs = append(pairs, convert.KV{Key: it.Key, Value: it.Text})
		}
	}

	flat := convert.Split(item.APE, pairs, fieldTable)
	for _, it := range flat.Items() {
		out.Push(it)
	}

	if trackField != "" {
		num, total := item.ParseNumberPair(trackField)
		if num != nil {
			out.SetTrack(*num, derefOr(total, 0))
		}
	}
	if discField != "" {
		num, total := item.ParseNumberPair(discField)
		if num != nil {
			out.SetDisc(*num, derefOr(total, 0))
		}
	}

	return out, nil
}

// Merge overlays tag's neutral items onto remainder (the native tag read
// before any edits, or a freshly zeroed Tag for a new file) and returns the
// resulting native tag, completing the §4.15 split/merge pair. Binary/raw
// items round-tripped from Split are written back verbatim; pictures are
// re-encoded via the APE adapter under their front/back cover keys.
func Merge(remainder *Tag, tag *item.Tag) *Tag {
	out := &Tag{Version: remainder.Version, HasHeader: remainder.HasHeader}

	rawKinds := map[string]item.ValueKind{}
	for _, it := range tag.Items() {
		if it.Key.IsUnknown() {
			rawKinds[it.Key.Unknown] = it.Value.Kind
		}
	}
	for _, kv := range convert.Merge(tag, fieldTable) {
		switch rawKinds[kv.Key] {
		case item.KindBinary:
			continue // written below with its bytes
		case item.KindLocator:
			out.Items = append(out.Items, Item{Key: kv.Key, Kind: KindLocator, Text: kv.Value})
		default:
			out.Items = append(out.Items, Item{Key: kv.Key, Kind: KindText, Text: kv.Value})
		}
	}
	if n, tl := tag.Track(); n > 0 {
		out.Items = append(out.Items, Item{Key: "Track", Kind: KindText, Text: item.FormatNumberPair(n, optTotal(tl))})
	}
	if n, tl := tag.Disc(); n > 0 {
		out.Items = append(out.Items, Item{Key: "Disc", Kind: KindText, Text: item.FormatNumberPair(n, optTotal(tl))})
	}
	for _, it := range tag.Items() {
		if it.Key.IsUnknown() && it.Value.Kind == item.KindBinary {
			out.Items = append(out.Items, Item{Key: it.Key.Unknown, Kind: KindBinary, Binary: it.Value.Binary})
		}
	}
	for i, p := range tag.Pictures() {
		key := coverFrontKey
		if i > 0 {
			key = coverBackKey
		}
		out.Items = append(out.Items, Item{Key: key, Kind: KindBinary, Binary: picture.EncodeAPE(p)})
	}
	return out
}

func optTotal(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func derefOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
