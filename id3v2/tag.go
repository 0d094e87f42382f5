package id3v2

import (
	"bytes"
	"io"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/go-tagengine/tagengine/internal/id3genre"
	"github.com/go-tagengine/tagengine/item"
	"github.com/pkg/errors"
)

// Tag is the in-memory ID3v2 tag: every frame in on-disk order, plus the
// header it was read with. WriteTo takes only the version from it; the
// header flags are not written back.
type Tag struct {
	OriginalVersion Version
	Flags           Header
	Frames          []Frame
}

// TagType implements tagengine.NativeTag.
func (t *Tag) TagType() item.TagType { return item.ID3v2 }

// Len implements tagengine.NativeTag.
func (t *Tag) Len() int { return len(t.Frames) }

// IsEmpty implements tagengine.NativeTag.
func (t *Tag) IsEmpty() bool { return len(t.Frames) == 0 }

// addFrame applies the duplicate-merge policy (§4.5): frames with a
// discriminator coexist, keyed by (id, discriminator); all other frames are
// singular and a later read replaces the earlier one in place.
func (t *Tag) addFrame(f Frame) {
	disc := f.discriminator()
	if multiInstance[f.ID] {
		for i, existing := range t.Frames {
			if existing.ID == f.ID && existing.discriminator() == disc {
				t.Frames[i] = f
				return
			}
		}
		t.Frames = append(t.Frames, f)
		return
	}
	for i, existing := range t.Frames {
		if existing.ID == f.ID {
			t.Frames[i] = f
			return
		}
	}
	t.Frames = append(t.Frames, f)
}

// ReadFrom parses a complete ID3v2 tag (header, optional extended header,
// frames, trailing padding) from r, positioned at the "ID3" marker.
func ReadFrom(r io.Reader) (*Tag, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	body := make([]byte, h.Size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "id3v2: reading tag body")
	}

	// The whole-tag unsynchronisation scheme (v2.2/2.3) is undone once over
	// the entire body before any frame parsing; v2.4 instead unsynchronises
	// each frame independently and is handled in readFrame.
	if h.Unsynchronisation && h.Version != V2_4 {
		unsynced, err := codec.DecodeUnsynch(body)
		if err != nil {
			return nil, errors.Wrap(err, "id3v2: tag-level unsynchronisation")
		}
		body = unsynced
	}

	br := bytes.NewReader(body)
	if h.ExtendedHeader {
		if _, err := ReadExtendedHeader(br, h.Version); err != nil {
			return nil, errors.Wrap(err, "id3v2: reading extended header")
		}
	}

	tag := &Tag{OriginalVersion: h.Version, Flags: *h}
	for br.Len() > 0 {
		// Padding: a run of zero bytes (or a frame id starting with NUL)
		// terminates frame parsing for the rest of the tag body.
		peek, err := br.ReadByte()
		if err != nil {
			break
		}
		if peek == 0 {
			break
		}
		if err := br.UnreadByte(); err != nil {
			return nil, err
		}

		f, err := readFrame(br, h.Version)
		if err != nil && f == nil {
			// Unrecoverable framing error (short read, bad size): stop
			// rather than fail the whole tag, matching BestAttempt (§9).
			break
		}
		tag.addFrame(*f)
	}

	return tag, nil
}

// WriteTo serializes the tag, including header and zero-padding, to w.
func WriteTo(t *Tag, opts WriteOptions, w io.Writer) (int64, error) {
	v := t.OriginalVersion
	if v == 0 || v == V2_2 {
		v = V2_4
	}

	var body bytes.Buffer
	for _, f := range t.Frames {
		enc := codec.UTF8
		if v != V2_4 {
			enc = codec.UTF16BOM
		}
		var payload []byte
		var err error
		if f.Raw != nil && isUndecoded(f.Value) {
			payload = f.Raw
		} else {
			payload, err = encodeFrameBody(f.ID, f.Value, v, enc, true)
			if err != nil {
				return 0, errors.Wrapf(err, "id3v2: encoding frame %q", f.ID)
			}
		}
		fh, err := encodeFrameHeader(f.ID, uint32(len(payload)), f.Flags, v)
		if err != nil {
			return 0, err
		}
		body.Write(fh)
		body.Write(payload)
	}

	padding := int(opts.PreferredPadding)
	body.Write(make([]byte, padding))

	hdr, err := EncodeHeader(&Header{Version: v, Unsynchronisation: false}, uint32(body.Len()))
	if err != nil {
		return 0, err
	}

	n1, err := w.Write(hdr)
	if err != nil {
		return int64(n1), err
	}
	n2, err := w.Write(body.Bytes())
	return int64(n1 + n2), err
}

// isUndecoded reports whether v carries no decoded content, meaning the
// frame was stored as an encrypted or otherwise opaque body during read and
// should be written back from Raw rather than re-encoded from Value. Value
// contains map/slice fields and so cannot be compared with ==; this checks
// the scalar discriminants every decode path sets.
func isUndecoded(v Value) bool {
	return v.Kind == KindText && v.Text == "" && v.Description == "" &&
		v.Picture == nil && v.Owner == "" && v.Email == "" &&
		len(v.Pairs) == 0 && len(v.Channels) == 0 && len(v.SyncedText) == 0 &&
		len(v.Data) == 0
}

// WriteOptions configures WriteTo's padding (a local alias to avoid an
// import cycle with the root package; values are copied in by the
// dispatcher from tagengine.WriteOptions).
type WriteOptions struct {
	PreferredPadding uint32
}

// --- Split (C15): id3v2.Tag -> item.Tag -----------------------------------

// textFrameKeys maps singular text frame ids to their neutral key.
var textFrameKeys = map[string]item.Key{
	"TIT2": item.TrackTitle, "TIT3": item.TrackSubtitle, "TPE1": item.TrackArtist,
	"TALB": item.AlbumTitle, "TPE2": item.AlbumArtist, "TCOM": item.Composer,
	"TPE3": item.Conductor, "TEXT": item.Lyricist, "TPUB": item.Publisher,
	"TCOP": item.Copyright, "TENC": item.EncodedBy, "TSSE": item.EncoderSettings,
	"TKEY": item.InitialKey, "TLAN": item.Language, "TBPM": item.BPM,
	"TSRC": item.ISRC, "TDRC": item.RecordingDate, "TDOR": item.OriginalReleaseDate,
	"TDRL": item.ReleaseDate, "TOPE": item.OriginalArtist, "TOAL": item.OriginalAlbum,
	"TOLY": item.OriginalLyricist, "TOFN": item.OriginalFilename,
	"TFLT": item.FileType, "TOWN": item.FileOwner, "TDTG": item.TaggingTime,
	"TDEN": item.EncodingTime, "TLEN": item.Length, "MVNM": item.MovementName,
	"GRP1": item.Grouping, "TIT1": item.Grouping,
}

// Split converts the native tag into the neutral item.Tag (§4.15). Lossy by
// construction: COMM/USLT with a non-empty description, unknown 4-cc
// frames, and encrypted frames are retained as raw items rather than
// dropped, but do not populate a neutral key.
func (t *Tag) Split() (*item.Tag, error) {
	out := item.New(item.ID3v2)

	var trackNum, trackTotal, discNum, discTotal string

	for _, f := range t.Frames {
		if f.ID == "TRCK" {
			trackNum, trackTotal = splitSlashPair(f.Value.Text)
			continue
		}
		if f.ID == "TPOS" {
			num, total := splitSlashPair(f.Value.Text)
			discNum, discTotal = num, total
			continue
		}
		if f.ID == "TCON" {
			out.Insert(item.Known(item.Genre, item.NewText(id3genre.ParseTCON(f.Value.Text))))
			continue
		}
		if k, ok := textFrameKeys[f.ID]; ok {
			out.Insert(item.Known(k, item.NewText(f.Value.Text)))
			continue
		}
		if f.ID == "APIC" || f.ID == "PIC" {
			if f.Value.Picture != nil {
				out.PushPicture(f.Value.Picture)
			}
			continue
		}
		if f.ID == "COMM" {
			if f.Value.Description == "" {
				out.Insert(item.Known(item.Comment, item.NewText(f.Value.Text)))
			} else {
				out.Push(item.Raw("COMM:"+f.Value.Description, item.NewText(f.Value.Text)))
			}
			continue
		}
		if f.ID == "USLT" {
			if f.Value.Description == "" {
				out.Insert(item.Known(item.Lyrics, item.NewText(f.Value.Text)))
			} else {
				out.Push(item.Raw("USLT:"+f.Value.Description, item.NewText(f.Value.Text)))
			}
			continue
		}
		if f.ID == "TXXX" {
			if k, ok := userTextKeys[f.Value.Description]; ok {
				out.Insert(item.Known(k, item.NewText(f.Value.Text)))
			} else {
				out.Push(item.Raw("TXXX:"+f.Value.Description, item.NewText(f.Value.Text)))
			}
			continue
		}
		if len(f.ID) == 4 && f.ID[0] == 'W' && f.ID != "WXXX" {
			out.Push(item.Raw(f.ID, item.NewLocator(f.Value.Text)))
			continue
		}
		if f.ID == "POPM" {
			out.Insert(item.Known(item.Popularimeter, item.NewText(itoaOrEmpty(int(f.Value.Rating)))))
			continue
		}
		// Unknown/opaque: kept as a raw binary item so its body is not lost.
		data := f.Raw
		if data == nil {
			data = f.Value.Binary
		}
		out.Push(item.Raw(f.ID, item.NewBinary(data)))
	}

	if trackNum != "" || trackTotal != "" {
		out.Insert(item.Known(item.TrackNumber, item.NewText(trackNum)))
		if trackTotal != "" {
			out.Insert(item.Known(item.TrackTotal, item.NewText(trackTotal)))
		}
	}
	if discNum != "" || discTotal != "" {
		out.Insert(item.Known(item.DiscNumber, item.NewText(discNum)))
		if discTotal != "" {
			out.Insert(item.Known(item.DiscTotal, item.NewText(discTotal)))
		}
	}

	return out, nil
}

// userTextKeys maps well-known TXXX description strings (ReplayGain,
// MusicBrainz) to neutral keys (§4.15's documented TXXX special-casing).
var userTextKeys = map[string]item.Key{
	"REPLAYGAIN_ALBUM_GAIN":    item.ReplayGainAlbumGain,
	"REPLAYGAIN_ALBUM_PEAK":    item.ReplayGainAlbumPeak,
	"REPLAYGAIN_TRACK_GAIN":    item.ReplayGainTrackGain,
	"REPLAYGAIN_TRACK_PEAK":    item.ReplayGainTrackPeak,
	"MusicBrainz Album Id":     item.MusicBrainzReleaseId,
	"MusicBrainz Artist Id":    item.MusicBrainzArtistId,
	"MusicBrainz Release Group Id": item.MusicBrainzReleaseGroupId,
	"MusicBrainz Album Artist Id":  item.MusicBrainzReleaseArtistId,
	"Acoustid Id":              item.AcoustidId,
	"Acoustid Fingerprint":     item.AcoustidFingerprint,
}

func splitSlashPair(s string) (number, total string) {
	for i, r := range s {
		if r == '/' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

func itoaOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	const digits = "0123456789"
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%10]}, b...)
		n /= 10
	}
	return string(b)
}
