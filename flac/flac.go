// Package flac implements the FLAC METADATA_BLOCK engine (C9): the
// "fLaC" marker plus block stream, STREAMINFO audio-properties decode, and
// the VORBIS_COMMENT/PICTURE block codecs via the go-flac family of
// packages.
//
// Grounded on dhowden-tag's flac.go for the overall "fLaC marker then block
// loop" shape; the block-body codecs for VORBIS_COMMENT and PICTURE are
// delegated to github.com/go-flac/flacvorbis and github.com/go-flac/
// flacpicture instead of dhowden-tag's own hand-rolled decode, since both
// are in the retrieval pack's dependency set and this is their natural
// home (§1.2 of SPEC_FULL.md).
package flac

import (
	"encoding/binary"
	"io"

	goflac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-tagengine/tagengine/convert"
	"github.com/go-tagengine/tagengine/item"
	"github.com/go-tagengine/tagengine/picture"
	"github.com/pkg/errors"
)

const marker = "fLaC"

// FieldTable is the Vorbis-comment key convention (RFC-style recommended
// field names), shared with package ogg since both engines carry the
// same comment-block codec.
var FieldTable = convert.FieldTable{
	CaseInsensitive: true,
	Fields: map[item.Key]string{
		item.TrackTitle:          "TITLE",
		item.TrackArtist:         "ARTIST",
		item.AlbumTitle:          "ALBUM",
		item.AlbumArtist:         "ALBUMARTIST",
		item.Composer:            "COMPOSER",
		item.Copyright:           "COPYRIGHT",
		item.Publisher:           "ORGANIZATION",
		item.Genre:               "GENRE",
		item.Comment:             "COMMENT",
		item.RecordingDate:       "DATE",
		item.ISRC:                "ISRC",
		item.Language:            "LANGUAGE",
		item.Label:               "LABEL",
		item.EncodedBy:           "ENCODED-BY",
		item.Lyrics:              "LYRICS",
		item.Barcode:             "BARCODE",
		item.CatalogNumber:       "CATALOGNUMBER",
		item.ReplayGainAlbumGain: "REPLAYGAIN_ALBUM_GAIN",
		item.ReplayGainAlbumPeak: "REPLAYGAIN_ALBUM_PEAK",
		item.ReplayGainTrackGain: "REPLAYGAIN_TRACK_GAIN",
		item.ReplayGainTrackPeak: "REPLAYGAIN_TRACK_PEAK",
		item.MusicBrainzTrackId:   "MUSICBRAINZ_TRACKID",
		item.MusicBrainzArtistId:  "MUSICBRAINZ_ARTISTID",
		item.MusicBrainzReleaseId: "MUSICBRAINZ_ALBUMID",
	},
}

const (
	trackNumberKey = "TRACKNUMBER"
	trackTotalKey  = "TRACKTOTAL"
	discNumberKey  = "DISCNUMBER"
	discTotalKey   = "DISCTOTAL"
)

// StreamInfo is the mandatory first METADATA_BLOCK (§4.9).
type StreamInfo struct {
	MinBlockSize  uint16
	MaxBlockSize  uint16
	MinFrameSize  uint32
	MaxFrameSize  uint32
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
	TotalSamples  uint64
	MD5           [16]byte
}

// Stream is the parsed FLAC metadata stream: STREAMINFO plus every other
// block, with the Vorbis-comment and picture blocks additionally decoded.
type Stream struct {
	Info     StreamInfo
	Blocks   []*goflac.MetaDataBlock
	Comments *flacvorbis.MetaDataBlockVorbisComment // nil if absent
	Pictures []*flacpicture.MetadataBlockPicture
}

// TagType implements tagengine.NativeTag (the Vorbis-comment block is this
// format's only tag-bearing block).
func (s *Stream) TagType() item.TagType { return item.VorbisComments }

// Len implements tagengine.NativeTag.
func (s *Stream) Len() int {
	if s.Comments == nil {
		return 0
	}
	return len(s.Comments.Comments)
}

// IsEmpty implements tagengine.NativeTag.
func (s *Stream) IsEmpty() bool { return s.Len() == 0 && len(s.Pictures) == 0 }

// ReadFrom parses the FLAC metadata stream from r, positioned at the
// "fLaC" marker.
func ReadFrom(r io.Reader, strictDuplicateComments bool) (*Stream, error) {
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, errors.Wrap(err, "flac: reading marker")
	}
	if string(m[:]) != marker {
		return nil, errors.New("flac: missing \"fLaC\" marker")
	}

	s := &Stream{}
	sawStreamInfo := false
	for {
		var hdr [4]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, errors.Wrap(err, "flac: reading block header")
		}
		isLast := hdr[0]&0x80 != 0
		blockType := hdr[0] &^ 0x80
		size := uint32(hdr[1])<<16 | uint32(hdr[2])<<8 | uint32(hdr[3])

		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, errors.Wrap(err, "flac: reading block body")
		}

		block := &goflac.MetaDataBlock{
			Type:   goflac.MetaDataBlockType(blockType),
			Length: size,
			Data:   data,
			IsLast: isLast,
		}

		switch goflac.MetaDataBlockType(blockType) {
		case goflac.StreamInfo:
			if !sawStreamInfo && len(data) < 18 {
				return nil, errors.New("flac: STREAMINFO block shorter than 18 bytes")
			}
			sawStreamInfo = true
			s.Info = parseStreamInfo(data)
		case goflac.VorbisComment:
			if s.Comments != nil && !strictDuplicateComments {
				// lenient mode: last VORBIS_COMMENT wins (§3's FLAC invariant)
			} else if s.Comments != nil {
				return nil, errors.New("flac: duplicate VORBIS_COMMENT block")
			}
			cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				return nil, errors.Wrap(err, "flac: parsing VORBIS_COMMENT")
			}
			s.Comments = cmt
		case goflac.Picture:
			pic, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err != nil {
				return nil, errors.Wrap(err, "flac: parsing PICTURE block")
			}
			s.Pictures = append(s.Pictures, pic)
		}

		s.Blocks = append(s.Blocks, block)
		if isLast {
			break
		}
	}
	if !sawStreamInfo {
		return nil, errors.New("flac: stream has no STREAMINFO block")
	}
	return s, nil
}

func parseStreamInfo(b []byte) StreamInfo {
	var si StreamInfo
	si.MinBlockSize = binary.BigEndian.Uint16(b[0:2])
	si.MaxBlockSize = binary.BigEndian.Uint16(b[2:4])
	si.MinFrameSize = uint32(b[4])<<16 | uint32(b[5])<<8 | uint32(b[6])
	si.MaxFrameSize = uint32(b[7])<<16 | uint32(b[8])<<8 | uint32(b[9])

	bits := binary.BigEndian.Uint64(b[10:18])
	si.SampleRate = uint32(bits >> 44)
	si.Channels = uint8((bits>>41)&0x7) + 1
	si.BitsPerSample = uint8((bits>>36)&0x1F) + 1
	si.TotalSamples = bits & 0xFFFFFFFFF
	copy(si.MD5[:], b[18:])
	return si
}

// WriteTo serializes the "fLaC" marker and every block in s.Blocks, with
// the Vorbis-comment and picture blocks re-marshaled from s.Comments/
// s.Pictures if present, to w.
func WriteTo(s *Stream, w io.Writer) (int64, error) {
	var n int64
	wn, err := w.Write([]byte(marker))
	n += int64(wn)
	if err != nil {
		return n, err
	}

	blocks := rebuildBlocks(s)
	for i, b := range blocks {
		isLast := i == len(blocks)-1
		hdr := [4]byte{byte(b.Type), byte(b.Length >> 16), byte(b.Length >> 8), byte(b.Length)}
		if isLast {
			hdr[0] |= 0x80
		}
		wn, err := w.Write(hdr[:])
		n += int64(wn)
		if err != nil {
			return n, err
		}
		wn, err = w.Write(b.Data)
		n += int64(wn)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func rebuildBlocks(s *Stream) []*goflac.MetaDataBlock {
	var out []*goflac.MetaDataBlock
	for _, b := range s.Blocks {
		switch b.Type {
		case goflac.VorbisComment, goflac.Picture:
			continue // rebuilt below from the decoded, possibly-edited form
		default:
			out = append(out, b)
		}
	}
	if s.Comments != nil {
		b := s.Comments.Marshal()
		out = append(out, &b)
	}
	for _, p := range s.Pictures {
		b := p.Marshal()
		out = append(out, &b)
	}
	for _, b := range out {
		b.IsLast = false
	}
	return out
}

// --- Split (C15): Stream -> item.Tag ---------------------------------------

// Split converts the Vorbis-comment block (if any) plus every PICTURE
// block into the neutral item.Tag. TRACKNUMBER/TRACKTOTAL and
// DISCNUMBER/DISCTOTAL are combined into the neutral track/disc pair;
// everything else goes through the shared flat key/value layer.
func (s *Stream) Split() (*item.Tag, error) {
	out := item.New(item.VorbisComments)

	var pairs []convert.KV
	var trackNum, trackTotal, discNum, discTotal string
	if s.Comments != nil {
		for _, c := range s.Comments.Comments {
			key, value, ok := splitComment(c)
			if !ok {
				continue
			}
			switch {
			case equalFold(key, trackNumberKey):
				trackNum = value
			case equalFold(key, trackTotalKey):
				trackTotal = value
			case equalFold(key, discNumberKey):
				discNum = value
			case equalFold(key, discTotalKey):
				discTotal = value
			default:
				pairs = append(pairs, convert.KV{Key: key, Value: value})
			}
		}
	}

	flat := convert.Split(item.VorbisComments, pairs, FieldTable)
	for _, it := range flat.Items() {
		out.Push(it)
	}
	if trackNum != "" {
		if n, err := parseDigits(trackNum); err == nil {
			total, _ := parseDigits(trackTotal)
			out.SetTrack(n, total)
		}
	}
	if discNum != "" {
		if n, err := parseDigits(discNum); err == nil {
			total, _ := parseDigits(discTotal)
			out.SetDisc(n, total)
		}
	}

	for _, p := range s.Pictures {
		out.PushPicture(&picture.Picture{
			PicType:     byte(p.PictureType),
			MimeType:    picture.MimeType(p.MimeType),
			Description: p.Description,
			Data:        p.ImageData,
		})
	}
	return out, nil
}

// Merge overlays tag's neutral items onto remainder (the native stream
// read before any edits) and returns the resulting Stream, completing the
// split/merge pair for the Vorbis-comment block this format carries.
func Merge(remainder *Stream, tag *item.Tag) (*Stream, error) {
	out := &Stream{Info: remainder.Info, Blocks: remainder.Blocks}

	vendor := ""
	if remainder.Comments != nil {
		vendor = remainder.Comments.Vendor
	}
	cmt := flacvorbis.New()
	cmt.Vendor = vendor
	for _, kv := range convert.Merge(tag, FieldTable) {
		if err := cmt.Add(kv.Key, kv.Value); err != nil {
			return nil, errors.Wrapf(err, "flac: adding comment %q", kv.Key)
		}
	}
	if n, total := tag.Track(); n > 0 {
		_ = cmt.Add(trackNumberKey, itoa(n))
		if total > 0 {
			_ = cmt.Add(trackTotalKey, itoa(total))
		}
	}
	if n, total := tag.Disc(); n > 0 {
		_ = cmt.Add(discNumberKey, itoa(n))
		if total > 0 {
			_ = cmt.Add(discTotalKey, itoa(total))
		}
	}
	out.Comments = cmt

	for _, p := range tag.Pictures() {
		info := picture.DeriveInformation(p.Data)
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureType(p.PicType), p.Description, p.Data, string(p.MimeType))
		if err != nil {
			return nil, errors.Wrap(err, "flac: encoding picture block")
		}
		pic.Width = uint32(info.Width)
		pic.Height = uint32(info.Height)
		pic.ColorDepth = uint32(info.ColorDepth)
		pic.NumColors = uint32(info.NumColors)
		out.Pictures = append(out.Pictures, pic)
	}
	return out, nil
}

func splitComment(c string) (key, value string, ok bool) {
	for i := 0; i < len(c); i++ {
		if c[i] == '=' {
			return c[:i], c[i+1:], true
		}
	}
	return "", "", false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'a' <= ca && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if 'a' <= cb && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func parseDigits(s string) (int, error) {
	if s == "" {
		return 0, errors.New("flac: empty numeric field")
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.Errorf("flac: %q is not numeric", s)
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}
