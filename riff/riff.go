// Package riff implements the RIFF/AIFF chunk engine (C12): chunked
// traversal of WAV (`RIFF`/`WAVE`, little-endian chunk sizes) and AIFF/AIFC
// (`FORM`/`AIFF`, big-endian chunk sizes) containers, with even-boundary
// chunk padding, `fmt `/`COMM` audio-properties decode, and the RIFF
// INFO-list / AIFF text-chunk flat tag engines.
//
// Grounded on the field conventions trimmer-io/go-xmp's RIFF INFO model
// documents (`IART`/`INAM`/`ICMT`/... struct tags) for the WAV side, and on
// dhowden-tag's whole-file, non-splicing rewrite style reused throughout
// this module for the write path. The 80-bit extended-float AIFF sample
// rate is decoded via package codec's DecodeExtended80; WriteTo copies the
// COMM chunk back verbatim, so it is never re-encoded.
package riff

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/go-tagengine/tagengine/convert"
	"github.com/go-tagengine/tagengine/item"
	"github.com/pkg/errors"
)

// Format is the container's outer form.
type Format int

const (
	UnknownForm Format = iota
	WAV
	AIFF
)

// chunk is one raw top-level chunk, kept verbatim for round-trip on chunk
// kinds this engine doesn't specifically interpret.
type chunk struct {
	id   string
	data []byte
}

// Stream is the full parsed container: audio properties plus whichever of
// the two flat tag kinds this form carries.
type Stream struct {
	Form            Format
	Channels        uint16
	SampleRate      uint32
	BitsPerSample   uint16
	NumSampleFrames uint32
	Duration        time.Duration

	Info *Tag // non-nil for WAV when a LIST/INFO chunk is present
	Text *Tag // non-nil for AIFF when any NAME/AUTH/(c) /ANNO chunk is present

	// ID3Chunk holds the raw bytes of an embedded ID3v2 tag chunk
	// ("ID3 "/"id3 "), if present; the dispatcher decodes it via package
	// id3v2 rather than this package re-implementing ID3v2 parsing.
	ID3Chunk []byte

	chunks []chunk // passthrough chunks (fmt/data/COMM/SSND/...) in original order
}

const (
	riffID = "RIFF"
	formID = "FORM"
	waveID = "WAVE"
	aiffID = "AIFF"
	aifcID = "AIFC"
)

func isID3ChunkID(id string) bool {
	return id == "ID3 " || id == "id3 "
}

// ReadFrom parses a RIFF/WAVE or FORM/AIFF(C) container from r.
func ReadFrom(r io.Reader) (*Stream, error) {
	var outer [12]byte
	if _, err := io.ReadFull(r, outer[:]); err != nil {
		return nil, errors.Wrap(err, "riff: reading outer header")
	}

	s := &Stream{}
	var bigEndian bool
	switch string(outer[0:4]) {
	case riffID:
		s.Form = WAV
		bigEndian = false
	case formID:
		bigEndian = true
	default:
		return nil, errors.New("riff: missing RIFF/FORM marker")
	}

	formType := string(outer[8:12])
	switch formType {
	case waveID:
		s.Form = WAV
	case aiffID, aifcID:
		s.Form = AIFF
	default:
		return nil, errors.Errorf("riff: unrecognized form type %q", formType)
	}
	if s.Form == AIFF && !bigEndian {
		return nil, errors.New("riff: AIFF form type with a RIFF (little-endian) header")
	}

	var infoPairs []convert.KV
	var textPairs []convert.KV

	for {
		var hdr [8]byte
		_, err := io.ReadFull(r, hdr[:])
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "riff: reading chunk header")
		}
		id := string(hdr[0:4])
		var size uint32
		if bigEndian {
			size = binary.BigEndian.Uint32(hdr[4:8])
		} else {
			size = binary.LittleEndian.Uint32(hdr[4:8])
		}

		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, errors.Wrapf(err, "riff: reading chunk %q body", id)
		}
		if size%2 == 1 {
			var pad [1]byte
			if _, err := io.ReadFull(r, pad[:]); err != nil && err != io.EOF {
				return nil, errors.Wrapf(err, "riff: reading chunk %q padding byte", id)
			}
		}

		switch {
		case id == "fmt " && s.Form == WAV:
			if err := parseFmtChunk(s, data); err != nil {
				return nil, err
			}
			s.chunks = append(s.chunks, chunk{id, data})
		case id == "COMM" && s.Form == AIFF:
			if err := parseCommChunk(s, data); err != nil {
				return nil, err
			}
			s.chunks = append(s.chunks, chunk{id, data})
		case id == "LIST" && s.Form == WAV && len(data) >= 4 && string(data[0:4]) == "INFO":
			pairs, err := parseInfoList(data[4:])
			if err != nil {
				return nil, err
			}
			infoPairs = append(infoPairs, pairs...)
		case s.Form == AIFF && (id == "NAME" || id == "AUTH" || id == "(c) " || id == "ANNO"):
			textPairs = append(textPairs, convert.KV{Key: id, Value: decodeASCII(data)})
		case isID3ChunkID(id):
			s.ID3Chunk = data
		default:
			s.chunks = append(s.chunks, chunk{id, data})
		}
	}

	if s.Form == WAV && infoPairs != nil {
		s.Info = &Tag{typ: item.RIFFInfo, pairs: infoPairs}
	}
	if s.Form == AIFF && textPairs != nil {
		s.Text = &Tag{typ: item.AIFFText, pairs: textPairs}
	}

	return s, nil
}

func parseFmtChunk(s *Stream, b []byte) error {
	if len(b) < 16 {
		return errors.New("riff: fmt chunk shorter than 16 bytes")
	}
	s.Channels = binary.LittleEndian.Uint16(b[2:4])
	s.SampleRate = binary.LittleEndian.Uint32(b[4:8])
	if len(b) >= 16 {
		s.BitsPerSample = binary.LittleEndian.Uint16(b[14:16])
	}
	return nil
}

func parseCommChunk(s *Stream, b []byte) error {
	if len(b) < 18 {
		return errors.New("riff: COMM chunk shorter than 18 bytes")
	}
	s.Channels = binary.BigEndian.Uint16(b[0:2])
	s.NumSampleFrames = binary.BigEndian.Uint32(b[2:6])
	s.BitsPerSample = binary.BigEndian.Uint16(b[6:8])
	var ext [10]byte
	copy(ext[:], b[8:18])
	rate, err := codec.DecodeExtended80(ext)
	if err != nil {
		return errors.Wrap(err, "riff: decoding AIFF sample rate")
	}
	s.SampleRate = uint32(rate)
	if s.SampleRate > 0 {
		s.Duration = time.Duration(float64(s.NumSampleFrames) / float64(s.SampleRate) * float64(time.Second))
	}
	return nil
}

func parseInfoList(b []byte) ([]convert.KV, error) {
	var out []convert.KV
	for len(b) > 0 {
		if len(b) < 8 {
			return nil, errors.New("riff: truncated LIST/INFO subchunk header")
		}
		id := string(b[0:4])
		size := binary.LittleEndian.Uint32(b[4:8])
		rest := b[8:]
		if uint32(len(rest)) < size {
			return nil, errors.New("riff: LIST/INFO subchunk overruns list body")
		}
		out = append(out, convert.KV{Key: id, Value: decodeASCII(rest[:size])})
		rest = rest[size:]
		if size%2 == 1 && len(rest) > 0 {
			rest = rest[1:]
		}
		b = rest
	}
	return out, nil
}

func decodeASCII(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// WriteTo serializes s back to w: the fmt/COMM chunk, data/SSND-bearing
// passthrough chunks, the current Info or Text chunk(s), and an ID3Chunk if
// set, in original chunk order wherever the original chunk survives, with
// edited/new tag chunks appended after it.
func WriteTo(s *Stream, w io.Writer) (int64, error) {
	var body bytes.Buffer

	for _, c := range s.chunks {
		writeChunk(&body, c.id, c.data, s.Form == AIFF)
	}
	if s.Form == WAV && s.Info != nil {
		writeChunk(&body, "LIST", encodeInfoList(s.Info), false)
	}
	if s.Form == AIFF && s.Text != nil {
		for _, kv := range s.Text.pairs {
			writeChunk(&body, kv.Key, []byte(kv.Value), true)
		}
	}
	if s.ID3Chunk != nil {
		id := "ID3 "
		writeChunk(&body, id, s.ID3Chunk, s.Form == AIFF)
	}

	bigEndian := s.Form == AIFF
	formType := waveID
	outerID := riffID
	if s.Form == AIFF {
		formType = aiffID
		outerID = formID
	}

	var n int64
	var hdr [8]byte
	copy(hdr[0:4], outerID)
	size := uint32(4 + body.Len())
	if bigEndian {
		binary.BigEndian.PutUint32(hdr[4:8], size)
	} else {
		binary.LittleEndian.PutUint32(hdr[4:8], size)
	}
	wn, err := w.Write(hdr[:])
	n += int64(wn)
	if err != nil {
		return n, err
	}
	wn, err = w.Write([]byte(formType))
	n += int64(wn)
	if err != nil {
		return n, err
	}
	wn, err = w.Write(body.Bytes())
	n += int64(wn)
	return n, err
}

func writeChunk(buf *bytes.Buffer, id string, data []byte, bigEndian bool) {
	buf.WriteString(id)
	var sizeBuf [4]byte
	if bigEndian {
		binary.BigEndian.PutUint32(sizeBuf[:], uint32(len(data)))
	} else {
		binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(data)))
	}
	buf.Write(sizeBuf[:])
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte(0)
	}
}

func encodeInfoList(t *Tag) []byte {
	var buf bytes.Buffer
	buf.WriteString("INFO")
	for _, kv := range t.pairs {
		val := []byte(kv.Value)
		val = append(val, 0)
		buf.WriteString(kv.Key)
		var sizeBuf [4]byte
		binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(val)))
		buf.Write(sizeBuf[:])
		buf.Write(val)
		if len(val)%2 == 1 {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// --- Tag (C15): the flat RIFF INFO / AIFF text native tag ------------------

// Tag is the native tag for either RIFF INFO (WAV) or AIFF text chunks,
// distinguished by typ.
type Tag struct {
	typ   item.TagType
	pairs []convert.KV
}

// TagType implements tagengine.NativeTag.
func (t *Tag) TagType() item.TagType { return t.typ }

// Len implements tagengine.NativeTag.
func (t *Tag) Len() int { return len(t.pairs) }

// IsEmpty implements tagengine.NativeTag.
func (t *Tag) IsEmpty() bool { return len(t.pairs) == 0 }

var infoFieldTable = convert.FieldTable{
	CaseInsensitive: false,
	Fields: map[item.Key]string{
		item.TrackTitle:  "INAM",
		item.TrackArtist: "IART",
		item.AlbumTitle:  "IPRD",
		item.Comment:     "ICMT",
		item.Genre:       "IGNR",
		item.RecordingDate: "ICRD",
		item.Copyright:   "ICOP",
		item.EncodedBy:   "ISFT",
		item.Language:    "ILNG",
		item.TrackNumber: "ITRK",
		item.Description: "ISBJ",
		item.Engineer:    "IENG",
		item.Publisher:   "ICMS",
	},
}

var textFieldTable = convert.FieldTable{
	CaseInsensitive: false,
	Fields: map[item.Key]string{
		item.TrackTitle: "NAME",
		item.TrackArtist: "AUTH",
		item.Copyright:  "(c) ",
		item.Comment:    "ANNO",
	},
}

func (t *Tag) fieldTable() convert.FieldTable {
	if t.typ == item.AIFFText {
		return textFieldTable
	}
	return infoFieldTable
}

// Split converts the native tag into the neutral item.Tag (§4.15) through
// the shared flat key/value conversion layer; every RIFF INFO / AIFF text
// field is a plain string, so there is no picture or combined-number-pair
// special case to carry (RIFF/AIFF define no cover-art convention).
func (t *Tag) Split() (*item.Tag, error) {
	return convert.Split(t.typ, t.pairs, t.fieldTable()), nil
}

// Merge overlays tag's neutral items onto remainder and returns the
// resulting native tag, completing the §4.15 split/merge pair for this
// engine.
func Merge(remainder *Tag, tag *item.Tag) *Tag {
	typ := item.RIFFInfo
	if remainder != nil {
		typ = remainder.typ
	}
	out := &Tag{typ: typ}
	table := out.fieldTable()
	out.pairs = convert.Merge(tag, table)
	return out
}
