// Package ebml implements the generic EBML element reader/writer (C8):
// VINT-framed element traversal, reused by the matroska package for the
// Matroska/WebM-specific schema and tag tree.
//
// Grounded on pixelbender-go-matroska's ebml/decoder.go for the VINT-framed
// element-walk shape (element ID then size then content, sizes possibly
// "unknown"/all-ones), reusing this module's own codec.DecodeVINT/
// EncodeVINT rather than re-deriving the mask/rest byte tables that example
// hand-rolls. The bounded-read guarantee lofty's element_reader.rs gets
// from an explicit lock stack (original_source/lofty/src/ebml/
// element_reader.rs, §9.1) is obtained here the idiomatic Go way instead:
// io.SectionReader already refuses reads past an element's declared
// length, so a child reader physically cannot over-read its parent.
package ebml

import (
	"io"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/pkg/errors"
)

const (
	maxIDLength   = 4
	maxSizeLength = 8
)

// Element is one decoded EBML element header: its ID (with the VINT
// marker bit kept, per codec.DecodeVINT's element-ID convention) and
// content size (-1 when the size octets were all-ones, i.e. "unknown" —
// §4.8, permitted only for Segment and Cluster in Matroska).
type Element struct {
	ID         uint64
	Size       int64
	start      int64 // content start, relative to the reader that produced it
	headerLen  int64
	sizeLen    int64 // octet width of the size VINT alone
}

// Start returns e's content start offset, relative to the reader ReadElements
// produced it from.
func (e Element) Start() int64 { return e.start }

// HeaderStart returns the offset of e's own ID+size header, relative to the
// reader ReadElements produced it from.
func (e Element) HeaderStart() int64 { return e.start - e.headerLen }

// HeaderLen returns the combined octet width of e's ID and size VINTs.
func (e Element) HeaderLen() int64 { return e.headerLen }

// SizeFieldLen returns the octet width of e's size VINT alone (HeaderLen
// minus the ID's own width), the value a writer must re-encode the size
// VINT within to keep a splice-rebuild's byte offsets aligned.
func (e Element) SizeFieldLen() int64 { return e.sizeLen }

// ReadElements walks every sibling element in sr, starting at its current
// logical position 0, until sr is exhausted. A trailing element with an
// unknown size consumes the rest of sr (matching Segment/Cluster's common
// streaming form).
func ReadElements(sr *io.SectionReader) ([]Element, error) {
	var out []Element
	var pos int64
	total := sr.Size()
	for pos < total {
		e, headerLen, err := readHeader(sr, pos)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, err
		}
		size := e.Size
		if size < 0 {
			size = total - pos - headerLen
		}
		e.start = pos + headerLen
		e.headerLen = headerLen
		out = append(out, e)
		pos += headerLen + size
	}
	return out, nil
}

func readHeader(sr *io.SectionReader, pos int64) (Element, int64, error) {
	var lead [maxIDLength]byte
	n, err := sr.ReadAt(lead[:], pos)
	if n == 0 && err != nil {
		return Element{}, 0, err
	}
	idVint, err := codec.DecodeVINT(lead[:n], true, maxIDLength)
	if err != nil {
		return Element{}, 0, err
	}

	var sizeBuf [maxSizeLength]byte
	n2, err := sr.ReadAt(sizeBuf[:], pos+int64(idVint.Length))
	if n2 == 0 && err != nil {
		return Element{}, 0, err
	}
	sizeVint, err := codec.DecodeVINT(sizeBuf[:n2], false, maxSizeLength)
	if err != nil {
		return Element{}, 0, err
	}

	headerLen := int64(idVint.Length + sizeVint.Length)
	size := int64(sizeVint.Value)
	if sizeVint.Unknown {
		size = -1
	}
	return Element{ID: idVint.Value, Size: size, sizeLen: int64(sizeVint.Length)}, headerLen, nil
}

// Content returns a bounded reader over e's content within parent.
func (e Element) Content(parent *io.SectionReader) *io.SectionReader {
	size := e.Size
	if size < 0 {
		size = parent.Size() - e.start
	}
	return io.NewSectionReader(parent, e.start, size)
}

// ReadUint decodes e's content (within parent) as a big-endian unsigned
// integer of its own declared width (1..8 bytes), the EBML "uinteger"
// element shape.
func ReadUint(parent *io.SectionReader, e Element) (uint64, error) {
	if e.Size <= 0 || e.Size > 8 {
		if e.Size == 0 {
			return 0, nil
		}
		return 0, errors.Errorf("ebml: uint element has invalid size %d", e.Size)
	}
	b := make([]byte, e.Size)
	if _, err := parent.ReadAt(b, e.start); err != nil && err != io.EOF {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// ReadString returns e's content (within parent) as a UTF-8/ASCII string,
// the EBML "string"/"utf-8" element shape.
func ReadString(parent *io.SectionReader, e Element) (string, error) {
	b, err := ReadBinary(parent, e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBinary returns e's raw content bytes.
func ReadBinary(parent *io.SectionReader, e Element) ([]byte, error) {
	size := e.Size
	if size < 0 {
		size = parent.Size() - e.start
	}
	b := make([]byte, size)
	if _, err := parent.ReadAt(b, e.start); err != nil && err != io.EOF {
		return nil, err
	}
	return b, nil
}

// EncodeElement serializes id+content as one EBML element: a VINT ID (kept
// at its natural minimum octet width) followed by a VINT size (non-keep-
// marker, minimum width for content's length) and the content bytes.
func EncodeElement(id uint64, content []byte) ([]byte, error) {
	idBytes, err := EncodeID(id)
	if err != nil {
		return nil, err
	}
	sizeBytes, err := codec.EncodeVINT(uint64(len(content)), 1, false)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(idBytes)+len(sizeBytes)+len(content))
	out = append(out, idBytes...)
	out = append(out, sizeBytes...)
	out = append(out, content...)
	return out, nil
}

// EncodeID encodes an element ID at its canonical octet width. IDs keep
// their VINT length marker (see Element.ID), so the ID's own big-endian
// byte count is its on-disk width and its bytes are written unchanged,
// never padded (§4.8).
func EncodeID(id uint64) ([]byte, error) {
	width := 1
	switch {
	case id > 0xFFFFFF:
		width = 4
	case id > 0xFFFF:
		width = 3
	case id > 0xFF:
		width = 2
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(id)
		id >>= 8
	}
	return out, nil
}

// EncodeUint serializes v as a big-endian uinteger using the minimum
// number of bytes (0 for v == 0, matching EBML's documented minimal-width
// uint encoding).
func EncodeUint(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var b []byte
	for v > 0 {
		b = append([]byte{byte(v)}, b...)
		v >>= 8
	}
	return b
}
