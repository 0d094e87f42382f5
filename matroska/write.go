package matroska

import (
	"bytes"
	"io"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/go-tagengine/tagengine/ebml"
	"github.com/pkg/errors"
)

// WriteTo rewrites r's Segment\Tags element with tag's entries and copies r
// through w otherwise unchanged. An existing Tags element is replaced in
// place; a file with none yet gets one inserted just before the first
// Cluster (or at the end of Segment, if it has none). When Segment's own
// size is known (not the EBML "unknown size" streaming marker), it is
// re-encoded at its original octet width to absorb the byte-count delta —
// a safe assumption in practice since muxers conventionally reserve an
// 8-byte-wide size field with room to grow (§9.1).
func WriteTo(r io.ReadSeeker, tag *Tag, w io.Writer) (int64, error) {
	fileLen, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "matroska: seeking to end")
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	root := io.NewSectionReader(r, 0, fileLen)

	top, err := ebml.ReadElements(root)
	if err != nil {
		return 0, errors.Wrap(err, "matroska: reading top-level elements")
	}
	var segment *ebml.Element
	for i := range top {
		if top[i].ID == idSegment {
			segment = &top[i]
			break
		}
	}
	if segment == nil {
		return 0, errors.New("matroska: no Segment element found")
	}

	seg := segment.Content(root)
	children, err := ebml.ReadElements(seg)
	if err != nil {
		return 0, errors.Wrap(err, "matroska: reading Segment children")
	}

	newTags, err := encodeTagsElement(tag.Entries)
	if err != nil {
		return 0, errors.Wrap(err, "matroska: encoding Tags element")
	}

	var oldStart, oldEnd int64 = -1, -1
	insertAt := seg.Size()
	for _, c := range children {
		if c.ID == idTags && oldStart < 0 {
			oldStart = c.HeaderStart()
			oldEnd = c.Start() + c.Size
		}
		if c.ID == idCluster && oldStart < 0 && insertAt == seg.Size() {
			insertAt = c.HeaderStart()
		}
	}

	whole := make([]byte, fileLen)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(r, whole); err != nil {
		return 0, errors.Wrap(err, "matroska: buffering source file")
	}

	segFileStart := segment.Start()
	var segBody bytes.Buffer
	segBodyOld := whole[segFileStart : segFileStart+seg.Size()]
	switch {
	case oldStart >= 0:
		segBody.Write(segBodyOld[:oldStart])
		segBody.Write(newTags)
		segBody.Write(segBodyOld[oldEnd:])
	default:
		segBody.Write(segBodyOld[:insertAt])
		segBody.Write(newTags)
		segBody.Write(segBodyOld[insertAt:])
	}

	newSegBody := segBody.Bytes()

	segHeaderStart := segment.HeaderStart()
	segIDLen := segment.HeaderLen() - segment.SizeFieldLen()
	var newSegHeader []byte
	if segment.Size < 0 {
		// Unknown-size Segment: the size field never encodes a length, so
		// no re-encode is needed regardless of delta.
		newSegHeader = whole[segHeaderStart : segHeaderStart+segment.HeaderLen()]
	} else {
		idBytes := whole[segHeaderStart : segHeaderStart+segIDLen]
		sizeBytes, err := codec.EncodeVINT(uint64(int64(len(newSegBody))), int(segment.SizeFieldLen()), false)
		if err != nil {
			return 0, errors.Wrap(err, "matroska: re-encoding Segment size")
		}
		newSegHeader = append(append([]byte{}, idBytes...), sizeBytes...)
	}

	var out bytes.Buffer
	out.Write(whole[:segHeaderStart])
	out.Write(newSegHeader)
	out.Write(newSegBody)
	out.Write(whole[segFileStart+seg.Size():])

	n, err := w.Write(out.Bytes())
	return int64(n), err
}
