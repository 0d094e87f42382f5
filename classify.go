package tagengine

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-tagengine/tagengine/ebml"
	"github.com/go-tagengine/tagengine/id3v2"
	"github.com/go-tagengine/tagengine/ioref"
	"github.com/go-tagengine/tagengine/mpeg"
)

// probeSize is how many leading bytes Classify buffers before pattern
// matching. Large enough to cover a full Ogg page header+segment table
// (up to 255 lacing bytes) and a reasonably-sized EBML header, per §4.14.
const probeSize = 1024

// ebmlHeaderID/ebmlDocTypeID mirror the constants package matroska defines
// privately for itself; Classify needs to peek at DocType before any engine
// has been selected, so it duplicates the two IDs rather than exporting
// them from matroska for a single caller.
const (
	ebmlHeaderID  = 0x1A45DFA3
	ebmlDocTypeID = 0x4282
)

// Classify identifies r's container format by magic bytes (§4.14): it
// skips past a leading ID3v2 tag (common ahead of MPEG/WAV/AIFF/DSF/ADTS
// audio) before matching the container magic underneath it, and falls back
// to a frame-sync scan for headerless MPEG/ADTS streams. r is left
// positioned at the start on return.
func Classify(r ioref.File) (FileType, error) {
	defer r.Seek(0, io.SeekStart)

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return UnknownFileType, Newf(ErrIO, err, "classify: seeking to start")
	}

	bodyOffset, hadID3v2, err := skipLeadingID3v2(r)
	if err != nil {
		return UnknownFileType, err
	}
	if _, err := r.Seek(bodyOffset, io.SeekStart); err != nil {
		return UnknownFileType, Newf(ErrIO, err, "classify: seeking past ID3v2 tag")
	}

	head := make([]byte, probeSize)
	n, _ := io.ReadFull(r, head)
	head = head[:n]

	if ft, ok := classifyMagic(head); ok {
		return ft, nil
	}

	if _, err := r.Seek(bodyOffset, io.SeekStart); err != nil {
		return UnknownFileType, Newf(ErrIO, err, "classify: seeking to body for frame sync")
	}
	if _, _, err := mpeg.FindFirstFrame(r); err == nil {
		return MPEG, nil
	}

	if len(head) >= 2 && head[0] == 0xFF && head[1]&0xF6 == 0xF0 {
		return ADTS, nil
	}

	// A leading ID3v2 tag with no recognizable audio payload underneath is
	// still overwhelmingly likely to be an MPEG file (ID3v2's original and
	// still primary host, §4.5) rather than unknown.
	if hadID3v2 {
		return MPEG, nil
	}

	for _, res := range allResolvers() {
		if res.ReadFn != nil {
			return Custom, nil
		}
	}
	return UnknownFileType, Newf(ErrUnknownFormat, nil, "classify: no magic matched")
}

// skipLeadingID3v2 reports the byte offset immediately after a leading
// ID3v2 tag, if r starts with one, and whether one was present. r is left
// positioned at bodyOffset is NOT guaranteed; callers reseek explicitly.
func skipLeadingID3v2(r ioref.File) (bodyOffset int64, hadID3v2 bool, err error) {
	var marker [3]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, false, nil
		}
		return 0, false, Newf(ErrIO, err, "classify: reading leading marker")
	}
	if string(marker[:]) != "ID3" {
		return 0, false, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, false, Newf(ErrIO, err, "classify: rewinding to ID3v2 header")
	}
	hdr, err := id3v2.ReadHeader(r)
	if err != nil {
		return 0, false, Newf(ErrId3v2, err, "classify: reading ID3v2 header")
	}
	return 10 + int64(hdr.Size), true, nil
}

func classifyMagic(head []byte) (FileType, bool) {
	switch {
	case hasPrefix(head, "MAC "):
		return APE, true
	case hasPrefix(head, "FORM"):
		return AIFF, true
	case hasPrefix(head, "RIFF") && len(head) >= 12 && string(head[8:12]) == "WAVE":
		return WAV, true
	case hasPrefix(head, "fLaC"):
		return FLAC, true
	case hasPrefix(head, "wvpk"):
		return WavPack, true
	case len(head) >= 8 && string(head[4:8]) == "ftyp":
		return MP4, true
	case hasPrefix(head, "MPCK"):
		return MusepackSV8, true
	case hasPrefix(head, "MP+"):
		return classifyMusepackSV4to6(head), true
	case hasPrefix(head, "DSD "):
		return DSF, true
	case hasPrefix(head, "OggS"):
		return classifyOgg(head), true
	case len(head) >= 4 && binary.BigEndian.Uint32(head[0:4]) == ebmlHeaderID:
		return classifyEBML(head), true
	}
	return UnknownFileType, false
}

func hasPrefix(b []byte, s string) bool {
	return len(b) >= len(s) && string(b[:len(s)]) == s
}

// classifyMusepackSV4to6 decodes just enough of the SV4-6 stream header
// (the same bit layout probs.ReadMusepackSV4to6 parses in full) to recover
// the stream-version field that distinguishes the SV4/5/6/7 FileType
// values; SV7 uses an incompatible header layout that the properties
// reader explicitly does not support (probs.go), so it is still
// classified here purely so its tags (APE/ID3v1) remain reachable.
func classifyMusepackSV4to6(head []byte) FileType {
	const magicLen = 3
	if len(head) < magicLen+4 {
		return MusepackSV7
	}
	word0 := binary.LittleEndian.Uint32(head[magicLen : magicLen+4])
	switch (word0 >> 11) & 0x3FF {
	case 4:
		return MusepackSV4
	case 5:
		return MusepackSV5
	case 6:
		return MusepackSV6
	default:
		return MusepackSV7
	}
}

func classifyOgg(head []byte) FileType {
	const fixedHeader = 27
	if len(head) <= fixedHeader {
		return OggVorbis
	}
	nSeg := int(head[26])
	bodyStart := fixedHeader + nSeg
	if bodyStart >= len(head) {
		return OggVorbis
	}
	payload := head[bodyStart:]
	switch {
	case len(payload) >= 7 && payload[0] == 1 && string(payload[1:7]) == "vorbis":
		return OggVorbis
	case len(payload) >= 8 && string(payload[0:8]) == "OpusHead":
		return Opus
	case len(payload) >= 8 && string(payload[0:8]) == "Speex   ":
		return Speex
	default:
		return OggVorbis
	}
}

// classifyEBML reads just the EBML header's DocType child to discriminate
// Matroska from WebM (§9.1); an unreadable or missing DocType defaults to
// Matroska, the more general of the two.
func classifyEBML(head []byte) FileType {
	sr := io.NewSectionReader(bytes.NewReader(head), 0, int64(len(head)))
	elems, err := ebml.ReadElements(sr)
	if err != nil || len(elems) == 0 || elems[0].ID != ebmlHeaderID {
		return Matroska
	}
	children, err := ebml.ReadElements(elems[0].Content(sr))
	if err != nil {
		return Matroska
	}
	for _, c := range children {
		if c.ID != ebmlDocTypeID {
			continue
		}
		doc, err := ebml.ReadString(elems[0].Content(sr), c)
		if err != nil {
			return Matroska
		}
		if doc == "webm" {
			return WebM
		}
		return Matroska
	}
	return Matroska
}
