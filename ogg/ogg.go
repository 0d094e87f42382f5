// Package ogg implements the Ogg logical-bitstream framing engine (C10):
// page/packet reassembly, Vorbis/Opus/Speex identification-header decode,
// and the shared Vorbis-comment tag body (reused from package flac, since
// both containers carry the identical vendor+comment-list wire format).
//
// Grounded on dhowden-tag's ogg.go for the page-then-packet reassembly
// shape (readPackets' continuation-page detection via header_type_flag
// bit 0 is carried over almost unchanged); the physical page writer and
// Ogg CRC-32 are new, since dhowden-tag is read-only and has no encoder.
package ogg

import (
	"bytes"
	"encoding/binary"
	"io"

	goflac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacvorbis"
	"github.com/go-tagengine/tagengine/flac"
	"github.com/go-tagengine/tagengine/item"
	"github.com/go-tagengine/tagengine/picture"
	"github.com/pkg/errors"
)

// pictureCommentKey is the Vorbis-comment key under which cover art
// travels through Ogg containers (§3, §4.3): a base64-encoded FLAC
// METADATA_BLOCK_PICTURE block, since Ogg itself has no native picture
// block the way FLAC does.
const pictureCommentKey = "METADATA_BLOCK_PICTURE"

// Codec identifies the payload carried by an Ogg logical bitstream.
type Codec int

const (
	UnknownCodec Codec = iota
	Vorbis
	Opus
	Speex
)

const (
	capturePattern   = "OggS"
	pageHeaderFixed  = 27
	maxLacingPerPage = 255
	maxSegmentValue  = 255
)

// Stream is one parsed Ogg logical bitstream: its identification-header
// properties, the decoded comment list, and enough raw state to splice a
// rewritten comment packet back in on Merge.
type Stream struct {
	Codec      Codec
	Channels   uint8
	SampleRate uint32
	PreSkip    uint16 // Opus only: samples to discard at decode start

	Comments *flacvorbis.MetaDataBlockVorbisComment
	Pictures []*picture.Picture // decoded from METADATA_BLOCK_PICTURE comments (§4.3)

	idPage       []byte // first physical page, kept verbatim
	setupPacket  []byte // Vorbis: raw setup-header packet bytes, preserved verbatim
	serial       uint32
	nextSequence uint32
	trailer      []byte // every remaining page (audio data), kept verbatim
}

// TagType implements tagengine.NativeTag.
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

type pagePeek struct {
	headerType byte
	serial     uint32
	sequence   uint32
	raw        []byte
	body       []byte
}

func readPage(r io.Reader) (*pagePeek, error) {
	var hdr [pageHeaderFixed]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if string(hdr[0:4]) != capturePattern {
		return nil, errors.New("ogg: missing \"OggS\" capture pattern")
	}
	nS := int(hdr[26])
	segments := make([]byte, nS)
	if _, err := io.ReadFull(r, segments); err != nil {
		return nil, errors.Wrap(err, "ogg: reading segment table")
	}
	bodyLen := 0
	for _, s := range segments {
		bodyLen += int(s)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "ogg: reading page body")
	}

	raw := make([]byte, 0, pageHeaderFixed+nS+bodyLen)
	raw = append(raw, hdr[:]...)
	raw = append(raw, segments...)
	raw = append(raw, body...)

	return &pagePeek{
		headerType: hdr[5],
		serial:     binary.LittleEndian.Uint32(hdr[14:18]),
		sequence:   binary.LittleEndian.Uint32(hdr[18:22]),
		raw:        raw,
		body:       body,
	}, nil
}

// readHeaderPackets reassembles the comment (+ setup, for Vorbis) packet
// run spanning contiguous pages the way dhowden-tag's readPackets does: a
// page continues the previous one when its header_type_flag bit 0
// (continuation) is set, and reassembly stops at the first page that does
// not continue. first is always included, since it begins a fresh packet
// regardless of its own continuation bit.
func readHeaderPackets(r io.Reader, first *pagePeek) (body []byte, trailerFirstPage []byte, err error) {
	var buf bytes.Buffer
	buf.Write(first.body)

	for {
		p, err := readPage(r)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return buf.Bytes(), nil, nil
			}
			return nil, nil, err
		}
		if p.headerType&0x1 == 0 {
			return buf.Bytes(), p.raw, nil
		}
		buf.Write(p.body)
	}
}

// ReadFrom parses one Ogg logical bitstream from r, positioned at its
// first page.
func ReadFrom(r io.Reader) (*Stream, error) {
	first, err := readPage(r)
	if err != nil {
		return nil, err
	}

	s := &Stream{idPage: first.raw, serial: first.serial, nextSequence: first.sequence + 1}
	if err := parseIdentification(s, first.body); err != nil {
		return nil, err
	}

	second, err := readPage(r)
	if err != nil {
		return nil, errors.Wrap(err, "ogg: reading comment packet page")
	}
	s.nextSequence = second.sequence + 1

	headerBlob, trailerFirstPage, err := readHeaderPackets(r, second)
	if err != nil {
		return nil, err
	}
	if err := parseCommentPacket(s, headerBlob); err != nil {
		return nil, err
	}

	var trailer bytes.Buffer
	if trailerFirstPage != nil {
		trailer.Write(trailerFirstPage)
	}
	if _, err := io.Copy(&trailer, r); err != nil {
		return nil, errors.Wrap(err, "ogg: copying trailing audio pages")
	}
	s.trailer = trailer.Bytes()
	return s, nil
}

func parseIdentification(s *Stream, body []byte) error {
	switch {
	case len(body) >= 7 && body[0] == 1 && string(body[1:7]) == "vorbis":
		if len(body) < 7+4+1+4 {
			return errors.New("ogg: truncated vorbis identification header")
		}
		s.Codec = Vorbis
		s.Channels = body[7+4]
		s.SampleRate = binary.LittleEndian.Uint32(body[7+4+1 : 7+4+1+4])
	case len(body) >= 19 && string(body[0:8]) == "OpusHead":
		s.Codec = Opus
		s.Channels = body[9]
		s.PreSkip = binary.LittleEndian.Uint16(body[10:12])
		s.SampleRate = binary.LittleEndian.Uint32(body[12:16])
	case len(body) >= 48 && string(body[0:8]) == "Speex   ":
		s.Codec = Speex
		s.SampleRate = binary.LittleEndian.Uint32(body[36:40])
		if nb := binary.LittleEndian.Uint32(body[48:52]); nb > 0 && nb < 256 {
			s.Channels = uint8(nb)
		}
	default:
		return errors.New("ogg: unrecognised identification header (expected vorbis/Opus/Speex)")
	}
	return nil
}

// commentPrefix returns the magic bytes preceding the raw vendor+comment
// body for each codec (Vorbis: packet-type byte + "vorbis"; Opus:
// "OpusTags"; Speex: no prefix at all).
func commentPrefix(c Codec) []byte {
	switch c {
	case Vorbis:
		return append([]byte{3}, []byte("vorbis")...)
	case Opus:
		return []byte("OpusTags")
	default:
		return nil
	}
}

func parseCommentPacket(s *Stream, blob []byte) error {
	prefix := commentPrefix(s.Codec)
	if len(blob) < len(prefix) || !bytes.Equal(blob[:len(prefix)], prefix) {
		return errors.New("ogg: comment packet missing expected magic")
	}
	rest := blob[len(prefix):]

	n, err := commentBodyLength(rest)
	if err != nil {
		return err
	}
	body := rest[:n]
	s.setupPacket = append([]byte(nil), rest[n:]...) // empty for Opus/Speex, Vorbis setup header for Vorbis

	block := goflac.MetaDataBlock{Type: goflac.VorbisComment, Data: body}
	cmt, err := flacvorbis.ParseFromMetaDataBlock(block)
	if err != nil {
		return errors.Wrap(err, "ogg: parsing comment body")
	}

	var kept []string
	for _, c := range cmt.Comments {
		key, value, ok := splitVorbisComment(c)
		if ok && equalFoldASCII(key, pictureCommentKey) {
			p, _, err := picture.DecodeFLACBlock([]byte(value), true)
			if err != nil {
				return errors.Wrap(err, "ogg: decoding METADATA_BLOCK_PICTURE")
			}
			s.Pictures = append(s.Pictures, p)
			continue
		}
		kept = append(kept, c)
	}
	cmt.Comments = kept
	s.Comments = cmt
	return nil
}

// splitVorbisComment splits a raw "KEY=value" Vorbis comment entry.
func splitVorbisComment(c string) (key, value string, ok bool) {
	for i := 0; i < len(c); i++ {
		if c[i] == '=' {
			return c[:i], c[i+1:], true
		}
	}
	return "", "", false
}

func equalFoldASCII(a, b string) bool {
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

// commentBodyLength computes how many bytes of rest belong to the
// vendor+comment-list structure itself ([vendor_len:u32le][vendor]
// [count:u32le][[len:u32le][text]]*) plus, for Vorbis, its trailing
// framing bit, so the remainder (the Vorbis setup-header packet, packed
// into the same page run) can be preserved verbatim.
func commentBodyLength(rest []byte) (n int, err error) {
	if len(rest) < 4 {
		return 0, errors.New("ogg: truncated comment vendor length")
	}
	vendorLen := int(binary.LittleEndian.Uint32(rest[0:4]))
	off := 4 + vendorLen
	if off+4 > len(rest) {
		return 0, errors.New("ogg: truncated comment vendor string")
	}
	count := int(binary.LittleEndian.Uint32(rest[off : off+4]))
	off += 4
	for i := 0; i < count; i++ {
		if off+4 > len(rest) {
			return 0, errors.New("ogg: truncated comment list")
		}
		l := int(binary.LittleEndian.Uint32(rest[off : off+4]))
		off += 4 + l
		if off > len(rest) {
			return 0, errors.New("ogg: comment entry overruns packet")
		}
	}
	// Vorbis carries a trailing framing bit (1 byte, value 1) after the
	// comment list and before any following setup-header packet.
	if off < len(rest) && rest[off] == 1 {
		off++
	}
	return off, nil
}

// --- Split/Merge (C15) ------------------------------------------------------

// Split converts the comment list into the neutral item.Tag, reusing
// package flac's FieldTable and TRACKNUMBER/DISCNUMBER convention since
// both containers share the exact same comment-field semantics.
func (s *Stream) Split() (*item.Tag, error) {
	tmp := &flac.Stream{Comments: s.Comments}
	tag, err := tmp.Split()
	if err != nil {
		return nil, err
	}
	tag.Type = item.VorbisComments
	for _, p := range s.Pictures {
		tag.PushPicture(p)
	}
	return tag, nil
}

// Merge overlays tag onto remainder and returns the resulting Stream with
// a freshly built comment list; everything else (identification page,
// setup packet, audio pages) is carried over unchanged.
func Merge(remainder *Stream, tag *item.Tag) (*Stream, error) {
	tmp := &flac.Stream{Comments: remainder.Comments}
	built, err := flac.Merge(tmp, tag)
	if err != nil {
		return nil, err
	}

	out := *remainder
	out.Comments = built.Comments
	out.Pictures = append([]*picture.Picture(nil), tag.Pictures()...)
	return &out, nil
}

// WriteTo serializes s back to an Ogg logical bitstream: the
// identification page verbatim, freshly paginated comment (+ setup, for
// Vorbis) packet bytes, then the unchanged trailing audio pages.
func WriteTo(s *Stream, w io.Writer) (int64, error) {
	var n int64
	wn, err := w.Write(s.idPage)
	n += int64(wn)
	if err != nil {
		return n, err
	}

	pages := paginate(commentPackets(s), s.serial, s.nextSequence, false)
	for _, p := range pages {
		wn, err := w.Write(p)
		n += int64(wn)
		if err != nil {
			return n, err
		}
	}

	wn, err = w.Write(s.trailer)
	n += int64(wn)
	return n, err
}

// commentPackets returns the comment packet (and, for Vorbis, the
// separately-framed setup-header packet) that together replace the
// original header-page run. The comment packet's own trailing framing
// bit (required by the Vorbis comment-header layout, distinct from the
// setup packet that follows it as an entirely separate Ogg packet) is
// included here, not in the setup packet.
func commentPackets(s *Stream) [][]byte {
	cmt := s.Comments
	if len(s.Pictures) > 0 {
		rebuilt := flacvorbis.New()
		if s.Comments != nil {
			rebuilt.Vendor = s.Comments.Vendor
			rebuilt.Comments = append([]string(nil), s.Comments.Comments...)
		}
		for _, p := range s.Pictures {
			info := picture.DeriveInformation(p.Data)
			encoded := picture.EncodeFLACBlock(p, info, true)
			_ = rebuilt.Add(pictureCommentKey, string(encoded))
		}
		cmt = rebuilt
	}

	var body []byte
	if cmt != nil {
		b := cmt.Marshal()
		body = b.Data
	}
	var comment bytes.Buffer
	comment.Write(commentPrefix(s.Codec))
	comment.Write(body)
	if s.Codec == Vorbis {
		comment.WriteByte(1) // framing bit, part of the comment packet itself
	}

	packets := [][]byte{comment.Bytes()}
	if s.Codec == Vorbis {
		packets = append(packets, s.setupPacket)
	}
	return packets
}

type lacingEntry struct {
	value byte
	data  []byte
}

// packetLacing returns p's lacing-value sequence: repeated 255-byte
// segments followed by one segment strictly less than 255 (explicitly
// zero when len(p) is an exact multiple of 255, including the
// zero-length packet), per the Ogg framing spec.
func packetLacing(p []byte) []lacingEntry {
	var out []lacingEntry
	remaining := p
	for len(remaining) >= maxSegmentValue {
		out = append(out, lacingEntry{value: maxSegmentValue, data: remaining[:maxSegmentValue]})
		remaining = remaining[maxSegmentValue:]
	}
	out = append(out, lacingEntry{value: byte(len(remaining)), data: remaining})
	return out
}

// paginate packs packets' lacing entries into physical Ogg pages under
// serial (at most 255 segments per page, per the framing spec), starting
// at sequence firstSeq. A page boundary that falls mid-packet (the page's
// final lacing value is 255) marks the next page as a continuation.
// lastPage marks the final page with the EOS header flag when set.
func paginate(packets [][]byte, serial, firstSeq uint32, lastPage bool) [][]byte {
	var entries []lacingEntry
	for _, p := range packets {
		entries = append(entries, packetLacing(p)...)
	}

	var pages [][]byte
	seq := firstSeq
	continuation := false
	for i := 0; i < len(entries); {
		end := i + maxLacingPerPage
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[i:end]

		var segs []byte
		var body bytes.Buffer
		for _, e := range chunk {
			segs = append(segs, e.value)
			body.Write(e.data)
		}

		headerType := byte(0)
		if continuation {
			headerType |= 0x1
		}
		if lastPage && end == len(entries) {
			headerType |= 0x4 // EOS
		}

		pages = append(pages, buildPage(headerType, serial, seq, segs, body.Bytes()))
		seq++
		continuation = chunk[len(chunk)-1].value == maxSegmentValue
		i = end
	}
	return pages
}

func buildPage(headerType byte, serial, sequence uint32, segs []byte, body []byte) []byte {
	hdr := make([]byte, pageHeaderFixed)
	copy(hdr[0:4], capturePattern)
	hdr[4] = 0 // version
	hdr[5] = headerType
	// granule position: header pages carry 0 (this engine never rewrites
	// audio pages, only identification/comment/setup header pages).
	binary.LittleEndian.PutUint64(hdr[6:14], 0)
	binary.LittleEndian.PutUint32(hdr[14:18], serial)
	binary.LittleEndian.PutUint32(hdr[18:22], sequence)
	// checksum (hdr[22:26]) filled in below
	hdr[26] = byte(len(segs))

	page := make([]byte, 0, len(hdr)+len(segs)+len(body))
	page = append(page, hdr...)
	page = append(page, segs...)
	page = append(page, body...)

	crc := oggCRC32(page)
	binary.LittleEndian.PutUint32(page[22:26], crc)
	return page
}

const oggCRCPoly = 0x04c11db7

var oggCRCTable [256]uint32

func init() {
	for i := range oggCRCTable {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ oggCRCPoly
			} else {
				crc <<= 1
			}
		}
		oggCRCTable[i] = crc
	}
}

func oggCRC32(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}

