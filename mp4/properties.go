package mp4

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// sampleRates is the ISO/IEC 14496-3 AudioSpecificConfig frequency-index
// table; index 15 means "read 24 explicit bits instead" (§9.1, grounded on
// original_source/lofty's mp4/properties.rs SAMPLE_RATES table).
var sampleRates = [...]uint32{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0,
}

// readTrak walks one "trak" box looking for its handler type (only "soun"
// tracks carry audio properties), mdhd duration/timescale, and stsd codec
// detection. It does not look at stco/co64; the write path re-reads the
// moov tree for its chunk-offset fixup (§9.1).
func readTrak(trak *io.SectionReader, tag *Tag) error {
	children, err := walkBoxes(trak)
	if err != nil {
		return errors.Wrap(err, "mp4: reading trak children")
	}
	var mdiaBox *box
	for i := range children {
		if children[i].name == "mdia" {
			mdiaBox = &children[i]
			break
		}
	}
	if mdiaBox == nil {
		return nil
	}
	mdia := childReader(trak, *mdiaBox)
	mdiaChildren, err := walkBoxes(mdia)
	if err != nil {
		return errors.Wrap(err, "mp4: reading mdia children")
	}

	isSound := false
	for _, c := range mdiaChildren {
		if c.name == "hdlr" {
			isSound = readHandlerType(childReader(mdia, c)) == "soun"
		}
	}

	for _, c := range mdiaChildren {
		switch c.name {
		case "mdhd":
			if isSound {
				readMdhd(childReader(mdia, c), tag)
			}
		case "minf":
			if isSound {
				if err := readMinf(childReader(mdia, c), tag); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func readHandlerType(sr *io.SectionReader) string {
	if sr.Size() < 12 {
		return ""
	}
	var b [12]byte
	if _, err := sr.ReadAt(b[:], 0); err != nil && err != io.EOF {
		return ""
	}
	return string(b[8:12])
}

func readMdhd(sr *io.SectionReader, tag *Tag) {
	if sr.Size() < 1 {
		return
	}
	var versionByte [1]byte
	if _, err := sr.ReadAt(versionByte[:], 0); err != nil {
		return
	}
	var timescale uint32
	var duration uint64
	if versionByte[0] == 1 {
		var b [28]byte
		if _, err := sr.ReadAt(b[:], 4); err != nil && err != io.EOF {
			return
		}
		timescale = binary.BigEndian.Uint32(b[16:20])
		duration = binary.BigEndian.Uint64(b[20:28])
	} else {
		var b [16]byte
		if _, err := sr.ReadAt(b[:], 4); err != nil && err != io.EOF {
			return
		}
		timescale = binary.BigEndian.Uint32(b[8:12])
		duration = uint64(binary.BigEndian.Uint32(b[12:16]))
	}
	if timescale > 0 {
		tag.Properties.Duration = int64(duration) * 1000 / int64(timescale)
	}
}

func readMinf(minf *io.SectionReader, tag *Tag) error {
	children, err := walkBoxes(minf)
	if err != nil {
		return errors.Wrap(err, "mp4: reading minf children")
	}
	for _, c := range children {
		if c.name != "stbl" {
			continue
		}
		return readStbl(childReader(minf, c), tag)
	}
	return nil
}

func readStbl(stbl *io.SectionReader, tag *Tag) error {
	children, err := walkBoxes(stbl)
	if err != nil {
		return errors.Wrap(err, "mp4: reading stbl children")
	}
	for _, c := range children {
		if c.name == "stsd" {
			if err := readStsd(childReader(stbl, c), tag); err != nil {
				return err
			}
		}
	}
	return nil
}

func readStsd(sr *io.SectionReader, tag *Tag) error {
	if sr.Size() < 8 {
		return nil
	}
	body := io.NewSectionReader(sr, 8, sr.Size()-8) // skip version/flags(4)+entry_count(4)
	boxes, err := walkBoxes(body)
	if err != nil {
		return errors.Wrap(err, "mp4: reading stsd entries")
	}
	if len(boxes) == 0 {
		return nil
	}
	entry := boxes[0]
	entryReader := childReader(body, entry)
	switch entry.name {
	case "mp4a":
		tag.Properties.Codec = "aac"
		return readMp4aEntry(entryReader, tag)
	case "alac":
		tag.Properties.Codec = "alac"
		return readAlacEntry(entryReader, tag)
	default:
		tag.Properties.Codec = entry.name
		return nil
	}
}

const audioSampleEntryFixedLen = 28

func readMp4aEntry(sr *io.SectionReader, tag *Tag) error {
	if sr.Size() < audioSampleEntryFixedLen {
		return nil
	}
	var fixed [audioSampleEntryFixedLen]byte
	if _, err := sr.ReadAt(fixed[:], 0); err != nil && err != io.EOF {
		return err
	}
	tag.Properties.Channels = uint8(binary.BigEndian.Uint16(fixed[16:18]))
	tag.Properties.BitDepth = uint8(binary.BigEndian.Uint16(fixed[18:20]))
	tag.Properties.SampleRate = binary.BigEndian.Uint32(fixed[24:28]) >> 16

	rest := io.NewSectionReader(sr, audioSampleEntryFixedLen, sr.Size()-audioSampleEntryFixedLen)
	boxes, err := walkBoxes(rest)
	if err != nil {
		return nil //nolint: the esds child is optional for malformed files
	}
	for _, b := range boxes {
		if b.name != "esds" {
			continue
		}
		return readEsds(childReader(rest, b), tag)
	}
	return nil
}

// readEsds decodes the ES_Descriptor -> DecoderConfigDescriptor ->
// DecoderSpecificInfo chain down to the AudioSpecificConfig (§9.1, grounded
// on lofty's mp4/properties.rs Descriptor::read and AudioSpecificConfig
// parse).
func readEsds(sr *io.SectionReader, tag *Tag) error {
	if sr.Size() < 4 {
		return nil
	}
	buf := make([]byte, sr.Size())
	if _, err := sr.ReadAt(buf, 0); err != nil && err != io.EOF {
		return err
	}
	buf = buf[4:] // version/flags

	tag03, payload03, rest, ok := readDescriptor(buf)
	if !ok || tag03 != 0x03 {
		return nil
	}
	if len(payload03) < 3 {
		return nil
	}
	_ = rest
	// ES_ID(2) + flags(1); skip optional fields per the flags byte.
	flags := payload03[2]
	off := 3
	if flags&0x80 != 0 { // streamDependenceFlag
		off += 2
	}
	if flags&0x40 != 0 { // URL_Flag
		if off >= len(payload03) {
			return nil
		}
		urlLen := int(payload03[off])
		off += 1 + urlLen
	}
	if flags&0x20 != 0 { // OCRstreamFlag
		off += 2
	}
	if off > len(payload03) {
		return nil
	}

	tag04, payload04, _, ok := readDescriptor(payload03[off:])
	if !ok || tag04 != 0x04 {
		return nil
	}
	if len(payload04) < 13 {
		return nil
	}
	avgBitrate := binary.BigEndian.Uint32(payload04[9:13])

	tag05, payload05, _, ok := readDescriptor(payload04[13:])
	if !ok || tag05 != 0x05 {
		return nil
	}
	parseAudioSpecificConfig(payload05, tag)
	if avgBitrate > 0 {
		tag.Properties.AudioBitrate = avgBitrate / 1000
	}
	return nil
}

// readDescriptor decodes one MPEG-4 descriptor: a tag byte followed by an
// expandable-size length (continuation-bit base-128, up to 4 bytes) and
// that many payload bytes. Returns the remaining buffer after the
// descriptor.
func readDescriptor(b []byte) (tagByte byte, payload, rest []byte, ok bool) {
	if len(b) < 2 {
		return 0, nil, nil, false
	}
	tagByte = b[0]
	b = b[1:]
	var size uint32
	i := 0
	for i < 4 && i < len(b) {
		size = (size << 7) | uint32(b[i]&0x7F)
		more := b[i]&0x80 != 0
		i++
		if !more {
			break
		}
	}
	b = b[i:]
	if uint32(len(b)) < size {
		return 0, nil, nil, false
	}
	return tagByte, b[:size], b[size:], true
}

type bitReader struct {
	data []byte
	pos  int // bit position
}

func (r *bitReader) readBits(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		byteIdx := r.pos / 8
		if byteIdx >= len(r.data) {
			r.pos++
			continue
		}
		bitIdx := 7 - (r.pos % 8)
		bit := (r.data[byteIdx] >> uint(bitIdx)) & 1
		v = (v << 1) | uint32(bit)
		r.pos++
	}
	return v
}

// parseAudioSpecificConfig decodes the bit-packed AAC AudioSpecificConfig
// (§9.1): 5-bit object type (31 meaning a 6-bit extended object type
// follows), 4-bit frequency index (15 meaning 24 explicit bits follow),
// 4-bit channel configuration.
func parseAudioSpecificConfig(b []byte, tag *Tag) {
	br := &bitReader{data: b}
	objectType := br.readBits(5)
	if objectType == 31 {
		objectType = 32 + br.readBits(6)
	}
	freqIdx := br.readBits(4)
	var sampleRate uint32
	if freqIdx == 15 {
		sampleRate = br.readBits(24)
	} else if int(freqIdx) < len(sampleRates) {
		sampleRate = sampleRates[freqIdx]
	}
	channelConfig := br.readBits(4)

	if sampleRate > 0 {
		tag.Properties.SampleRate = sampleRate
	}
	if channelConfig > 0 {
		tag.Properties.Channels = uint8(channelConfig)
	}
	if objectType == 36 {
		tag.Properties.Codec = "als"
	}
}

const alacCookieLen = 24

func readAlacEntry(sr *io.SectionReader, tag *Tag) error {
	if sr.Size() < audioSampleEntryFixedLen {
		return nil
	}
	rest := io.NewSectionReader(sr, audioSampleEntryFixedLen, sr.Size()-audioSampleEntryFixedLen)
	boxes, err := walkBoxes(rest)
	if err != nil {
		return nil
	}
	for _, b := range boxes {
		if b.name != "alac" {
			continue
		}
		cr := childReader(rest, b)
		if cr.Size() < 4+alacCookieLen {
			return nil
		}
		cookie := make([]byte, alacCookieLen)
		if _, err := cr.ReadAt(cookie, 4); err != nil && err != io.EOF {
			return err
		}
		tag.Properties.BitDepth = cookie[5]
		tag.Properties.Channels = cookie[9]
		tag.Properties.AudioBitrate = binary.BigEndian.Uint32(cookie[16:20]) / 1000
		tag.Properties.SampleRate = binary.BigEndian.Uint32(cookie[20:24])
	}
	return nil
}
