package tagengine

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/go-tagengine/tagengine/ape"
	"github.com/go-tagengine/tagengine/flac"
	"github.com/go-tagengine/tagengine/id3v1"
	"github.com/go-tagengine/tagengine/id3v2"
	"github.com/go-tagengine/tagengine/ioref"
	"github.com/go-tagengine/tagengine/item"
	"github.com/go-tagengine/tagengine/matroska"
	"github.com/go-tagengine/tagengine/mp4"
	"github.com/go-tagengine/tagengine/mpeg"
	"github.com/go-tagengine/tagengine/ogg"
	"github.com/go-tagengine/tagengine/probs"
	"github.com/go-tagengine/tagengine/riff"
)

// apeFooterSize duplicates ape.go's unexported footerSize (32 bytes): the
// dispatcher needs the exact byte extent of a trailing APE tag to splice
// around it, which ape.ReadFrom deliberately doesn't expose.
const apeFooterSize = 32

const apeFlagHasHeader = 1 << 31

// readAllBytes snapshots r's entire current contents and leaves it
// positioned at the start.
func readAllBytes(r ioref.File) ([]byte, error) {
	n, err := r.Len()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return buf, nil
}

// replaceWhole overwrites w with data, implementing §5's ordering
// guarantee: truncate first only when shrinking, then a single monotonic
// write pass from offset 0.
func replaceWhole(w ioref.File, data []byte) error {
	cur, err := w.Len()
	if err != nil {
		return err
	}
	if int64(len(data)) < cur {
		if err := w.Truncate(int64(len(data))); err != nil {
			return err
		}
	}
	if _, err := w.WriteAt(data, 0); err != nil {
		return err
	}
	if int64(len(data)) > cur {
		return w.Truncate(int64(len(data)))
	}
	return nil
}

// leadingID3v2 decodes a leading ID3v2 tag from data, if present, returning
// the tag and the offset of the first byte after it. bodyOffset is 0 and
// tag is nil when data doesn't start with one.
func leadingID3v2(data []byte) (tag *id3v2.Tag, bodyOffset int64) {
	if len(data) < 10 || string(data[0:3]) != "ID3" {
		return nil, 0
	}
	t, err := id3v2.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, 0
	}
	hdr, err := id3v2.ReadHeader(bytes.NewReader(data))
	if err != nil {
		return nil, 0
	}
	return t, 10 + int64(hdr.Size)
}

// locateTrailer finds the byte extents of a trailing APE tag and/or
// trailing ID3v1 tag at the end of data, reimplementing ape.go's own
// footer-discovery math (neither ape.ReadFrom nor id3v1.ReadFrom expose
// where their tag actually starts, only its parsed contents). id3v1Start
// is the offset just past any APE tag (i.e. where the file's audio payload
// plus optional APE tag ends) regardless of whether an ID3v1 tag is
// actually present, so callers can always use it as the tail boundary.
func locateTrailer(data []byte) (apeStart int64, hasAPE bool, id3v1Start int64, hasID3v1 bool) {
	end := int64(len(data))
	tail := end
	id3v1Start = end

	if end >= id3v1.Size && string(data[end-id3v1.Size:end-id3v1.Size+3]) == "TAG" {
		tail = end - id3v1.Size
		id3v1Start = tail
		hasID3v1 = true
	}

	if tail < apeFooterSize {
		return tail, false, id3v1Start, hasID3v1
	}
	footer := data[tail-apeFooterSize : tail]
	if string(footer[0:8]) != "APETAGEX" {
		return tail, false, id3v1Start, hasID3v1
	}
	size := binary.LittleEndian.Uint32(footer[12:16])
	flags := binary.LittleEndian.Uint32(footer[20:24])
	if size < apeFooterSize {
		return tail, false, id3v1Start, hasID3v1
	}
	itemsStart := tail - int64(size)
	start := itemsStart
	if flags&apeFlagHasHeader != 0 {
		start -= apeFooterSize
	}
	if start < 0 {
		return tail, false, id3v1Start, hasID3v1
	}
	return start, true, id3v1Start, hasID3v1
}

func toID3v2WriteOptions(opts WriteOptions) id3v2.WriteOptions {
	return id3v2.WriteOptions{PreferredPadding: opts.PreferredPadding}
}

// ReadFrom classifies r and parses it into a TaggedFile per opts (§6).
func ReadFrom(r ioref.File, opts ParseOptions) (*TaggedFile, error) {
	ft, err := Classify(r)
	if err != nil {
		return nil, err
	}
	if ft == Custom {
		return readCustom(r, opts)
	}

	data, err := readAllBytes(r)
	if err != nil {
		return nil, Newf(ErrIO, err, "readFrom: reading file contents")
	}

	switch ft {
	case MPEG:
		return readMPEG(data, opts)
	case MP4:
		return readMP4(data, opts)
	case FLAC:
		return readFLAC(data, opts)
	case OggVorbis, Opus, Speex:
		return readOgg(data, opts, ft)
	case WAV, AIFF:
		return readRIFF(data, opts, ft)
	case APE, WavPack, MusepackSV4, MusepackSV5, MusepackSV6, MusepackSV7, MusepackSV8:
		return readApeFamily(data, opts, ft)
	case DSF:
		return readDSF(data, opts)
	case Matroska, WebM:
		return readMatroska(data, opts, ft)
	case ADTS:
		return readADTS(data, opts)
	default:
		return nil, Newf(ErrUnknownFormat, nil, "readFrom: unrecognized file type")
	}
}

func readCustom(r ioref.File, opts ParseOptions) (*TaggedFile, error) {
	for _, res := range allResolvers() {
		if res.ReadFn == nil {
			continue
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, Newf(ErrIO, err, "readFrom: seeking for custom resolver")
		}
		tf, err := res.ReadFn(r, opts)
		if err == nil {
			return tf, nil
		}
	}
	return nil, Newf(ErrUnknownFormat, nil, "readFrom: no registered resolver accepted the file")
}

func readMPEG(data []byte, opts ParseOptions) (*TaggedFile, error) {
	tf := newTaggedFile(MPEG)
	bodyOffset := int64(0)

	if opts.ReadTags {
		if t, off := leadingID3v2(data); t != nil {
			tf.addNative(t)
			bodyOffset = off
		}
		if t, err := ape.ReadFrom(bytes.NewReader(data)); err == nil {
			tf.addNative(t)
		}
		if t, err := id3v1.ReadFrom(bytes.NewReader(data)); err == nil {
			tf.addNative(t)
		}
	} else if t, off := leadingID3v2(data); t != nil {
		bodyOffset = off
	}

	if opts.ReadProperties {
		apeStart, hasAPE, id3v1Start, _ := locateTrailer(data)
		audioEnd := int64(len(data))
		if hasAPE {
			audioEnd = apeStart
		} else {
			audioEnd = id3v1Start
		}
		if audioEnd > bodyOffset {
			p, err := mpeg.ReadProperties(bytes.NewReader(data[bodyOffset:audioEnd]), audioEnd-bodyOffset)
			if err != nil {
				warnAnomaly(opts.ParsingMode, "mpeg: properties decode failed", "error", err)
			} else {
				tf.Properties = Properties{
					Duration:       p.Duration,
					OverallBitrate: uint32(p.Bitrate),
					AudioBitrate:   uint32(p.Bitrate),
					SampleRate:     uint32(p.SampleRate),
					Channels:       uint8(p.Channels),
					Codec:          "mp3",
				}
			}
		}
	}
	return tf, nil
}

func readApeFamily(data []byte, opts ParseOptions, ft FileType) (*TaggedFile, error) {
	tf := newTaggedFile(ft)

	if opts.ReadTags {
		if t, err := ape.ReadFrom(bytes.NewReader(data)); err == nil {
			tf.addNative(t)
		}
		if t, err := id3v1.ReadFrom(bytes.NewReader(data)); err == nil {
			tf.addNative(t)
		}
	}

	if opts.ReadProperties {
		apeStart, hasAPE, id3v1Start, _ := locateTrailer(data)
		audioEnd := id3v1Start
		if hasAPE {
			audioEnd = apeStart
		}
		if audioEnd > int64(len(data)) {
			audioEnd = int64(len(data))
		}
		tf.Properties = readApeFamilyProperties(data[:audioEnd], ft, int64(len(data)), opts.ParsingMode)
	}
	return tf, nil
}

// readApeFamilyProperties decodes the stream-specific audio header that
// precedes the trailing tags shared by APE/WavPack/Musepack (§4.9-§4.11).
func readApeFamilyProperties(audio []byte, ft FileType, fileLen int64, mode ParsingMode) Properties {
	switch ft {
	case APE:
		if len(audio) <= 4 {
			return Properties{Codec: "ape"}
		}
		p, err := probs.ReadAPEAudio(bytes.NewReader(audio[4:]), int64(len(audio))-4, fileLen)
		if err != nil {
			warnAnomaly(mode, "ape: audio properties decode failed", "error", err)
			return Properties{Codec: "ape"}
		}
		return Properties{
			Duration: p.Duration, OverallBitrate: uint32(p.OverallBitrate),
			AudioBitrate: uint32(p.AudioBitrate), SampleRate: uint32(p.SampleRate),
			BitDepth: uint8(p.BitDepth), Channels: uint8(p.Channels), Codec: "ape",
		}
	case WavPack:
		if len(audio) <= 4 {
			return Properties{Codec: "wavpack"}
		}
		p, err := probs.ReadWavPack(bytes.NewReader(audio[4:]), int64(len(audio))-4)
		if err != nil {
			warnAnomaly(mode, "wavpack: properties decode failed", "error", err)
			return Properties{Codec: "wavpack"}
		}
		return Properties{
			Duration: p.Duration, OverallBitrate: uint32(p.OverallBitrate),
			AudioBitrate: uint32(p.AudioBitrate), SampleRate: uint32(p.SampleRate),
			BitDepth: uint8(p.BitDepth), Channels: uint8(p.Channels), Codec: "wavpack",
		}
	case MusepackSV8:
		if len(audio) <= 4 {
			return Properties{Codec: "musepack"}
		}
		p, err := probs.ReadMusepackSV8(bytes.NewReader(audio[4:]), int64(len(audio))-4)
		if err != nil {
			warnAnomaly(mode, "musepack: sv8 properties decode failed", "error", err)
			return Properties{Codec: "musepack"}
		}
		return Properties{
			Duration: p.Duration, AudioBitrate: uint32(p.AverageBitrate),
			SampleRate: uint32(p.SampleRate), Channels: uint8(p.Channels), Codec: "musepack",
		}
	case MusepackSV4, MusepackSV5, MusepackSV6:
		if len(audio) <= 3 {
			return Properties{Codec: "musepack"}
		}
		p, err := probs.ReadMusepackSV4to6(bytes.NewReader(audio[3:]), int64(len(audio))-3)
		if err != nil {
			warnAnomaly(mode, "musepack: sv4-6 properties decode failed", "error", err)
			return Properties{Codec: "musepack"}
		}
		return Properties{
			Duration: p.Duration, AudioBitrate: uint32(p.AverageBitrate),
			SampleRate: uint32(p.SampleRate), Channels: uint8(p.Channels), Codec: "musepack",
		}
	default:
		// MusepackSV7's stream header uses a layout probs.go explicitly
		// doesn't decode (see classifyMusepackSV4to6); tags are still
		// readable, properties are not.
		return Properties{Codec: "musepack"}
	}
}

func readDSF(data []byte, opts ParseOptions) (*TaggedFile, error) {
	tf := newTaggedFile(DSF)
	if opts.ReadTags && len(data) >= 28 {
		ptr := binary.LittleEndian.Uint64(data[20:28])
		if ptr > 0 && ptr < uint64(len(data)) {
			if t, err := id3v2.ReadFrom(bytes.NewReader(data[ptr:])); err == nil {
				tf.addNative(t)
			}
		}
	}
	if opts.ReadProperties {
		p, err := probs.ReadDSF(bytes.NewReader(data))
		if err != nil {
			warnAnomaly(opts.ParsingMode, "dsf: properties decode failed", "error", err)
		} else {
			tf.Properties = Properties{
				Duration: p.Duration, SampleRate: uint32(p.SampleRate),
				BitDepth: uint8(p.BitsPerSample), Channels: uint8(p.Channels), Codec: "dsd",
			}
		}
	}
	return tf, nil
}

func readADTS(data []byte, opts ParseOptions) (*TaggedFile, error) {
	tf := newTaggedFile(ADTS)
	if opts.ReadTags {
		if t, _ := leadingID3v2(data); t != nil {
			tf.addNative(t)
		}
	}
	// §4 names no ADTS properties engine (only classification and an
	// ID3v2 tag slot), so frame-level sample-rate/channel decoding is out
	// of scope here.
	tf.Properties.Codec = "aac"
	return tf, nil
}

func readFLAC(data []byte, opts ParseOptions) (*TaggedFile, error) {
	stream, err := flac.ReadFrom(bytes.NewReader(data), opts.ParsingMode == Strict)
	if err != nil {
		return nil, Newf(ErrFlac, err, "readFrom: reading FLAC stream")
	}
	tf := newTaggedFile(FLAC)
	if opts.ReadTags {
		tf.addNative(stream)
	}
	if !opts.ReadCoverArt {
		stream.Pictures = nil
	}
	if opts.ReadProperties {
		info := stream.Info
		tf.Properties = Properties{
			SampleRate: info.SampleRate,
			BitDepth:   info.BitsPerSample,
			Channels:   info.Channels,
			Codec:      "flac",
		}
		if info.SampleRate > 0 {
			tf.Properties.Duration = time.Duration(info.TotalSamples) * time.Second / time.Duration(info.SampleRate)
		}
	}
	return tf, nil
}

func readOgg(data []byte, opts ParseOptions, ft FileType) (*TaggedFile, error) {
	stream, err := ogg.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, Newf(ErrVorbis, err, "readFrom: reading Ogg stream")
	}
	tf := newTaggedFile(ft)
	if opts.ReadTags {
		tf.addNative(stream)
	}
	if opts.ReadProperties {
		codec := "vorbis"
		switch stream.Codec {
		case ogg.Opus:
			codec = "opus"
		case ogg.Speex:
			codec = "speex"
		}
		tf.Properties = Properties{
			SampleRate: stream.SampleRate,
			Channels:   stream.Channels,
			Codec:      codec,
		}
	}
	return tf, nil
}

func readRIFF(data []byte, opts ParseOptions, ft FileType) (*TaggedFile, error) {
	stream, err := riff.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, Newf(ErrWav, err, "readFrom: reading RIFF/AIFF container")
	}
	tf := newTaggedFile(ft)
	if opts.ReadTags {
		if stream.Info != nil {
			tf.addNative(stream.Info)
		}
		if stream.Text != nil {
			tf.addNative(stream.Text)
		}
		if len(stream.ID3Chunk) > 0 {
			if t, err := id3v2.ReadFrom(bytes.NewReader(stream.ID3Chunk)); err == nil {
				tf.addNative(t)
			}
		}
	}
	if opts.ReadProperties {
		codec := "pcm"
		if stream.Form == riff.AIFF {
			codec = "aiff-pcm"
		}
		tf.Properties = Properties{
			Duration:   stream.Duration,
			SampleRate: stream.SampleRate,
			BitDepth:   uint8(stream.BitsPerSample),
			Channels:   uint8(stream.Channels),
			Codec:      codec,
		}
	}
	return tf, nil
}

func readMP4(data []byte, opts ParseOptions) (*TaggedFile, error) {
	tag, err := mp4.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, Newf(ErrMp4, err, "readFrom: reading MP4 container")
	}
	tf := newTaggedFile(MP4)
	if opts.ReadTags {
		tf.addNative(tag)
	}
	if opts.ReadProperties {
		p := tag.Properties
		tf.Properties = Properties{
			Duration:     time.Duration(p.Duration) * time.Millisecond,
			SampleRate:   p.SampleRate,
			BitDepth:     p.BitDepth,
			Channels:     p.Channels,
			AudioBitrate: p.AudioBitrate,
			Codec:        p.Codec,
		}
	}
	return tf, nil
}

func readMatroska(data []byte, opts ParseOptions, ft FileType) (*TaggedFile, error) {
	tag, err := matroska.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, Newf(ErrEbml, err, "readFrom: reading Matroska/WebM container")
	}
	tf := newTaggedFile(ft)
	if opts.ReadTags {
		tf.addNative(tag)
	}
	if opts.ReadProperties {
		p := tag.Properties
		tf.Properties = Properties{
			Duration:     time.Duration(p.Duration) * time.Millisecond,
			SampleRate:   p.SampleRate,
			BitDepth:     p.BitDepth,
			Channels:     p.Channels,
			AudioBitrate: p.AudioBitrate,
			Codec:        p.Codec,
		}
	}
	return tf, nil
}

// WriteTo encodes t and splices or rebuilds it into w's current contents
// (§6): component serialization happens entirely before w is touched, then
// replaceWhole performs the single truncate-then-write pass from §5.
func WriteTo(w ioref.File, t NativeTag, opts WriteOptions) error {
	data, err := readAllBytes(w)
	if err != nil {
		return Newf(ErrIO, err, "writeTo: reading current contents")
	}

	var out []byte
	switch nt := t.(type) {
	case *flac.Stream:
		var buf bytes.Buffer
		if _, err := flac.WriteTo(nt, &buf); err != nil {
			return Newf(ErrFlac, err, "writeTo: encoding FLAC stream")
		}
		out = buf.Bytes()

	case *ogg.Stream:
		var buf bytes.Buffer
		if _, err := ogg.WriteTo(nt, &buf); err != nil {
			return Newf(ErrVorbis, err, "writeTo: encoding Ogg stream")
		}
		out = buf.Bytes()

	case *mp4.Tag:
		var buf bytes.Buffer
		if _, err := mp4.WriteTo(bytes.NewReader(data), nt, &buf); err != nil {
			return Newf(ErrMp4, err, "writeTo: splicing MP4 ilst")
		}
		out = buf.Bytes()

	case *matroska.Tag:
		var buf bytes.Buffer
		if _, err := matroska.WriteTo(bytes.NewReader(data), nt, &buf); err != nil {
			return Newf(ErrEbml, err, "writeTo: splicing Matroska tags")
		}
		out = buf.Bytes()

	case *riff.Tag:
		stream, err := riff.ReadFrom(bytes.NewReader(data))
		if err != nil {
			return Newf(ErrWav, err, "writeTo: reading RIFF/AIFF container")
		}
		if nt.TagType() == item.AIFFText {
			stream.Text = nt
		} else {
			stream.Info = nt
		}
		var buf bytes.Buffer
		if _, err := riff.WriteTo(stream, &buf); err != nil {
			return Newf(ErrWav, err, "writeTo: encoding RIFF/AIFF container")
		}
		out = buf.Bytes()

	case *id3v2.Tag:
		_, bodyOffset := leadingID3v2(data)
		var tagBuf bytes.Buffer
		if _, err := id3v2.WriteTo(nt, toID3v2WriteOptions(opts), &tagBuf); err != nil {
			return Newf(ErrId3v2, err, "writeTo: encoding ID3v2 tag")
		}
		out = append(append([]byte{}, tagBuf.Bytes()...), data[bodyOffset:]...)

	case *ape.Tag:
		apeStart, _, id3v1Start, hasID3v1 := locateTrailer(data)
		var tagBuf bytes.Buffer
		if _, err := ape.WriteTo(nt, &tagBuf); err != nil {
			return Newf(ErrApe, err, "writeTo: encoding APE tag")
		}
		var tail []byte
		if hasID3v1 {
			tail = data[id3v1Start:]
		}
		out = append(append(append([]byte{}, data[:apeStart]...), tagBuf.Bytes()...), tail...)

	case *id3v1.Tag:
		_, _, id3v1Start, _ := locateTrailer(data)
		var tagBuf bytes.Buffer
		if _, err := id3v1.WriteTo(nt, &tagBuf); err != nil {
			return Newf(ErrId3v1, err, "writeTo: encoding ID3v1 tag")
		}
		out = append(append([]byte{}, data[:id3v1Start]...), tagBuf.Bytes()...)

	default:
		return Newf(ErrUnsupportedTag, nil, "writeTo: unsupported native tag type %T", t)
	}

	return replaceWhole(w, out)
}

// RemoveFrom strips tt's tag region from w, rebuilding the surrounding
// container where the format requires it (§6).
func RemoveFrom(w ioref.File, tt item.TagType) error {
	data, err := readAllBytes(w)
	if err != nil {
		return Newf(ErrIO, err, "removeFrom: reading current contents")
	}

	var out []byte
	switch tt {
	case item.ID3v2:
		_, bodyOffset := leadingID3v2(data)
		out = append([]byte{}, data[bodyOffset:]...)

	case item.APE:
		apeStart, hasAPE, id3v1Start, hasID3v1 := locateTrailer(data)
		if !hasAPE {
			return nil
		}
		var tail []byte
		if hasID3v1 {
			tail = data[id3v1Start:]
		}
		out = append(append([]byte{}, data[:apeStart]...), tail...)

	case item.ID3v1:
		_, _, id3v1Start, hasID3v1 := locateTrailer(data)
		if !hasID3v1 {
			return nil
		}
		out = append([]byte{}, data[:id3v1Start]...)

	case item.VorbisComments:
		ft, err := Classify(w)
		if err != nil {
			return err
		}
		switch ft {
		case FLAC:
			_, bodyOffset := leadingID3v2(data)
			stream, err := flac.ReadFrom(bytes.NewReader(data[bodyOffset:]), false)
			if err != nil {
				return Newf(ErrFlac, err, "removeFrom: reading FLAC stream")
			}
			stream.Comments = nil
			var buf bytes.Buffer
			if _, err := flac.WriteTo(stream, &buf); err != nil {
				return Newf(ErrFlac, err, "removeFrom: re-encoding FLAC stream")
			}
			out = append(append([]byte{}, data[:bodyOffset]...), buf.Bytes()...)
		case OggVorbis, Opus, Speex:
			stream, err := ogg.ReadFrom(bytes.NewReader(data))
			if err != nil {
				return Newf(ErrVorbis, err, "removeFrom: reading Ogg stream")
			}
			stream.Comments = nil
			var buf bytes.Buffer
			if _, err := ogg.WriteTo(stream, &buf); err != nil {
				return Newf(ErrVorbis, err, "removeFrom: re-encoding Ogg stream")
			}
			out = buf.Bytes()
		default:
			return Newf(ErrUnsupportedTag, nil, "removeFrom: %v does not carry Vorbis comments", ft)
		}

	case item.MP4Ilst:
		tag, err := mp4.ReadFrom(bytes.NewReader(data))
		if err != nil {
			return Newf(ErrMp4, err, "removeFrom: reading MP4 container")
		}
		tag.Atoms = nil
		var buf bytes.Buffer
		if _, err := mp4.WriteTo(bytes.NewReader(data), tag, &buf); err != nil {
			return Newf(ErrMp4, err, "removeFrom: splicing empty ilst")
		}
		out = buf.Bytes()

	case item.MatroskaSimple:
		tag, err := matroska.ReadFrom(bytes.NewReader(data))
		if err != nil {
			return Newf(ErrEbml, err, "removeFrom: reading Matroska/WebM container")
		}
		tag.Entries = nil
		var buf bytes.Buffer
		if _, err := matroska.WriteTo(bytes.NewReader(data), tag, &buf); err != nil {
			return Newf(ErrEbml, err, "removeFrom: splicing empty tags")
		}
		out = buf.Bytes()

	case item.RIFFInfo, item.AIFFText:
		stream, err := riff.ReadFrom(bytes.NewReader(data))
		if err != nil {
			return Newf(ErrWav, err, "removeFrom: reading RIFF/AIFF container")
		}
		if tt == item.AIFFText {
			stream.Text = nil
		} else {
			stream.Info = nil
		}
		var buf bytes.Buffer
		if _, err := riff.WriteTo(stream, &buf); err != nil {
			return Newf(ErrWav, err, "removeFrom: encoding RIFF/AIFF container")
		}
		out = buf.Bytes()

	default:
		return Newf(ErrUnsupportedTag, nil, "removeFrom: unsupported tag type %v", tt)
	}

	return replaceWhole(w, out)
}
