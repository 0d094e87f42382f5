package matroska

import (
	"io"

	"github.com/go-tagengine/tagengine/ebml"
	"github.com/pkg/errors"
)

// ReadFrom parses DocType, Segment\Info duration, the first audio Track's
// properties, a Cluster-based bitrate estimate, and every Segment\Tags\Tag
// tree (§4.8).
func ReadFrom(r io.ReadSeeker) (*Tag, error) {
	fileLen, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "matroska: seeking to end")
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	root := io.NewSectionReader(r, 0, fileLen)

	top, err := ebml.ReadElements(root)
	if err != nil {
		return nil, errors.Wrap(err, "matroska: reading top-level elements")
	}

	tag := &Tag{DocType: "matroska"}
	var segment *ebml.Element
	for i := range top {
		switch top[i].ID {
		case idEBML:
			readEBMLHeader(root, top[i], tag)
		case idSegment:
			if segment == nil {
				segment = &top[i]
			}
		}
	}
	if segment == nil {
		return nil, errors.New("matroska: no Segment element found")
	}

	seg := segment.Content(root)
	children, err := ebml.ReadElements(seg)
	if err != nil {
		return nil, errors.Wrap(err, "matroska: reading Segment children")
	}

	var timecodeScale int64 = 1000000
	var durationTicks float64
	var haveDuration bool
	var totalBlockBytes int64
	var sawAudio bool

	for _, c := range children {
		switch c.ID {
		case idInfo:
			ts, dur, ok := readInfo(seg, c)
			if ts > 0 {
				timecodeScale = ts
			}
			if ok {
				durationTicks = dur
				haveDuration = true
			}
		case idTracks:
			if err := readTracks(seg, c, tag, &sawAudio); err != nil {
				return nil, err
			}
		case idCluster:
			totalBlockBytes += clusterBlockBytes(seg, c)
		case idTags:
			entries, err := readTagsElement(seg, c)
			if err != nil {
				return nil, err
			}
			tag.Entries = append(tag.Entries, entries...)
		}
	}

	if haveDuration {
		tag.Properties.Duration = int64(durationTicks * float64(timecodeScale) / 1e6)
	}
	if sawAudio && tag.Properties.Duration > 0 && totalBlockBytes > 0 {
		seconds := float64(tag.Properties.Duration) / 1000
		if seconds > 0 {
			tag.Properties.AudioBitrate = uint32(float64(totalBlockBytes) * 8 / seconds / 1000)
		}
	}

	return tag, nil
}

func readEBMLHeader(root *io.SectionReader, e ebml.Element, tag *Tag) {
	content := e.Content(root)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return
	}
	for _, c := range children {
		if c.ID == idDocType {
			if s, err := ebml.ReadString(content, c); err == nil && s != "" {
				tag.DocType = s
			}
		}
	}
}

func readInfo(seg *io.SectionReader, e ebml.Element) (timecodeScale int64, durationTicks float64, ok bool) {
	content := e.Content(seg)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return 0, 0, false
	}
	for _, c := range children {
		switch c.ID {
		case idTimecodeScale:
			if v, err := ebml.ReadUint(content, c); err == nil {
				timecodeScale = int64(v)
			}
		case idDuration:
			if d, fok := readFloatElement(content, c); fok {
				durationTicks = d
				ok = true
			}
		}
	}
	return timecodeScale, durationTicks, ok
}

// readFloatElement decodes an EBML "float" element: 4 bytes (IEEE 754
// single) or 8 bytes (double), big-endian, per the EBML spec.
func readFloatElement(parent *io.SectionReader, e ebml.Element) (float64, bool) {
	b, err := ebml.ReadBinary(parent, e)
	if err != nil {
		return 0, false
	}
	return decodeFloatBytes(b)
}

func readTracks(seg *io.SectionReader, e ebml.Element, tag *Tag, sawAudio *bool) error {
	content := e.Content(seg)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return errors.Wrap(err, "matroska: reading Tracks children")
	}
	for _, c := range children {
		if c.ID != idTrackEntry {
			continue
		}
		if readTrackEntry(content, c, tag) {
			*sawAudio = true
		}
	}
	return nil
}

// readTrackEntry reports whether the entry was an audio track; properties
// from the first audio track found win.
func readTrackEntry(tracks *io.SectionReader, e ebml.Element, tag *Tag) bool {
	content := e.Content(tracks)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return false
	}
	var trackType int64
	var codecID string
	var audioElem *ebml.Element
	for i, c := range children {
		switch c.ID {
		case idTrackType:
			if v, err := ebml.ReadUint(content, c); err == nil {
				trackType = int64(v)
			}
		case idCodecID:
			if s, err := ebml.ReadString(content, c); err == nil {
				codecID = s
			}
		case idAudio:
			audioElem = &children[i]
		}
	}
	if trackType != trackTypeAudio || audioElem == nil {
		return false
	}
	if tag.Properties.Codec == "" {
		tag.Properties.Codec = codecID
		readAudioSettings(content, *audioElem, tag)
	}
	return true
}

func readAudioSettings(trackEntry *io.SectionReader, e ebml.Element, tag *Tag) {
	content := e.Content(trackEntry)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return
	}
	for _, c := range children {
		switch c.ID {
		case idSamplingFrequency:
			if f, ok := readFloatElement(content, c); ok {
				tag.Properties.SampleRate = uint32(f)
			}
		case idChannels:
			if v, err := ebml.ReadUint(content, c); err == nil {
				tag.Properties.Channels = uint8(v)
			}
		case idBitDepth:
			if v, err := ebml.ReadUint(content, c); err == nil {
				tag.Properties.BitDepth = uint8(v)
			}
		}
	}
}

// clusterBlockBytes sums the raw size of every SimpleBlock/BlockGroup\Block
// child, the basis for the Cluster-based bitrate estimate (§9.1: spec.md
// allocates Matroska only a tag-tree reader, so a bitrate estimate has no
// format-specific header to read from the way MP4/FLAC do; Cluster payload
// volume over the Info\Duration is the idiomatic substitute).
func clusterBlockBytes(seg *io.SectionReader, e ebml.Element) int64 {
	content := e.Content(seg)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return 0
	}
	var total int64
	for _, c := range children {
		switch c.ID {
		case idSimpleBlock:
			total += c.Size
		case idBlockGroup:
			total += blockGroupBytes(content, c)
		}
	}
	return total
}

func blockGroupBytes(cluster *io.SectionReader, e ebml.Element) int64 {
	content := e.Content(cluster)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return 0
	}
	var total int64
	for _, c := range children {
		if c.ID == idBlock {
			total += c.Size
		}
	}
	return total
}
