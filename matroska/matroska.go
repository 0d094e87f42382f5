// Package matroska implements the Matroska/WebM tag tree engine (C8):
// Segment/Tags/Targets/SimpleTag traversal built on the generic tagengine/
// ebml element reader, plus Cluster-based bitrate estimation and split/
// merge with the neutral item.Tag.
//
// Grounded on pixelbender-go-matroska's matroska/matroska.go element-ID
// table (the struct tags there, e.g. `ebml:"1254C367>7373"`, record the
// same IDs this package defines as named constants) and on
// original_source/lofty's ebml/tag/target*.rs for the Target/TargetType
// defaulting rule documented in SPEC_FULL.md §9.1.
package matroska

import "github.com/go-tagengine/tagengine/item"

// Element IDs this package reads or writes, named per the Matroska/EBML
// schema (§4.8, §9.1). IDs keep their VINT length-marker bit, matching
// ebml.Element.ID's convention.
const (
	idEBML    uint64 = 0x1A45DFA3
	idDocType uint64 = 0x4282

	idSegment  uint64 = 0x18538067
	idInfo     uint64 = 0x1549A966
	idTracks   uint64 = 0x1654AE6B
	idCluster  uint64 = 0x1F43B675
	idTags     uint64 = 0x1254C367

	// Info children.
	idTimecodeScale uint64 = 0x2AD7B1
	idDuration      uint64 = 0x4489

	// Tracks children.
	idTrackEntry uint64 = 0xAE
	idTrackType  uint64 = 0x83
	idTrackUID   uint64 = 0x73C5
	idCodecID    uint64 = 0x86
	idAudio      uint64 = 0xE1

	// Audio children.
	idSamplingFrequency uint64 = 0xB5
	idChannels          uint64 = 0x9F
	idBitDepth          uint64 = 0x6264

	// Cluster children.
	idSimpleBlock uint64 = 0xA3
	idBlockGroup  uint64 = 0xA0
	idBlock       uint64 = 0xA1

	// Tags children.
	idTag        uint64 = 0x7373
	idTargets    uint64 = 0x63C0
	idSimpleTag  uint64 = 0x67C8

	// Targets children.
	idTargetTypeValue uint64 = 0x68CA
	idTargetType      uint64 = 0x63CA
	idTagTrackUID     uint64 = 0x63C5

	// SimpleTag children.
	idTagName     uint64 = 0x45A3
	idTagLanguage uint64 = 0x447A
	idTagDefault  uint64 = 0x4484
	idTagString   uint64 = 0x4487
	idTagBinary   uint64 = 0x4485
)

const (
	trackTypeVideo = 1
	trackTypeAudio = 2
)

// DefaultTargetTypeValue is the value a Targets element with no explicit
// TargetTypeValue child is taken to carry: Album/Set (§9.1).
const DefaultTargetTypeValue = 50

// Targets names the UID(s) and scope a SimpleTag tree applies to.
type Targets struct {
	TypeValue     int64
	Type          string
	TrackUIDs     []int64
	EditionUIDs   []int64
	ChapterUIDs   []int64
	AttachmentUIDs []int64
}

// SimpleTag is one name/value node, possibly with nested SimpleTags (the
// schema allows arbitrary nesting, e.g. a "LYRICS" tag carrying a nested
// per-language "LANGUAGE" tag).
type SimpleTag struct {
	Name     string
	Language string
	Default  bool
	String   string
	Binary   []byte
	Nested   []SimpleTag
}

// TagEntry is one top-level Tag element: a Targets scope plus its
// SimpleTag tree.
type TagEntry struct {
	Targets Targets
	Tags    []SimpleTag
}

// Properties holds the audio characteristics read from the first audio
// Track plus a Cluster-derived bitrate estimate (§4.8).
type Properties struct {
	Codec        string
	Duration     int64 // milliseconds
	SampleRate   uint32
	Channels     uint8
	BitDepth     uint8
	AudioBitrate uint32 // kbps, estimated from Cluster block sizes
}

// Tag is the in-memory Matroska/WebM tag tree (§4.8, §9.1).
type Tag struct {
	DocType    string // "matroska" or "webm"
	Entries    []TagEntry
	Properties Properties
}

// TagType implements tagengine.NativeTag.
func (t *Tag) TagType() item.TagType { return item.MatroskaSimple }

// Len implements tagengine.NativeTag: the number of SimpleTag leaves
// across every TagEntry.
func (t *Tag) Len() int {
	n := 0
	for _, e := range t.Entries {
		n += countSimpleTags(e.Tags)
	}
	return n
}

// IsEmpty implements tagengine.NativeTag.
func (t *Tag) IsEmpty() bool { return t.Len() == 0 }

func countSimpleTags(tags []SimpleTag) int {
	n := len(tags)
	for _, st := range tags {
		n += countSimpleTags(st.Nested)
	}
	return n
}
