package tagengine

import "github.com/go-tagengine/tagengine/item"

// NativeTag is the minimal capability set every format-native tag type
// implements (§9's "TagExt-style capability set" — len/is_empty plus the
// split half of the C15 conversion layer; save/dump/remove are format-
// specific because each engine's rewrite mechanics differ (splice vs whole-
// file), so those live as typed functions on each engine package instead of
// a generic interface method).
type NativeTag interface {
	TagType() item.TagType
	Len() int
	IsEmpty() bool
	Split() (*item.Tag, error)
}

// TaggedFile is the result of a read (§6).
type TaggedFile struct {
	Type       FileType
	Properties Properties

	// Tags holds every neutral Tag extracted from the file, in read order
	// (a file may carry more than one tag type, e.g. an MPEG file with
	// both ID3v2 and APE tags).
	Tags []*item.Tag

	native map[item.TagType]NativeTag
}

func newTaggedFile(ft FileType) *TaggedFile {
	return &TaggedFile{Type: ft, native: make(map[item.TagType]NativeTag)}
}

func (tf *TaggedFile) addNative(n NativeTag) {
	tf.native[n.TagType()] = n
	neutral, err := n.Split()
	if err == nil && neutral != nil {
		tf.Tags = append(tf.Tags, neutral)
	}
}

// Native returns the raw native tag of the given type, or nil.
func (tf *TaggedFile) Native(tt item.TagType) NativeTag {
	return tf.native[tt]
}

// PrimaryTag returns the native tag matching the file type's primary tag
// type (§3's "(c)"), or nil if absent.
func (tf *TaggedFile) PrimaryTag() NativeTag {
	return tf.native[tf.Type.PrimaryTagType()]
}

// Tag returns the first neutral Tag of the given type, or nil.
func (tf *TaggedFile) Tag(tt item.TagType) *item.Tag {
	for _, t := range tf.Tags {
		if t.Type == tt {
			return t
		}
	}
	return nil
}
