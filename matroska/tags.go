package matroska

import (
	"io"
	"math"

	"github.com/go-tagengine/tagengine/ebml"
	"github.com/pkg/errors"
)

// readTagsElement parses one Segment\Tags element into its Tag children.
func readTagsElement(seg *io.SectionReader, e ebml.Element) ([]TagEntry, error) {
	content := e.Content(seg)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return nil, errors.Wrap(err, "matroska: reading Tags children")
	}
	var out []TagEntry
	for _, c := range children {
		if c.ID != idTag {
			continue
		}
		entry, err := readTagEntry(content, c)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func readTagEntry(tags *io.SectionReader, e ebml.Element) (TagEntry, error) {
	content := e.Content(tags)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return TagEntry{}, errors.Wrap(err, "matroska: reading Tag children")
	}
	entry := TagEntry{Targets: Targets{TypeValue: DefaultTargetTypeValue}}
	for _, c := range children {
		switch c.ID {
		case idTargets:
			entry.Targets = readTargets(content, c)
		case idSimpleTag:
			st, err := readSimpleTag(content, c)
			if err != nil {
				return TagEntry{}, err
			}
			entry.Tags = append(entry.Tags, st)
		}
	}
	return entry, nil
}

// readTargets parses a Targets element (§9.1): TargetTypeValue defaults to
// DefaultTargetTypeValue (Album/Set) when absent.
func readTargets(tag *io.SectionReader, e ebml.Element) Targets {
	content := e.Content(tag)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return Targets{TypeValue: DefaultTargetTypeValue}
	}
	t := Targets{TypeValue: DefaultTargetTypeValue}
	haveTypeValue := false
	for _, c := range children {
		switch c.ID {
		case idTargetTypeValue:
			if v, err := ebml.ReadUint(content, c); err == nil {
				t.TypeValue = int64(v)
				haveTypeValue = true
			}
		case idTargetType:
			if s, err := ebml.ReadString(content, c); err == nil {
				t.Type = s
			}
		case idTagTrackUID:
			if v, err := ebml.ReadUint(content, c); err == nil {
				t.TrackUIDs = append(t.TrackUIDs, int64(v))
			}
		}
	}
	_ = haveTypeValue
	return t
}

// readSimpleTag recursively parses one SimpleTag node and its nested
// SimpleTag children (the schema allows arbitrary nesting, e.g. a per-
// language variant of the same name, §4.8).
func readSimpleTag(parent *io.SectionReader, e ebml.Element) (SimpleTag, error) {
	content := e.Content(parent)
	children, err := ebml.ReadElements(content)
	if err != nil {
		return SimpleTag{}, errors.Wrap(err, "matroska: reading SimpleTag children")
	}
	st := SimpleTag{Language: "und", Default: true}
	for _, c := range children {
		switch c.ID {
		case idTagName:
			if s, err := ebml.ReadString(content, c); err == nil {
				st.Name = s
			}
		case idTagLanguage:
			if s, err := ebml.ReadString(content, c); err == nil {
				st.Language = s
			}
		case idTagDefault:
			if v, err := ebml.ReadUint(content, c); err == nil {
				st.Default = v != 0
			}
		case idTagString:
			if s, err := ebml.ReadString(content, c); err == nil {
				st.String = s
			}
		case idTagBinary:
			if b, err := ebml.ReadBinary(content, c); err == nil {
				st.Binary = b
			}
		case idSimpleTag:
			nested, err := readSimpleTag(content, c)
			if err != nil {
				return SimpleTag{}, err
			}
			st.Nested = append(st.Nested, nested)
		}
	}
	return st, nil
}

// encodeTagsElement serializes entries as one Segment\Tags element's body
// (the concatenated Tag children; the caller wraps this in the Tags
// element ID/size via ebml.EncodeElement).
func encodeTagsElement(entries []TagEntry) ([]byte, error) {
	var body []byte
	for _, entry := range entries {
		b, err := encodeTagEntry(entry)
		if err != nil {
			return nil, err
		}
		body = append(body, b...)
	}
	return ebml.EncodeElement(idTags, body)
}

func encodeTagEntry(entry TagEntry) ([]byte, error) {
	var body []byte
	targets, err := encodeTargets(entry.Targets)
	if err != nil {
		return nil, err
	}
	body = append(body, targets...)
	for _, st := range entry.Tags {
		b, err := encodeSimpleTag(st)
		if err != nil {
			return nil, err
		}
		body = append(body, b...)
	}
	return ebml.EncodeElement(idTag, body)
}

func encodeTargets(t Targets) ([]byte, error) {
	var body []byte
	if t.TypeValue != 0 && t.TypeValue != DefaultTargetTypeValue {
		b, err := ebml.EncodeElement(idTargetTypeValue, ebml.EncodeUint(uint64(t.TypeValue)))
		if err != nil {
			return nil, err
		}
		body = append(body, b...)
	}
	if t.Type != "" {
		b, err := ebml.EncodeElement(idTargetType, []byte(t.Type))
		if err != nil {
			return nil, err
		}
		body = append(body, b...)
	}
	for _, uid := range t.TrackUIDs {
		b, err := ebml.EncodeElement(idTagTrackUID, ebml.EncodeUint(uint64(uid)))
		if err != nil {
			return nil, err
		}
		body = append(body, b...)
	}
	return ebml.EncodeElement(idTargets, body)
}

func encodeSimpleTag(st SimpleTag) ([]byte, error) {
	var body []byte
	nameBytes, err := ebml.EncodeElement(idTagName, []byte(st.Name))
	if err != nil {
		return nil, err
	}
	body = append(body, nameBytes...)

	if st.Language != "" && st.Language != "und" {
		b, err := ebml.EncodeElement(idTagLanguage, []byte(st.Language))
		if err != nil {
			return nil, err
		}
		body = append(body, b...)
	}
	if !st.Default {
		b, err := ebml.EncodeElement(idTagDefault, ebml.EncodeUint(0))
		if err != nil {
			return nil, err
		}
		body = append(body, b...)
	}
	if st.String != "" {
		b, err := ebml.EncodeElement(idTagString, []byte(st.String))
		if err != nil {
			return nil, err
		}
		body = append(body, b...)
	}
	if len(st.Binary) > 0 {
		b, err := ebml.EncodeElement(idTagBinary, st.Binary)
		if err != nil {
			return nil, err
		}
		body = append(body, b...)
	}
	for _, nested := range st.Nested {
		b, err := encodeSimpleTag(nested)
		if err != nil {
			return nil, err
		}
		body = append(body, b...)
	}
	return ebml.EncodeElement(idSimpleTag, body)
}

// decodeFloatBytes decodes an EBML "float" element body: 4 bytes (IEEE 754
// single) or 8 bytes (double), big-endian.
func decodeFloatBytes(b []byte) (float64, bool) {
	switch len(b) {
	case 4:
		var v uint32
		for _, c := range b {
			v = v<<8 | uint32(c)
		}
		return float64(math.Float32frombits(v)), true
	case 8:
		var v uint64
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return math.Float64frombits(v), true
	default:
		return 0, false
	}
}
