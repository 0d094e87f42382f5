// Package convert implements the shared half of the Tag conversion layer
// (C15) common to every flat key/value-native tag format (APE, Vorbis
// comments, RIFF INFO, AIFF text chunks): split decoded (key, value) pairs
// into the neutral item.Tag and merge them back, given a per-format field
// table. Structurally tree-shaped native formats (ID3v2 frames, MP4 ilst
// atoms, Matroska SimpleTag) implement Split/Merge directly on their own
// types instead, since there is no shared flat-pair shape to factor out for
// them; they still follow the same split/merge contract from §4.15.
package convert

import (
	"strings"

	"github.com/go-tagengine/tagengine/item"
)

// KV is one flat (key, value) pair as read from or written to a key/value
// native tag body.
type KV struct {
	Key   string
	Value string
}

// FieldTable is the per-format key table every flat engine supplies: the
// forward map (semantic key -> on-disk name) used for both directions.
// CaseInsensitive controls whether Split folds key case before lookup (APE
// and Vorbis comments are case-insensitive per their own specs; RIFF INFO
// and AIFF chunk ids are fixed-case fourCCs and should set this false).
type FieldTable struct {
	Fields          map[item.Key]string
	CaseInsensitive bool
}

func (ft FieldTable) reverse() map[string]item.Key {
	out := make(map[string]item.Key, len(ft.Fields))
	for k, v := range ft.Fields {
		if ft.CaseInsensitive {
			v = strings.ToUpper(v)
		}
		out[v] = k
	}
	return out
}

// Split converts a flat, already textually-decoded (key, value) list into
// the neutral Tag (§4.15). Keys with no entry in table become
// item.Raw("Unknown(key)") items so the original on-disk key survives a
// Merge with no further edits.
func Split(tagType item.TagType, pairs []KV, table FieldTable) *item.Tag {
	rev := table.reverse()
	out := item.New(tagType)
	for _, kv := range pairs {
		lookup := kv.Key
		if table.CaseInsensitive {
			lookup = strings.ToUpper(lookup)
		}
		if k, ok := rev[lookup]; ok {
			out.Push(item.Known(k, item.NewText(kv.Value)))
			continue
		}
		out.Push(item.Raw(kv.Key, item.NewText(kv.Value)))
	}
	return out
}

// Merge renders tag's items back to flat on-disk (key, value) pairs, in
// item order, using table for known keys and each item's own raw name for
// unmapped ones. Items with no on-disk field in table (e.g. a key known to
// the neutral model but unsupported by this tag-type) are dropped, matching
// §3's "re-typing... drops unmappable items".
func Merge(tag *item.Tag, table FieldTable) []KV {
	var out []KV
	for _, it := range tag.Items() {
		if it.Key.IsUnknown() {
			out = append(out, KV{Key: it.Key.Unknown, Value: it.Value.String()})
			continue
		}
		name, ok := table.Fields[it.Key.K]
		if !ok {
			continue
		}
		out = append(out, KV{Key: name, Value: it.Value.String()})
	}
	return out
}
