package matroska

import (
	"strings"

	"github.com/go-tagengine/tagengine/item"
)

// simpleTagKeys maps a Matroska SimpleTag "Name" (the matroska.org tagging
// spec's closed-ish vocabulary of all-caps, underscore-separated names) to
// its neutral key (§4.15). Grounded on the same TXXX-style special-casing
// id3v2/tag.go and ape/ape.go already apply to their own flat vocabularies.
var simpleTagKeys = map[string]item.Key{
	"TITLE":             item.TrackTitle,
	"SUBTITLE":          item.TrackSubtitle,
	"ARTIST":            item.TrackArtist,
	"ALBUM":             item.AlbumTitle,
	"COMPOSER":          item.Composer,
	"CONDUCTOR":         item.Conductor,
	"DIRECTOR":          item.Director,
	"LYRICIST":          item.Lyricist,
	"WRITTEN_BY":        item.Writer,
	"ENGINEER":          item.Engineer,
	"PRODUCER":          item.Producer,
	"ARRANGER":          item.Arranger,
	"MIXED_BY":          item.Mixer,
	"DJ-MIX_BY":         item.DJMixer,
	"REMIXED_BY":        item.Remixer,
	"PUBLISHER":         item.Publisher,
	"LABEL":             item.Label,
	"GENRE":             item.Genre,
	"MOOD":              item.Mood,
	"LANGUAGE":          item.Language,
	"DATE_RELEASED":     item.RecordingDate,
	"DATE_RECORDED":     item.RecordingDate,
	"COPYRIGHT":         item.Copyright,
	"LICENSE":           item.License,
	"ENCODED_BY":        item.EncodedBy,
	"ENCODER":           item.EncoderSettings,
	"COMMENT":           item.Comment,
	"DESCRIPTION":       item.Description,
	"LYRICS":            item.Lyrics,
	"PODCAST":           item.Podcast,
	"PODCAST_URL":       item.PodcastUrl,
	"BPM":               item.BPM,
	"INITIAL_KEY":       item.InitialKey,
	"ISRC":              item.ISRC,
	"BARCODE":           item.Barcode,
	"CATALOG_NUMBER":    item.CatalogNumber,
	"ORIGINAL_TITLE":    item.OriginalAlbum,
	"ORIGINAL_ARTIST":   item.OriginalArtist,
	"ORIGINAL_LYRICIST": item.OriginalLyricist,
	"ORIGINAL_FILENAME": item.OriginalFilename,
	"CONTENT_TYPE":      item.FileType,
	"TAGGING_DATE":      item.TaggingTime,
	"ENCODING_TIME":     item.EncodingTime,
	"LAW_RATING":        item.Rating,
	"REPLAYGAIN_ALBUM_GAIN": item.ReplayGainAlbumGain,
	"REPLAYGAIN_ALBUM_PEAK": item.ReplayGainAlbumPeak,
	"REPLAYGAIN_TRACK_GAIN": item.ReplayGainTrackGain,
	"REPLAYGAIN_TRACK_PEAK": item.ReplayGainTrackPeak,
}

const (
	partNumberName = "PART_NUMBER"
	totalPartsName = "TOTAL_PARTS"
)

// Split converts the native tag into the neutral item.Tag (§4.15):
// PART_NUMBER/TOTAL_PARTS becomes the shared TrackNumber/TrackTotal pair
// (Matroska has no separate disc-numbering convention; a multi-disc release
// is instead modeled as several Edition-scoped Targets, out of scope for
// the neutral model), every name in simpleTagKeys maps to its neutral key,
// and anything else survives as a raw item keyed by its SimpleTag name so
// Merge round-trips it. Only the top-level SimpleTag of each entry is
// converted; nested SimpleTags (e.g. a per-language variant) are folded
// into their parent's value by preferring the "und" (undetermined
// language) child when one exists, else the first child.
func (t *Tag) Split() (*item.Tag, error) {
	out := item.New(item.MatroskaSimple)

	var partNumber, totalParts string
	for _, entry := range t.Entries {
		for _, st := range entry.Tags {
			name := strings.ToUpper(st.Name)
			value := effectiveValue(st)
			switch name {
			case partNumberName:
				partNumber = value
				continue
			case totalPartsName:
				totalParts = value
				continue
			}
			if len(st.Binary) > 0 {
				out.Push(item.Raw(st.Name, item.NewBinary(st.Binary)))
				continue
			}
			if k, ok := simpleTagKeys[name]; ok {
				out.Insert(item.Known(k, item.NewText(value)))
				continue
			}
			out.Push(item.Raw(st.Name, item.NewText(value)))
		}
	}
	if partNumber != "" {
		num, total := item.ParseNumberPair(partNumber)
		if num != nil {
			tot := 0
			if total != nil {
				tot = *total
			} else if totalParts != "" {
				if n, _ := item.ParseNumberPair(totalParts); n != nil {
					tot = *n
				}
			}
			out.SetTrack(*num, tot)
		}
	}

	return out, nil
}

// effectiveValue picks the string value a SimpleTag node contributes:
// its own String if non-empty, else the "und" (language-neutral) nested
// child's value, else the first nested child's value.
func effectiveValue(st SimpleTag) string {
	if st.String != "" {
		return st.String
	}
	for _, n := range st.Nested {
		if n.Language == "und" || n.Language == "" {
			return effectiveValue(n)
		}
	}
	if len(st.Nested) > 0 {
		return effectiveValue(st.Nested[0])
	}
	return ""
}

// Merge overlays tag's neutral items onto remainder, completing the §4.15
// split/merge pair. Every item collapses into one Album/Set-scoped
// TagEntry (§9.1's default TargetTypeValue), matching how most Matroska
// muxers emit a single flat Tag block for file-level metadata.
func Merge(remainder *Tag, tag *item.Tag) *Tag {
	out := &Tag{DocType: remainder.DocType, Properties: remainder.Properties}
	reverse := make(map[item.Key]string, len(simpleTagKeys))
	for name, k := range simpleTagKeys {
		reverse[k] = name
	}

	entry := TagEntry{Targets: Targets{TypeValue: DefaultTargetTypeValue}}
	seen := map[item.Key]bool{}
	for _, it := range tag.Items() {
		if it.Key.IsUnknown() {
			continue
		}
		k := it.Key.K
		if seen[k] {
			continue
		}
		switch k {
		case item.TrackNumber, item.TrackTotal, item.DiscNumber, item.DiscTotal:
			continue
		}
		if name, ok := reverse[k]; ok {
			seen[k] = true
			entry.Tags = append(entry.Tags, SimpleTag{Name: name, Language: "und", Default: true, String: it.Value.String()})
		}
	}
	if n, total := tag.Track(); n > 0 {
		entry.Tags = append(entry.Tags, SimpleTag{Name: partNumberName, Language: "und", Default: true, String: item.FormatNumberPair(n, nil)})
		if total > 0 {
			entry.Tags = append(entry.Tags, SimpleTag{Name: totalPartsName, Language: "und", Default: true, String: item.FormatNumberPair(total, nil)})
		}
	}
	for _, it := range tag.Items() {
		if it.Key.IsUnknown() {
			if it.Value.Kind == item.KindBinary {
				entry.Tags = append(entry.Tags, SimpleTag{Name: it.Key.Unknown, Language: "und", Default: true, Binary: it.Value.Binary})
			} else {
				entry.Tags = append(entry.Tags, SimpleTag{Name: it.Key.Unknown, Language: "und", Default: true, String: it.Value.String()})
			}
		}
	}

	out.Entries = []TagEntry{entry}
	return out
}
