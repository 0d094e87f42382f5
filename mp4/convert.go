package mp4

import (
	"encoding/binary"

	"github.com/go-tagengine/tagengine/internal/id3genre"
	"github.com/go-tagengine/tagengine/item"
	"github.com/go-tagengine/tagengine/picture"
)

// identKeys maps an ordinary (non-freeform) ilst atom identifier to its
// neutral key (§4.15, grounded on dhowden-tag's atoms table extended with
// the additional fields original_source/lofty's mp4/ilst carries).
var identKeys = map[string]item.Key{
	"\xa9nam": item.TrackTitle,
	"\xa9ART": item.TrackArtist,
	"\xa9art": item.TrackArtist,
	"aART":    item.AlbumArtist,
	"\xa9alb": item.AlbumTitle,
	"\xa9wrt": item.Composer,
	"\xa9cmt": item.Comment,
	"\xa9gen": item.Genre,
	"cprt":    item.Copyright,
	"\xa9too": item.EncoderSettings,
	"\xa9grp": item.Grouping,
	"\xa9lyr": item.Lyrics,
	"\xa9day": item.RecordingDate,
	"tmpo":    item.BPM,
	"pcst":    item.Podcast,
	"purl":    item.PodcastUrl,
	"desc":    item.Description,
	"\xa9wrk": item.Work,
	"\xa9mvn": item.MovementName,
	"\xa9mvi": item.MovementNumber,
	"\xa9mvc": item.MovementTotal,
	"soar":    item.AppleSortArtist,
	"soaa":    item.AppleSortAlbumArtist,
	"soco":    item.AppleSortComposer,
	"sonm":    item.AppleSortTitle,
	"soal":    item.AppleSortAlbum,
}

// freeformKeys maps a "com.apple.iTunes" freeform field's name half to a
// neutral key (§4.15's TXXX-equivalent special-casing for MP4).
var freeformKeys = map[string]item.Key{
	"MusicBrainz Track Id":        item.MusicBrainzTrackId,
	"MusicBrainz Album Id":        item.MusicBrainzReleaseId,
	"MusicBrainz Artist Id":       item.MusicBrainzArtistId,
	"MusicBrainz Album Artist Id": item.MusicBrainzReleaseArtistId,
	"MusicBrainz Release Group Id": item.MusicBrainzReleaseGroupId,
	"replaygain_album_gain":       item.ReplayGainAlbumGain,
	"replaygain_album_peak":       item.ReplayGainAlbumPeak,
	"replaygain_track_gain":       item.ReplayGainTrackGain,
	"replaygain_track_peak":       item.ReplayGainTrackPeak,
	"ISRC":                        item.ISRC,
	"LABEL":                       item.Label,
	"BARCODE":                     item.Barcode,
	"CATALOGNUMBER":               item.CatalogNumber,
}

const appleFreeformMean = "com.apple.iTunes"

// Split converts the native tag into the neutral item.Tag (§4.15): trkn/
// disk become the shared TrackNumber/TrackTotal and DiscNumber/DiscTotal
// pair, covr becomes a front-cover picture (PNG when the data atom's type
// code says so, JPEG otherwise), known "com.apple.iTunes"
// freeform fields map to their neutral key, and everything else survives
// as a raw item keyed by its atom identifier so Merge round-trips it.
func (t *Tag) Split() (*item.Tag, error) {
	out := item.New(item.MP4Ilst)

	for _, a := range t.Atoms {
		switch {
		case a.Ident == "trkn":
			num, total := parseNumberTuple(a)
			if num > 0 {
				out.SetTrack(num, total)
			}
		case a.Ident == "disk":
			num, total := parseNumberTuple(a)
			if num > 0 {
				out.SetDisc(num, total)
			}
		case a.Ident == "covr":
			for _, v := range a.Values {
				picType := byte(picture.CoverFront)
				mime := picture.MimeJPEG
				if v.Type == DataPNG {
					mime = picture.MimePNG
				}
				out.PushPicture(picture.New(picType, mime, "", v.Data))
			}
		case a.Ident == "gnre":
			if id, ok := parseGenreID(a); ok && id > 0 {
				out.Insert(item.Known(item.Genre, item.NewText(id3genre.Name(byte(id-1)))))
			}
		case a.Ident == "cpil":
			if n, ok := parseBool(a); ok {
				out.Insert(item.Known(item.FlagCompilation, item.NewText(boolText(n))))
			}
		case a.Freeform:
			mean, name := splitIdent(a.Ident)
			text := firstText(a)
			if mean == appleFreeformMean {
				if k, ok := freeformKeys[name]; ok {
					out.Insert(item.Known(k, item.NewText(text)))
					continue
				}
			}
			out.Push(item.Raw(a.Ident, item.NewText(text)))
		default:
			if k, ok := identKeys[a.Ident]; ok {
				out.Insert(item.Known(k, item.NewText(firstText(a))))
				continue
			}
			out.Push(item.Raw(a.Ident, item.NewText(firstText(a))))
		}
	}

	return out, nil
}

// Merge overlays tag's neutral items onto remainder, completing the §4.15
// split/merge pair.
func Merge(remainder *Tag, tag *item.Tag) *Tag {
	out := &Tag{Properties: remainder.Properties}
	reverse := make(map[item.Key]string, len(identKeys))
	for ident, k := range identKeys {
		reverse[k] = ident
	}
	reverseFreeform := make(map[item.Key]string, len(freeformKeys))
	for name, k := range freeformKeys {
		reverseFreeform[k] = name
	}

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
		if ident, ok := reverse[k]; ok {
			seen[k] = true
			out.Atoms = append(out.Atoms, Atom{Ident: ident, Values: []AtomData{{Type: DataUTF8, Data: []byte(it.Value.String())}}})
			continue
		}
		if name, ok := reverseFreeform[k]; ok {
			seen[k] = true
			out.Atoms = append(out.Atoms, Atom{
				Ident: appleFreeformMean + ":" + name, Freeform: true,
				Values: []AtomData{{Type: DataUTF8, Data: []byte(it.Value.String())}},
			})
		}
	}
	if n, total := tag.Track(); n > 0 {
		out.Atoms = append(out.Atoms, Atom{Ident: "trkn", Values: []AtomData{{Type: DataImplicit, Data: encodeNumberTuple(n, total)}}})
	}
	if n, total := tag.Disc(); n > 0 {
		out.Atoms = append(out.Atoms, Atom{Ident: "disk", Values: []AtomData{{Type: DataImplicit, Data: encodeNumberTuple(n, total)}}})
	}
	for _, it := range tag.Items() {
		if it.Key.IsUnknown() {
			mean, _ := splitIdent(it.Key.Unknown)
			out.Atoms = append(out.Atoms, Atom{Ident: it.Key.Unknown, Freeform: mean != it.Key.Unknown, Values: []AtomData{{Type: DataUTF8, Data: []byte(it.Value.String())}}})
		}
	}
	for _, p := range tag.Pictures() {
		typ := DataJPEG
		if p.MimeType == picture.MimePNG {
			typ = DataPNG
		}
		out.Atoms = append(out.Atoms, Atom{Ident: "covr", Values: []AtomData{{Type: typ, Data: p.Data}}})
	}
	return out
}

func splitIdent(ident string) (mean, name string) {
	for i := 0; i < len(ident); i++ {
		if ident[i] == ':' {
			return ident[:i], ident[i+1:]
		}
	}
	return ident, ""
}

func firstText(a Atom) string {
	if len(a.Values) == 0 {
		return ""
	}
	return string(a.Values[0].Data)
}

func parseNumberTuple(a Atom) (number, total int) {
	if len(a.Values) == 0 || len(a.Values[0].Data) < 6 {
		return 0, 0
	}
	b := a.Values[0].Data
	return int(binary.BigEndian.Uint16(b[2:4])), int(binary.BigEndian.Uint16(b[4:6]))
}

func encodeNumberTuple(number, total int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint16(b[2:4], uint16(number))
	binary.BigEndian.PutUint16(b[4:6], uint16(total))
	return b
}

func parseGenreID(a Atom) (int, bool) {
	if len(a.Values) == 0 || len(a.Values[0].Data) < 2 {
		return 0, false
	}
	return int(binary.BigEndian.Uint16(a.Values[0].Data[:2])), true
}

func parseBool(a Atom) (bool, bool) {
	if len(a.Values) == 0 || len(a.Values[0].Data) < 1 {
		return false, false
	}
	return a.Values[0].Data[0] != 0, true
}

func boolText(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
