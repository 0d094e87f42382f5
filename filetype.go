package tagengine

import "github.com/go-tagengine/tagengine/item"

// FileType is the closed container-format enumeration of §3, plus an
// open-ended Custom variant for third-party registration (§6).
type FileType int

const (
	UnknownFileType FileType = iota
	MPEG
	MP4
	FLAC
	OggVorbis
	Opus
	Speex
	AIFF
	WAV
	APE
	WavPack
	MusepackSV4
	MusepackSV5
	MusepackSV6
	MusepackSV7
	MusepackSV8
	DSF
	Matroska
	WebM
	ADTS
	Custom
)

func (ft FileType) String() string {
	names := map[FileType]string{
		MPEG: "MPEG", MP4: "MP4", FLAC: "FLAC", OggVorbis: "Ogg(Vorbis)",
		Opus: "Opus", Speex: "Speex", AIFF: "AIFF", WAV: "WAV", APE: "APE",
		WavPack: "WavPack", MusepackSV4: "Musepack(SV4)", MusepackSV5: "Musepack(SV5)",
		MusepackSV6: "Musepack(SV6)", MusepackSV7: "Musepack(SV7)", MusepackSV8: "Musepack(SV8)",
		DSF: "DSF", Matroska: "Matroska", WebM: "WebM", ADTS: "ADTS-AAC", Custom: "Custom",
	}
	if s, ok := names[ft]; ok {
		return s
	}
	return "Unknown"
}

// supportedTagTypes is the tag-type ↔ file-type support matrix (§3's "(b)
// the set of tag-types that may be written to it").
var supportedTagTypes = map[FileType][]item.TagType{
	MPEG:        {item.ID3v1, item.ID3v2, item.APE},
	MP4:         {item.MP4Ilst},
	FLAC:        {item.VorbisComments, item.ID3v2},
	OggVorbis:   {item.VorbisComments},
	Opus:        {item.VorbisComments},
	Speex:       {item.VorbisComments},
	AIFF:        {item.AIFFText, item.ID3v2},
	WAV:         {item.RIFFInfo, item.ID3v2},
	APE:         {item.APE, item.ID3v1},
	WavPack:     {item.APE, item.ID3v1},
	MusepackSV4: {item.APE, item.ID3v1},
	MusepackSV5: {item.APE, item.ID3v1},
	MusepackSV6: {item.APE, item.ID3v1},
	MusepackSV7: {item.APE, item.ID3v1},
	MusepackSV8: {item.APE, item.ID3v1},
	DSF:         {item.ID3v2},
	Matroska:    {item.MatroskaSimple},
	WebM:        {item.MatroskaSimple},
	ADTS:        {item.ID3v2},
}

// primaryTagType is the single "primary" tag-type used for conversions
// (§3's "(c)").
var primaryTagType = map[FileType]item.TagType{
	MPEG: item.ID3v2, MP4: item.MP4Ilst, FLAC: item.VorbisComments,
	OggVorbis: item.VorbisComments, Opus: item.VorbisComments, Speex: item.VorbisComments,
	AIFF: item.AIFFText, WAV: item.RIFFInfo, APE: item.APE, WavPack: item.APE,
	MusepackSV4: item.APE, MusepackSV5: item.APE, MusepackSV6: item.APE,
	MusepackSV7: item.APE, MusepackSV8: item.APE, DSF: item.ID3v2,
	Matroska: item.MatroskaSimple, WebM: item.MatroskaSimple, ADTS: item.ID3v2,
}

// SupportsTagType reports whether tt may be written to files of type ft.
func (ft FileType) SupportsTagType(tt item.TagType) bool {
	for _, s := range supportedTagTypes[ft] {
		if s == tt {
			return true
		}
	}
	return false
}

// PrimaryTagType returns ft's primary tag type for conversions, or
// item.UnknownTagType if ft is Custom/unregistered.
func (ft FileType) PrimaryTagType() item.TagType {
	return primaryTagType[ft]
}
