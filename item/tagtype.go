package item

// TagType is the closed enumeration of native tag formats the engine
// understands (§3).
type TagType int

const (
	UnknownTagType TagType = iota
	ID3v1
	ID3v2
	APE
	MP4Ilst
	VorbisComments
	MatroskaSimple
	RIFFInfo
	AIFFText
)

func (t TagType) String() string {
	switch t {
	case ID3v1:
		return "ID3v1"
	case ID3v2:
		return "ID3v2"
	case APE:
		return "APE"
	case MP4Ilst:
		return "MP4_ILST"
	case VorbisComments:
		return "VorbisComments"
	case MatroskaSimple:
		return "MatroskaSimple"
	case RIFFInfo:
		return "RIFF_INFO"
	case AIFFText:
		return "AIFF_TEXT"
	default:
		return "Unknown"
	}
}
