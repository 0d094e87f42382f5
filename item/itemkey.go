// Package item implements the cross-format item model (C4): the closed
// ItemKey enumeration, the ItemValue sum type, and the neutral Tag
// container that every native tag type splits into and merges from (C15).
package item

// Key is a format-neutral semantic tag field. The set mirrors the common
// ground between ID3v2, APE, MP4 ilst, Vorbis comments, and Matroska
// SimpleTags (§3); Unknown carries through format-specific fields that have
// no neutral counterpart.
type Key int

const (
	Unset Key = iota

	TrackTitle
	TrackSubtitle
	TrackArtist
	TrackArtists
	TrackNumber
	TrackTotal
	AlbumTitle
	AlbumArtist
	AlbumTotal
	DiscNumber
	DiscTotal
	MovementName
	MovementNumber
	MovementTotal
	Composer
	Conductor
	Director
	Lyricist
	Writer
	Engineer
	Producer
	Arranger
	Mixer
	DJMixer
	Remixer
	Publisher
	Label
	Genre
	Mood
	Language
	Script
	RecordingDate
	OriginalReleaseDate
	ReleaseDate
	Copyright
	License
	EncodedBy
	EncoderSettings
	Comment
	Description
	Lyrics
	Podcast
	PodcastUrl
	PodcastEpisodeId
	Compilation
	FlagCompilation
	Grouping
	Rating
	BPM
	Key_
	InitialKey
	ISRC
	Barcode
	CatalogNumber
	Work
	PartNumber
	OriginalAlbum
	OriginalArtist
	OriginalLyricist
	OriginalFilename
	FileType
	FileOwner
	TaggingTime
	EncodingTime
	Length
	Popularimeter
	ReplayGainAlbumGain
	ReplayGainAlbumPeak
	ReplayGainTrackGain
	ReplayGainTrackPeak
	AppleXID
	AppleSortArtist
	AppleSortAlbumArtist
	AppleSortAlbum
	AppleSortComposer
	AppleSortTitle
	MusicBrainzRecordingId
	MusicBrainzTrackId
	MusicBrainzReleaseId
	MusicBrainzReleaseGroupId
	MusicBrainzReleaseArtistId
	MusicBrainzArtistId
	MusicBrainzWorkId
	MusicBrainzTRMId
	MusicBrainzDiscId
	MusicIPPUID
	AcoustidId
	AcoustidFingerprint

	firstUnknown
)

// Unknown wraps an on-disk key with no defined neutral mapping. Two Unknown
// values compare equal (via ==) only if their Raw strings match.
type Unknown struct {
	Raw string
}

// KeyOrUnknown lets callers carry either a closed Key or an Unknown raw
// name through code that is generic over both (e.g. Vorbis comments, which
// very often carry vendor-specific fields).
type KeyOrUnknown struct {
	K       Key
	Unknown string // set, with K == Unset, when this is an unmapped key
}

// IsUnknown reports whether this key has no defined semantic mapping.
func (k KeyOrUnknown) IsUnknown() bool { return k.K == Unset && k.Unknown != "" }

// String renders the key for diagnostics.
func (k KeyOrUnknown) String() string {
	if k.IsUnknown() {
		return "Unknown(" + k.Unknown + ")"
	}
	return keyNames[k.K]
}

var keyNames = map[Key]string{
	TrackTitle: "TrackTitle", TrackSubtitle: "TrackSubtitle", TrackArtist: "TrackArtist",
	TrackArtists: "TrackArtists", TrackNumber: "TrackNumber", TrackTotal: "TrackTotal",
	AlbumTitle: "AlbumTitle", AlbumArtist: "AlbumArtist", AlbumTotal: "AlbumTotal",
	DiscNumber: "DiscNumber", DiscTotal: "DiscTotal", MovementName: "MovementName",
	MovementNumber: "MovementNumber", MovementTotal: "MovementTotal", Composer: "Composer",
	Conductor: "Conductor", Director: "Director", Lyricist: "Lyricist", Writer: "Writer",
	Engineer: "Engineer", Producer: "Producer", Arranger: "Arranger", Mixer: "Mixer",
	DJMixer: "DJMixer", Remixer: "Remixer", Publisher: "Publisher", Label: "Label",
	Genre: "Genre", Mood: "Mood", Language: "Language", Script: "Script",
	RecordingDate: "RecordingDate", OriginalReleaseDate: "OriginalReleaseDate",
	ReleaseDate: "ReleaseDate", Copyright: "Copyright", License: "License",
	EncodedBy: "EncodedBy", EncoderSettings: "EncoderSettings", Comment: "Comment",
	Description: "Description", Lyrics: "Lyrics", Podcast: "Podcast",
	PodcastUrl: "PodcastUrl", PodcastEpisodeId: "PodcastEpisodeId",
	Compilation: "Compilation", FlagCompilation: "FlagCompilation", Grouping: "Grouping",
	Rating: "Rating", BPM: "BPM", Key_: "Key", InitialKey: "InitialKey", ISRC: "ISRC",
	Barcode: "Barcode", CatalogNumber: "CatalogNumber", Work: "Work",
	PartNumber: "PartNumber", OriginalAlbum: "OriginalAlbum", OriginalArtist: "OriginalArtist",
	OriginalLyricist: "OriginalLyricist", OriginalFilename: "OriginalFilename",
	FileType: "FileType", FileOwner: "FileOwner", TaggingTime: "TaggingTime",
	EncodingTime: "EncodingTime", Length: "Length", Popularimeter: "Popularimeter",
	ReplayGainAlbumGain: "ReplayGainAlbumGain", ReplayGainAlbumPeak: "ReplayGainAlbumPeak",
	ReplayGainTrackGain: "ReplayGainTrackGain", ReplayGainTrackPeak: "ReplayGainTrackPeak",
	AppleXID: "AppleXID", AppleSortArtist: "AppleSortArtist",
	AppleSortAlbumArtist: "AppleSortAlbumArtist", AppleSortAlbum: "AppleSortAlbum",
	AppleSortComposer: "AppleSortComposer", AppleSortTitle: "AppleSortTitle",
	MusicBrainzRecordingId: "MusicBrainzRecordingId", MusicBrainzTrackId: "MusicBrainzTrackId",
	MusicBrainzReleaseId: "MusicBrainzReleaseId", MusicBrainzReleaseGroupId: "MusicBrainzReleaseGroupId",
	MusicBrainzReleaseArtistId: "MusicBrainzReleaseArtistId", MusicBrainzArtistId: "MusicBrainzArtistId",
	MusicBrainzWorkId: "MusicBrainzWorkId", MusicBrainzTRMId: "MusicBrainzTRMId",
	MusicBrainzDiscId: "MusicBrainzDiscId", MusicIPPUID: "MusicIPPUID",
	AcoustidId: "AcoustidId", AcoustidFingerprint: "AcoustidFingerprint",
}

// NumberPairs lists the keys which serialize to a shared underlying
// field per format (TRCK = "n/t" etc., §4.4).
var NumberPairs = []struct{ Number, Total Key }{
	{TrackNumber, TrackTotal},
	{DiscNumber, DiscTotal},
	{MovementNumber, MovementTotal},
}
