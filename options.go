package tagengine

// ParsingMode controls how aggressively anomalies are tolerated (§4.17).
type ParsingMode int

const (
	BestAttempt ParsingMode = iota
	Strict
	Relaxed
)

// ParseOptions configures a read (§6).
type ParseOptions struct {
	ReadTags             bool
	ReadProperties       bool
	ReadCoverArt         bool
	ParsingMode          ParsingMode
	MaxJunkBytes         uint32
	ImplicitConversions  bool
}

// DefaultParseOptions matches §6's documented defaults.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		ReadTags:            true,
		ReadProperties:      true,
		ReadCoverArt:        true,
		ParsingMode:         BestAttempt,
		MaxJunkBytes:        1 << 20,
		ImplicitConversions: true,
	}
}

// WriteOptions configures a write (§6).
type WriteOptions struct {
	PreferredPadding      uint32
	RespectReadOnly       bool
	LossyTextEncoding     bool
	UppercaseID3v2Chunk   bool
}

// DefaultWriteOptions matches §6's documented defaults (1024-byte ID3v2
// padding, 0 elsewhere — callers writing non-ID3v2 tags get 0 automatically
// since only the ID3v2 engine consults PreferredPadding).
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		PreferredPadding: 1024,
		RespectReadOnly:  true,
	}
}
