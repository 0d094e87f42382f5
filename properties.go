package tagengine

import "time"

// Properties is the neutral widening target every format-specific audio
// properties struct maps onto (§3's "FileProperties").
type Properties struct {
	Duration        time.Duration
	OverallBitrate  uint32 // kbps
	AudioBitrate    uint32 // kbps
	SampleRate      uint32
	BitDepth        uint8 // 0 if not applicable/unknown
	Channels        uint8
	ChannelMask     uint32 // 0 if not applicable
	Codec           string
}
