package id3v2

import (
	"io"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/pkg/errors"
)

// FrameFlags mirrors §4.5/§4.16's per-frame flags, normalized across
// dialects into the 2.4 field names.
type FrameFlags struct {
	TagAlterPreservation  bool
	FileAlterPreservation bool
	ReadOnly              bool
	GroupIdentity         bool
	Compression           bool
	Encryption            bool
	Unsynchronisation     bool
	DataLengthIndicator   bool
}

type frameHeader struct {
	id         string
	size       uint32 // body size as declared on disk, before DLI/unsync adjustments
	headerLen  int
	flags      FrameFlags
}

// id22to24 upgrades ID3v2.2's three-letter frame ids to their 2.3/2.4
// equivalents (§4.5). Unmapped ids are passed through unchanged and will be
// treated as unknown (kept opaque by the conversion layer, §4.15).
var id22to24 = map[string]string{
	"BUF": "RBUF", "CNT": "PCNT", "COM": "COMM", "CRA": "AENC", "CRM": "",
	"ETC": "ETCO", "EQU": "EQU2", "GEO": "GEOB", "IPL": "TIPL", "LNK": "LINK",
	"MCI": "MCDI", "MLL": "MLLT", "PIC": "APIC", "POP": "POPM", "REV": "RVRB",
	"RVA": "RVA2", "SLT": "SYLT", "STC": "SYTC", "TAL": "TALB", "TBP": "TBPM",
	"TCM": "TCOM", "TCO": "TCON", "TCR": "TCOP", "TDA": "TDRC", "TDY": "TDLY",
	"TEN": "TENC", "TFT": "TFLT", "TIM": "TDRC", "TKE": "TKEY", "TLA": "TLAN",
	"TLE": "TLEN", "TMT": "TMED", "TOA": "TOPE", "TOF": "TOFN", "TOL": "TOLY",
	"TOR": "TDOR", "TOT": "TOAL", "TP1": "TPE1", "TP2": "TPE2", "TP3": "TPE3",
	"TP4": "TPE4", "TPA": "TPOS", "TPB": "TPUB", "TRC": "TSRC", "TRD": "TDRC",
	"TRK": "TRCK", "TSI": "TSIZ", "TSS": "TSSE", "TT1": "TIT1", "TT2": "TIT2",
	"TT3": "TIT3", "TXT": "TOLY", "TXX": "TXXX", "TYE": "TDRC", "UFI": "UFID",
	"ULT": "USLT", "WAF": "WOAF", "WAR": "WOAR", "WAS": "WOAS", "WCM": "WCOM",
	"WCP": "WCOP", "WPB": "WPUB", "WXX": "WXXX",
}

func upgradeID(id string, v Version) string {
	if v != V2_2 {
		return id
	}
	if up, ok := id22to24[id]; ok && up != "" {
		return up
	}
	return id
}

func readFrameHeader(r io.Reader, v Version) (*frameHeader, error) {
	switch v {
	case V2_2:
		b := make([]byte, 6)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		id := string(b[0:3])
		size := uint32(b[3])<<16 | uint32(b[4])<<8 | uint32(b[5])
		return &frameHeader{id: upgradeID(id, v), size: size, headerLen: 6}, nil

	case V2_3:
		b := make([]byte, 10)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		id := string(b[0:4])
		size := uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7])
		flags := decodeFrameFlags(b[8], b[9], v)
		return &frameHeader{id: id, size: size, headerLen: 10, flags: flags}, nil

	case V2_4:
		b := make([]byte, 10)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		id := string(b[0:4])
		size := codec.Synchsafe7BitChunked(b[4:8])
		flags := decodeFrameFlags(b[8], b[9], v)
		return &frameHeader{id: id, size: size, headerLen: 10, flags: flags}, nil

	default:
		return nil, errors.Errorf("id3v2: unknown version %d", v)
	}
}

func decodeFrameFlags(msg, format byte, v Version) FrameFlags {
	// v2.3 and v2.4 disagree on bit positions for the format byte; each is
	// decoded in its own dialect then normalized (§9's documented choice).
	if v == V2_3 {
		return FrameFlags{
			TagAlterPreservation:  msg&0x80 != 0,
			FileAlterPreservation: msg&0x40 != 0,
			ReadOnly:              msg&0x20 != 0,
			Compression:           format&0x80 != 0,
			Encryption:            format&0x40 != 0,
			GroupIdentity:         format&0x20 != 0,
		}
	}
	return FrameFlags{
		TagAlterPreservation:  msg&0x40 != 0,
		FileAlterPreservation: msg&0x20 != 0,
		ReadOnly:              msg&0x10 != 0,
		GroupIdentity:         format&0x40 != 0,
		Compression:           format&0x08 != 0,
		Encryption:            format&0x04 != 0,
		Unsynchronisation:     format&0x02 != 0,
		DataLengthIndicator:   format&0x01 != 0,
	}
}

func encodeFrameHeader(id string, bodySize uint32, flags FrameFlags, v Version) ([]byte, error) {
	switch v {
	case V2_2:
		if len(id) != 3 {
			return nil, errors.Errorf("id3v2: %q is not a valid ID3v2.2 frame id", id)
		}
		out := make([]byte, 6)
		copy(out[0:3], id)
		out[3] = byte(bodySize >> 16)
		out[4] = byte(bodySize >> 8)
		out[5] = byte(bodySize)
		return out, nil

	case V2_3:
		out := make([]byte, 10)
		copy(out[0:4], id)
		out[4] = byte(bodySize >> 24)
		out[5] = byte(bodySize >> 16)
		out[6] = byte(bodySize >> 8)
		out[7] = byte(bodySize)
		msg, format := encodeFrameFlagsV23(flags)
		out[8], out[9] = msg, format
		return out, nil

	case V2_4:
		out := make([]byte, 10)
		copy(out[0:4], id)
		sb, err := codec.SynchBytes(bodySize)
		if err != nil {
			return nil, err
		}
		copy(out[4:8], sb[:])
		msg, format := encodeFrameFlagsV24(flags)
		out[8], out[9] = msg, format
		return out, nil

	default:
		return nil, errors.Errorf("id3v2: unknown version %d", v)
	}
}

func encodeFrameFlagsV23(f FrameFlags) (msg, format byte) {
	if f.TagAlterPreservation {
		msg |= 0x80
	}
	if f.FileAlterPreservation {
		msg |= 0x40
	}
	if f.ReadOnly {
		msg |= 0x20
	}
	if f.Compression {
		format |= 0x80
	}
	if f.Encryption {
		format |= 0x40
	}
	if f.GroupIdentity {
		format |= 0x20
	}
	return
}

func encodeFrameFlagsV24(f FrameFlags) (msg, format byte) {
	if f.TagAlterPreservation {
		msg |= 0x40
	}
	if f.FileAlterPreservation {
		msg |= 0x20
	}
	if f.ReadOnly {
		msg |= 0x10
	}
	if f.GroupIdentity {
		format |= 0x40
	}
	if f.Compression {
		format |= 0x08
	}
	if f.Encryption {
		format |= 0x04
	}
	if f.Unsynchronisation {
		format |= 0x02
	}
	if f.DataLengthIndicator {
		format |= 0x01
	}
	return
}
