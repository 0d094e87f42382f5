package id3v2

import (
	"bytes"
	"encoding/binary"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/go-tagengine/tagengine/picture"
	"github.com/pkg/errors"
)

// ValueKind discriminates FrameValue's sum-type variants (§3).
type ValueKind int

const (
	KindText ValueKind = iota
	KindUserText
	KindURL
	KindUserURL
	KindComment
	KindUnsynchronizedText
	KindPicture
	KindKeyValue
	KindPopularimeter
	KindUniqueFileIdentifier
	KindRelativeVolumeAdjustment
	KindSynchronizedText
	KindPrivate
	KindBinary
)

// ChannelType is RVA2's per-channel type byte.
type ChannelType byte

const (
	ChannelOther      ChannelType = 0x00
	ChannelMasterVol  ChannelType = 0x01
	ChannelFrontRight ChannelType = 0x02
	ChannelFrontLeft  ChannelType = 0x03
	ChannelBackRight  ChannelType = 0x04
	ChannelBackLeft   ChannelType = 0x05
	ChannelFrontCentre ChannelType = 0x06
	ChannelBackCentre ChannelType = 0x07
	ChannelSubwoofer  ChannelType = 0x08
)

// ChannelInfo is one RVA2 channel's adjustment/peak pair.
type ChannelInfo struct {
	Adjustment int16
	PeakBits   uint8
	Peak       []byte
}

// KV is one TIPL/TMCL/IPLS role/name pair.
type KV struct{ Key, Value string }

// Value is the FrameValue sum type (§3). Exactly the field(s) relevant to
// Kind are populated; the rest are zero.
type Value struct {
	Kind ValueKind

	// KindText, KindUserText.Content, KindURL
	Text string

	// KindUserText, KindUserURL
	Description string

	// KindComment, KindUnsynchronizedText, KindSynchronizedText
	Language string

	// KindPicture
	Encoding codec.Encoding
	Picture  *picture.Picture

	// KindKeyValue
	Pairs []KV

	// KindPopularimeter
	Email   string
	Rating  uint8
	Counter uint64

	// KindUniqueFileIdentifier, KindPrivate
	Owner string
	Data  []byte

	// KindRelativeVolumeAdjustment
	RVAIdentification string
	Channels           map[ChannelType]ChannelInfo

	// KindSynchronizedText
	TimestampFormat byte
	ContentType     byte
	SyncedText      []SyncedTextEntry

	// KindBinary: opaque/encrypted payload
	Binary []byte
}

// SyncedTextEntry is one SYLT (text, timestamp) pair.
type SyncedTextEntry struct {
	Text      string
	Timestamp uint32
}

func decodeTextFrame(enc codec.Encoding, b []byte) (string, error) {
	s, err := codec.DecodeText(enc, b, nil)
	if err != nil {
		return "", err
	}
	return codec.StripTrailingNUL(s), nil
}

// DecodeText decodes a `T***` text frame body: [encoding][text], possibly
// NUL-separated multi-values in v2.4 (§4.5), returned joined by "/" per the
// single-string accessor convention; the values result keeps the original
// pieces.
func DecodeText(b []byte) (joined string, values []string, err error) {
	if len(b) < 1 {
		return "", nil, errors.New("id3v2: text frame too short")
	}
	enc := codec.Encoding(b[0])
	term, err := codec.Terminator(enc)
	if err != nil {
		return "", nil, err
	}
	rest := b[1:]

	var parts [][]byte
	switch len(term) {
	case 1:
		parts = bytes.Split(rest, term)
	case 2:
		parts = splitUTF16(rest)
	}
	for _, p := range parts {
		s, err := codec.DecodeText(enc, p, nil)
		if err != nil {
			return "", nil, err
		}
		values = append(values, codec.StripTrailingNUL(s))
	}
	// Drop a single trailing empty element caused by a terminating NUL.
	if len(values) > 1 && values[len(values)-1] == "" {
		values = values[:len(values)-1]
	}
	joined = joinSlash(values)
	return joined, values, nil
}

func splitUTF16(b []byte) [][]byte {
	var out [][]byte
	start := 0
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			out = append(out, b[start:i])
			start = i + 2
		}
	}
	out = append(out, b[start:])
	return out
}

func joinSlash(vs []string) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += "/"
		}
		out += v
	}
	return out
}

// EncodeText encodes multiple values into a single v2.4-style text frame
// body (NUL-separated). Earlier versions should pass a single value.
func EncodeText(enc codec.Encoding, values []string, lossy bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(enc))
	term, err := codec.Terminator(enc)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		encv, err := codec.EncodeText(enc, v, lossy)
		if err != nil {
			return nil, err
		}
		buf.Write(encv)
		if i < len(values)-1 {
			buf.Write(term)
		}
	}
	return buf.Bytes(), nil
}

// DecodeUserText decodes TXXX/WXXX: [encoding][description NUL][content].
// If only the description carries a BOM (UTF16BOM), it is reused for the
// content (§4.5).
func DecodeUserText(b []byte) (description, content string, err error) {
	if len(b) < 1 {
		return "", "", errors.New("id3v2: user text frame too short")
	}
	enc := codec.Encoding(b[0])
	rest := b[1:]

	descBytes, contentBytes, err := codec.SplitTerminated(enc, rest)
	if err != nil {
		return "", "", err
	}

	var bomCarry binary.ByteOrder
	if enc == codec.UTF16BOM && len(descBytes) >= 2 {
		if descBytes[0] == 0xFE && descBytes[1] == 0xFF {
			bomCarry = binary.BigEndian
		} else if descBytes[0] == 0xFF && descBytes[1] == 0xFE {
			bomCarry = binary.LittleEndian
		}
	}

	description, err = codec.DecodeText(enc, descBytes, nil)
	if err != nil {
		return "", "", errors.Wrap(err, "id3v2: decoding description")
	}
	content, err = codec.DecodeText(enc, contentBytes, bomCarry)
	if err != nil {
		return "", "", errors.Wrap(err, "id3v2: decoding content")
	}
	return description, content, nil
}

// EncodeUserText encodes TXXX/WXXX.
func EncodeUserText(enc codec.Encoding, description, content string, lossy bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(enc))
	descEnc, err := codec.EncodeText(enc, description, lossy)
	if err != nil {
		return nil, err
	}
	buf.Write(descEnc)
	term, err := codec.Terminator(enc)
	if err != nil {
		return nil, err
	}
	buf.Write(term)
	contentEnc, err := codec.EncodeText(enc, content, lossy)
	if err != nil {
		return nil, err
	}
	buf.Write(contentEnc)
	return buf.Bytes(), nil
}

// DecodeComment decodes COMM/USLT: [encoding][lang[3]][desc NUL][text].
func DecodeComment(b []byte) (language, description, text string, err error) {
	if len(b) < 4 {
		return "", "", "", errors.New("id3v2: comment frame too short")
	}
	enc := codec.Encoding(b[0])
	language = string(b[1:4])
	rest := b[4:]

	descBytes, textBytes, err := codec.SplitTerminated(enc, rest)
	if err != nil {
		return "", "", "", err
	}
	description, err = codec.DecodeText(enc, descBytes, nil)
	if err != nil {
		return "", "", "", errors.Wrap(err, "id3v2: decoding comment description")
	}
	text, err = codec.DecodeText(enc, textBytes, nil)
	if err != nil {
		return "", "", "", errors.Wrap(err, "id3v2: decoding comment text")
	}
	return language, description, text, nil
}

// EncodeComment encodes COMM/USLT.
func EncodeComment(enc codec.Encoding, language, description, text string, lossy bool) ([]byte, error) {
	if len(language) != 3 {
		return nil, errors.Errorf("id3v2: language %q must be exactly 3 ASCII letters", language)
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(enc))
	buf.WriteString(language)
	descEnc, err := codec.EncodeText(enc, description, lossy)
	if err != nil {
		return nil, err
	}
	buf.Write(descEnc)
	term, err := codec.Terminator(enc)
	if err != nil {
		return nil, err
	}
	buf.Write(term)
	textEnc, err := codec.EncodeText(enc, text, lossy)
	if err != nil {
		return nil, err
	}
	buf.Write(textEnc)
	return buf.Bytes(), nil
}

// DecodeKeyValue decodes TIPL/TMCL/IPLS: alternating NUL-terminated
// key/value strings (§4.5).
func DecodeKeyValue(b []byte) ([]KV, error) {
	if len(b) < 1 {
		return nil, errors.New("id3v2: key/value frame too short")
	}
	enc := codec.Encoding(b[0])
	rest := b[1:]

	var out []KV
	for len(rest) > 0 {
		keyBytes, tail, err := codec.SplitTerminated(enc, rest)
		if err != nil {
			return nil, err
		}
		if tail == nil {
			break
		}
		valBytes, tail2, err := codec.SplitTerminated(enc, tail)
		if err != nil {
			return nil, err
		}
		key, err := codec.DecodeText(enc, keyBytes, nil)
		if err != nil {
			return nil, err
		}
		val, err := codec.DecodeText(enc, valBytes, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, KV{Key: key, Value: val})
		rest = tail2
		if tail2 == nil {
			break
		}
	}
	return out, nil
}

// EncodeKeyValue encodes TIPL/TMCL/IPLS.
func EncodeKeyValue(enc codec.Encoding, pairs []KV, lossy bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(enc))
	term, err := codec.Terminator(enc)
	if err != nil {
		return nil, err
	}
	for _, kv := range pairs {
		k, err := codec.EncodeText(enc, kv.Key, lossy)
		if err != nil {
			return nil, err
		}
		v, err := codec.EncodeText(enc, kv.Value, lossy)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.Write(term)
		buf.Write(v)
		buf.Write(term)
	}
	return buf.Bytes(), nil
}

// DecodeUFID decodes UFID: owner (Latin-1 NUL) + raw identifier bytes.
func DecodeUFID(b []byte) (owner string, identifier []byte, err error) {
	ownerBytes, rest, err := codec.SplitTerminated(codec.Latin1, b)
	if err != nil {
		return "", nil, err
	}
	owner, err = codec.DecodeText(codec.Latin1, ownerBytes, nil)
	if err != nil {
		return "", nil, err
	}
	return owner, rest, nil
}

// EncodeUFID encodes UFID.
func EncodeUFID(owner string, identifier []byte) ([]byte, error) {
	var buf bytes.Buffer
	ownerBytes, err := codec.EncodeText(codec.Latin1, owner, false)
	if err != nil {
		return nil, err
	}
	buf.Write(ownerBytes)
	buf.WriteByte(0)
	buf.Write(identifier)
	return buf.Bytes(), nil
}

// DecodePopularimeter decodes POPM: [email NUL][rating u8][counter: 0..8 big-endian bytes].
func DecodePopularimeter(b []byte) (email string, rating uint8, counter uint64, err error) {
	emailBytes, rest, err := codec.SplitTerminated(codec.Latin1, b)
	if err != nil {
		return "", 0, 0, err
	}
	email, err = codec.DecodeText(codec.Latin1, emailBytes, nil)
	if err != nil {
		return "", 0, 0, err
	}
	if len(rest) < 1 {
		return email, 0, 0, nil
	}
	rating = rest[0]
	rest = rest[1:]
	for _, x := range rest {
		counter = counter<<8 | uint64(x)
	}
	return email, rating, counter, nil
}

// EncodePopularimeter encodes POPM.
func EncodePopularimeter(email string, rating uint8, counter uint64) ([]byte, error) {
	var buf bytes.Buffer
	e, err := codec.EncodeText(codec.Latin1, email, false)
	if err != nil {
		return nil, err
	}
	buf.Write(e)
	buf.WriteByte(0)
	buf.WriteByte(rating)
	if counter > 0 {
		ctrBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(ctrBuf, counter)
		i := 0
		for i < 7 && ctrBuf[i] == 0 {
			i++
		}
		buf.Write(ctrBuf[i:])
	}
	return buf.Bytes(), nil
}

// DecodeRVA2 decodes RVA2: [id NUL] then repeating per-channel
// [type][adjustment i16][peak_bits u8][peak ceil(peak_bits/8) bytes].
func DecodeRVA2(b []byte) (id string, channels map[ChannelType]ChannelInfo, err error) {
	idBytes, rest, err := codec.SplitTerminated(codec.Latin1, b)
	if err != nil {
		return "", nil, err
	}
	id, err = codec.DecodeText(codec.Latin1, idBytes, nil)
	if err != nil {
		return "", nil, err
	}
	channels = make(map[ChannelType]ChannelInfo)
	for len(rest) >= 4 {
		ct := ChannelType(rest[0])
		adj := int16(binary.BigEndian.Uint16(rest[1:3]))
		peakBits := rest[3]
		rest = rest[4:]
		peakBytes := int((int(peakBits) + 7) / 8)
		if peakBytes > len(rest) {
			return "", nil, errors.New("id3v2: RVA2 peak data truncated")
		}
		channels[ct] = ChannelInfo{Adjustment: adj, PeakBits: peakBits, Peak: append([]byte(nil), rest[:peakBytes]...)}
		rest = rest[peakBytes:]
	}
	return id, channels, nil
}

// EncodeRVA2 encodes RVA2.
func EncodeRVA2(id string, channels map[ChannelType]ChannelInfo) ([]byte, error) {
	var buf bytes.Buffer
	idBytes, err := codec.EncodeText(codec.Latin1, id, false)
	if err != nil {
		return nil, err
	}
	buf.Write(idBytes)
	buf.WriteByte(0)
	for ct, ci := range channels {
		buf.WriteByte(byte(ct))
		adjBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(adjBuf, uint16(ci.Adjustment))
		buf.Write(adjBuf)
		buf.WriteByte(ci.PeakBits)
		buf.Write(ci.Peak)
	}
	return buf.Bytes(), nil
}

// DecodeSYLTHeader decodes SYLT's common header: [enc][lang[3]][ts_format][content_type][desc NUL].
// The repeating (text NUL, timestamp u32) entries follow in the returned rest.
func DecodeSYLTHeader(b []byte) (enc codec.Encoding, language string, tsFormat, contentType byte, description string, rest []byte, err error) {
	if len(b) < 6 {
		return 0, "", 0, 0, "", nil, errors.New("id3v2: SYLT header too short")
	}
	enc = codec.Encoding(b[0])
	language = string(b[1:4])
	tsFormat = b[4]
	contentType = b[5]
	descBytes, r, err := codec.SplitTerminated(enc, b[6:])
	if err != nil {
		return 0, "", 0, 0, "", nil, err
	}
	description, err = codec.DecodeText(enc, descBytes, nil)
	if err != nil {
		return 0, "", 0, 0, "", nil, err
	}
	return enc, language, tsFormat, contentType, description, r, nil
}

// DecodeSYLTEntries decodes the repeating (text, timestamp) pairs following
// the SYLT header.
func DecodeSYLTEntries(enc codec.Encoding, b []byte) ([]SyncedTextEntry, error) {
	var out []SyncedTextEntry
	for len(b) > 0 {
		textBytes, rest, err := codec.SplitTerminated(enc, b)
		if err != nil {
			return nil, err
		}
		if rest == nil || len(rest) < 4 {
			break
		}
		text, err := codec.DecodeText(enc, textBytes, nil)
		if err != nil {
			return nil, err
		}
		ts := binary.BigEndian.Uint32(rest[:4])
		out = append(out, SyncedTextEntry{Text: text, Timestamp: ts})
		b = rest[4:]
	}
	return out, nil
}
