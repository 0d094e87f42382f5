// Package codec implements the primitive byte-level codecs shared by every
// container/tag engine: text encodings, ID3v2 synchsafe integers, EBML
// variable-length integers, the 80-bit IEEE extended float used by AIFF,
// and the CRC-32 variant used by the ID3v2 extended header (C2).
package codec

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// Encoding is an ID3v2 text-encoding byte.
type Encoding byte

const (
	Latin1   Encoding = 0
	UTF16BOM Encoding = 1
	UTF16BE  Encoding = 2
	UTF8     Encoding = 3
)

// ErrInvalidEncoding is returned for an encoding byte outside 0..3.
var ErrInvalidEncoding = errors.New("codec: invalid text encoding byte")

// Terminator returns the NUL terminator appropriate to enc: a single 0x00
// for Latin1/UTF8, an aligned 0x00 0x00 pair for the UTF-16 variants.
func Terminator(enc Encoding) ([]byte, error) {
	switch enc {
	case Latin1, UTF8:
		return []byte{0}, nil
	case UTF16BOM, UTF16BE:
		return []byte{0, 0}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidEncoding, "byte %#x", byte(enc))
	}
}

// DecodeText decodes b (with no terminator expected) per enc. bomCarry, if
// non-nil, supplies the byte order to use for a BOM-less UTF16BOM payload
// that is continuing a BOM already seen earlier in the same logical frame
// (ID3v2 extended-text / synchronized-text rule, §4.2).
func DecodeText(enc Encoding, b []byte, bomCarry binary.ByteOrder) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	switch enc {
	case Latin1:
		return decodeLatin1(b), nil
	case UTF8:
		return string(b), nil
	case UTF16BE:
		return decodeUTF16(trimTrailingOddByte(b), binary.BigEndian), nil
	case UTF16BOM:
		if len(b) < 2 {
			if bomCarry != nil {
				return decodeUTF16(trimTrailingOddByte(b), bomCarry), nil
			}
			return "", nil
		}
		bo, rest, ok := bomOrder(b)
		if !ok {
			if bomCarry == nil {
				return "", errors.Errorf("codec: missing BOM %x %x", b[0], b[1])
			}
			return decodeUTF16(trimTrailingOddByte(b), bomCarry), nil
		}
		return decodeUTF16(trimTrailingOddByte(rest), bo), nil
	default:
		return "", errors.Wrapf(ErrInvalidEncoding, "byte %#x", byte(enc))
	}
}

// EncodeText encodes s per enc. For UTF16BOM a BOM is prefixed; UTF16BE
// never carries one.
func EncodeText(enc Encoding, s string, lossy bool) ([]byte, error) {
	switch enc {
	case Latin1:
		return encodeLatin1(s, lossy)
	case UTF8:
		return []byte(s), nil
	case UTF16BE:
		return encodeUTF16(s, binary.BigEndian, false), nil
	case UTF16BOM:
		return encodeUTF16(s, binary.LittleEndian, true), nil
	default:
		return nil, errors.Wrapf(ErrInvalidEncoding, "byte %#x", byte(enc))
	}
}

func bomOrder(b []byte) (binary.ByteOrder, []byte, bool) {
	switch {
	case b[0] == 0xFE && b[1] == 0xFF:
		return binary.BigEndian, b[2:], true
	case b[0] == 0xFF && b[1] == 0xFE:
		return binary.LittleEndian, b[2:], true
	default:
		return nil, b, false
	}
}

func trimTrailingOddByte(b []byte) []byte {
	if len(b)%2 != 0 {
		return b[:len(b)-1]
	}
	return b
}

func decodeLatin1(b []byte) string {
	r := make([]rune, len(b))
	for i, x := range b {
		r[i] = rune(x)
	}
	return string(r)
}

func encodeLatin1(s string, lossy bool) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			if !lossy {
				return nil, errors.Errorf("codec: rune %U is not representable in Latin-1", r)
			}
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func decodeUTF16(b []byte, bo binary.ByteOrder) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, bo.Uint16(b[i:i+2]))
	}
	return string(utf16.Decode(u))
}

func encodeUTF16(s string, bo binary.ByteOrder, bom bool) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, 2*(len(units)+1))
	if bom {
		bomBuf := make([]byte, 2)
		bo.PutUint16(bomBuf, 0xFEFF)
		out = append(out, bomBuf...)
	}
	buf := make([]byte, 2)
	for _, u := range units {
		bo.PutUint16(buf, u)
		out = append(out, buf...)
	}
	return out
}

// SplitTerminated splits b at the first occurrence of enc's terminator,
// correctly aligned for UTF-16 (so a lone 0x00 inside a UTF-16 code unit is
// not mistaken for the end of string). It returns the text before the
// terminator and the remainder after it.
func SplitTerminated(enc Encoding, b []byte) (text, rest []byte, err error) {
	term, err := Terminator(enc)
	if err != nil {
		return nil, nil, err
	}
	switch len(term) {
	case 1:
		for i, x := range b {
			if x == 0 {
				return b[:i], b[i+1:], nil
			}
		}
		return b, nil, nil
	case 2:
		for i := 0; i+1 < len(b); i += 2 {
			if b[i] == 0 && b[i+1] == 0 {
				return b[:i], b[i+2:], nil
			}
		}
		return b, nil, nil
	default:
		return nil, nil, fmt.Errorf("codec: unexpected terminator length %d", len(term))
	}
}

// StripTrailingNUL removes trailing NUL octets after the last non-NUL byte
// (ID3v2 §7 text-frame behavior).
func StripTrailingNUL(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == 0 {
		i--
	}
	return s[:i]
}
