package codec

import "github.com/pkg/errors"

// ErrBadVintSize is returned when a VINT's length marker cannot be found
// within the permitted octet width.
var ErrBadVintSize = errors.New("codec: invalid EBML VINT")

// VINT is a decoded EBML variable-length integer (§4.2, Glossary).
type VINT struct {
	Value   uint64 // payload bits, right-aligned
	Length  int    // octet width, 1..8
	Unknown bool   // payload bits are all-ones ("unknown size")
}

// DecodeVINT decodes an EBML VINT from the start of b. keepMarker controls
// whether the length-marker bit is kept in Value (true for element IDs,
// false for sizes — §4.2). maxLength caps the octet width that will be
// accepted (default 8 for sizes, 4 for element IDs per the EBML header's
// declared maxima).
func DecodeVINT(b []byte, keepMarker bool, maxLength int) (VINT, error) {
	if len(b) == 0 {
		return VINT{}, errors.Wrap(ErrBadVintSize, "empty input")
	}
	first := b[0]
	length := 0
	for i := 0; i < 8; i++ {
		if first&(0x80>>uint(i)) != 0 {
			length = i + 1
			break
		}
	}
	if length == 0 {
		return VINT{}, errors.New("codec: VINT first octet is all zero bits")
	}
	if length > maxLength {
		return VINT{}, errors.Wrapf(ErrBadVintSize, "length %d exceeds max %d", length, maxLength)
	}
	if len(b) < length {
		return VINT{}, errors.Wrapf(ErrBadVintSize, "need %d bytes, have %d", length, len(b))
	}

	var value uint64
	if keepMarker {
		value = uint64(first)
	} else {
		marker := byte(0x80 >> uint(length-1))
		value = uint64(first &^ marker)
	}
	for i := 1; i < length; i++ {
		value = value<<8 | uint64(b[i])
	}

	dataBits := 7 * length
	if keepMarker {
		dataBits = 7*length - (length - 1)
	}
	allOnes := value == (uint64(1)<<uint(dataBits))-1
	if keepMarker {
		// Element IDs keep the marker bit set in Value, so the all-ones
		// payload check must mask it out first.
		marker := byte(0x80 >> uint(length-1))
		payload := uint64(first&^marker)
		for i := 1; i < length; i++ {
			payload = payload<<8 | uint64(b[i])
		}
		allOnes = payload == (uint64(1)<<uint(7*length))-1
	}

	return VINT{Value: value, Length: length, Unknown: allOnes && !keepMarker}, nil
}

// EncodeVINT encodes v in minLength octets (minimum 1; the encoding grows
// beyond minLength only if v does not fit). keepMarker mirrors DecodeVINT.
func EncodeVINT(v uint64, minLength int, keepMarker bool) ([]byte, error) {
	if minLength < 1 {
		minLength = 1
	}
	length := minLength
	for {
		dataBits := 7 * length
		if v < uint64(1)<<uint(dataBits) || length >= 8 {
			break
		}
		length++
	}
	if length > 8 {
		return nil, errors.Wrap(ErrBadVintSize, "value too large for any VINT width")
	}

	out := make([]byte, length)
	for i := length - 1; i >= 1; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	marker := byte(0x80 >> uint(length-1))
	if keepMarker {
		out[0] = byte(v) | marker
	} else {
		low := byte(v) &^ marker
		out[0] = low | marker
	}
	return out, nil
}

// UnknownSizeVINT returns the canonical "unknown size" VINT encoding of the
// given octet width (all data bits set).
func UnknownSizeVINT(length int) []byte {
	out := make([]byte, length)
	for i := range out {
		out[i] = 0xFF
	}
	marker := byte(0x80 >> uint(length-1))
	out[0] = 0xFF &^ marker | marker
	return out
}
