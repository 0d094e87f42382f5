package codec

import (
	"math"

	"github.com/pkg/errors"
)

// DecodeExtended80 decodes the 80-bit IEEE 754 extended-precision float
// used by AIFF's COMM sample-rate field into a float64. NaN, infinities,
// and negative values are rejected since no valid sample rate is any of
// those (§4.2).
func DecodeExtended80(b [10]byte) (float64, error) {
	sign := b[0] & 0x80
	exp := (uint16(b[0]&0x7F) << 8) | uint16(b[1])
	var mantissa uint64
	for i := 2; i < 10; i++ {
		mantissa = mantissa<<8 | uint64(b[i])
	}

	if exp == 0x7FFF {
		return 0, errors.New("codec: extended float is NaN or Inf")
	}
	if sign != 0 {
		return 0, errors.New("codec: extended float is negative")
	}
	if exp == 0 && mantissa == 0 {
		return 0, nil
	}

	f := float64(mantissa) * math.Pow(2, float64(int32(exp)-16383-63))
	return f, nil
}

// EncodeExtended80 encodes a non-negative, finite f64 as an 80-bit IEEE
// extended float.
func EncodeExtended80(f float64) ([10]byte, error) {
	var out [10]byte
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return out, errors.New("codec: value not representable as a sample rate")
	}
	if f == 0 {
		return out, nil
	}

	exp := 0
	for f >= 2 {
		f /= 2
		exp++
	}
	for f < 1 {
		f *= 2
		exp--
	}
	biased := uint16(exp + 16383)
	mantissa := uint64(f * (1 << 63))

	out[0] = byte(biased >> 8)
	out[1] = byte(biased)
	for i := 9; i >= 2; i-- {
		out[i] = byte(mantissa)
		mantissa >>= 8
	}
	return out, nil
}
