package codec

import "hash/crc32"

// id3CRC32Table is the IEEE 802.3 polynomial table (0xEDB88320) the
// standard library's hash/crc32 already uses as its default — ID3v2's
// extended-header CRC is specified against exactly this polynomial with an
// all-ones seed and a final one's-complement, so there is no domain-specific
// variant to hand-roll here (see DESIGN.md: stdlib justification).
var id3CRC32Table = crc32.MakeTable(crc32.IEEE)

// CRC32ID3 computes the ID3v2 extended-header CRC-32 over b: polynomial
// 0xEDB88320, seed all-ones, final complement (§4.2/§4.5).
func CRC32ID3(b []byte) uint32 {
	return crc32.Checksum(b, id3CRC32Table)
}

// EncodeCRC32Synchsafe packs a 32-bit CRC as five 7-bit synchsafe groups,
// the on-disk form used by the ID3v2.4 extended header's CRC field.
func EncodeCRC32Synchsafe(crc uint32) [5]byte {
	var out [5]byte
	v := crc
	for i := 4; i >= 0; i-- {
		out[i] = byte(v & 0x7F)
		v >>= 7
	}
	return out
}

// DecodeCRC32Synchsafe reverses EncodeCRC32Synchsafe.
func DecodeCRC32Synchsafe(b [5]byte) uint32 {
	var v uint32
	for _, x := range b {
		v = v<<7 | uint32(x&0x7F)
	}
	return v
}
