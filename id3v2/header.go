// Package id3v2 implements the ID3v2.{2,3,4} tag engine (C5): header and
// extended-header parsing, the unsynchronisation stream, per-frame
// readers/writers, the duplicate-frame merge policy, and split/merge with
// the neutral item.Tag.
//
// Versions are normalized to 2.4 in memory (§3); OriginalVersion is kept so
// WriteTo can write a 2.3 or 2.4 tag back in the version it was read as. A
// tag read as 2.2 is written back as 2.4, since its frame ids were upgraded
// to their four-letter forms on read.
package id3v2

import (
	"io"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/pkg/errors"
)

// Version is the on-disk ID3v2 minor version.
type Version int

const (
	V2_2 Version = 2
	V2_3 Version = 3
	V2_4 Version = 4
)

// Header is the parsed 10-byte ID3v2 header (§4.5).
type Header struct {
	Version           Version
	Unsynchronisation bool
	ExtendedHeader    bool
	Experimental      bool
	Footer            bool
	Size              uint32 // in-memory ordinary size, decoded from the on-disk synchsafe value
}

// ReadHeader parses the 10-byte header from r. r must be positioned at the
// start of the "ID3" marker.
func ReadHeader(r io.Reader) (*Header, error) {
	b := make([]byte, 10)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrap(err, "id3v2: reading header")
	}
	if string(b[0:3]) != "ID3" {
		return nil, errors.New("id3v2: missing \"ID3\" marker")
	}

	major := b[3]
	var vers Version
	switch major {
	case 2:
		vers = V2_2
	case 3:
		vers = V2_3
	case 4:
		vers = V2_4
	default:
		return nil, errors.Errorf("id3v2: unsupported major version %d", major)
	}

	flags := b[5]
	unsync := flags&0x80 != 0
	extHeader := flags&0x40 != 0 && vers != V2_2
	experimental := flags&0x20 != 0 && vers != V2_2
	footer := flags&0x10 != 0 && vers == V2_4

	if vers == V2_2 && flags&0x40 != 0 /* bit 6 on 2.2 means compression */ {
		return nil, errors.New("id3v2: ID3v2.2 compression flag set, no compression scheme was ever standardized")
	}

	size := codec.Synchsafe7BitChunked(b[6:10])

	return &Header{
		Version:           vers,
		Unsynchronisation: unsync,
		ExtendedHeader:    extHeader,
		Experimental:      experimental,
		Footer:            footer,
		Size:              size,
	}, nil
}

// EncodeHeader serializes h plus the frame/padding body size (excluding the
// 10-byte header itself) back to its 10-byte on-disk form.
func EncodeHeader(h *Header, bodySize uint32) ([]byte, error) {
	out := make([]byte, 10)
	copy(out[0:3], "ID3")
	out[3] = byte(h.Version)
	out[4] = 0 // revision

	var flags byte
	if h.Unsynchronisation {
		flags |= 0x80
	}
	if h.ExtendedHeader && h.Version != V2_2 {
		flags |= 0x40
	}
	if h.Experimental && h.Version != V2_2 {
		flags |= 0x20
	}
	if h.Footer && h.Version == V2_4 {
		flags |= 0x10
	}
	out[5] = flags

	sb, err := codec.SynchBytes(bodySize)
	if err != nil {
		return nil, errors.Wrap(err, "id3v2: tag body too large to encode")
	}
	copy(out[6:10], sb[:])
	return out, nil
}

// ExtendedHeader is the parsed extended header (§4.5): CRC and restriction
// flags are carried, unknown bits tolerated.
type ExtendedHeader struct {
	Size          uint32
	CRCPresent    bool
	CRC           uint32
	Restrictions  bool
	RestrictionByte byte
}

// ReadExtendedHeader parses the extended header per version (2.3 and 2.4
// disagree on layout; both are handled here, dialect-specific, then folded
// into the same in-memory shape per §9's "parse each as its own dialect"
// rule).
func ReadExtendedHeader(r io.Reader, v Version) (*ExtendedHeader, error) {
	sizeBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, sizeBuf); err != nil {
		return nil, errors.Wrap(err, "id3v2: reading extended header size")
	}

	eh := &ExtendedHeader{}
	switch v {
	case V2_3:
		eh.Size = uint32(sizeBuf[0])<<24 | uint32(sizeBuf[1])<<16 | uint32(sizeBuf[2])<<8 | uint32(sizeBuf[3])
		flagsBuf := make([]byte, 2)
		if _, err := io.ReadFull(r, flagsBuf); err != nil {
			return nil, err
		}
		if flagsBuf[0]&0x80 != 0 {
			crcBuf := make([]byte, 4)
			if _, err := io.ReadFull(r, crcBuf); err != nil {
				return nil, err
			}
			eh.CRCPresent = true
			eh.CRC = uint32(crcBuf[0])<<24 | uint32(crcBuf[1])<<16 | uint32(crcBuf[2])<<8 | uint32(crcBuf[3])
		}
	case V2_4:
		eh.Size = codec.Synchsafe7BitChunked(sizeBuf)
		nFlagBytes := make([]byte, 1)
		if _, err := io.ReadFull(r, nFlagBytes); err != nil {
			return nil, err
		}
		flagsBuf := make([]byte, 1)
		if _, err := io.ReadFull(r, flagsBuf); err != nil {
			return nil, err
		}
		if flagsBuf[0]&0x40 != 0 {
			crcBuf := make([]byte, 6)
			if _, err := io.ReadFull(r, crcBuf); err != nil {
				return nil, err
			}
			var five [5]byte
			copy(five[:], crcBuf[1:])
			eh.CRCPresent = true
			eh.CRC = codec.DecodeCRC32Synchsafe(five)
		}
		if flagsBuf[0]&0x20 != 0 {
			restrBuf := make([]byte, 2)
			if _, err := io.ReadFull(r, restrBuf); err != nil {
				return nil, err
			}
			eh.Restrictions = true
			eh.RestrictionByte = restrBuf[1]
		}
	}
	return eh, nil
}
