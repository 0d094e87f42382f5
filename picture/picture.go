// Package picture implements the format-neutral Picture model (C3): MIME
// sniffing, PNG/JPEG geometry extraction, the FLAC METADATA_BLOCK_PICTURE
// base-64 codec, and the APIC/APE/MP4 covr adapters.
//
// PNG/JPEG geometry parsing is grounded on the stdlib image packages'
// documented header layouts rather than a hand-rolled byte walk: decoding
// just the header (image.DecodeConfig) is the idiomatic Go way to get
// dimensions without paying for full image decode, and every example
// repo that touches picture dimensions (go-flac/flacpicture included)
// leans on the same approach. See DESIGN.md for why no third-party image
// library is pulled in here.
package picture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
)

// Type mirrors the ID3v2 APIC picture-type enumeration (§3).
type Type byte

const (
	Other                    Type = 0x00
	FileIcon                 Type = 0x01
	OtherFileIcon            Type = 0x02
	CoverFront               Type = 0x03
	CoverBack                Type = 0x04
	LeafletPage              Type = 0x05
	Media                    Type = 0x06
	LeadArtist               Type = 0x07
	Artist                   Type = 0x08
	Conductor                Type = 0x09
	Band                     Type = 0x0A
	Composer                 Type = 0x0B
	Lyricist                 Type = 0x0C
	RecordingLocation        Type = 0x0D
	DuringRecording          Type = 0x0E
	DuringPerformance        Type = 0x0F
	MovieScreenCapture       Type = 0x10
	BrightColouredFish       Type = 0x11
	Illustration             Type = 0x12
	BandLogotype             Type = 0x13
	PublisherLogotype        Type = 0x14
)

// TypeOf returns a human name for t, or "Undefined(n)" outside the 21
// defined values.
func TypeOf(t byte) string {
	names := [...]string{
		"Other", "32x32 file icon", "Other file icon", "Cover (front)",
		"Cover (back)", "Leaflet page", "Media", "Lead artist", "Artist",
		"Conductor", "Band/Orchestra", "Composer", "Lyricist",
		"Recording Location", "During recording", "During performance",
		"Movie/video screen capture", "A bright coloured fish",
		"Illustration", "Band/artist logotype", "Publisher/Studio logotype",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return fmt.Sprintf("Undefined(%d)", t)
}

// MimeType is a closed set of commonly produced MIME strings plus an
// escape hatch for anything else a writer encountered verbatim.
type MimeType string

const (
	MimePNG   MimeType = "image/png"
	MimeJPEG  MimeType = "image/jpeg"
	MimeTIFF  MimeType = "image/tiff"
	MimeBMP   MimeType = "image/bmp"
	MimeGIF   MimeType = "image/gif"
	MimeNone  MimeType = ""
)

// Picture is the neutral attached-picture model (§3).
type Picture struct {
	PicType     byte
	MimeType    MimeType
	Description string
	Data        []byte
}

// Information is derived picture geometry (§3), zero-valued when it could
// not be determined rather than causing the picture to be dropped (§4.3).
type Information struct {
	Width      int
	Height     int
	ColorDepth int
	NumColors  int
}

var signatures = []struct {
	magic []byte
	mime  MimeType
}{
	{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, MimePNG},
	{[]byte{0xFF, 0xD8, 0xFF}, MimeJPEG},
	{[]byte{'G', 'I', 'F', '8'}, MimeGIF},
	{[]byte{'B', 'M'}, MimeBMP},
	{[]byte{'I', 'I', 0x2A, 0x00}, MimeTIFF},
	{[]byte{'M', 'M', 0x00, 0x2A}, MimeTIFF},
}

// SniffMime inspects the first bytes of data to guess its MIME type,
// mirroring §4.3's "MIME type is inferred from the first 8 bytes".
func SniffMime(data []byte) MimeType {
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.mime
		}
	}
	return MimeNone
}

// New constructs a Picture from raw bytes, sniffing MimeType when mt is
// empty.
func New(picType byte, mt MimeType, description string, data []byte) *Picture {
	if mt == MimeNone {
		mt = SniffMime(data)
	}
	return &Picture{PicType: picType, MimeType: mt, Description: description, Data: data}
}

// DeriveInformation walks data's header to extract width/height/depth via
// image.DecodeConfig. Any failure yields the zero Information rather than
// an error, per §4.3 ("any parse failure yields PictureInformation::default
// rather than dropping the picture").
func DeriveInformation(data []byte) Information {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Information{}
	}
	info := Information{Width: cfg.Width, Height: cfg.Height}
	switch format {
	case "png":
		info.ColorDepth, info.NumColors = pngDepthAndPalette(data)
	case "jpeg":
		info.ColorDepth = jpegPrecisionComponents(data)
	default:
		if p, ok := cfg.ColorModel.(interface{ Len() int }); ok {
			info.NumColors = p.Len()
		}
	}
	return info
}

// pngDepthAndPalette re-walks the IHDR/PLTE chunks directly: image.Config's
// ColorModel does not expose bit depth or palette size in the form the
// neutral PictureInformation wants, so for PNG specifically we still read
// the two header chunks ourselves (§4.3's documented IHDR-then-PLTE walk),
// ignoring CRCs and pixel data as specified.
func pngDepthAndPalette(data []byte) (depth, numColors int) {
	const pngMagicLen = 8
	if len(data) < pngMagicLen+8 {
		return 0, 0
	}
	pos := pngMagicLen
	for pos+8 <= len(data) {
		length := int(data[pos])<<24 | int(data[pos+1])<<16 | int(data[pos+2])<<8 | int(data[pos+3])
		name := string(data[pos+4 : pos+8])
		chunkStart := pos + 8
		if chunkStart+length > len(data) || length < 0 {
			break
		}
		switch name {
		case "IHDR":
			if length >= 10 {
				depth = int(data[chunkStart+8])
			}
		case "PLTE":
			numColors = length / 3
			return depth, numColors
		}
		if name == "IDAT" {
			return depth, numColors
		}
		pos = chunkStart + length + 4 // +4 for CRC
	}
	return depth, numColors
}

// jpegPrecisionComponents scans marker segments for the first SOF0/SOF2
// frame and extracts precision*components as a stand-in "depth" the way
// the neutral model expects a single int (§4.3).
func jpegPrecisionComponents(data []byte) int {
	i := 2 // skip SOI
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			i++
			continue
		}
		marker := data[i+1]
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			i += 2
			continue
		}
		if i+4 > len(data) {
			break
		}
		segLen := int(data[i+2])<<8 | int(data[i+3])
		if marker == 0xC0 || marker == 0xC2 {
			if i+5 < len(data) {
				precision := int(data[i+4])
				components := int(data[i+9])
				return precision * components
			}
			return 0
		}
		if marker == 0xDA { // start of scan: no more header to read
			break
		}
		i += 2 + segLen
	}
	return 0
}

// ErrNotAPicture names the case of a buffer claiming to hold a picture that
// has no recognizable image signature. No function in this package returns
// it: New and DecodeAPE accept such data with MimeNone.
var ErrNotAPicture = errors.New("picture: data is not a recognised picture")
