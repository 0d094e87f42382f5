package picture

import (
	"bytes"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/pkg/errors"
)

// EncodeAPIC serializes p per §4.3's APIC layout:
// [encoding(1)] [mime(Latin1, NUL-terminated | 3-byte format for v2.2)]
// [pic_type(1)] [description(encoded, NUL)] [data...]
func EncodeAPIC(p *Picture, enc codec.Encoding, v22 bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(enc))

	if v22 {
		ext := mimeToExt(p.MimeType)
		if len(ext) != 3 {
			return nil, errors.Errorf("picture: %q has no 3-char ID3v2.2 image format", p.MimeType)
		}
		buf.WriteString(ext)
	} else {
		buf.WriteString(string(p.MimeType))
		buf.WriteByte(0)
	}

	buf.WriteByte(p.PicType)

	descBytes, err := codec.EncodeText(enc, p.Description, false)
	if err != nil {
		return nil, err
	}
	buf.Write(descBytes)
	term, err := codec.Terminator(enc)
	if err != nil {
		return nil, err
	}
	buf.Write(term)
	buf.Write(p.Data)
	return buf.Bytes(), nil
}

// DecodeAPIC parses an APIC (v2.3/v2.4) frame body.
func DecodeAPIC(b []byte) (*Picture, error) {
	if len(b) < 1 {
		return nil, errors.New("picture: APIC frame too short")
	}
	enc := codec.Encoding(b[0])
	rest := b[1:]
	mimeSplit := bytes.SplitN(rest, []byte{0}, 2)
	if len(mimeSplit) != 2 {
		return nil, errors.New("picture: APIC missing MIME terminator")
	}
	mime := MimeType(mimeSplit[0])
	rest = mimeSplit[1]
	if len(rest) < 1 {
		return nil, errors.New("picture: APIC missing picture type")
	}
	picType := rest[0]
	rest = rest[1:]

	descBytes, data, err := codec.SplitTerminated(enc, rest)
	if err != nil {
		return nil, err
	}
	desc, err := codec.DecodeText(enc, descBytes, nil)
	if err != nil {
		return nil, errors.Wrap(err, "picture: decoding APIC description")
	}
	return &Picture{PicType: picType, MimeType: mime, Description: desc, Data: data}, nil
}

// DecodePIC parses an ID3v2.2 "PIC" frame body (3-byte image format instead
// of a MIME string).
func DecodePIC(b []byte) (*Picture, error) {
	if len(b) < 5 {
		return nil, errors.New("picture: PIC frame too short")
	}
	enc := codec.Encoding(b[0])
	ext := string(b[1:4])
	picType := b[4]

	descBytes, data, err := codec.SplitTerminated(enc, b[5:])
	if err != nil {
		return nil, err
	}
	desc, err := codec.DecodeText(enc, descBytes, nil)
	if err != nil {
		return nil, errors.Wrap(err, "picture: decoding PIC description")
	}
	return &Picture{PicType: picType, MimeType: extToMime(ext), Description: desc, Data: data}, nil
}

func mimeToExt(m MimeType) string {
	switch m {
	case MimeJPEG:
		return "jpg"
	case MimePNG:
		return "png"
	default:
		return ""
	}
}

func extToMime(ext string) MimeType {
	switch ext {
	case "jpg", "jpeg":
		return MimeJPEG
	case "png":
		return MimePNG
	default:
		return MimeNone
	}
}
