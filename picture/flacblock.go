package picture

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/pkg/errors"
)

// EncodeFLACBlock serializes p per §4.3's METADATA_BLOCK_PICTURE layout:
// big-endian [pic_type][mime_len][mime][desc_len][desc][width][height]
// [depth][colors][data_len][data]. When base64 is true the result is
// further wrapped for embedding in a Vorbis comment value.
func EncodeFLACBlock(p *Picture, info Information, b64 bool) []byte {
	mime := []byte(p.MimeType)
	desc := []byte(p.Description)

	size := 4 + 4 + len(mime) + 4 + len(desc) + 4 + 4 + 4 + 4 + 4 + len(p.Data)
	buf := make([]byte, size)
	o := 0
	putU32 := func(v uint32) {
		binary.BigEndian.PutUint32(buf[o:], v)
		o += 4
	}
	putU32(uint32(p.PicType))
	putU32(uint32(len(mime)))
	o += copy(buf[o:], mime)
	putU32(uint32(len(desc)))
	o += copy(buf[o:], desc)
	putU32(uint32(info.Width))
	putU32(uint32(info.Height))
	putU32(uint32(info.ColorDepth))
	putU32(uint32(info.NumColors))
	putU32(uint32(len(p.Data)))
	o += copy(buf[o:], p.Data)

	if b64 {
		return []byte(base64.StdEncoding.EncodeToString(buf))
	}
	return buf
}

// DecodeFLACBlock reverses EncodeFLACBlock.
func DecodeFLACBlock(raw []byte, b64 bool) (*Picture, Information, error) {
	buf := raw
	if b64 {
		decoded, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil {
			return nil, Information{}, errors.Wrap(err, "picture: invalid base64 METADATA_BLOCK_PICTURE")
		}
		buf = decoded
	}

	read := func(need int) ([]byte, error) {
		if len(buf) < need {
			return nil, errors.New("picture: truncated METADATA_BLOCK_PICTURE")
		}
		out := buf[:need]
		buf = buf[need:]
		return out, nil
	}
	readU32 := func() (uint32, error) {
		b, err := read(4)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint32(b), nil
	}

	picType, err := readU32()
	if err != nil {
		return nil, Information{}, err
	}
	mimeLen, err := readU32()
	if err != nil {
		return nil, Information{}, err
	}
	mime, err := read(int(mimeLen))
	if err != nil {
		return nil, Information{}, err
	}
	descLen, err := readU32()
	if err != nil {
		return nil, Information{}, err
	}
	desc, err := read(int(descLen))
	if err != nil {
		return nil, Information{}, err
	}
	width, err := readU32()
	if err != nil {
		return nil, Information{}, err
	}
	height, err := readU32()
	if err != nil {
		return nil, Information{}, err
	}
	depth, err := readU32()
	if err != nil {
		return nil, Information{}, err
	}
	colors, err := readU32()
	if err != nil {
		return nil, Information{}, err
	}
	dataLen, err := readU32()
	if err != nil {
		return nil, Information{}, err
	}
	data, err := read(int(dataLen))
	if err != nil {
		return nil, Information{}, err
	}

	p := &Picture{
		PicType:     byte(picType),
		MimeType:    MimeType(mime),
		Description: string(desc),
		Data:        append([]byte(nil), data...),
	}
	info := Information{Width: int(width), Height: int(height), ColorDepth: int(depth), NumColors: int(colors)}
	return p, info, nil
}
