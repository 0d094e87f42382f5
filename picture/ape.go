package picture

import (
	"bytes"

	"github.com/pkg/errors"
)

// EncodeAPE serializes p as an APE picture item value: the description's
// UTF-8 bytes, NUL-terminated, followed by the raw image bytes (§4.3). APE
// carries no explicit MIME field, so it is sniffed back out of the data on
// decode.
func EncodeAPE(p *Picture) []byte {
	out := make([]byte, 0, len(p.Description)+1+len(p.Data))
	out = append(out, []byte(p.Description)...)
	out = append(out, 0)
	out = append(out, p.Data...)
	return out
}

// DecodeAPE reverses EncodeAPE.
func DecodeAPE(b []byte) (*Picture, error) {
	parts := bytes.SplitN(b, []byte{0}, 2)
	if len(parts) != 2 {
		return nil, errors.New("picture: APE picture item missing description terminator")
	}
	return New(0, MimeNone, string(parts[0]), parts[1]), nil
}
