package codec

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// ErrBadSyncText is returned when a decoded unsynchronisation stream
// contains an FF byte followed by a byte >= 0xE0 that was not itself
// escaped with a following 0x00 — such a stream could never have been
// produced by a correct encoder.
var ErrBadSyncText = errors.New("codec: invalid unsynchronised stream")

// DecodeUnsynch reverses ID3v2 unsynchronisation: every FF 00 pair
// collapses to FF. An FF immediately followed by a byte >= 0xE0 (and not
// 0x00) is a hard error, since no correctly encoded stream produces that
// sequence.
func DecodeUnsynch(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		out = append(out, b[i])
		if b[i] == 0xFF && i+1 < len(b) {
			switch {
			case b[i+1] == 0x00:
				i++
			case b[i+1] >= 0xE0:
				return nil, errors.Wrapf(ErrBadSyncText, "0xFF followed by %#x at offset %d", b[i+1], i+1)
			}
		}
	}
	return out, nil
}

// EncodeUnsynch applies ID3v2 unsynchronisation: a 0x00 is inserted after
// every 0xFF.
func EncodeUnsynch(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, x := range b {
		out = append(out, x)
		if x == 0xFF {
			out = append(out, 0x00)
		}
	}
	return out
}

// UnsyncReader is a streaming decode filter over an io.Reader, used when
// the whole unsynchronised frame/tag body should not be buffered up front.
type UnsyncReader struct {
	r      io.Reader
	sawFF  bool
	pushed []byte
}

// NewUnsyncReader wraps r.
func NewUnsyncReader(r io.Reader) *UnsyncReader {
	return &UnsyncReader{r: r}
}

func (u *UnsyncReader) Read(p []byte) (int, error) {
	i := 0
	one := make([]byte, 1)
	for i < len(p) {
		if len(u.pushed) > 0 {
			p[i] = u.pushed[0]
			u.pushed = u.pushed[1:]
			i++
			continue
		}
		n, err := u.r.Read(one)
		if n == 0 {
			if err != nil {
				return i, err
			}
			continue
		}
		b := one[0]
		if u.sawFF && b == 0x00 {
			u.sawFF = false
			continue
		}
		if u.sawFF && b >= 0xE0 {
			return i, errors.Wrapf(ErrBadSyncText, "0xFF followed by %#x", b)
		}
		u.sawFF = b == 0xFF
		p[i] = b
		i++
	}
	return i, nil
}

// SplitUnsynch is a convenience used by tests and small frame bodies: it
// decodes the whole buffer via bytes.Reader + UnsyncReader, matching the
// streaming and bulk paths to a single implementation.
func SplitUnsynch(b []byte) ([]byte, error) {
	r := NewUnsyncReader(bytes.NewReader(b))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
