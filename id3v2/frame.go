package id3v2

import (
	"bytes"
	"compress/zlib"
	"io"
	"io/ioutil"

	"github.com/go-tagengine/tagengine/codec"
	"github.com/go-tagengine/tagengine/picture"
	"github.com/pkg/errors"
)

// Frame is one decoded ID3v2 frame: its (possibly upgraded) 4-character id,
// its flags, and its decoded Value.
type Frame struct {
	ID    string
	Flags FrameFlags
	Value Value

	// Raw carries the frame's body bytes verbatim when it was not decoded
	// (encrypted, or its decoder failed). WriteTo writes it back in place of
	// Value. Bodies of ids this package has no decoder for are kept in
	// Value.Binary instead.
	Raw []byte
}

// multiInstance lists frame ids that legitimately repeat within a tag, each
// disambiguated by its own discriminator (§4.5's "coexist" rule); every
// other id is singular and later instances replace earlier ones.
var multiInstance = map[string]bool{
	"TXXX": true, "WXXX": true, "COMM": true, "USLT": true,
	"APIC": true, "PIC": true, "GEOB": true, "PRIV": true,
	"UFID": true, "POPM": true, "SYLT": true,
}

// discriminator returns the value that disambiguates multiple instances of
// the same frame id, or "" for frames that don't repeat.
func (f Frame) discriminator() string {
	switch f.ID {
	case "TXXX", "WXXX":
		return f.Value.Description
	case "COMM", "USLT":
		return f.Value.Language + "\x00" + f.Value.Description
	case "APIC", "PIC":
		if f.Value.Picture != nil {
			return string(f.Value.Picture.MimeType) + "\x00" + string(rune(f.Value.Picture.PicType))
		}
		return ""
	case "GEOB":
		return f.Value.Description
	case "PRIV":
		return f.Value.Owner
	case "UFID":
		return f.Value.Owner
	case "POPM":
		return f.Value.Email
	case "SYLT":
		return f.Value.Language + "\x00" + f.Value.Description
	default:
		return ""
	}
}

func decodeFrameBody(id string, v Version, flags FrameFlags, body []byte) (Value, []byte, error) {
	if flags.Encryption {
		// No encryption scheme is standardized; keep the body opaque (§9).
		return Value{}, body, nil
	}
	if flags.Compression {
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return Value{}, body, errors.Wrap(err, "id3v2: opening compressed frame")
		}
		decompressed, err := ioutil.ReadAll(zr)
		if err != nil {
			return Value{}, body, errors.Wrap(err, "id3v2: inflating compressed frame")
		}
		body = decompressed
	}

	switch {
	case id == "TXXX":
		desc, content, err := DecodeUserText(body)
		if err != nil {
			return Value{}, body, err
		}
		return Value{Kind: KindUserText, Description: desc, Text: content}, nil, nil

	case id == "WXXX":
		desc, content, err := DecodeUserText(body)
		if err != nil {
			return Value{}, body, err
		}
		return Value{Kind: KindUserURL, Description: desc, Text: content}, nil, nil

	case len(id) == 4 && id[0] == 'T':
		_, values, err := DecodeText(body)
		if err != nil {
			return Value{}, body, err
		}
		joined := joinSlash(values)
		return Value{Kind: KindText, Text: joined}, nil, nil

	case len(id) == 4 && id[0] == 'W':
		text, err := decodeTextFrame(codec.Latin1, body)
		if err != nil {
			return Value{}, body, err
		}
		return Value{Kind: KindURL, Text: text}, nil, nil

	case id == "COMM" || id == "USLT":
		lang, desc, text, err := DecodeComment(body)
		if err != nil {
			return Value{}, body, err
		}
		kind := KindComment
		if id == "USLT" {
			kind = KindUnsynchronizedText
		}
		return Value{Kind: kind, Language: lang, Description: desc, Text: text}, nil, nil

	case id == "APIC":
		p, err := picture.DecodeAPIC(body)
		if err != nil {
			return Value{}, body, err
		}
		return Value{Kind: KindPicture, Picture: p}, nil, nil

	case id == "PIC":
		p, err := picture.DecodePIC(body)
		if err != nil {
			return Value{}, body, err
		}
		return Value{Kind: KindPicture, Picture: p}, nil, nil

	case id == "TIPL" || id == "TMCL" || id == "IPLS":
		pairs, err := DecodeKeyValue(body)
		if err != nil {
			return Value{}, body, err
		}
		return Value{Kind: KindKeyValue, Pairs: pairs}, nil, nil

	case id == "POPM":
		email, rating, counter, err := DecodePopularimeter(body)
		if err != nil {
			return Value{}, body, err
		}
		return Value{Kind: KindPopularimeter, Email: email, Rating: rating, Counter: counter}, nil, nil

	case id == "UFID":
		owner, ident, err := DecodeUFID(body)
		if err != nil {
			return Value{}, body, err
		}
		return Value{Kind: KindUniqueFileIdentifier, Owner: owner, Data: ident}, nil, nil

	case id == "RVA2":
		ident, channels, err := DecodeRVA2(body)
		if err != nil {
			return Value{}, body, err
		}
		return Value{Kind: KindRelativeVolumeAdjustment, RVAIdentification: ident, Channels: channels}, nil, nil

	case id == "SYLT":
		enc, lang, tsFormat, contentType, desc, rest, err := DecodeSYLTHeader(body)
		if err != nil {
			return Value{}, body, err
		}
		entries, err := DecodeSYLTEntries(enc, rest)
		if err != nil {
			return Value{}, body, err
		}
		return Value{
			Kind: KindSynchronizedText, Language: lang, TimestampFormat: tsFormat,
			ContentType: contentType, Description: desc, SyncedText: entries,
		}, nil, nil

	case id == "PRIV":
		owner, rest, err := codec.SplitTerminated(codec.Latin1, body)
		if err != nil {
			return Value{}, body, err
		}
		ownerStr, err := codec.DecodeText(codec.Latin1, owner, nil)
		if err != nil {
			return Value{}, body, err
		}
		return Value{Kind: KindPrivate, Owner: ownerStr, Data: rest}, nil, nil

	default:
		return Value{Kind: KindBinary, Binary: body}, nil, nil
	}
}

func encodeFrameBody(id string, v Value, v2 Version, enc codec.Encoding, lossy bool) ([]byte, error) {
	switch v.Kind {
	case KindUserText:
		return EncodeUserText(enc, v.Description, v.Text, lossy)
	case KindUserURL:
		return EncodeUserText(enc, v.Description, v.Text, lossy)
	case KindText:
		return EncodeText(enc, []string{v.Text}, lossy)
	case KindURL:
		return codec.EncodeText(codec.Latin1, v.Text, lossy)
	case KindComment, KindUnsynchronizedText:
		return EncodeComment(enc, defaultLang(v.Language), v.Description, v.Text, lossy)
	case KindPicture:
		return picture.EncodeAPIC(v.Picture, enc, v2 == V2_2)
	case KindKeyValue:
		return EncodeKeyValue(enc, v.Pairs, lossy)
	case KindPopularimeter:
		return EncodePopularimeter(v.Email, v.Rating, v.Counter)
	case KindUniqueFileIdentifier:
		return EncodeUFID(v.Owner, v.Data)
	case KindRelativeVolumeAdjustment:
		return EncodeRVA2(v.RVAIdentification, v.Channels)
	case KindPrivate:
		var buf bytes.Buffer
		owner, err := codec.EncodeText(codec.Latin1, v.Owner, lossy)
		if err != nil {
			return nil, err
		}
		buf.Write(owner)
		buf.WriteByte(0)
		buf.Write(v.Data)
		return buf.Bytes(), nil
	case KindBinary:
		return v.Binary, nil
	default:
		return nil, errors.Errorf("id3v2: cannot encode frame %q kind %d", id, v.Kind)
	}
}

func defaultLang(l string) string {
	if len(l) == 3 {
		return l
	}
	return "eng"
}

func readFrame(r io.Reader, v Version) (*Frame, error) {
	fh, err := readFrameHeader(r, v)
	if err != nil {
		return nil, err
	}
	if fh.size == 0 {
		return &Frame{ID: fh.id, Flags: fh.flags, Value: Value{Kind: KindBinary}}, nil
	}
	raw := make([]byte, fh.size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrapf(err, "id3v2: reading frame %q body", fh.id)
	}

	body := raw
	if fh.flags.GroupIdentity {
		if len(body) < 1 {
			return nil, errors.Errorf("id3v2: frame %q too short for group byte", fh.id)
		}
		body = body[1:]
	}
	if fh.flags.Encryption {
		if len(body) < 1 {
			return nil, errors.Errorf("id3v2: frame %q too short for encryption method", fh.id)
		}
		body = body[1:]
	}
	if fh.flags.DataLengthIndicator && v == V2_4 {
		if len(body) < 4 {
			return nil, errors.Errorf("id3v2: frame %q too short for data length indicator", fh.id)
		}
		body = body[4:]
	}
	if fh.flags.Unsynchronisation && v == V2_4 {
		unsynced, err := codec.DecodeUnsynch(body)
		if err != nil {
			return nil, errors.Wrapf(err, "id3v2: frame %q unsynchronisation", fh.id)
		}
		body = unsynced
	}

	val, rawFallback, err := decodeFrameBody(fh.id, v, fh.flags, body)
	if err != nil {
		// BestAttempt: keep the frame as opaque binary rather than failing
		// the whole tag (the caller decides strictness).
		return &Frame{ID: fh.id, Flags: fh.flags, Raw: body}, err
	}
	return &Frame{ID: fh.id, Flags: fh.flags, Value: val, Raw: rawFallback}, nil
}
