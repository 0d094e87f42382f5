package mp4

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ReadFrom parses an MP4 file's ilst tag and audio properties (§4.7),
// positioned at the start of the file.
func ReadFrom(r io.ReadSeeker) (*Tag, error) {
	fileLen, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "mp4: seeking to end")
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	root := io.NewSectionReader(r, 0, fileLen)
	topBoxes, err := walkBoxes(root)
	if err != nil {
		return nil, errors.Wrap(err, "mp4: reading top-level boxes")
	}

	tag := &Tag{}

	var moovBox *box
	for i := range topBoxes {
		if topBoxes[i].name == "moov" {
			moovBox = &topBoxes[i]
			break
		}
	}
	if moovBox == nil {
		return nil, errors.New("mp4: no moov atom found")
	}

	moovReader := childReader(root, *moovBox)
	moovChildren, err := walkBoxes(moovReader)
	if err != nil {
		return nil, errors.Wrap(err, "mp4: reading moov children")
	}

	for i := range moovChildren {
		switch moovChildren[i].name {
		case "trak":
			if err := readTrak(childReader(moovReader, moovChildren[i]), tag); err != nil {
				return nil, err
			}
		case "udta":
			if err := readUdta(childReader(moovReader, moovChildren[i]), tag); err != nil {
				return nil, err
			}
		}
	}

	return tag, nil
}

func readUdta(udta *io.SectionReader, tag *Tag) error {
	children, err := walkBoxes(udta)
	if err != nil {
		return errors.Wrap(err, "mp4: reading udta children")
	}
	for i := range children {
		if children[i].name != "meta" {
			continue
		}
		return readMeta(childReader(udta, children[i]), tag)
	}
	return nil
}

// readMeta parses the 4-byte version/flags-prefixed "meta" atom and
// recurses into its "ilst" child (§4.7).
func readMeta(meta *io.SectionReader, tag *Tag) error {
	if meta.Size() < 4 {
		return nil
	}
	body := io.NewSectionReader(meta, 4, meta.Size()-4)
	children, err := walkBoxes(body)
	if err != nil {
		return errors.Wrap(err, "mp4: reading meta children")
	}
	for i := range children {
		if children[i].name != "ilst" {
			continue
		}
		return readIlst(childReader(body, children[i]), tag)
	}
	return nil
}

func readIlst(ilst *io.SectionReader, tag *Tag) error {
	children, err := walkBoxes(ilst)
	if err != nil {
		return errors.Wrap(err, "mp4: reading ilst children")
	}
	for _, c := range children {
		cr := childReader(ilst, c)
		if c.name == "----" {
			a, err := readFreeformAtom(cr)
			if err != nil {
				return err
			}
			tag.Atoms = append(tag.Atoms, a)
			continue
		}
		a, err := readLeafAtom(c.name, cr)
		if err != nil {
			return err
		}
		tag.Atoms = append(tag.Atoms, a)
	}
	return nil
}

// readLeafAtom parses an ordinary ilst atom's one or more "data" sub-atoms.
func readLeafAtom(name string, sr *io.SectionReader) (Atom, error) {
	boxes, err := walkBoxes(sr)
	if err != nil {
		return Atom{}, errors.Wrapf(err, "mp4: reading %q sub-atoms", name)
	}
	a := Atom{Ident: name}
	for _, b := range boxes {
		if b.name != "data" {
			continue
		}
		d, err := readDataAtom(childReader(sr, b))
		if err != nil {
			return Atom{}, err
		}
		a.Values = append(a.Values, d)
	}
	return a, nil
}

// readDataAtom decodes an 8-byte "version_flags(4) + locale(4)" prefixed
// data payload (§4.7).
func readDataAtom(sr *io.SectionReader) (AtomData, error) {
	if sr.Size() < 8 {
		return AtomData{}, errors.New("mp4: data atom too short")
	}
	var prefix [8]byte
	if _, err := sr.ReadAt(prefix[:], 0); err != nil {
		return AtomData{}, err
	}
	typ := DataType(binary.BigEndian.Uint32(prefix[0:4]) & 0x00FFFFFF)
	payload := make([]byte, sr.Size()-8)
	if _, err := sr.ReadAt(payload, 8); err != nil && err != io.EOF {
		return AtomData{}, err
	}
	return AtomData{Type: typ, Data: payload}, nil
}

// readFreeformAtom parses a "----" atom's mean/name/data trio into a
// composite "mean:name" identifier (§4.7, grounded on dhowden-tag's
// readCustomAtom).
func readFreeformAtom(sr *io.SectionReader) (Atom, error) {
	boxes, err := walkBoxes(sr)
	if err != nil {
		return Atom{}, errors.Wrap(err, "mp4: reading freeform sub-atoms")
	}
	var mean, name string
	var values []AtomData
	for _, b := range boxes {
		cr := childReader(sr, b)
		switch b.name {
		case "mean":
			s, err := readVersionedString(cr)
			if err != nil {
				return Atom{}, err
			}
			mean = s
		case "name":
			s, err := readVersionedString(cr)
			if err != nil {
				return Atom{}, err
			}
			name = s
		case "data":
			d, err := readDataAtom(cr)
			if err != nil {
				return Atom{}, err
			}
			values = append(values, d)
		}
	}
	return Atom{Ident: mean + ":" + name, Freeform: true, Values: values}, nil
}

// readVersionedString reads a 4-byte version/flags prefixed UTF-8 string,
// the shape "mean" and "name" sub-atoms share.
func readVersionedString(sr *io.SectionReader) (string, error) {
	if sr.Size() < 4 {
		return "", nil
	}
	b := make([]byte, sr.Size()-4)
	if _, err := sr.ReadAt(b, 4); err != nil && err != io.EOF {
		return "", err
	}
	return string(b), nil
}
