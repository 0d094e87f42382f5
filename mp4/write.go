package mp4

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// moovContainers is the whitelist of moov-descendant fourccs WriteTo
// recurses into while rebuilding the moov tree; everything else (mdhd,
// hdlr, stsd, stco, co64, ...) is kept as an opaque leaf and copied back
// byte-for-byte, except stco/co64 which get their chunk-offset fixup
// (§9.1).
var moovContainers = map[string]bool{
	"trak": true, "mdia": true, "minf": true, "stbl": true, "udta": true,
}

// treeNode is one box in the in-memory moov rebuild tree. A container node
// has children and no content; a leaf node has content and no children.
type treeNode struct {
	name        string
	isContainer bool
	isFullBox   bool // 4-byte version/flags prefix before children (meta)
	flags       [4]byte
	content     []byte
	children    []*treeNode
}

func parseMoovContainer(sr *io.SectionReader, name string, fullBox bool) (*treeNode, error) {
	n := &treeNode{name: name, isContainer: true, isFullBox: fullBox}
	body := sr
	if fullBox {
		if sr.Size() >= 4 {
			if _, err := sr.ReadAt(n.flags[:], 0); err != nil && err != io.EOF {
				return nil, err
			}
		}
		body = io.NewSectionReader(sr, 4, sr.Size()-4)
	}
	boxes, err := walkBoxes(body)
	if err != nil {
		return nil, err
	}
	for _, b := range boxes {
		cr := childReader(body, b)
		switch {
		case moovContainers[b.name]:
			child, err := parseMoovContainer(cr, b.name, false)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, child)
		case b.name == "meta":
			child, err := parseMoovContainer(cr, b.name, true)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, child)
		default:
			data := make([]byte, cr.Size())
			if _, err := cr.ReadAt(data, 0); err != nil && err != io.EOF {
				return nil, err
			}
			n.children = append(n.children, &treeNode{name: b.name, content: data})
		}
	}
	return n, nil
}

func (n *treeNode) serialize() []byte {
	var body bytes.Buffer
	if n.isFullBox {
		body.Write(n.flags[:])
	}
	if n.isContainer {
		for _, c := range n.children {
			body.Write(c.serialize())
		}
	} else {
		body.Write(n.content)
	}
	size := uint32(8 + body.Len())
	var out bytes.Buffer
	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], size)
	out.Write(sizeBuf[:])
	out.WriteString(n.name)
	out.Write(body.Bytes())
	return out.Bytes()
}

// replaceIlst drops any existing "ilst" child of the "meta" node found
// under udta and appends a freshly built one from atoms. A file with no
// udta/meta yet gets one synthesized.
func replaceIlst(moov *treeNode, atoms []Atom) {
	udta := findOrCreateChild(moov, "udta", false)
	meta := findOrCreateChild(udta, "meta", true)
	out := meta.children[:0]
	for _, c := range meta.children {
		if c.name != "ilst" {
			out = append(out, c)
		}
	}
	meta.children = append(out, buildIlstNode(atoms))
}

func findOrCreateChild(parent *treeNode, name string, fullBox bool) *treeNode {
	for _, c := range parent.children {
		if c.name == name {
			return c
		}
	}
	child := &treeNode{name: name, isContainer: true, isFullBox: fullBox}
	parent.children = append(parent.children, child)
	return child
}

func buildIlstNode(atoms []Atom) *treeNode {
	n := &treeNode{name: "ilst", isContainer: true}
	for _, a := range atoms {
		if a.Freeform {
			n.children = append(n.children, buildFreeformNode(a))
		} else {
			n.children = append(n.children, buildLeafAtomNode(a))
		}
	}
	return n
}

func buildLeafAtomNode(a Atom) *treeNode {
	n := &treeNode{name: a.Ident, isContainer: true}
	for _, v := range a.Values {
		n.children = append(n.children, buildDataNode(v))
	}
	return n
}

func buildFreeformNode(a Atom) *treeNode {
	mean, name := a.Ident, ""
	if i := strings.IndexByte(a.Ident, ':'); i >= 0 {
		mean, name = a.Ident[:i], a.Ident[i+1:]
	}
	n := &treeNode{name: "----", isContainer: true}
	n.children = append(n.children, buildVersionedStringNode("mean", mean))
	n.children = append(n.children, buildVersionedStringNode("name", name))
	for _, v := range a.Values {
		n.children = append(n.children, buildDataNode(v))
	}
	return n
}

func buildVersionedStringNode(name, s string) *treeNode {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	buf.WriteString(s)
	return &treeNode{name: name, content: buf.Bytes()}
}

func buildDataNode(v AtomData) *treeNode {
	var buf bytes.Buffer
	var prefix [8]byte
	binary.BigEndian.PutUint32(prefix[0:4], uint32(v.Type))
	buf.Write(prefix[:])
	buf.Write(v.Data)
	return &treeNode{name: "data", content: buf.Bytes()}
}

// shiftChunkOffsets walks every stco/co64 leaf under n and adds delta to
// each entry in place (§9.1's per-track moov chunk-offset fixup).
func shiftChunkOffsets(n *treeNode, delta int64) {
	if !n.isContainer {
		switch n.name {
		case "stco":
			shiftStco(n.content, delta)
		case "co64":
			shiftCo64(n.content, delta)
		}
		return
	}
	for _, c := range n.children {
		shiftChunkOffsets(c, delta)
	}
}

func shiftStco(content []byte, delta int64) {
	if len(content) < 8 {
		return
	}
	count := binary.BigEndian.Uint32(content[4:8])
	off := 8
	for i := uint32(0); i < count && off+4 <= len(content); i++ {
		v := int64(binary.BigEndian.Uint32(content[off : off+4]))
		v += delta
		if v < 0 {
			v = 0
		}
		binary.BigEndian.PutUint32(content[off:off+4], uint32(v))
		off += 4
	}
}

func shiftCo64(content []byte, delta int64) {
	if len(content) < 8 {
		return
	}
	count := binary.BigEndian.Uint32(content[4:8])
	off := 8
	for i := uint32(0); i < count && off+8 <= len(content); i++ {
		v := int64(binary.BigEndian.Uint64(content[off : off+8]))
		v += delta
		if v < 0 {
			v = 0
		}
		binary.BigEndian.PutUint64(content[off:off+8], uint64(v))
		off += 8
	}
}

// WriteTo rewrites r's moov/udta/meta/ilst tree with tag's atoms and
// copies r through w otherwise unchanged. Per §4.7, the new ilst is
// first tried in place: if it fits within the existing ilst atom plus
// any adjacent "free" atom, only that byte range changes and every
// other byte (including all audio data) is copied through untouched.
// Only when it doesn't fit does this fall back to rebuilding the whole
// moov tree and rewriting the file; per §9.1, that fallback shifts
// every stco/co64 entry in every trak's stbl by moov's net size delta
// when moov precedes mdat, since mdat doesn't move but moov's length
// just changed underneath it.
func WriteTo(r io.ReadSeeker, tag *Tag, w io.Writer) (int64, error) {
	fileLen, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "mp4: seeking to end")
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	root := io.NewSectionReader(r, 0, fileLen)
	topBoxes, err := walkBoxes(root)
	if err != nil {
		return 0, errors.Wrap(err, "mp4: reading top-level boxes")
	}

	var moovBox, mdatBox *box
	for i := range topBoxes {
		switch topBoxes[i].name {
		case "moov":
			if moovBox == nil {
				moovBox = &topBoxes[i]
			}
		case "mdat":
			if mdatBox == nil {
				mdatBox = &topBoxes[i]
			}
		}
	}
	if moovBox == nil {
		return 0, errors.New("mp4: no moov atom found")
	}

	newIlst := buildIlstNode(tag.Atoms).serialize()
	spliced, ok, err := trySpliceIlst(r, root, *moovBox, newIlst, fileLen)
	if err != nil {
		return 0, err
	}
	if ok {
		n, err := w.Write(spliced)
		return int64(n), err
	}

	return writeWholeFile(r, root, *moovBox, mdatBox, tag, fileLen, w)
}

// boxLoc is a box descriptor together with its absolute offset in the
// file, since walkBoxes alone only reports offsets relative to whatever
// section reader it was given.
type boxLoc struct {
	box
	absStart int64
}

// findChildBox looks for name among the boxes contained in
// [absContentStart, absContentStart+contentLen). ok is false (with a nil
// error) when the container simply has no such child.
func findChildBox(root *io.SectionReader, absContentStart, contentLen int64, name string) (boxLoc, bool, error) {
	children, err := listChildBoxes(root, absContentStart, contentLen)
	if err != nil {
		return boxLoc{}, false, err
	}
	for _, c := range children {
		if c.name == name {
			return c, true, nil
		}
	}
	return boxLoc{}, false, nil
}

// listChildBoxes returns every box in [absContentStart, absContentStart+
// contentLen), each tagged with its absolute file offset.
func listChildBoxes(root *io.SectionReader, absContentStart, contentLen int64) ([]boxLoc, error) {
	sr := io.NewSectionReader(root, absContentStart, contentLen)
	boxes, err := walkBoxes(sr)
	if err != nil {
		return nil, err
	}
	out := make([]boxLoc, len(boxes))
	for i, b := range boxes {
		out[i] = boxLoc{box: b, absStart: absContentStart + b.start}
	}
	return out, nil
}

// trySpliceIlst attempts §4.7's in-place rewrite: when newIlst fits within
// the file's existing ilst atom plus an immediately-following "free"
// sibling, it splices newIlst (padded with a shrunk "free" box to absorb
// any leftover slack) into that exact byte range and returns the whole
// resulting file. ok is false whenever there is no existing ilst to
// splice into, or the new atom doesn't fit, in which case the caller
// falls back to a full moov rebuild.
func trySpliceIlst(r io.ReadSeeker, root *io.SectionReader, moovBox box, newIlst []byte, fileLen int64) ([]byte, bool, error) {
	moovContentStart := moovBox.start + moovBox.headerLen
	udta, ok, err := findChildBox(root, moovContentStart, moovBox.contentLen, "udta")
	if err != nil || !ok {
		return nil, false, err
	}
	udtaContentStart := udta.absStart + udta.headerLen
	meta, ok, err := findChildBox(root, udtaContentStart, udta.contentLen, "meta")
	if err != nil || !ok {
		return nil, false, err
	}
	if meta.contentLen < 4 {
		return nil, false, nil
	}
	// meta is a full box: a 4-byte version/flags prefix precedes its children.
	metaContentStart := meta.absStart + meta.headerLen + 4
	metaContentLen := meta.contentLen - 4

	children, err := listChildBoxes(root, metaContentStart, metaContentLen)
	if err != nil {
		return nil, false, err
	}
	idx := -1
	for i, c := range children {
		if c.name == "ilst" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false, nil
	}

	ilst := children[idx]
	regionStart := ilst.absStart
	regionLen := ilst.headerLen + ilst.contentLen
	if idx+1 < len(children) && children[idx+1].name == "free" {
		regionLen += children[idx+1].headerLen + children[idx+1].contentLen
	}

	slack := regionLen - int64(len(newIlst))
	if slack < 0 {
		return nil, false, nil
	}
	if slack > 0 && slack < 8 {
		return nil, false, nil // too little slack to pad with a valid "free" box
	}

	var region bytes.Buffer
	region.Write(newIlst)
	if slack > 0 {
		region.Write(buildFreeBox(slack))
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, false, err
	}
	whole := make([]byte, fileLen)
	if _, err := io.ReadFull(r, whole); err != nil {
		return nil, false, errors.Wrap(err, "mp4: buffering source file")
	}

	var out bytes.Buffer
	out.Write(whole[:regionStart])
	out.Write(region.Bytes())
	out.Write(whole[regionStart+regionLen:])
	return out.Bytes(), true, nil
}

// buildFreeBox returns a single "free" atom of exactly size bytes
// (header included), its content zero-filled.
func buildFreeBox(size int64) []byte {
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(size))
	copy(buf[4:8], "free")
	return buf
}

// writeWholeFile is the §4.7 fallback: rebuild the entire moov tree with
// tag's atoms spliced into udta/meta/ilst and rewrite the file around it.
func writeWholeFile(r io.ReadSeeker, root *io.SectionReader, moovBox box, mdatBox *box, tag *Tag, fileLen int64, w io.Writer) (int64, error) {
	moovTree, err := parseMoovContainer(childReader(root, moovBox), "moov", false)
	if err != nil {
		return 0, errors.Wrap(err, "mp4: reading moov tree")
	}
	replaceIlst(moovTree, tag.Atoms)

	newMoov := moovTree.serialize()
	oldMoovLen := moovBox.headerLen + moovBox.contentLen
	delta := int64(len(newMoov)) - oldMoovLen

	if mdatBox != nil && moovBox.start < mdatBox.start && delta != 0 {
		shiftChunkOffsets(moovTree, delta)
		newMoov = moovTree.serialize()
	}

	whole := make([]byte, fileLen)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(r, whole); err != nil {
		return 0, errors.Wrap(err, "mp4: buffering source file")
	}

	var out bytes.Buffer
	out.Write(whole[:moovBox.start])
	out.Write(newMoov)
	out.Write(whole[moovBox.start+oldMoovLen:])

	n, err := w.Write(out.Bytes())
	return int64(n), err
}
