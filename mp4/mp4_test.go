package mp4

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-tagengine/tagengine/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeBox(name string, content []byte) []byte {
	var buf bytes.Buffer
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(8+len(content)))
	buf.Write(size[:])
	buf.WriteString(name)
	buf.Write(content)
	return buf.Bytes()
}

func dataAtom(typ DataType, payload []byte) []byte {
	var prefix [8]byte
	binary.BigEndian.PutUint32(prefix[0:4], uint32(typ))
	return encodeBox("data", append(prefix[:], payload...))
}

// buildSyntheticFile assembles a minimal valid MP4: ftyp, moov (with one
// trak carrying an mp4a stsd entry and a one-entry stco table) + udta/meta/
// ilst, then mdat.
func buildSyntheticFile(titleValue string, mdatPayload []byte) []byte {
	nam := encodeBox("\xa9nam", dataAtom(DataUTF8, []byte(titleValue)))
	ilst := encodeBox("ilst", nam)
	meta := encodeBox("meta", append([]byte{0, 0, 0, 0}, ilst...))
	udta := encodeBox("udta", meta)

	mdhd := encodeBox("mdhd", append([]byte{0, 0, 0, 0}, make([]byte, 16)...))
	hdlr := encodeBox("hdlr", append(make([]byte, 8), []byte("soun")...))

	var mp4aFixed [28]byte
	binary.BigEndian.PutUint16(mp4aFixed[16:18], 2)     // channels
	binary.BigEndian.PutUint32(mp4aFixed[24:28], 44100<<16) // sample rate
	stsdEntry := encodeBox("mp4a", mp4aFixed[:])
	stsd := encodeBox("stsd", append([]byte{0, 0, 0, 0, 0, 0, 0, 1}, stsdEntry...))

	var stcoContent bytes.Buffer
	stcoContent.Write([]byte{0, 0, 0, 0})          // version/flags
	stcoContent.Write([]byte{0, 0, 0, 1})          // entry count
	var off [4]byte
	binary.BigEndian.PutUint32(off[:], 1000) // placeholder chunk offset
	stcoContent.Write(off[:])
	stco := encodeBox("stco", stcoContent.Bytes())

	stbl := encodeBox("stbl", append(stsd, stco...))
	minf := encodeBox("minf", stbl)
	mdia := encodeBox("mdia", append(append(mdhd, hdlr...), minf...))
	trak := encodeBox("trak", mdia)

	moovContent := append(append([]byte{}, trak...), udta...)
	moov := encodeBox("moov", moovContent)
	ftyp := encodeBox("ftyp", []byte("M4A mM4A \x00\x00\x00\x00"))
	mdat := encodeBox("mdat", mdatPayload)

	var whole bytes.Buffer
	whole.Write(ftyp)
	whole.Write(moov)
	whole.Write(mdat)
	return whole.Bytes()
}

func TestReadFromParsesTitleAndProperties(t *testing.T) {
	data := buildSyntheticFile("Loveless", []byte("audiodata"))
	tag, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	require.Len(t, tag.Atoms, 1)
	assert.Equal(t, "\xa9nam", tag.Atoms[0].Ident)
	require.Len(t, tag.Atoms[0].Values, 1)
	assert.Equal(t, "Loveless", string(tag.Atoms[0].Values[0].Data))

	assert.Equal(t, "aac", tag.Properties.Codec)
	assert.Equal(t, uint32(44100), tag.Properties.SampleRate)
	assert.EqualValues(t, 2, tag.Properties.Channels)
}

func TestSplitMapsKnownAtom(t *testing.T) {
	data := buildSyntheticFile("Loveless", []byte("audiodata"))
	tag, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	neutral, err := tag.Split()
	require.NoError(t, err)
	assert.Equal(t, item.MP4Ilst, neutral.Type)
	title, ok := neutral.Get(item.TrackTitle)
	require.True(t, ok)
	assert.Equal(t, "Loveless", title.String())
}

func TestWriteToPreservesAudioDataAndUpdatesIlst(t *testing.T) {
	data := buildSyntheticFile("Loveless", []byte("audiodata-unchanged"))
	tag, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	tag.Atoms = []Atom{{Ident: "\xa9nam", Values: []AtomData{{Type: DataUTF8, Data: []byte("Isn't Anything")}}}}

	var out bytes.Buffer
	_, err = WriteTo(bytes.NewReader(data), tag, &out)
	require.NoError(t, err)

	assert.True(t, bytes.Contains(out.Bytes(), []byte("audiodata-unchanged")), "mdat payload must survive a write untouched")
	assert.True(t, bytes.Contains(out.Bytes(), []byte("Isn't Anything")))
	assert.False(t, bytes.Contains(out.Bytes(), []byte("Loveless")))

	roundTrip, err := ReadFrom(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.Len(t, roundTrip.Atoms, 1)
	assert.Equal(t, "Isn't Anything", string(roundTrip.Atoms[0].Values[0].Data))
}

func TestNumberTupleRoundTrip(t *testing.T) {
	enc := encodeNumberTuple(3, 12)
	num, total := parseNumberTuple(Atom{Values: []AtomData{{Data: enc}}})
	assert.Equal(t, 3, num)
	assert.Equal(t, 12, total)
}

func TestMergeRoundTripsTrackAndDisc(t *testing.T) {
	neutral := item.New(item.MP4Ilst)
	neutral.SetTrack(4, 10)
	neutral.SetDisc(1, 2)
	neutral.SetTitle("Bleach")

	merged := Merge(&Tag{}, neutral)

	var titleIdent, trknIdent, diskIdent bool
	for _, a := range merged.Atoms {
		switch a.Ident {
		case "\xa9nam":
			titleIdent = true
		case "trkn":
			trknIdent = true
			num, total := parseNumberTuple(a)
			assert.Equal(t, 4, num)
			assert.Equal(t, 10, total)
		case "disk":
			diskIdent = true
		}
	}
	assert.True(t, titleIdent)
	assert.True(t, trknIdent)
	assert.True(t, diskIdent)
}
