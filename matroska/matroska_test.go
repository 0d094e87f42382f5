package matroska

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-tagengine/tagengine/ebml"
	"github.com/go-tagengine/tagengine/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func must(b []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return b
}

func buildSyntheticFile(title string, simpleBlockPayload []byte) []byte {
	ebmlHeader := must(ebml.EncodeElement(idEBML, must(ebml.EncodeElement(idDocType, []byte("matroska")))))

	info := must(ebml.EncodeElement(idInfo, concatBytes(
		must(ebml.EncodeElement(idTimecodeScale, ebml.EncodeUint(1000000))),
	)))

	audio := must(ebml.EncodeElement(idAudio, concatBytes(
		must(ebml.EncodeElement(idSamplingFrequency, f64(44100))),
		must(ebml.EncodeElement(idChannels, ebml.EncodeUint(2))),
	)))
	trackEntry := must(ebml.EncodeElement(idTrackEntry, concatBytes(
		must(ebml.EncodeElement(idTrackType, ebml.EncodeUint(trackTypeAudio))),
		must(ebml.EncodeElement(idCodecID, []byte("A_AAC"))),
		audio,
	)))
	tracks := must(ebml.EncodeElement(idTracks, trackEntry))

	simpleBlock := must(ebml.EncodeElement(idSimpleBlock, simpleBlockPayload))
	cluster := must(ebml.EncodeElement(idCluster, simpleBlock))

	simpleTag := must(ebml.EncodeElement(idSimpleTag, concatBytes(
		must(ebml.EncodeElement(idTagName, []byte("TITLE"))),
		must(ebml.EncodeElement(idTagString, []byte(title))),
	)))
	tagEntry := must(ebml.EncodeElement(idTag, concatBytes(
		must(ebml.EncodeElement(idTargets, nil)),
		simpleTag,
	)))
	tags := must(ebml.EncodeElement(idTags, tagEntry))

	segmentBody := concatBytes(info, tracks, cluster, tags)
	segment := must(ebml.EncodeElement(idSegment, segmentBody))

	return concatBytes(ebmlHeader, segment)
}

func concatBytes(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func f64(v float64) []byte {
	bits := math.Float64bits(v)
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(bits)
		bits >>= 8
	}
	return b
}

func TestReadFromParsesTitleAndProperties(t *testing.T) {
	data := buildSyntheticFile("Loveless", []byte("audio-bytes"))
	tag, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "matroska", tag.DocType)
	assert.Equal(t, "A_AAC", tag.Properties.Codec)
	assert.EqualValues(t, 44100, tag.Properties.SampleRate)
	assert.EqualValues(t, 2, tag.Properties.Channels)

	require.Len(t, tag.Entries, 1)
	require.Len(t, tag.Entries[0].Tags, 1)
	assert.Equal(t, "TITLE", tag.Entries[0].Tags[0].Name)
	assert.Equal(t, "Loveless", tag.Entries[0].Tags[0].String)
	assert.Equal(t, int64(DefaultTargetTypeValue), tag.Entries[0].Targets.TypeValue)
}

func TestSplitMapsTitle(t *testing.T) {
	data := buildSyntheticFile("Loveless", []byte("audio-bytes"))
	tag, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	neutral, err := tag.Split()
	require.NoError(t, err)
	assert.Equal(t, item.MatroskaSimple, neutral.Type)
	title, ok := neutral.Get(item.TrackTitle)
	require.True(t, ok)
	assert.Equal(t, "Loveless", title.String())
}

func TestWriteToPreservesClusterAndUpdatesTags(t *testing.T) {
	data := buildSyntheticFile("Loveless", []byte("audio-bytes-unchanged"))
	tag, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	tag.Entries = []TagEntry{{
		Targets: Targets{TypeValue: DefaultTargetTypeValue},
		Tags:    []SimpleTag{{Name: "TITLE", Language: "und", Default: true, String: "Isn't Anything"}},
	}}

	var out bytes.Buffer
	_, err = WriteTo(bytes.NewReader(data), tag, &out)
	require.NoError(t, err)

	assert.True(t, bytes.Contains(out.Bytes(), []byte("audio-bytes-unchanged")))
	assert.True(t, bytes.Contains(out.Bytes(), []byte("Isn't Anything")))
	assert.False(t, bytes.Contains(out.Bytes(), []byte("Loveless")))

	roundTrip, err := ReadFrom(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.Len(t, roundTrip.Entries, 1)
	require.Len(t, roundTrip.Entries[0].Tags, 1)
	assert.Equal(t, "Isn't Anything", roundTrip.Entries[0].Tags[0].String)
	assert.EqualValues(t, 2, roundTrip.Properties.Channels)
}

func TestMergeRoundTripsTrackNumber(t *testing.T) {
	neutral := item.New(item.MatroskaSimple)
	neutral.SetTrack(4, 10)
	neutral.SetTitle("Bleach")

	merged := Merge(&Tag{}, neutral)
	require.Len(t, merged.Entries, 1)

	var sawTitle, sawPart, sawTotal bool
	for _, st := range merged.Entries[0].Tags {
		switch st.Name {
		case "TITLE":
			sawTitle = true
			assert.Equal(t, "Bleach", st.String)
		case partNumberName:
			sawPart = true
			assert.Equal(t, "4", st.String)
		case totalPartsName:
			sawTotal = true
			assert.Equal(t, "10", st.String)
		}
	}
	assert.True(t, sawTitle)
	assert.True(t, sawPart)
	assert.True(t, sawTotal)
}
