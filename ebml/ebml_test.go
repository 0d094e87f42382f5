package ebml

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeIDWidthByMagnitude(t *testing.T) {
	b, err := EncodeID(0x4282) // 2-octet ID (DocType)
	require.NoError(t, err)
	assert.Len(t, b, 2)

	b, err = EncodeID(0x1A45DFA3) // 4-octet ID (EBML header)
	require.NoError(t, err)
	assert.Len(t, b, 4)
}

func TestEncodeElementAndReadElementsRoundTrip(t *testing.T) {
	child, err := EncodeElement(0x4282, []byte("matroska"))
	require.NoError(t, err)

	sr := io.NewSectionReader(bytes.NewReader(child), 0, int64(len(child)))
	elems, err := ReadElements(sr)
	require.NoError(t, err)
	require.Len(t, elems, 1)
	assert.Equal(t, uint64(0x4282), elems[0].ID)

	s, err := ReadString(sr, elems[0])
	require.NoError(t, err)
	assert.Equal(t, "matroska", s)
}

func TestReadUintRoundTrip(t *testing.T) {
	elem, err := EncodeElement(0x42F7, EncodeUint(1))
	require.NoError(t, err)
	sr := io.NewSectionReader(bytes.NewReader(elem), 0, int64(len(elem)))
	elems, err := ReadElements(sr)
	require.NoError(t, err)
	require.Len(t, elems, 1)

	v, err := ReadUint(sr, elems[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestReadUintZeroWidthIsZero(t *testing.T) {
	elem, err := EncodeElement(0x42F7, EncodeUint(0))
	require.NoError(t, err)
	sr := io.NewSectionReader(bytes.NewReader(elem), 0, int64(len(elem)))
	elems, err := ReadElements(sr)
	require.NoError(t, err)
	require.Len(t, elems, 1)
	assert.EqualValues(t, 0, elems[0].Size)

	v, err := ReadUint(sr, elems[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
}

func TestReadElementsWalksSiblings(t *testing.T) {
	a, err := EncodeElement(0x4286, EncodeUint(1))
	require.NoError(t, err)
	b, err := EncodeElement(0x4287, EncodeUint(1))
	require.NoError(t, err)
	whole := append(append([]byte{}, a...), b...)

	sr := io.NewSectionReader(bytes.NewReader(whole), 0, int64(len(whole)))
	elems, err := ReadElements(sr)
	require.NoError(t, err)
	require.Len(t, elems, 2)
	assert.Equal(t, uint64(0x4286), elems[0].ID)
	assert.Equal(t, uint64(0x4287), elems[1].ID)
}

func TestContentIsBoundedToDeclaredSize(t *testing.T) {
	inner, err := EncodeElement(0x4282, []byte("x"))
	require.NoError(t, err)
	outer, err := EncodeElement(0x1A45DFA3, inner)
	require.NoError(t, err)

	sr := io.NewSectionReader(bytes.NewReader(outer), 0, int64(len(outer)))
	top, err := ReadElements(sr)
	require.NoError(t, err)
	require.Len(t, top, 1)

	child := top[0].Content(sr)
	assert.Equal(t, int64(len(inner)), child.Size())
}

func TestBinaryRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0xFF}
	elem, err := EncodeElement(0x4485, payload)
	require.NoError(t, err)
	sr := io.NewSectionReader(bytes.NewReader(elem), 0, int64(len(elem)))
	elems, err := ReadElements(sr)
	require.NoError(t, err)
	require.Len(t, elems, 1)

	b, err := ReadBinary(sr, elems[0])
	require.NoError(t, err)
	assert.Equal(t, payload, b)
}
