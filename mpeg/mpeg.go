// Package mpeg implements the MPEG audio frame engine (C11): 11-bit
// frame-sync search with cross-frame header verification, Xing/Info/VBRI
// header decode, and an average-bitrate duration fallback. MPEG carries no
// tags of its own — ID3v1, ID3v2, and APE tags are read/written by their
// own engines at the head or tail of the stream — so this package exposes
// only audio properties.
//
// Grounded on dhowden-tag's mp3.go: the bitrate/sample-rate tables, the
// Xing side-info offset rule (`xingoffset`), and the frame-length formula
// are carried over with the same constants, restructured around typed
// enums instead of dhowden-tag's string-keyed maps.
package mpeg

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Version is the MPEG audio version (§4.11).
type Version int

const (
	Version2_5 Version = iota
	VersionReserved
	Version2
	Version1
)

// Layer is the MPEG audio layer.
type Layer int

const (
	LayerReserved Layer = iota
	LayerIII
	LayerII
	LayerI
)

// ChannelMode is the frame header's channel mode field.
type ChannelMode int

const (
	Stereo ChannelMode = iota
	JointStereo
	DualChannel
	Mono
)

// FrameHeader is one decoded 4-byte MPEG audio frame header.
type FrameHeader struct {
	Version     Version
	Layer       Layer
	Bitrate     int // kbps
	SampleRate  int // Hz
	Padding     bool
	ChannelMode ChannelMode
}

var bitrateTable = map[Version]map[Layer][16]int{
	Version1: {
		LayerI:   {0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, -1},
		LayerII:  {0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, -1},
		LayerIII: {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, -1},
	},
	Version2: {
		LayerI:   {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, -1},
		LayerII:  {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
		LayerIII: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
	},
}

func init() {
	bitrateTable[Version2_5] = bitrateTable[Version2]
}

var sampleRateTable = map[Version][4]int{
	Version1:   {44100, 48000, 32000, 0},
	Version2:   {22050, 24000, 16000, 0},
	Version2_5: {11025, 12000, 8000, 0},
}

var frameLengthSlotSize = map[Layer]int{LayerI: 4, LayerII: 1, LayerIII: 1}

// parseHeader decodes b as a candidate 4-byte frame header. ok is false
// when the reserved/invalid bit patterns appear (§4.11's "decode a trial
// header" step, rejected here rather than by the caller).
func parseHeader(b [4]byte) (h FrameHeader, ok bool) {
	if b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return h, false
	}
	v := (b[1] >> 3) & 0x3
	l := (b[1] >> 1) & 0x3
	br := (b[2] >> 4) & 0xF
	sr := (b[2] >> 2) & 0x3
	pad := (b[2] >> 1) & 0x1
	cm := (b[3] >> 6) & 0x3

	if v == 1 || l == 0 || br == 15 || sr == 3 {
		return h, false
	}

	h.Version = Version(v)
	h.Layer = Layer(l)
	h.Padding = pad == 1
	h.ChannelMode = ChannelMode(cm)
	h.SampleRate = sampleRateTable[h.Version][sr]
	if h.SampleRate == 0 {
		return h, false
	}
	bitrate := bitrateTable[h.Version][h.Layer][br]
	if bitrate <= 0 {
		return h, false
	}
	h.Bitrate = bitrate
	return h, true
}

// samplesPerFrame is the fixed sample count per frame for (version, layer).
func samplesPerFrame(v Version, l Layer) int {
	switch {
	case v == Version1 && l == LayerI:
		return 384
	case v != Version1 && l == LayerIII:
		return 576
	default:
		return 1152
	}
}

// Length computes this header's frame length in bytes.
func (h FrameHeader) Length() int {
	samples := samplesPerFrame(h.Version, h.Layer)
	pad := 0
	if h.Padding {
		pad = frameLengthSlotSize[h.Layer]
	}
	bitsPerSecond := h.Bitrate * 1000
	length := (samples/8)*bitsPerSecond/h.SampleRate + pad
	return length
}

// headerMatches reports whether a and b agree on version/layer/sample
// rate/channel mode, the cross-frame verification §4.11 requires before
// accepting a sync candidate.
func headerMatches(a, b FrameHeader) bool {
	return a.Version == b.Version && a.Layer == b.Layer &&
		a.SampleRate == b.SampleRate && a.ChannelMode == b.ChannelMode
}

// FindFirstFrame scans r for an 11-bit frame sync confirmed by a matching
// header at offset+frame_length (§4.11), starting the scan at r's current
// position. Returns the confirmed header and its byte offset from the
// stream's current position.
func FindFirstFrame(r io.ReadSeeker) (int64, FrameHeader, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, FrameHeader{}, err
	}
	pos := start

	for {
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, FrameHeader{}, errors.Wrap(err, "mpeg: no frame sync found")
		}
		if b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
			if _, err := r.Seek(pos+1, io.SeekStart); err != nil {
				return 0, FrameHeader{}, err
			}
			pos++
			continue
		}
		h, ok := parseHeader(b)
		if !ok {
			if _, err := r.Seek(pos+1, io.SeekStart); err != nil {
				return 0, FrameHeader{}, err
			}
			pos++
			continue
		}

		length := h.Length()
		if length < 4 {
			pos++
			if _, err := r.Seek(pos, io.SeekStart); err != nil {
				return 0, FrameHeader{}, err
			}
			continue
		}
		if _, err := r.Seek(pos+int64(length), io.SeekStart); err != nil {
			return 0, FrameHeader{}, err
		}
		var b2 [4]byte
		_, err := io.ReadFull(r, b2[:])
		if err == nil {
			if h2, ok2 := parseHeader(b2); ok2 && headerMatches(h, h2) {
				if _, err := r.Seek(pos, io.SeekStart); err != nil {
					return 0, FrameHeader{}, err
				}
				return pos - start, h, nil
			}
		}
		pos++
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return 0, FrameHeader{}, err
		}
	}
}

// Properties are the decoded MPEG audio properties (§4.11).
type Properties struct {
	Duration   time.Duration
	Bitrate    int // kbps
	SampleRate int
	Channels   int
	VBR        bool
}

func xingSideInfoOffset(v Version, m ChannelMode) int64 {
	switch {
	case v != Version1 && m == Mono:
		return 9
	case v == Version1 && m != Mono:
		return 32
	default:
		return 17
	}
}

const vbriOffset = 32 // bytes after the 4-byte frame header, fixed regardless of mode

// ReadProperties decodes audio properties starting at the frame offset
// FindFirstFrame returns: a Xing/Info header at the mode-dependent
// side-info offset, else a VBRI header at its fixed offset, else the
// stream's byte count divided by the first frame's bitrate (§4.11). The
// fallback does not search backward for the last frame.
func ReadProperties(r io.ReadSeeker, streamSize int64) (*Properties, error) {
	_, h, err := FindFirstFrame(r)
	if err != nil {
		return nil, err
	}
	frameStart, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	props := &Properties{Bitrate: h.Bitrate, SampleRate: h.SampleRate, Channels: channelsFor(h.ChannelMode)}

	if _, frames, bytesTotal, ok := readXing(r, frameStart, h); ok {
		spf := samplesPerFrame(h.Version, h.Layer)
		props.Duration = time.Duration(float64(frames) * float64(spf) / float64(h.SampleRate) * float64(time.Second))
		if props.Duration > 0 {
			props.Bitrate = int(float64(bytesTotal) * 8 / props.Duration.Seconds() / 1000)
		}
		props.VBR = true
		return props, nil
	}

	if frames, bytesTotal, ok := readVBRI(r, frameStart); ok {
		spf := samplesPerFrame(h.Version, h.Layer)
		props.Duration = time.Duration(float64(frames) * float64(spf) / float64(h.SampleRate) * float64(time.Second))
		if props.Duration > 0 {
			props.Bitrate = int(float64(bytesTotal) * 8 / props.Duration.Seconds() / 1000)
		}
		props.VBR = true
		return props, nil
	}

	// Fallback: duration from the bytes after the first frame's start at the
	// first frame's bitrate. No frame past the first one is examined.
	streamBytes := streamSize - frameStart
	if h.Bitrate > 0 {
		props.Duration = time.Duration(float64(streamBytes) * 8 / float64(h.Bitrate*1000) * float64(time.Second))
	}
	return props, nil
}

func channelsFor(m ChannelMode) int {
	if m == Mono {
		return 1
	}
	return 2
}

func readXing(r io.ReadSeeker, frameStart int64, h FrameHeader) (magic string, frames, bytesTotal uint32, ok bool) {
	off := xingSideInfoOffset(h.Version, h.ChannelMode)
	if _, err := r.Seek(frameStart+4+off, io.SeekStart); err != nil {
		return "", 0, 0, false
	}
	var tag [4]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return "", 0, 0, false
	}
	if string(tag[:]) != "Xing" && string(tag[:]) != "Info" {
		return "", 0, 0, false
	}
	var flags [4]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return "", 0, 0, false
	}
	f := binary.BigEndian.Uint32(flags[:])
	if f&0x3 != 0x3 {
		return string(tag[:]), 0, 0, false
	}
	var framesBuf, sizeBuf [4]byte
	if _, err := io.ReadFull(r, framesBuf[:]); err != nil {
		return "", 0, 0, false
	}
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return "", 0, 0, false
	}
	return string(tag[:]), binary.BigEndian.Uint32(framesBuf[:]), binary.BigEndian.Uint32(sizeBuf[:]), true
}

func readVBRI(r io.ReadSeeker, frameStart int64) (frames, bytesTotal uint32, ok bool) {
	if _, err := r.Seek(frameStart+4+vbriOffset, io.SeekStart); err != nil {
		return 0, 0, false
	}
	var tag [4]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return 0, 0, false
	}
	if string(tag[:]) != "VBRI" {
		return 0, 0, false
	}
	var rest [18]byte
	if _, err := io.ReadFull(r, rest[:]); err != nil {
		return 0, 0, false
	}
	bytesTotal = binary.BigEndian.Uint32(rest[6:10])
	frames = binary.BigEndian.Uint32(rest[10:14])
	return frames, bytesTotal, true
}
