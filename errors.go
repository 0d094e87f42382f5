package tagengine

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind is the non-exhaustive error-kind enumeration from §6.
type ErrKind int

const (
	ErrUnknown ErrKind = iota
	ErrUnknownFormat
	ErrUnsupportedTag
	ErrFakeTag
	ErrBadFrameId
	ErrBadFrameLength
	ErrBadSyncText
	ErrBadVintSize
	ErrBadAtom
	ErrSizeMismatch
	ErrNotAPicture
	ErrTooMuchData
	ErrTextDecode
	ErrIO
	ErrFlac
	ErrMpeg
	ErrMp4
	ErrEbml
	ErrOpus
	ErrVorbis
	ErrWavPack
	ErrMpc
	ErrApe
	ErrWav
	ErrAiff
	ErrId3v1
	ErrId3v2
)

func (k ErrKind) String() string {
	names := map[ErrKind]string{
		ErrUnknownFormat: "UnknownFormat", ErrUnsupportedTag: "UnsupportedTag",
		ErrFakeTag: "FakeTag", ErrBadFrameId: "BadFrameId", ErrBadFrameLength: "BadFrameLength",
		ErrBadSyncText: "BadSyncText", ErrBadVintSize: "BadVintSize", ErrBadAtom: "BadAtom",
		ErrSizeMismatch: "SizeMismatch", ErrNotAPicture: "NotAPicture", ErrTooMuchData: "TooMuchData",
		ErrTextDecode: "TextDecode", ErrIO: "Io", ErrFlac: "Flac", ErrMpeg: "Mpeg",
		ErrMp4: "Mp4", ErrEbml: "Ebml", ErrOpus: "Opus", ErrVorbis: "Vorbis",
		ErrWavPack: "WavPack", ErrMpc: "Mpc", ErrApe: "Ape", ErrWav: "Wav",
		ErrAiff: "Aiff", ErrId3v1: "Id3v1", ErrId3v2: "Id3v2",
	}
	if s, ok := names[k]; ok {
		return s
	}
	return "Unknown"
}

// Error is the single error value the public API returns, carrying a kind
// tag plus an optional wrapped cause (§6, §7).
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tagengine: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("tagengine: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Newf constructs an Error, wrapping cause (if non-nil) with a stack via
// pkg/errors so errors.Cause keeps working across the engine boundary.
func Newf(kind ErrKind, cause error, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Msg: msg, Err: cause}
}
