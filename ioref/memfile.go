package ioref

import (
	"errors"
	"io"
)

// ErrNegativeOffset is returned by ReadAt/WriteAt when given a negative
// offset.
var ErrNegativeOffset = errors.New("ioref: negative offset")

// MemFile is an in-memory File backed by a growable byte slice. The tests
// use it in place of a file on disk.
type MemFile struct {
	buf []byte
	pos int64
}

// NewMemFile wraps b as the initial contents; b is not copied, callers
// should not mutate it afterwards.
func NewMemFile(b []byte) *MemFile {
	return &MemFile{buf: b}
}

// Bytes returns the current backing buffer.
func (m *MemFile) Bytes() []byte { return m.buf }

func (m *MemFile) Len() (int64, error) { return int64(len(m.buf)), nil }

func (m *MemFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("ioref: invalid whence")
	}
	if abs < 0 {
		return 0, ErrNegativeOffset
	}
	m.pos = abs
	return abs, nil
}

func (m *MemFile) Read(p []byte) (int, error) {
	n, err := m.ReadAt(p, m.pos)
	m.pos += int64(n)
	return n, err
}

func (m *MemFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrNegativeOffset
	}
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemFile) Write(p []byte) (int, error) {
	n, err := m.WriteAt(p, m.pos)
	m.pos += int64(n)
	return n, err
}

func (m *MemFile) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrNegativeOffset
	}
	end := off + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:end], p)
	return len(p), nil
}

func (m *MemFile) Truncate(n int64) error {
	if n < 0 {
		return ErrNegativeOffset
	}
	if n <= int64(len(m.buf)) {
		m.buf = m.buf[:n]
	} else {
		grown := make([]byte, n)
		copy(grown, m.buf)
		m.buf = grown
	}
	if m.pos > n {
		m.pos = n
	}
	return nil
}
