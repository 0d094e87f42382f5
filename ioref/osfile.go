package ioref

import "os"

// OSFile adapts *os.File to File.
type OSFile struct {
	f *os.File
}

// NewOSFile wraps an already-opened *os.File.
func NewOSFile(f *os.File) *OSFile {
	return &OSFile{f: f}
}

// Open opens name for reading and writing, creating it if requested by
// flag, and wraps the result.
func Open(name string, flag int, perm os.FileMode) (*OSFile, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return NewOSFile(f), nil
}

func (o *OSFile) Read(p []byte) (int, error)                { return o.f.Read(p) }
func (o *OSFile) ReadAt(p []byte, off int64) (int, error)    { return o.f.ReadAt(p, off) }
func (o *OSFile) Write(p []byte) (int, error)                { return o.f.Write(p) }
func (o *OSFile) WriteAt(p []byte, off int64) (int, error)   { return o.f.WriteAt(p, off) }
func (o *OSFile) Seek(off int64, whence int) (int64, error)  { return o.f.Seek(off, whence) }
func (o *OSFile) Close() error                               { return o.f.Close() }

func (o *OSFile) Truncate(n int64) error {
	if err := o.f.Truncate(n); err != nil {
		return err
	}
	pos, err := o.f.Seek(0, 1)
	if err != nil {
		return err
	}
	if pos > n {
		_, err = o.f.Seek(n, 0)
	}
	return err
}

func (o *OSFile) Len() (int64, error) {
	fi, err := o.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
