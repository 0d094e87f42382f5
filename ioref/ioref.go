// Package ioref defines the abstract random-access byte storage the
// container engines read and write through (C1 of the metadata engine).
//
// The dispatcher reads and writes files only through File, so the same
// dispatch and rewrite code runs against a file on disk or an in-memory
// buffer (useful for tests, and for hosts that have already read the whole
// file into memory). The format engines themselves work on io.Reader and
// io.ReadSeeker values over the bytes the dispatcher hands them.
package ioref

import "io"

// File is the capability set every container engine requires: positioned
// read and write, absolute/relative seeking, truncation, and length query.
//
// Truncate must be observed faithfully: once Truncate(n) succeeds, a read
// that lands beyond n must fail rather than return stale bytes. Both
// implementations below satisfy this by delegating to the OS or by
// re-slicing their backing buffer.
type File interface {
	io.Reader
	io.ReaderAt
	io.Writer
	io.WriterAt
	io.Seeker

	// Truncate sets the total length of the store to n, discarding any
	// bytes beyond it. Shrinking a file whose cursor sits beyond n moves
	// the cursor back to n.
	Truncate(n int64) error

	// Len reports the total length of the store.
	Len() (int64, error)
}

// Closer is implemented by File values that wrap an OS handle.
type Closer interface {
	Close() error
}
