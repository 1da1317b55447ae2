// Package mmapfile provides a read-only memory-mapped view of a file, with
// a buffered-read fallback on platforms where mmap isn't wired up. The
// archive engine shares one File across the extraction worker pool; each
// worker reads the shared bytes through ReadAt at its own offsets, so no
// read position is shared (spec.md §5, "the bytes are shared").
package mmapfile

import (
	"io"
	"os"
)

// File is a read-only view over a file's bytes, either memory-mapped or
// (on platforms without a mapping implementation) fully buffered.
type File struct {
	data   []byte
	closer func() error
	mapped bool
}

// Open maps f for reading. f is not closed by Open; Close releases the
// mapping (or the buffered copy) but the caller still owns f.
func Open(f *os.File) (*File, error) {
	return open(f)
}

// Bytes returns the full mapped (or buffered) content. Callers must not
// retain slices past Close.
func (m *File) Bytes() []byte { return m.data }

// Len returns the length of the mapped content.
func (m *File) Len() int { return len(m.data) }

// IsMapped reports whether this File is backed by an actual OS mapping
// (true) or a buffered read fallback (false).
func (m *File) IsMapped() bool { return m.mapped }

// NewSectionReader returns an independent cursor over [off, off+n) of the
// mapped bytes. Safe to call concurrently; each caller gets its own cursor.
func (m *File) NewSectionReader(off int64, n int64) *io.SectionReader {
	return io.NewSectionReader(byteReaderAt(m.data), off, n)
}

// ReadAt implements io.ReaderAt directly over the mapped bytes.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	return byteReaderAt(m.data).ReadAt(p, off)
}

// Close releases the mapping.
func (m *File) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer()
}

type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
