//go:build !unix

package mmapfile

import (
	"io"
	"os"
)

// open falls back to a full buffered read on platforms this package
// doesn't have a mapping implementation for. Behavior is documented, not
// silently degraded: File.IsMapped reports false so callers that care can
// tell (e.g. to avoid mapping files too large to buffer).
func open(f *os.File) (*File, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &File{data: data, mapped: false}, nil
}
