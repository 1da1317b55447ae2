//go:build unix

package mmapfile

import (
	"os"

	"golang.org/x/sys/unix"
)

func open(f *os.File) (*File, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		// unix.Mmap rejects a zero-length mapping; treat as an empty view.
		return &File{data: nil, mapped: true}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &File{
		data:   data,
		mapped: true,
		closer: func() error { return unix.Munmap(data) },
	}, nil
}
