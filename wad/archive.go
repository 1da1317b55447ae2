package wad

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/flint-toolkit/flintcore/internal/mmapfile"
)

// ArchiveHandle is an open, memory-mapped WAD file together with its parsed
// chunk table.
type ArchiveHandle struct {
	Path    string
	Version Version

	file   *os.File
	mapped *mmapfile.File
	chunks []Chunk
	byHash map[uint64]int

	tocOnce sync.Once
	toc     []Subchunk
	tocErr  error
}

// Open memory-maps path and parses its header and chunk table. The archive
// stays mapped until Close is called.
func Open(path string) (*ArchiveHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening wad archive %s", path)
	}

	m, err := mmapfile.Open(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mapping wad archive %s", path)
	}

	h, chunks, err := parseArchive(m)
	if err != nil {
		m.Close()
		return nil, errors.Wrapf(err, "parsing wad archive %s", path)
	}

	byHash := make(map[uint64]int, len(chunks))
	for i, c := range chunks {
		byHash[c.PathHash] = i
	}

	return &ArchiveHandle{
		Path:    path,
		Version: h.Version,
		file:    f,
		mapped:  m,
		chunks:  chunks,
		byHash:  byHash,
	}, nil
}

func parseArchive(m *mmapfile.File) (header, []Chunk, error) {
	r := bufio.NewReader(m.NewSectionReader(0, int64(m.Len())))

	h, err := readHeader(r)
	if err != nil {
		return header{}, nil, err
	}

	var count int
	switch {
	case h.Version.Major <= 2:
		count, err = readUint32Count(r)
	default:
		// v3+: a 2-byte entry-size field precedes the 4-byte count; the
		// entry size is derivable from the version so it's consumed and
		// discarded here.
		if _, err = io.CopyN(io.Discard, r, 2); err != nil {
			return header{}, nil, errors.Wrap(err, "reading wad toc entry size")
		}
		count, err = readUint32Count(r)
	}
	if err != nil {
		return header{}, nil, errors.Wrap(err, "reading wad chunk count")
	}

	chunks, err := readChunkTable(r, h.Version, count)
	if err != nil {
		return header{}, nil, err
	}
	return h, chunks, nil
}

func readUint32Count(r io.Reader) (int, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int(buf[0]) | int(buf[1])<<8 | int(buf[2])<<16 | int(buf[3])<<24, nil
}

// Chunks returns the archive's chunk table in on-disk order. The returned
// slice is owned by ArchiveHandle and must not be modified.
func (h *ArchiveHandle) Chunks() []Chunk { return h.chunks }

// ChunkCount returns the number of chunks in the archive.
func (h *ArchiveHandle) ChunkCount() int { return len(h.chunks) }

// Get returns the chunk table entry for hash, if present.
func (h *ArchiveHandle) Get(hash uint64) (Chunk, bool) {
	i, ok := h.byHash[hash]
	if !ok {
		return Chunk{}, false
	}
	return h.chunks[i], true
}

// Decompress reads and decompresses c's data from the mapped archive. A
// sub-chunked entry (kind 4) is resolved through the archive's sub-chunk
// table of contents instead of its own CompressedOffset/CompressedSize
// (spec.md §4.2, §6); every other kind reads its own contiguous byte range.
func (h *ArchiveHandle) Decompress(c Chunk) ([]byte, error) {
	var out []byte
	var err error

	if c.CompressionKind == CompressionZStandardChunk {
		out, err = h.decompressSubchunked(c)
	} else {
		raw := make([]byte, c.CompressedSize)
		if _, rerr := h.mapped.ReadAt(raw, int64(c.CompressedOffset)); rerr != nil {
			return nil, errors.Wrapf(rerr, "reading chunk data for hash %016x", c.PathHash)
		}
		out, err = decompress(c, raw)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing chunk for hash %016x", c.PathHash)
	}

	if err := verifyChecksum(h.Version, c, out); err != nil {
		return nil, errors.Wrapf(err, "chunk %016x", c.PathHash)
	}
	return out, nil
}

// subchunkTOC loads and caches the archive's sub-chunk table of contents:
// the chunk whose path_hash equals subchunkTOCPathHash, decompressed and
// decoded into ordered (offset, compressed_size, uncompressed_size)
// triples (spec.md §6).
func (h *ArchiveHandle) subchunkTOC() ([]Subchunk, error) {
	h.tocOnce.Do(func() {
		c, ok := h.Get(subchunkTOCPathHash)
		if !ok {
			h.tocErr = errors.New("wad: archive has sub-chunked entries but no sub-chunk table of contents")
			return
		}
		raw := make([]byte, c.CompressedSize)
		if _, err := h.mapped.ReadAt(raw, int64(c.CompressedOffset)); err != nil {
			h.tocErr = errors.Wrap(err, "reading sub-chunk table of contents")
			return
		}
		data, err := decompress(c, raw)
		if err != nil {
			h.tocErr = errors.Wrap(err, "decompressing sub-chunk table of contents")
			return
		}
		h.toc, h.tocErr = decodeSubchunkTOC(data)
	})
	return h.toc, h.tocErr
}

// Close unmaps and closes the underlying file.
func (h *ArchiveHandle) Close() error {
	err := h.mapped.Close()
	if cerr := h.file.Close(); err == nil {
		err = cerr
	}
	return err
}
