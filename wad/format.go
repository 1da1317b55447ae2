// Package wad implements the Archive Engine (spec.md §4.2): a reader and
// extractor for the versioned "WAD" container format, with per-entry
// compression, optional sub-chunking, and memory-mapped I/O.
package wad

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// ErrInvalidMagic is returned when a file's first two bytes aren't "RW"
// (spec.md §8 scenario 2: "fails with an archive error mentioning 'Invalid
// WAD magic'").
var ErrInvalidMagic = errors.New("wad: Invalid WAD magic")

// ErrUnsupportedVersion is returned for a major/minor pair this reader
// doesn't know how to dissect.
var ErrUnsupportedVersion = errors.New("wad: unsupported WAD version")

var magic = [2]byte{'R', 'W'}

// Version identifies a WAD format revision.
type Version struct {
	Major, Minor uint8
}

func (v Version) String() string {
	return strconv.Itoa(int(v.Major)) + "." + strconv.Itoa(int(v.Minor))
}

// hasChecksumSize32 reports whether this version stores a 32-byte (SHA-256)
// per-chunk checksum (v3.0) versus an 8-byte (xxh3_64) one (v3.1+).
func (v Version) hasChecksumSize32() bool {
	return v.Major == 3 && v.Minor == 0
}

// hasSubchunks reports whether this version's chunk table carries
// subchunk_start/subchunk_count fields (v3.3+).
func (v Version) hasSubchunks() bool {
	return v.Major > 3 || (v.Major == 3 && v.Minor >= 3)
}

func (v Version) checksumSize() int {
	if v.hasChecksumSize32() {
		return 32
	}
	return 8
}

// header is the 4-byte fixed prefix: magic "RW" + major + minor
// (spec.md §6).
type header struct {
	Version Version
}

func readHeader(r io.Reader) (header, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return header{}, errors.Wrap(err, "reading wad header")
	}
	if buf[0] != magic[0] || buf[1] != magic[1] {
		return header{}, ErrInvalidMagic
	}
	return header{Version: Version{Major: buf[2], Minor: buf[3]}}, nil
}

// chunkEntrySize returns the on-disk size in bytes of one chunk table
// entry for v.
func chunkEntrySize(v Version) int {
	// path_hash(8) + data_offset(8) + compressed_size(4) + uncompressed_size(4) + kind(1) + checksum
	size := 8 + 8 + 4 + 4 + 1 + v.checksumSize()
	if v.hasSubchunks() {
		size += 2 + 1 // subchunk_start(u16) + subchunk_count(u8)
	}
	return size
}

func readChunkTable(r io.Reader, v Version, count int) ([]Chunk, error) {
	entrySize := chunkEntrySize(v)
	buf := make([]byte, entrySize)
	chunks := make([]Chunk, count)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrapf(err, "reading chunk table entry %d", i)
		}
		c, err := decodeChunkEntry(buf, v)
		if err != nil {
			return nil, err
		}
		chunks[i] = c
	}
	return chunks, nil
}

func decodeChunkEntry(buf []byte, v Version) (Chunk, error) {
	var c Chunk
	off := 0
	c.PathHash = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	c.CompressedOffset = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	c.CompressedSize = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	c.UncompressedSize = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	c.CompressionKind = CompressionKind(buf[off])
	off++
	c.Checksum = append([]byte(nil), buf[off:off+v.checksumSize()]...)
	off += v.checksumSize()
	if v.hasSubchunks() {
		c.SubchunkStart = binary.LittleEndian.Uint16(buf[off:])
		off += 2
		c.SubchunkCount = buf[off]
		off++
		c.HasSubchunks = true
	}
	return c, nil
}

// decodeSubchunkTOC parses the sub-chunk table of contents chunk's
// decompressed bytes into its Subchunk entries (spec.md §6).
func decodeSubchunkTOC(data []byte) ([]Subchunk, error) {
	if len(data)%subchunkEntrySize != 0 {
		return nil, errors.Errorf("sub-chunk table of contents has a trailing %d bytes", len(data)%subchunkEntrySize)
	}
	count := len(data) / subchunkEntrySize
	out := make([]Subchunk, count)
	for i := 0; i < count; i++ {
		off := i * subchunkEntrySize
		out[i] = Subchunk{
			Offset:           binary.LittleEndian.Uint64(data[off:]),
			CompressedSize:   binary.LittleEndian.Uint32(data[off+8:]),
			UncompressedSize: binary.LittleEndian.Uint32(data[off+12:]),
		}
	}
	return out, nil
}
