package wad

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dolthub/gozstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

// buildArchive writes a minimal WAD file with a single stored (kind=0)
// chunk at the given version, using checksum verbatim if non-nil or a
// zeroed (unverified) checksum field otherwise.
func buildArchive(t *testing.T, dir, name string, major, minor uint8, pathHash uint64, data, checksum []byte) string {
	t.Helper()

	v := Version{Major: major, Minor: minor}
	checksumSize := v.checksumSize()
	if checksum == nil {
		checksum = make([]byte, checksumSize)
	}
	require.Len(t, checksum, checksumSize)

	const headerSize = 4
	countSize := 4
	if major >= 3 {
		countSize += 2 // v3+: a 2-byte entry-size field precedes the 4-byte count
	}
	entrySize := 8 + 8 + 4 + 4 + 1 + checksumSize
	dataOffset := headerSize + countSize + entrySize

	buf := make([]byte, dataOffset+len(data))
	buf[0], buf[1], buf[2], buf[3] = 'R', 'W', major, minor
	if major >= 3 {
		binary.LittleEndian.PutUint16(buf[headerSize:], uint16(entrySize))
	}
	binary.LittleEndian.PutUint32(buf[headerSize+countSize-4:], 1)

	off := headerSize + countSize
	binary.LittleEndian.PutUint64(buf[off:], pathHash)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(dataOffset))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(data)))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(data)))
	off += 4
	buf[off] = 0 // CompressionNone
	off++
	copy(buf[off:], checksum)

	copy(buf[dataOffset:], data)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

// buildV1Archive writes a minimal version-1.0 WAD file (no sub-chunk
// table, 8-byte checksum field, zeroed so verification is skipped)
// containing a single stored (kind=0) chunk, and returns its path.
func buildV1Archive(t *testing.T, dir, name string, pathHash uint64, data []byte) string {
	t.Helper()
	return buildArchive(t, dir, name, 1, 0, pathHash, data, nil)
}

func TestOpenInvalidMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.wad")
	require.NoError(t, os.WriteFile(path, []byte{'X', 'X', 1, 0}, 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid WAD magic")
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "3.10", Version{Major: 3, Minor: 10}.String())
	assert.Equal(t, "1.0", Version{Major: 1, Minor: 0}.String())
}

func TestOpenAndDecompressStoredChunk(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("hello world")
	path := buildV1Archive(t, dir, "a.wad", 0xdeadbeef, payload)

	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 1, h.ChunkCount())
	c, ok := h.Get(0xdeadbeef)
	require.True(t, ok)

	got, err := h.Decompress(c)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestExtractWADUnresolvedHashFallback(t *testing.T) {
	archDir := t.TempDir()
	payload := []byte("no catalog entry for this one")
	wadPath := buildV1Archive(t, archDir, "a.wad", 0xdeadbeef, payload)

	hashDir := t.TempDir() // no *.txt manifests: every hash is unresolved
	outDir := t.TempDir()

	res, err := ExtractWAD(wadPath, outDir, hashDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Extracted)
	require.Len(t, res.UnresolvedHash, 1)
	assert.Equal(t, "00000000deadbeef.bin", res.UnresolvedHash[0])

	got, err := os.ReadFile(filepath.Join(outDir, "00000000deadbeef.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	sidecar, err := os.ReadFile(filepath.Join(outDir, hashedFilesSidecar))
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal(sidecar, &names))
	assert.Contains(t, names, "00000000deadbeef.bin")
}

func TestExtractWADResolvedPathAndSkipExisting(t *testing.T) {
	archDir := t.TempDir()
	payload := []byte("resolved content")
	wadPath := buildV1Archive(t, archDir, "a.wad", 1, payload)

	hashDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(hashDir, "manifest.txt"), []byte("1 data/foo.bin\n"), 0o644))

	outDir := t.TempDir()
	res, err := ExtractWAD(wadPath, outDir, hashDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Extracted)
	assert.Empty(t, res.UnresolvedHash)

	got, err := os.ReadFile(filepath.Join(outDir, "data", "foo.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Second extraction without replace should skip the existing file.
	res2, err := ExtractWAD(wadPath, outDir, hashDir, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Extracted)
	assert.Equal(t, 1, res2.Skipped)
}

func TestDecodeRefPackLiteralOnly(t *testing.T) {
	// Control byte 0xE0 = 0b111_00000: literal run, length = 0*4+4 = 4.
	src := []byte{0xE0, 'f', 'l', 'i', 'n'}
	out, err := decodeRefPack(src, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("flin"), out)
}

func TestDecompressVerifiesXxh3ChecksumV31(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("checked content")
	var checksum [8]byte
	binary.LittleEndian.PutUint64(checksum[:], xxh3.Hash(payload))

	path := buildArchive(t, dir, "good.wad", 3, 1, 0xabc, payload, checksum[:])
	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	c, ok := h.Get(0xabc)
	require.True(t, ok)
	got, err := h.Decompress(c)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecompressRejectsXxh3ChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("checked content")
	badChecksum := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	path := buildArchive(t, dir, "bad.wad", 3, 1, 0xabc, payload, badChecksum)
	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	c, ok := h.Get(0xabc)
	require.True(t, ok)
	_, err = h.Decompress(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecompressVerifiesSha256ChecksumV30(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("v3.0 uses sha256")
	sum := sha256.Sum256(payload)

	path := buildArchive(t, dir, "good30.wad", 3, 0, 0xabc, payload, sum[:])
	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	c, ok := h.Get(0xabc)
	require.True(t, ok)
	got, err := h.Decompress(c)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

// buildV33ArchiveWithSubchunks writes a version-3.3 archive with a
// sub-chunk table of contents chunk (identified by subchunkTOCPathHash)
// plus one kind=4 data chunk whose bytes are the concatenation of the
// two independently zstd-compressed subchunks described there (spec.md
// §4.2, §6).
func buildV33ArchiveWithSubchunks(t *testing.T, dir string) (path string, dataHash uint64, want []byte) {
	t.Helper()

	dataHash = 0x1234
	part1 := []byte("hello, ")
	part2 := []byte("subchunked world")
	want = append(append([]byte{}, part1...), part2...)

	comp1, err := gozstd.Compress(nil, part1)
	require.NoError(t, err)
	comp2, err := gozstd.Compress(nil, part2)
	require.NoError(t, err)

	const headerSize = 4
	const entrySizeFieldSize = 2
	const countSize = 4
	const numEntries = 2
	v := Version{Major: 3, Minor: 3}
	entrySize := 8 + 8 + 4 + 4 + 1 + v.checksumSize() + 2 + 1 // subchunk fields present at v3.3+

	tocEntriesEnd := headerSize + entrySizeFieldSize + countSize + entrySize*numEntries
	tocTableOffset := tocEntriesEnd
	tocTableSize := 2 * subchunkEntrySize
	comp1Offset := tocTableOffset + tocTableSize
	comp2Offset := comp1Offset + len(comp1)

	buf := make([]byte, comp2Offset+len(comp2))
	buf[0], buf[1], buf[2], buf[3] = 'R', 'W', 3, 3
	binary.LittleEndian.PutUint16(buf[4:], uint16(entrySize))
	binary.LittleEndian.PutUint32(buf[6:], uint32(numEntries))

	off := headerSize + entrySizeFieldSize + countSize

	// TOC chunk entry: stored (kind 0), data is the subchunk table itself.
	binary.LittleEndian.PutUint64(buf[off:], subchunkTOCPathHash)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(tocTableOffset))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(tocTableSize))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(tocTableSize))
	off += 4
	buf[off] = byte(CompressionNone)
	off++
	off += v.checksumSize() // zeroed, unverified
	off += 2                // subchunk_start, unused for a non-subchunked entry
	off++                   // subchunk_count, unused

	// Data chunk entry: sub-chunked (kind 4), referencing both TOC entries.
	binary.LittleEndian.PutUint64(buf[off:], dataHash)
	off += 8
	off += 8 // compressed_offset, unused by a sub-chunked entry
	off += 4 // compressed_size, unused by a sub-chunked entry
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(want)))
	off += 4
	buf[off] = byte(CompressionZStandardChunk)
	off++
	off += v.checksumSize() // zeroed, unverified
	binary.LittleEndian.PutUint16(buf[off:], 0)
	off += 2
	buf[off] = 2
	off++

	tocOff := tocTableOffset
	binary.LittleEndian.PutUint64(buf[tocOff:], uint64(comp1Offset))
	binary.LittleEndian.PutUint32(buf[tocOff+8:], uint32(len(comp1)))
	binary.LittleEndian.PutUint32(buf[tocOff+12:], uint32(len(part1)))
	tocOff += subchunkEntrySize
	binary.LittleEndian.PutUint64(buf[tocOff:], uint64(comp2Offset))
	binary.LittleEndian.PutUint32(buf[tocOff+8:], uint32(len(comp2)))
	binary.LittleEndian.PutUint32(buf[tocOff+12:], uint32(len(part2)))

	copy(buf[comp1Offset:], comp1)
	copy(buf[comp2Offset:], comp2)

	path = filepath.Join(dir, "sub.wad")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path, dataHash, want
}

func TestOpenAndDecompressSubChunkedKind4(t *testing.T) {
	dir := t.TempDir()
	path, hash, want := buildV33ArchiveWithSubchunks(t, dir)

	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 2, h.ChunkCount())
	c, ok := h.Get(hash)
	require.True(t, ok)
	assert.True(t, c.HasSubchunks)

	got, err := h.Decompress(c)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExtractWADFallsBackOnDirectoryCollision(t *testing.T) {
	archDir := t.TempDir()
	payload := []byte("blocked by a same-named directory")
	wadPath := buildV1Archive(t, archDir, "a.wad", 0x55, payload)

	hashDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(hashDir, "manifest.txt"), []byte("0x55 data/collide.bin\n"), 0o644))

	outDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "data", "collide.bin"), 0o755))

	res, err := ExtractWAD(wadPath, outDir, hashDir, false)
	require.NoError(t, err)
	require.Len(t, res.UnresolvedHash, 1)
	assert.Equal(t, "0000000000000055.bin", res.UnresolvedHash[0])

	got, err := os.ReadFile(filepath.Join(outDir, "0000000000000055.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// The colliding directory is left untouched.
	info, err := os.Stat(filepath.Join(outDir, "data", "collide.bin"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExtractWADFallsBackOnOverlongComponent(t *testing.T) {
	archDir := t.TempDir()
	payload := []byte("name too long to write")
	wadPath := buildV1Archive(t, archDir, "a.wad", 0x66, payload)

	longName := make([]byte, 300)
	for i := range longName {
		longName[i] = 'x'
	}
	resolved := "data/" + string(longName) + ".bin"

	hashDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(hashDir, "manifest.txt"), []byte("0x66 "+resolved+"\n"), 0o644))

	outDir := t.TempDir()
	res, err := ExtractWAD(wadPath, outDir, hashDir, false)
	require.NoError(t, err)
	require.Len(t, res.UnresolvedHash, 1)
	assert.Equal(t, "0000000000000066.bin", res.UnresolvedHash[0])
	assert.Equal(t, 1, res.Extracted)
}
