package wad

// CompressionKind identifies how a chunk's bytes are packed on disk
// (spec.md §4.2, §6).
type CompressionKind uint8

const (
	CompressionNone           CompressionKind = 0
	CompressionGzip           CompressionKind = 1 // legacy
	CompressionRefPack        CompressionKind = 2 // legacy
	CompressionZStandard      CompressionKind = 3
	CompressionZStandardChunk CompressionKind = 4 // sub-chunked, v3.3+
)

// Chunk is one entry in an archive's chunk table (spec.md §3).
type Chunk struct {
	PathHash         uint64
	CompressedOffset uint64
	CompressedSize   uint32
	UncompressedSize uint32
	CompressionKind  CompressionKind
	Checksum         []byte

	HasSubchunks  bool
	SubchunkStart uint16
	SubchunkCount uint8
}

// subchunkTOCPathHash identifies the companion sub-chunk table-of-contents
// chunk (spec.md §4.2 "identified by a well-known hash"). The real game's
// constant is proprietary and not reproduced here; this is a stand-in
// sentinel documented as such (see DESIGN.md). ArchiveHandle.Decompress
// looks this hash up in the chunk table itself, the same way any other
// path_hash is looked up — the TOC is an ordinary chunk, not a separate
// file.
const subchunkTOCPathHash uint64 = 0xFFFFFFFFFFFFFFFF

// Subchunk is one entry of the sub-chunk table of contents (spec.md §6):
// the absolute file offset and sizes of one independently zstd-compressed
// frame. A sub-chunked Chunk's own CompressedOffset/CompressedSize are
// unused; its data is the concatenation of toc[SubchunkStart :
// SubchunkStart+SubchunkCount] decompressed in order.
type Subchunk struct {
	Offset           uint64
	CompressedSize   uint32
	UncompressedSize uint32
}

// subchunkEntrySize is the on-disk size in bytes of one Subchunk entry:
// offset(8) + compressed_size(4) + uncompressed_size(4).
const subchunkEntrySize = 8 + 4 + 4
