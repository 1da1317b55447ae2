package wad

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/dolthub/gozstd"
	"github.com/pkg/errors"
)

// ErrUnknownCompressionKind is returned for a chunk whose kind byte isn't
// one of the five known values.
var ErrUnknownCompressionKind = errors.New("wad: unknown compression kind")

// decompress expands raw according to c's compression kind, given the
// expected uncompressed size recorded in the chunk table.
func decompress(c Chunk, raw []byte) ([]byte, error) {
	switch c.CompressionKind {
	case CompressionNone:
		return raw, nil

	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.Wrap(err, "opening gzip chunk")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, errors.Wrap(err, "inflating gzip chunk")
		}
		return out, nil

	case CompressionRefPack:
		out, err := decodeRefPack(raw, int(c.UncompressedSize))
		if err != nil {
			return nil, errors.Wrap(err, "decoding refpack chunk")
		}
		return out, nil

	case CompressionZStandard:
		out, err := gozstd.Decompress(nil, raw)
		if err != nil {
			return nil, errors.Wrap(err, "decompressing zstd chunk")
		}
		return out, nil

	case CompressionZStandardChunk:
		// Sub-chunked entries are resolved through the archive's sub-chunk
		// table of contents (ArchiveHandle.decompressSubchunked), which needs
		// the mapped file and the TOC chunk, not just this chunk's own raw
		// bytes; ArchiveHandle.Decompress never routes kind 4 here.
		return nil, errors.New("wad: sub-chunked entries must be decompressed via ArchiveHandle.Decompress")

	default:
		return nil, errors.Wrapf(ErrUnknownCompressionKind, "kind=%d", c.CompressionKind)
	}
}

// decompressSubchunked concatenates the independently zstd-compressed
// subchunks described by the archive's sub-chunk table of contents
// (spec.md §4.2, §6): c's SubchunkStart/SubchunkCount select a range of
// the TOC, and each entry names its own absolute file offset and size.
func (h *ArchiveHandle) decompressSubchunked(c Chunk) ([]byte, error) {
	toc, err := h.subchunkTOC()
	if err != nil {
		return nil, err
	}

	start, count := int(c.SubchunkStart), int(c.SubchunkCount)
	if start < 0 || count < 0 || start+count > len(toc) {
		return nil, errors.Errorf("subchunk range [%d,%d) out of bounds (toc has %d entries)", start, start+count, len(toc))
	}

	out := make([]byte, 0, c.UncompressedSize)
	for i := start; i < start+count; i++ {
		sub := toc[i]
		frame := make([]byte, sub.CompressedSize)
		if _, err := h.mapped.ReadAt(frame, int64(sub.Offset)); err != nil {
			return nil, errors.Wrapf(err, "reading subchunk %d", i)
		}
		decoded, err := gozstd.Decompress(nil, frame)
		if err != nil {
			return nil, errors.Wrapf(err, "decompressing subchunk %d", i)
		}
		out = append(out, decoded...)
	}
	return out, nil
}
