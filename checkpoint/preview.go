package checkpoint

import (
	"encoding/base64"
	"encoding/binary"
	"math/bits"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// PreviewKind tags the shape of a CheckpointFileContent (spec.md §4.5
// "Preview").
type PreviewKind string

const (
	PreviewImageDataURL PreviewKind = "image"
	PreviewText         PreviewKind = "text"
	PreviewTextureMeta  PreviewKind = "texture_meta"
	PreviewSizeOnly     PreviewKind = "size_only"
)

// CheckpointFileContent is read_file's return shape (spec.md §4.5).
type CheckpointFileContent struct {
	Kind     PreviewKind
	DataURL  string // PreviewImageDataURL
	Text     string // PreviewText
	MimeType string
	Size     int64
	Width    int // PreviewTextureMeta
	Height   int // PreviewTextureMeta
	MipCount int // PreviewTextureMeta
}

var standardImageExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

var textExt = map[string]struct{}{
	".txt": {}, ".json": {}, ".toml": {}, ".xml": {}, ".yml": {}, ".yaml": {},
	".lua": {}, ".py": {}, ".md": {}, ".cfg": {}, ".ini": {},
}

// ReadFile returns a preview of the object identified by hash, as it
// would be written at relpath (spec.md §4.5 "Preview"). Known texture
// container formats (dds, tex) are decoded only as far as their header,
// reporting width/height/mip-count rather than the first mipmap's pixels;
// a standard image extension gets a data-URL; everything else
// known-textual is decoded as UTF-8 text, and anything else reports size
// only.
func (s *Store) ReadFile(hash, relpath string) (*CheckpointFileContent, error) {
	full := s.objectPath(hash)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, errors.Wrapf(err, "reading object %s", hash)
	}

	ext := strings.ToLower(filepath.Ext(relpath))

	if ext == ".dds" || ext == ".tex" {
		if meta, ok := parseTextureHeader(ext, data); ok {
			meta.Size = int64(len(data))
			return meta, nil
		}
	}

	if mime, ok := standardImageExt[ext]; ok {
		return &CheckpointFileContent{
			Kind:     PreviewImageDataURL,
			DataURL:  "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
			MimeType: mime,
			Size:     int64(len(data)),
		}, nil
	}

	if _, ok := textExt[ext]; ok && utf8.Valid(data) {
		return &CheckpointFileContent{
			Kind: PreviewText,
			Text: string(data),
			Size: int64(len(data)),
		}, nil
	}

	return &CheckpointFileContent{Kind: PreviewSizeOnly, Size: int64(len(data))}, nil
}

// parseTextureHeader dispatches to the container-specific header parser for
// ext and reports whether data was recognized as that format.
func parseTextureHeader(ext string, data []byte) (*CheckpointFileContent, bool) {
	switch ext {
	case ".dds":
		return parseDDSHeader(data)
	case ".tex":
		return parseTexHeader(data)
	default:
		return nil, false
	}
}

const ddsHeaderSize = 128

// parseDDSHeader reads width, height and mip count out of a standard
// DDS_HEADER (magic "DDS ", then a fixed little-endian uint32 layout).
// Pixel data is never touched.
func parseDDSHeader(data []byte) (*CheckpointFileContent, bool) {
	if len(data) < ddsHeaderSize || string(data[0:4]) != "DDS " {
		return nil, false
	}
	height := binary.LittleEndian.Uint32(data[12:16])
	width := binary.LittleEndian.Uint32(data[16:20])
	mipCount := binary.LittleEndian.Uint32(data[28:32])
	if mipCount == 0 {
		mipCount = 1
	}
	return &CheckpointFileContent{
		Kind:     PreviewTextureMeta,
		Width:    int(width),
		Height:   int(height),
		MipCount: int(mipCount),
	}, true
}

// parseTexHeader reads width and height out of Riot's "TEX\0" container
// header: magic(4) + width(u16) + height(u16) + format/unused(3) + flags(1).
// Mip count isn't stored directly; when the mipmap flag is set it's derived
// from the smaller dimension, counting levels until that dimension reaches 1.
func parseTexHeader(data []byte) (*CheckpointFileContent, bool) {
	const headerSize = 12
	if len(data) < headerSize || string(data[0:4]) != "TEX\x00" {
		return nil, false
	}
	width := binary.LittleEndian.Uint16(data[4:6])
	height := binary.LittleEndian.Uint16(data[6:8])
	flags := data[11]

	mipCount := 1
	const hasMipmapsFlag = 1 << 4
	if flags&hasMipmapsFlag != 0 {
		mipCount = mipLevelsFor(int(width), int(height))
	}

	return &CheckpointFileContent{
		Kind:     PreviewTextureMeta,
		Width:    int(width),
		Height:   int(height),
		MipCount: mipCount,
	}, true
}

// mipLevelsFor returns the number of mip levels for a w x h base image,
// halving until the smaller dimension reaches 1 (a 256x64 image gives 7).
func mipLevelsFor(w, h int) int {
	smaller := w
	if h < smaller {
		smaller = h
	}
	if smaller < 1 {
		return 1
	}
	return bits.Len(uint(smaller))
}
