package wad

import (
	"github.com/pkg/errors"
)

// ErrCorruptRefPack is returned when a RefPack stream ends mid-token or
// references an out-of-range back-reference.
var ErrCorruptRefPack = errors.New("wad: corrupt RefPack stream")

// decodeRefPack decompresses a legacy RefPack (LZ77-family) stream into a
// buffer of exactly uncompressedSize bytes. No third-party library in the
// retrieval pack implements this legacy codec (see DESIGN.md); this is a
// small, from-scratch decoder following the well-known command byte layout:
//
//	0ppcccll pppppppp                   - short:  l literals, then c+3 bytes from 10-bit offset (+1)
//	10cccccc llpppppp pppppppp          - medium: l literals, then c+4 bytes from 14-bit offset (+1)
//	110pccll pppppppp pppppppp cccccccc - big:    l literals, then 10-bit length (+5) from 17-bit offset (+1)
//	111lllll                            - literal run: l*4+4 literal bytes
//
// Each back-reference form carries its own 0-3 leading literal bytes, which
// are copied before the back-reference. A 0xFC control byte copies every
// remaining input byte as literals. Decoding stops once the output buffer is
// filled.
func decodeRefPack(src []byte, uncompressedSize int) ([]byte, error) {
	out := make([]byte, 0, uncompressedSize)

	// Optional RefPack header: 0x10FB magic followed by a 3-byte big-endian
	// size, skipped here since the archive's own uncompressed_size is
	// authoritative.
	i := 0
	if len(src) >= 2 && src[0] == 0x10 && src[1] == 0xFB {
		i = 2
		if len(src) >= 5 {
			i = 5
		}
	}

	for i < len(src) && len(out) < uncompressedSize {
		ctrl := src[i]
		i++

		switch {
		case ctrl&0x80 == 0: // 0ppcccll: 2-byte form
			if i >= len(src) {
				return nil, ErrCorruptRefPack
			}
			b1 := src[i]
			i++
			length := int(ctrl>>2)&0x07 + 3
			litLen := int(ctrl & 0x03)
			offset := (int(ctrl&0x60) << 3) | int(b1)

			if err := copyLiterals(&out, src, &i, litLen); err != nil {
				return nil, err
			}
			if err := copyBackref(&out, offset+1, length); err != nil {
				return nil, err
			}

		case ctrl&0xC0 == 0x80: // 10cccccc llpppppp pppppppp: 3-byte form
			if i+1 >= len(src) {
				return nil, ErrCorruptRefPack
			}
			b1, b2 := src[i], src[i+1]
			i += 2
			length := int(ctrl&0x3F) + 4
			litLen := int(b1>>6) & 0x03
			offset := (int(b1&0x3F) << 8) | int(b2)

			if err := copyLiterals(&out, src, &i, litLen); err != nil {
				return nil, err
			}
			if err := copyBackref(&out, offset+1, length); err != nil {
				return nil, err
			}

		case ctrl&0xE0 == 0xC0: // 110pccll pppppppp pppppppp cccccccc: 4-byte form
			if i+2 >= len(src) {
				return nil, ErrCorruptRefPack
			}
			b1, b2, b3 := src[i], src[i+1], src[i+2]
			i += 3
			length := (int(ctrl&0x0C)<<6 | int(b3)) + 5
			litLen := int(ctrl & 0x03)
			offset := (int(ctrl&0x10) << 12) | (int(b1) << 8) | int(b2)

			if err := copyLiterals(&out, src, &i, litLen); err != nil {
				return nil, err
			}
			if err := copyBackref(&out, offset+1, length); err != nil {
				return nil, err
			}

		default: // 111lllll: trailing literal run, length encoded in low bits
			litLen := int(ctrl&0x1F)*4 + 4
			if ctrl == 0xFC {
				// End-of-stream marker with no further literals in some
				// encoders; treat remaining src bytes (if any) as literals.
				litLen = len(src) - i
			}
			if err := copyLiterals(&out, src, &i, litLen); err != nil {
				return nil, err
			}
		}
	}

	if len(out) < uncompressedSize {
		return nil, errors.Wrapf(ErrCorruptRefPack, "expected %d bytes, got %d", uncompressedSize, len(out))
	}
	return out[:uncompressedSize], nil
}

func copyLiterals(out *[]byte, src []byte, i *int, n int) error {
	if n <= 0 {
		return nil
	}
	if *i+n > len(src) {
		return ErrCorruptRefPack
	}
	*out = append(*out, src[*i:*i+n]...)
	*i += n
	return nil
}

func copyBackref(out *[]byte, distance, length int) error {
	if distance <= 0 || distance > len(*out) {
		return ErrCorruptRefPack
	}
	start := len(*out) - distance
	for k := 0; k < length; k++ {
		*out = append(*out, (*out)[start+k])
	}
	return nil
}
