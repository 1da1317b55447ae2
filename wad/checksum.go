package wad

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

// ErrChecksumMismatch is returned when a chunk's recorded checksum doesn't
// match its decompressed bytes (spec.md §7 "Archive ... checksum
// mismatch").
var ErrChecksumMismatch = errors.New("wad: checksum mismatch")

// verifyChecksum checks c's recorded checksum against decompressed,
// dispatching on the archive version's checksum width (spec.md §6): v3.0
// records a 32-byte SHA-256, v3.1+ an 8-byte xxh3_64. A zeroed checksum
// field is treated as "not recorded" and skipped, since hand-built or
// legacy archives commonly leave it unpopulated.
func verifyChecksum(v Version, c Chunk, decompressed []byte) error {
	if len(c.Checksum) == 0 || isZero(c.Checksum) {
		return nil
	}

	var got []byte
	if v.hasChecksumSize32() {
		sum := sha256.Sum256(decompressed)
		got = sum[:]
	} else {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], xxh3.Hash(decompressed))
		got = buf[:]
	}

	if !bytes.Equal(got, c.Checksum) {
		return errors.Wrapf(ErrChecksumMismatch, "hash %016x", c.PathHash)
	}
	return nil
}

func isZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
