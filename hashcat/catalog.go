// Package hashcat implements the Hash Catalog (spec.md §4.1): a compact,
// memory-resident mapping from 64-bit path hashes to path strings, built
// from plaintext manifests and optionally persisted in an embedded ordered
// key/value store.
//
// Layout mirrors spec.md's "Arena-based catalog" design note: all path
// bytes live in one contiguous arena, and two parallel sorted vectors
// (keys, offsets/lengths) support binary-search lookup without per-entry
// heap allocation. This is the Go analogue of the teacher's own
// addr/prefix arrangement in store/nbs/table.go, generalized from a fixed
// 20-byte hash to an arbitrary-length UTF-8 path value.
package hashcat

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrMissingDir is returned by FromDirectory when dir does not exist.
var ErrMissingDir = errors.New("hashcat: catalog source directory does not exist")

// entry is one catalog row before the arena is built.
type entry struct {
	hash uint64
	path string
}

// Catalog is an immutable, memory-resident hash->path map.
type Catalog struct {
	arena  []byte
	keys   []uint64       // sorted ascending
	values []offsetLength // parallel to keys
}

type offsetLength struct {
	offset uint32
	length uint32
}

// Len returns the number of entries in the catalog.
func (c *Catalog) Len() int { return len(c.keys) }

// IsEmpty reports whether the catalog holds zero entries.
func (c *Catalog) IsEmpty() bool { return len(c.keys) == 0 }

// Resolve returns the path for hash, or its zero-padded 16-hex-digit
// fallback form if hash is unknown (spec.md §8: "exactly 16 lowercase hex
// characters equal to the zero-padded hex of h").
func (c *Catalog) Resolve(hash uint64) string {
	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= hash })
	if i < len(c.keys) && c.keys[i] == hash {
		ol := c.values[i]
		return string(c.arena[ol.offset : ol.offset+ol.length])
	}
	return fmt.Sprintf("%016x", hash)
}

// Lookup is like Resolve but also reports whether hash was found.
func (c *Catalog) Lookup(hash uint64) (string, bool) {
	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= hash })
	if i < len(c.keys) && c.keys[i] == hash {
		ol := c.values[i]
		return string(c.arena[ol.offset : ol.offset+ol.length]), true
	}
	return "", false
}

// FromDirectory scans every *.txt file in dir in parallel, merges and
// sorts by key, and deduplicates: first occurrence wins per key across
// files (per-file duplicate keys keep the last-seen line, spec.md §4.1).
func FromDirectory(dir string) (*Catalog, error) {
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return nil, errors.Wrapf(ErrMissingDir, "%s", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}

	// perFile[i] holds file i's own entries, already deduplicated
	// last-write-wins within that single file.
	perFile := make([]map[uint64]string, len(matches))
	var eg errgroup.Group
	for i, path := range matches {
		i, path := i, path
		eg.Go(func() error {
			entries, skip, err := parseManifestFile(path)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", path)
			}
			if skip {
				return nil // I/O error on this one file: logged by parseManifestFile, non-fatal
			}
			m := make(map[uint64]string, len(entries))
			for _, e := range entries {
				m[e.hash] = e.path // later line in the same file overwrites
			}
			perFile[i] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return buildFromEntries(perFile)
}

// buildFromEntries merges per-file (already internally deduplicated) maps,
// keeping the first file's value for any key that appears in more than one
// file, then builds the arena + sorted vectors.
func buildFromEntries(perFile []map[uint64]string) (*Catalog, error) {
	best := make(map[uint64]string)
	for _, m := range perFile {
		for k, v := range m {
			if _, ok := best[k]; !ok {
				best[k] = v
			}
		}
	}

	keys := make([]uint64, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var arenaLen int
	for _, k := range keys {
		arenaLen += len(best[k])
	}
	arena := make([]byte, 0, arenaLen)
	values := make([]offsetLength, len(keys))
	for i, k := range keys {
		p := best[k]
		values[i] = offsetLength{offset: uint32(len(arena)), length: uint32(len(p))}
		arena = append(arena, p...)
	}

	return &Catalog{arena: arena, keys: keys, values: values}, nil
}
