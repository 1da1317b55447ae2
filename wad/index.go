package wad

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/flint-toolkit/flintcore/hashcat"
)

// IndexBatch is the result of indexing one archive (spec.md §5): either a
// resolved list of contained paths, or a per-archive error. Batch results
// preserve the input path order regardless of completion order.
type IndexBatch struct {
	Path       string
	ChunkCount int
	Paths      []string
	Err        error
}

// LoadAllIndexes opens every archive in paths concurrently (bounded by
// concurrency, or runtime.NumCPU() if concurrency <= 0), reads each one's
// header and chunk table, then resolves every contained hash against the
// hash catalog rooted at hashDir in a single sequential pass. Results are
// returned in the same order as paths.
func LoadAllIndexes(paths []string, hashDir string, concurrency int) ([]IndexBatch, error) {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	results := make([]IndexBatch, len(paths))
	hashesPerArchive := make([][]uint64, len(paths))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			results[i].Path = p

			h, err := Open(p)
			if err != nil {
				results[i].Err = errors.Wrap(err, "opening archive for indexing")
				return nil
			}
			defer h.Close()

			chunks := h.Chunks()
			results[i].ChunkCount = len(chunks)
			hashes := make([]uint64, len(chunks))
			for j, c := range chunks {
				hashes[j] = c.PathHash
			}
			hashesPerArchive[i] = hashes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx, err := hashcat.OpenOrBuildPersistent(hashDir)
	if err != nil {
		return nil, errors.Wrap(err, "loading hash catalog for archive indexing")
	}

	for i, hashes := range hashesPerArchive {
		if results[i].Err != nil {
			continue
		}
		known := idx.GetMany(hashes)
		paths := make([]string, len(hashes))
		for j, hsh := range hashes {
			if p, ok := known[hsh]; ok {
				paths[j] = p
			} else {
				paths[j] = fmt.Sprintf("%016x", hsh)
			}
		}
		results[i].Paths = paths
	}

	return results, nil
}
