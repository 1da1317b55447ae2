package wad

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/flint-toolkit/flintcore/hashcat"
	"github.com/flint-toolkit/flintcore/internal/flog"
	"github.com/flint-toolkit/flintcore/internal/fsutil"
)

// hashedFilesSidecar is the name of the manifest dropped alongside
// extracted output for any chunk whose hash couldn't be resolved to a
// real path (spec.md §8 scenario 7).
const hashedFilesSidecar = "hashed_files.json"

// ExtractResult summarizes one archive's extraction.
type ExtractResult struct {
	Archive        string
	Extracted      int
	Skipped        int
	UnresolvedHash []string
	Errors         []*WadError
}

// extractionItem is one planned write: destination relative path and the
// chunk to decompress for it.
type extractionItem struct {
	chunk   Chunk
	relPath string
	hashed  bool
}

// ExtractWAD extracts every entry of the archive at wadPath into outDir,
// resolving paths against the hash catalog rooted at hashDir. When replace
// is false, files that already exist (checked case-insensitively, spec.md
// §4.4 step 4) are left untouched and counted as skipped.
func ExtractWAD(wadPath, outDir, hashDir string, replace bool) (*ExtractResult, error) {
	log := flog.Default("wad")

	h, err := Open(wadPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening archive")
	}
	defer h.Close()

	idx, err := hashcat.OpenOrBuildPersistent(hashDir)
	if err != nil {
		return nil, errors.Wrap(err, "loading hash catalog")
	}

	chunks := h.Chunks()
	hashes := make([]uint64, len(chunks))
	for i, c := range chunks {
		hashes[i] = c.PathHash
	}
	known := idx.GetMany(hashes)

	result := &ExtractResult{Archive: wadPath}
	items := make([]extractionItem, 0, len(chunks))
	dirSet := make(map[string]struct{})

	for _, c := range chunks {
		rel, resolved := known[c.PathHash]
		hashed := false

		switch {
		case !resolved:
			rel = hashedFallbackName(c.PathHash, "")
			hashed = true
		case fsutil.HasUnsafeTraversal(rel):
			// Absolute path or ".." traversal: never extracted, regardless
			// of what the catalog claims (spec.md §4.2/§9 "path safety").
			result.Errors = append(result.Errors, &WadError{Path: rel, Message: "unsafe extraction path"})
			continue
		case fsutil.HasOverlongComponent(rel) || pathCollidesWithDirectory(outDir, rel):
			// An otherwise-safe resolved path that can't be written as-is
			// still gets extracted, just under a hashed name (spec.md §4.2
			// step 3), and recorded in the sidecar like any unresolved hash.
			rel = hashedFallbackName(c.PathHash, rel)
			hashed = true
		}

		if !replace {
			if _, exists := fsutil.ExistsCaseInsensitive(outDir, rel); exists {
				result.Skipped++
				continue
			}
		}
		items = append(items, extractionItem{chunk: c, relPath: rel, hashed: hashed})
		dirSet[filepath.Dir(filepath.Join(outDir, filepath.FromSlash(rel)))] = struct{}{}
		if hashed {
			result.UnresolvedHash = append(result.UnresolvedHash, rel)
		}
	}

	// Serial mkdir pass: concurrent MkdirAll on overlapping paths is safe but
	// wasteful; doing it once up front keeps the parallel write pass free of
	// directory races.
	for dir := range dirSet {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating output directory %s", dir)
		}
	}

	parts := fsutil.PartitionRoughly(len(items), runtime.NumCPU())
	var g errgroup.Group
	errsByIdx := make([]*WadError, len(items))
	extractedByIdx := make([]bool, len(items))

	for _, part := range parts {
		start, end := part[0], part[1]
		g.Go(func() error {
			for i := start; i < end; i++ {
				item := items[i]
				data, err := h.Decompress(item.chunk)
				if err != nil {
					errsByIdx[i] = &WadError{Path: item.relPath, Message: err.Error()}
					continue
				}
				dest := filepath.Join(outDir, filepath.FromSlash(item.relPath))
				if err := os.WriteFile(dest, data, 0o644); err != nil {
					errsByIdx[i] = &WadError{Path: item.relPath, Message: err.Error()}
					continue
				}
				extractedByIdx[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, item := range items {
		if errsByIdx[i] != nil {
			result.Errors = append(result.Errors, errsByIdx[i])
			continue
		}
		if extractedByIdx[i] {
			result.Extracted++
		}
		_ = item
	}

	if len(result.UnresolvedHash) > 0 {
		if err := writeHashedFilesSidecar(outDir, result.UnresolvedHash); err != nil {
			log.WithError(err).Warn("failed to write hashed_files.json sidecar")
		}
	}

	return result, nil
}

// hashedFallbackName builds the "<hexhash>.<ext>" fallback name (spec.md
// §4.2 step 3), reusing originalRel's extension when there was a resolved
// path to fall back from, or ".bin" for a hash with no catalog entry at
// all.
func hashedFallbackName(hash uint64, originalRel string) string {
	ext := filepath.Ext(originalRel)
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%016x%s", hash, ext)
}

// pathCollidesWithDirectory reports whether rel, resolved against outDir,
// already names an existing directory on disk — a write there would fail
// even though rel itself carries no traversal (spec.md §4.2 step 3).
func pathCollidesWithDirectory(outDir, rel string) bool {
	info, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(rel)))
	return err == nil && info.IsDir()
}

func writeHashedFilesSidecar(outDir string, names []string) error {
	path := filepath.Join(outDir, hashedFilesSidecar)
	existing := map[string]bool{}
	if b, err := os.ReadFile(path); err == nil {
		var prior []string
		if json.Unmarshal(b, &prior) == nil {
			for _, n := range prior {
				existing[n] = true
			}
		}
	}
	for _, n := range names {
		existing[n] = true
	}
	merged := make([]string, 0, len(existing))
	for n := range existing {
		merged = append(merged, n)
	}
	b, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// SelectedItem names one chunk to extract from a specific archive, used by
// ExtractSelected for partial/targeted extraction requests.
type SelectedItem struct {
	ArchivePath string
	Hash        uint64
}

// ExtractSelected extracts only the named items, grouping by archive so
// each archive is opened at most once regardless of how many items it
// contributes.
func ExtractSelected(items []SelectedItem, outDir, hashDir string, replace bool) ([]*ExtractResult, error) {
	byArchive := make(map[string][]uint64)
	var order []string
	for _, it := range items {
		if _, ok := byArchive[it.ArchivePath]; !ok {
			order = append(order, it.ArchivePath)
		}
		byArchive[it.ArchivePath] = append(byArchive[it.ArchivePath], it.Hash)
	}

	idx, err := hashcat.OpenOrBuildPersistent(hashDir)
	if err != nil {
		return nil, errors.Wrap(err, "loading hash catalog")
	}

	results := make([]*ExtractResult, 0, len(order))
	for _, archivePath := range order {
		h, err := Open(archivePath)
		if err != nil {
			results = append(results, &ExtractResult{
				Archive: archivePath,
				Errors:  []*WadError{{Path: archivePath, Message: err.Error()}},
			})
			continue
		}

		res := &ExtractResult{Archive: archivePath}
		wanted := byArchive[archivePath]
		known := idx.GetMany(wanted)

		for _, hsh := range wanted {
			c, ok := h.Get(hsh)
			if !ok {
				res.Errors = append(res.Errors, &WadError{Path: fmt.Sprintf("%016x", hsh), Message: "hash not present in archive"})
				continue
			}
			rel, resolved := known[hsh]
			switch {
			case !resolved:
				rel = hashedFallbackName(hsh, "")
				res.UnresolvedHash = append(res.UnresolvedHash, rel)
			case fsutil.HasUnsafeTraversal(rel):
				res.Errors = append(res.Errors, &WadError{Path: rel, Message: "unsafe extraction path"})
				continue
			case fsutil.HasOverlongComponent(rel) || pathCollidesWithDirectory(outDir, rel):
				rel = hashedFallbackName(hsh, rel)
				res.UnresolvedHash = append(res.UnresolvedHash, rel)
			}
			if !replace {
				if _, exists := fsutil.ExistsCaseInsensitive(outDir, rel); exists {
					res.Skipped++
					continue
				}
			}
			data, err := h.Decompress(c)
			if err != nil {
				res.Errors = append(res.Errors, &WadError{Path: rel, Message: err.Error()})
				continue
			}
			dest := filepath.Join(outDir, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				res.Errors = append(res.Errors, &WadError{Path: rel, Message: err.Error()})
				continue
			}
			if err := os.WriteFile(dest, data, 0o644); err != nil {
				res.Errors = append(res.Errors, &WadError{Path: rel, Message: err.Error()})
				continue
			}
			res.Extracted++
		}

		h.Close()
		results = append(results, res)
	}

	return results, nil
}
