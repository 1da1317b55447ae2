package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/flint-toolkit/flintcore/internal/flog"
)

// Create snapshots the project tree into a new checkpoint (spec.md §4.5
// "Snapshot"): every file under ProjectRoot, skipping the reserved
// directories, is hashed and written into the object store only if its
// content is not already present (deduplication), then a manifest is
// recorded under checkpoints/<uuid>.json.
func (s *Store) Create(message string, tags []string) (*Checkpoint, error) {
	return s.CreateWithProgress(message, tags, nil)
}

// CreateWithProgress is Create with progress events (spec.md §5:
// "checkpoint creation emits (phase, current, total)"), serialized against
// any other Create or Restore on this store.
func (s *Store) CreateWithProgress(message string, tags []string, progress ProgressFunc) (*Checkpoint, error) {
	var cp *Checkpoint
	err := s.withLock(func() error {
		var err error
		cp, err = s.createLocked(message, tags, progress)
		return err
	})
	return cp, err
}

// createLocked is CreateWithProgress's body, run with the store lock already
// held. Restore calls this directly for its auto-backup step instead of
// CreateWithProgress to avoid re-entering withLock.
func (s *Store) createLocked(message string, tags []string, progress ProgressFunc) (*Checkpoint, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	log := flog.Default("checkpoint")

	files, err := discoverProjectFiles(s.ProjectRoot)
	if err != nil {
		return nil, err
	}
	report(progress, "scan", len(files), len(files))

	entries := make([]FileEntry, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	var done int32
	var mu sync.Mutex

	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			entry, newObj, err := s.hashAndStore(rel)
			if err != nil {
				return errors.Wrapf(err, "snapshotting %s", rel)
			}
			entries[i] = entry
			if newObj && s.Mirror != nil {
				s.Mirror.enqueue(entry.SHA256Hex, s.objectPath(entry.SHA256Hex))
			}
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			report(progress, "hash", int(n), len(files))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifest := make(map[string]FileEntry, len(entries))
	for _, e := range entries {
		manifest[e.RelPath] = e
	}

	cp := &Checkpoint{
		ID:        uuid.NewString(),
		Timestamp: time.Now().Unix(),
		Message:   message,
		Tags:      tags,
		Manifest:  manifest,
	}
	if err := s.writeManifest(cp); err != nil {
		return nil, err
	}

	var totalBytes int64
	for _, e := range entries {
		totalBytes += e.Size
	}
	log.Infof("checkpoint %s: %d files, %s", cp.ID, len(entries), humanize.Bytes(uint64(totalBytes)))

	return cp, nil
}

// hashAndStore computes rel's SHA-256, writes it into the object store if
// absent, and returns its manifest entry plus whether the object was newly
// written.
func (s *Store) hashAndStore(rel string) (FileEntry, bool, error) {
	full := filepath.Join(s.ProjectRoot, filepath.FromSlash(rel))
	data, err := os.ReadFile(full)
	if err != nil {
		return FileEntry{}, false, err
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	dest := s.objectPath(hash)
	newObj := false
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return FileEntry{}, false, err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return FileEntry{}, false, err
		}
		newObj = true
	}

	return FileEntry{
		RelPath:   rel,
		SHA256Hex: hash,
		Size:      int64(len(data)),
		AssetKind: classifyAssetKind(rel),
	}, newObj, nil
}

// discoverProjectFiles walks root, returning every regular file's
// project-relative, forward-slashed path, skipping the reserved
// directories at any depth (spec.md §4.5 "Snapshot").
func discoverProjectFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != root {
				if _, skip := skipDirs[name]; skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", root)
	}
	sort.Strings(out)
	return out, nil
}

func classifyAssetKind(rel string) string {
	ext := strings.ToLower(filepath.Ext(rel))
	switch ext {
	case ".dds", ".tex", ".png", ".jpg", ".jpeg", ".tga":
		return "image"
	case ".wad", ".client":
		return "archive"
	case ".bin":
		return "bin"
	case "":
		return ""
	default:
		return strings.TrimPrefix(ext, ".")
	}
}

func report(progress ProgressFunc, phase string, current, total int) {
	if progress != nil {
		progress(phase, current, total)
	}
}

// copyObjectTo copies the object identified by hash to destFull, creating
// parent directories first (spec.md §4.5 "Restore" step 3).
func (s *Store) copyObjectTo(hash, destFull string) error {
	src := s.objectPath(hash)
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "missing object %s", hash)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(destFull), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent for %s", destFull)
	}
	out, err := os.Create(destFull)
	if err != nil {
		return errors.Wrapf(err, "creating %s", destFull)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "restoring %s", destFull)
	}
	return nil
}
