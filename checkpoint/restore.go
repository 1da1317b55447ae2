package checkpoint

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/flint-toolkit/flintcore/internal/flog"
	"github.com/flint-toolkit/flintcore/internal/fsutil"
)

const preservedDuringRestore = "project.json"

// Restore replays checkpoint id onto the project tree (spec.md §4.5
// "Restore"). It first takes a safety checkpoint tagged "auto-backup",
// then deletes files not present in the target manifest (preserving
// project.json), copies every object back into place, and sweeps empty
// directories. The whole operation is serialized against any other Create
// or Restore on this store.
func (s *Store) Restore(id string) error {
	return s.withLock(func() error {
		return s.restoreLocked(id)
	})
}

// restoreLocked is Restore's body, run with the store lock already held.
func (s *Store) restoreLocked(id string) error {
	log := flog.Default("checkpoint")

	target, err := s.Load(id)
	if err != nil {
		return err
	}

	if _, err := s.createLocked("auto-backup before restoring "+id, []string{"auto-backup"}, nil); err != nil {
		return errors.Wrap(err, "auto-backup before restore")
	}

	current, err := discoverProjectFiles(s.ProjectRoot)
	if err != nil {
		return err
	}
	for _, rel := range current {
		if rel == preservedDuringRestore {
			continue
		}
		if _, keep := target.Manifest[rel]; keep {
			continue
		}
		full := filepath.Join(s.ProjectRoot, filepath.FromSlash(rel))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing stale file %s", rel)
		}
	}

	for rel, entry := range target.Manifest {
		if !fsutil.IsSafeRelativePath(rel) {
			return errors.Errorf("restore %s: unsafe manifest path %q", id, rel)
		}
		if !s.hasObject(entry.SHA256Hex) {
			// Missing referenced object: manifest is inconsistent with the
			// store, fatal per spec.md §4.5 "Failure semantics".
			return errors.Errorf("restore %s: object %s for %s is missing from the store", id, entry.SHA256Hex, rel)
		}
		destFull := filepath.Join(s.ProjectRoot, filepath.FromSlash(rel))
		if err := s.copyObjectTo(entry.SHA256Hex, destFull); err != nil {
			return errors.Wrapf(err, "restoring %s", rel)
		}
	}

	if err := fsutil.SweepEmptyDirs(s.ProjectRoot); err != nil {
		log.WithError(err).Warn("empty directory sweep after restore failed")
	}
	return nil
}

func (s *Store) hasObject(hash string) bool {
	_, err := os.Stat(s.objectPath(hash))
	return err == nil
}
