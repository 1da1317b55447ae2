package checkpoint

import (
	"path/filepath"

	"github.com/dolthub/fslock"
	"github.com/pkg/errors"
)

const lockFileName = "store.lock"

// withLock serializes Create and Restore against this store's directory: two
// processes snapshotting or restoring the same project concurrently would
// otherwise race on the object tree and manifest files (spec.md §4.5
// "Restore" assumes exclusive access to the store for its duration).
func (s *Store) withLock(fn func() error) error {
	if err := s.Init(); err != nil {
		return err
	}

	lock := fslock.New(s.lockPath())
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(err, "locking checkpoint store at %s", s.ProjectRoot)
	}
	defer lock.Unlock()

	return fn()
}

func (s *Store) lockPath() string {
	return filepath.Join(s.flintDir(), lockFileName)
}
