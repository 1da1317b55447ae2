// Package checkpoint implements the Checkpoint Store (spec.md §4.5): a
// project directory is snapshotted into a JSON manifest plus a
// content-addressed, deduplicated object tree under "<project>/.flint/".
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/flint-toolkit/flintcore/internal/flog"
)

const (
	storeDir       = ".flint"
	checkpointsDir = "checkpoints"
	objectsDir     = "objects"
)

var skipDirs = map[string]struct{}{
	".flint":       {},
	".git":         {},
	"node_modules": {},
	"output":       {},
}

// FileEntry is one manifest record (spec.md §4.5 "Snapshot").
type FileEntry struct {
	RelPath   string `json:"relpath"`
	SHA256Hex string `json:"sha256_hex"`
	Size      int64  `json:"size"`
	AssetKind string `json:"asset_kind,omitempty"`
}

// Checkpoint is one stored snapshot (spec.md §3, §4.5).
type Checkpoint struct {
	ID        string               `json:"id"`
	Timestamp int64                `json:"timestamp"`
	Message   string               `json:"message"`
	Author    string               `json:"author,omitempty"`
	Tags      []string             `json:"tags,omitempty"`
	Manifest  map[string]FileEntry `json:"manifest"`
}

// ProgressFunc reports (phase, current, total) during a long operation
// (spec.md §5 "Long operations emit progress events").
type ProgressFunc func(phase string, current, total int)

// Store is a checkpoint store rooted at a project directory.
type Store struct {
	ProjectRoot string
	Mirror      *RemoteMirror
}

// New returns a Store rooted at projectRoot. Call Init before first use.
func New(projectRoot string) *Store {
	return &Store{ProjectRoot: projectRoot}
}

func (s *Store) flintDir() string        { return filepath.Join(s.ProjectRoot, storeDir) }
func (s *Store) checkpointsPath() string { return filepath.Join(s.flintDir(), checkpointsDir) }
func (s *Store) objectsPath() string     { return filepath.Join(s.flintDir(), objectsDir) }

// Init creates the store's directories (spec.md §4.5 "init()").
func (s *Store) Init() error {
	for _, dir := range []string{s.checkpointsPath(), s.objectsPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	return nil
}

func (s *Store) manifestPath(id string) string {
	return filepath.Join(s.checkpointsPath(), id+".json")
}

func (s *Store) objectPath(hash string) string {
	return filepath.Join(s.objectsPath(), hash[:2], hash)
}

// List returns every stored checkpoint, newest first (spec.md §5
// "Checkpoint listings are sorted by timestamp descending").
func (s *Store) List() ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.checkpointsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", s.checkpointsPath())
	}

	out := make([]Checkpoint, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := e.Name()[:len(e.Name())-len(".json")]
		cp, err := s.Load(id)
		if err != nil {
			flog.Default("checkpoint").WithError(err).Warnf("skipping unreadable checkpoint %s", id)
			continue
		}
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// Load reads one checkpoint's manifest by ID.
func (s *Store) Load(id string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.manifestPath(id))
	if err != nil {
		return nil, errors.Wrapf(err, "reading checkpoint %s", id)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errors.Wrapf(err, "parsing checkpoint %s", id)
	}
	return &cp, nil
}

// Delete removes a checkpoint's manifest. Objects it alone referenced are
// left in the store: the object tree is never garbage-collected by this
// operation (spec.md §4.5 names only the manifest lifecycle).
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.manifestPath(id)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "deleting checkpoint %s", id)
	}
	return nil
}

func (s *Store) writeManifest(cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding checkpoint %s", cp.ID)
	}
	if err := os.WriteFile(s.manifestPath(cp.ID), data, 0o644); err != nil {
		return errors.Wrapf(err, "writing checkpoint %s", cp.ID)
	}
	return nil
}
