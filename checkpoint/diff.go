package checkpoint

import (
	"github.com/google/btree"
)

// Modification pairs a path's old and new manifest entry.
type Modification struct {
	Old FileEntry
	New FileEntry
}

// ManifestDiff is the result of comparing two checkpoints (spec.md §4.5
// "Diff").
type ManifestDiff struct {
	Added    []FileEntry
	Modified []Modification
	Deleted  []FileEntry
}

type manifestItem struct {
	relPath string
	entry   FileEntry
}

func (m manifestItem) Less(than btree.Item) bool {
	return m.relPath < than.(manifestItem).relPath
}

func manifestTree(manifest map[string]FileEntry) *btree.BTree {
	t := btree.New(32)
	for rel, entry := range manifest {
		t.ReplaceOrInsert(manifestItem{relPath: rel, entry: entry})
	}
	return t
}

// Diff computes added/modified/deleted between two checkpoints, keyed by
// relpath (spec.md §4.5: "a file present in both with different
// sha256_hex is modified"). Traversal is in relpath order via a transient
// btree built for each side, avoiding a second sort pass.
func Diff(from, to *Checkpoint) ManifestDiff {
	fromTree := manifestTree(from.Manifest)
	toTree := manifestTree(to.Manifest)

	var out ManifestDiff

	toTree.Ascend(func(i btree.Item) bool {
		item := i.(manifestItem)
		if existing := fromTree.Get(item); existing != nil {
			old := existing.(manifestItem).entry
			if old.SHA256Hex != item.entry.SHA256Hex {
				out.Modified = append(out.Modified, Modification{Old: old, New: item.entry})
			}
		} else {
			out.Added = append(out.Added, item.entry)
		}
		return true
	})

	fromTree.Ascend(func(i btree.Item) bool {
		item := i.(manifestItem)
		if toTree.Get(item) == nil {
			out.Deleted = append(out.Deleted, item.entry)
		}
		return true
	})

	return out
}

// Diff loads both checkpoints and computes their ManifestDiff (spec.md
// §4.5 "diff(from_id, to_id)").
func (s *Store) Diff(fromID, toID string) (ManifestDiff, error) {
	from, err := s.Load(fromID)
	if err != nil {
		return ManifestDiff{}, err
	}
	to, err := s.Load(toID)
	if err != nil {
		return ManifestDiff{}, err
	}
	return Diff(from, to), nil
}
