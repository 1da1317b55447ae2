package hashcat

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// indexSubdir matches spec.md §6: "Directory <hash_dir>/hashes.lmdb/
// containing a single unnamed database". The name is kept for continuity
// with the source tool even though bbolt, not LMDB, is the backing engine
// here — see DESIGN.md's Open Question entry.
const indexSubdir = "hashes.lmdb"

const dataFile = "data.mdb"

var bucketName = []byte("hashes")

// defaultMapSizeBytes is the policy-choice map size spec.md §9's Open
// Questions calls out. It is not passed to bbolt and no option sets it;
// bbolt grows its file on demand.
const defaultMapSizeBytes = 512 << 20 // 512 MiB

// PersistentIndex is an embedded ordered KV backend mapping an 8-byte
// big-endian uint64 key to a UTF-8 path value (spec.md §6).
type PersistentIndex struct {
	db   *bolt.DB
	path string
}

// Close releases the underlying file handle.
func (p *PersistentIndex) Close() error { return p.db.Close() }

// Get performs a single point lookup inside its own read transaction
// (MVCC snapshot — concurrent readers never block each other or a
// concurrent rebuild, spec.md §9).
func (p *PersistentIndex) Get(hash uint64) (string, bool) {
	var out string
	var found bool
	_ = p.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		v := b.Get(encodeKey(hash))
		if v != nil {
			found = true
			out = string(v)
		}
		return nil
	})
	return out, found
}

// GetMany resolves a batch of hashes inside a single read transaction, the
// scheme spec.md §4.2 step 2 requires ("one read transaction... resolution
// is a point lookup per hash").
func (p *PersistentIndex) GetMany(hashes []uint64) map[uint64]string {
	out := make(map[uint64]string, len(hashes))
	_ = p.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		for _, h := range hashes {
			if v := b.Get(encodeKey(h)); v != nil {
				out[h] = string(v)
			}
		}
		return nil
	})
	return out
}

func encodeKey(hash uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], hash)
	return k[:]
}

// rebuildPersistentIndex performs a full rebuild from the per-file manifest
// entries (the first file to define a key wins), replacing the bucket's old
// contents and writing the merged entries under a single transaction after
// sorting by key (spec.md §4.1: "sorted inserts exploit the B-tree's
// append-optimal path").
func rebuildPersistentIndex(dir string, perFile []map[uint64]string) error {
	merged := make(map[uint64]string)
	for _, m := range perFile {
		for k, v := range m {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	keys := make([]uint64, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	idxDir := filepath.Join(dir, indexSubdir)
	if err := os.MkdirAll(idxDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", idxDir)
	}
	dbPath := filepath.Join(idxDir, dataFile)

	// Drop any cached handle before the destructive rebuild so the OS
	// releases the file lock first (spec.md §9: "Before any destructive
	// rebuild, drop the cached handle").
	evictCachedIndex(dir)

	db, err := bolt.Open(dbPath, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return errors.Wrapf(err, "opening %s", dbPath)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketName) != nil {
			if err := tx.DeleteBucket(bucketName); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketName)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Put(encodeKey(k), []byte(merged[k])); err != nil {
				return err
			}
		}
		return nil
	})
}

// OpenOrBuildPersistent opens the cached persistent index for dir if it is
// fresh relative to dir's *.txt manifests, else rebuilds it from those
// manifests and opens the fresh result. An absent index is built this way;
// a failure to stat, rebuild or open the index is returned as an error.
// It does not build an in-memory Catalog itself when the index is unusable.
func OpenOrBuildPersistent(dir string) (*PersistentIndex, error) {
	fresh, err := isIndexFresh(dir)
	if err != nil {
		return nil, err
	}
	if !fresh {
		matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
		if err != nil {
			return nil, err
		}
		perFile := make([]map[uint64]string, 0, len(matches))
		for _, m := range matches {
			entries, skip, err := parseManifestFile(m)
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
			mm := make(map[uint64]string, len(entries))
			for _, e := range entries {
				mm[e.hash] = e.path
			}
			perFile = append(perFile, mm)
		}
		if err := rebuildPersistentIndex(dir, perFile); err != nil {
			return nil, err
		}
	}
	return openCachedIndex(dir)
}

// isIndexFresh compares every *.txt manifest's mtime against the index
// file's mtime; any newer source triggers a rebuild (spec.md §4.1).
func isIndexFresh(dir string) (bool, error) {
	dbPath := filepath.Join(dir, indexSubdir, dataFile)
	dbInfo, err := os.Stat(dbPath)
	if err != nil {
		return false, nil // absent index: not fresh, not an error
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		srcInfo, err := os.Stat(m)
		if err != nil {
			continue
		}
		if srcInfo.ModTime().After(dbInfo.ModTime()) {
			return false, nil
		}
	}
	return true, nil
}

// envCache is the process-wide cache of open *PersistentIndex handles
// keyed by absolute hash directory (spec.md §9 "Shared mutable state").
// golang.org/x/sync wouldn't buy anything extra here: the cache itself
// needs exclusive access around open/evict, which an lru.Cache's own
// mutex already gives us; a plain mutex-guarded map would duplicate that.
var (
	envCacheOnce sync.Once
	envCacheRef  *lru.Cache[string, *PersistentIndex]
)

func envCache() *lru.Cache[string, *PersistentIndex] {
	envCacheOnce.Do(func() {
		c, err := lru.NewWithEvict[string, *PersistentIndex](8, func(_ string, v *PersistentIndex) {
			_ = v.Close()
		})
		if err != nil {
			panic(err) // only fails for non-positive size, which 8 never is
		}
		envCacheRef = c
	})
	return envCacheRef
}

func openCachedIndex(dir string) (*PersistentIndex, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	cache := envCache()
	if v, ok := cache.Get(abs); ok {
		return v, nil
	}

	dbPath := filepath.Join(abs, indexSubdir, dataFile)
	db, err := bolt.Open(dbPath, 0o644, &bolt.Options{Timeout: 5 * time.Second, ReadOnly: false})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dbPath)
	}
	pi := &PersistentIndex{db: db, path: abs}
	cache.Add(abs, pi)
	return pi, nil
}

func evictCachedIndex(dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return
	}
	envCache().Remove(abs)
}
