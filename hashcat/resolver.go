package hashcat

import "fmt"

// Resolver is the narrow interface the bin and wad packages depend on
// instead of importing hashcat's concrete types directly — kept deliberately
// thin to avoid a layering cycle (bin's ritobin formatter and wad's
// indexer both need hash->path resolution but shouldn't need to know
// whether it's backed by an in-memory Catalog or a PersistentIndex).
type Resolver interface {
	// Resolve returns the best-known path string for hash, falling back to
	// its 16-hex-digit zero-padded form when unknown.
	Resolve(hash uint64) string
}

var (
	_ Resolver = (*Catalog)(nil)
)

// persistentResolver adapts *PersistentIndex to Resolver.
type persistentResolver struct{ idx *PersistentIndex }

func (r persistentResolver) Resolve(hash uint64) string {
	if v, ok := r.idx.Get(hash); ok {
		return v
	}
	return fmt.Sprintf("%016x", hash)
}

// AsResolver adapts a *PersistentIndex to the Resolver interface.
func AsResolver(idx *PersistentIndex) Resolver { return persistentResolver{idx: idx} }
