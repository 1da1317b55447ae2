package bin

// Object is one entry of a Tree, keyed in the tree by its own path hash
// (spec.md §3: "objects: map<hash, Object>").
type Object struct {
	ClassHash  uint32
	Properties map[uint32]Value
}

// Tree is the root BIN container (spec.md §3).
type Tree struct {
	Version      uint32
	Dependencies []string
	Objects      map[uint32]Object
}

// NewTree returns an empty, ready-to-populate Tree.
func NewTree(version uint32) *Tree {
	return &Tree{Version: version, Objects: make(map[uint32]Object)}
}
