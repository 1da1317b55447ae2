package wad

// WadError carries the archive path alongside a human-readable message, so
// batch operations (spec.md §7) can report per-item failures without
// collapsing them into one combined error.
type WadError struct {
	Path    string
	Message string
}

func (e *WadError) Error() string {
	return e.Path + ": " + e.Message
}
