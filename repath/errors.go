package repath

// RepathError carries an optional source path alongside a per-file
// failure inside a repathing run (spec.md §7). Per-file errors are logged
// and the file is left out of the result's counters; they never abort the
// run (spec.md §4.4 "Failure semantics").
type RepathError struct {
	Path    string
	Message string
}

func (e *RepathError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}
