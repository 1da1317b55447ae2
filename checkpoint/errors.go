package checkpoint

// CheckpointError carries an optional checkpoint ID alongside a
// human-readable message (spec.md §7).
type CheckpointError struct {
	ID      string
	Message string
}

func (e *CheckpointError) Error() string {
	if e.ID == "" {
		return e.Message
	}
	return e.ID + ": " + e.Message
}
