package bin

// BinError carries an optional source path alongside a read/write/format
// failure (spec.md §7 "BinConversion (with optional path)").
type BinError struct {
	Path    string
	Message string
}

func (e *BinError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}
