package hashcat

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/flint-toolkit/flintcore/internal/flog"
)

// ParseError reports a malformed line in a hash manifest (spec.md §6,
// §7 "Parse (with line number and optional file path)").
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return e.File + ":" + strconv.Itoa(e.Line) + ": " + e.Message
}

// parseManifestFile reads one manifest text file: lines of the form
// "<hash> <path>"; "#" comments and blank lines are ignored (spec.md §3,
// §6). An I/O error opening/reading the file is logged and the file is
// skipped (skip=true, err=nil); a parse error is fatal to the whole
// manifest (spec.md §7 "No cross-file error masking: the first parse error
// in a manifest propagates").
func parseManifestFile(path string) (entries []entry, skip bool, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		flog.Default("hashcat").WithFields(logrus.Fields{"file": path, "error": openErr}).
			Warn("skipping unreadable hash manifest")
		return nil, true, nil
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sp := strings.IndexAny(line, " \t")
		if sp < 0 {
			return nil, false, &ParseError{File: path, Line: lineNo, Message: "expected \"<hash> <path>\""}
		}
		hashField := line[:sp]
		rest := strings.TrimLeft(line[sp+1:], " \t")
		if rest == "" {
			return nil, false, &ParseError{File: path, Line: lineNo, Message: "missing path"}
		}

		h, perr := parseHash(hashField)
		if perr != nil {
			return nil, false, &ParseError{File: path, Line: lineNo, Message: perr.Error()}
		}

		entries = append(entries, entry{hash: h, path: rest})
	}
	if err := sc.Err(); err != nil {
		flog.Default("hashcat").WithFields(logrus.Fields{"file": path, "error": err}).
			Warn("skipping unreadable hash manifest")
		return nil, true, nil
	}

	return entries, false, nil
}

// parseHash parses a hash field per spec.md §4.1: optional 0x/0X hex
// prefix; purely decimal digits parse as decimal; purely hex digits with
// at least one a-f parse as hex; anything else fails.
func parseHash(field string) (uint64, error) {
	lower := strings.ToLower(field)
	if strings.HasPrefix(lower, "0x") {
		return strconv.ParseUint(lower[2:], 16, 64)
	}

	onlyDecimal := true
	onlyHex := true
	hasAlpha := false
	for _, r := range lower {
		switch {
		case r >= '0' && r <= '9':
			// valid in both decimal and hex
		case r >= 'a' && r <= 'f':
			onlyDecimal = false
			hasAlpha = true
		default:
			onlyDecimal = false
			onlyHex = false
		}
	}

	switch {
	case onlyDecimal:
		return strconv.ParseUint(lower, 10, 64)
	case onlyHex && hasAlpha:
		return strconv.ParseUint(lower, 16, 64)
	default:
		return 0, &strconvHashError{field: field}
	}
}

type strconvHashError struct{ field string }

func (e *strconvHashError) Error() string {
	return "invalid hash field " + strconv.Quote(e.field)
}
