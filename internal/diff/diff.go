// Package diff parses unified-diff text into a structured model of
// per-file changes and validates its shape before anything touches disk.
package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Op is the marker tag of a single hunk body line.
type Op byte

const (
	OpContext Op = ' '
	OpAdd     Op = '+'
	OpDelete  Op = '-'
)

// Line is one hunk body line with its leading marker stripped.
type Line struct {
	Op   Op
	Text string
}

// Hunk is one contiguous change region of a file. Start numbers are
// 1-based as written in the header; counts default to 1 when the header
// omits them.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Header renders the hunk header back into its unified-diff form.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// FileChange is an ordered group of hunks targeting one file. Paths are
// normalized: the "a/"/"b/" source prefixes and any tab-separated
// trailing metadata are stripped.
type FileChange struct {
	OldPath  string
	NewPath  string
	Hunks    []Hunk
	IsNew    bool
	IsDelete bool
}

// Path returns the path the change should be applied to.
func (c FileChange) Path() string {
	if c.IsDelete {
		return c.OldPath
	}
	return c.NewPath
}

// NullDevice is the path unified diffs use for a missing pre- or post-image.
const NullDevice = "/dev/null"

const (
	oldFileMarker = "--- "
	newFileMarker = "+++ "
)

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse scans raw diff text and returns the file changes it describes in
// source order. It never fails: malformed fragments are dropped and the
// resulting gaps are left for Validate to report.
func Parse(text string) []FileChange {
	var (
		changes []FileChange
		cur     *FileChange
		hunk    *Hunk
	)

	flushHunk := func() {
		if cur != nil && hunk != nil {
			cur.Hunks = append(cur.Hunks, *hunk)
		}
		hunk = nil
	}
	flushFile := func() {
		flushHunk()
		if cur != nil {
			finalize(cur)
			changes = append(changes, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, oldFileMarker):
			flushFile()
			p := normalizePath(line[len(oldFileMarker):], "a/")
			cur = &FileChange{OldPath: p, NewPath: p}

		case strings.HasPrefix(line, newFileMarker):
			if cur == nil || len(cur.Hunks) > 0 || hunk != nil {
				// A "+++" with no preceding "---" (or after hunks have
				// started) is a malformed fragment; drop it.
				continue
			}
			cur.NewPath = normalizePath(line[len(newFileMarker):], "b/")

		case strings.HasPrefix(line, "@@"):
			m := hunkHeaderRegex.FindStringSubmatch(line)
			if m == nil || cur == nil {
				continue
			}
			flushHunk()
			hunk = &Hunk{
				OldStart: atoiOr(m[1], 0),
				OldCount: atoiOr(m[2], 1),
				NewStart: atoiOr(m[3], 0),
				NewCount: atoiOr(m[4], 1),
			}

		default:
			if hunk == nil || line == "" {
				continue
			}
			switch Op(line[0]) {
			case OpContext, OpAdd, OpDelete:
				hunk.Lines = append(hunk.Lines, Line{Op: Op(line[0]), Text: line[1:]})
			}
		}
	}
	flushFile()
	return changes
}

// finalize derives the new/deleted flags once all of a file's hunks are in.
func finalize(c *FileChange) {
	switch {
	case c.OldPath == NullDevice:
		c.IsNew = true
	case c.NewPath == NullDevice:
		c.IsDelete = true
	}
	for _, h := range c.Hunks {
		if h.OldStart == 0 && h.OldCount == 0 {
			c.IsNew = true
		}
		if h.NewStart == 0 && h.NewCount == 0 {
			c.IsDelete = true
		}
	}
}

// normalizePath strips the given source prefix and any tab-separated
// trailing metadata (typically a timestamp) from a header path. The
// prefix is only stripped when it is actually present: paths that do not
// use the a/ b/ convention pass through untouched.
func normalizePath(s, prefix string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	if s == NullDevice {
		return s
	}
	if rest, ok := strings.CutPrefix(s, prefix); ok {
		return rest
	}
	return s
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
