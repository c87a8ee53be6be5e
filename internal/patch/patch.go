// Package patch applies parsed diff hunks to in-memory line buffers.
// It performs no I/O; callers own reading, writing and failure policy.
package patch

import (
	"sort"
	"strings"

	"github.com/sokinpui/dpatch/internal/diff"
)

// Mismatch records a delete line whose expected text did not match the
// buffer content at its planned index.
type Mismatch struct {
	Index    int // 0-based buffer index
	Expected string
	Actual   string
}

// Outcome reports how a hunk (or a whole file's hunks) applied.
// An empty Mismatches slice means a clean application.
type Outcome struct {
	Mismatches []Mismatch
}

// Applied reports whether every delete line matched its target.
func (o Outcome) Applied() bool { return len(o.Mismatches) == 0 }

type deletion struct {
	index    int
	expected string
}

// Apply transforms lines according to a single hunk and returns the new
// buffer. Mismatched delete lines are left in place and reported in the
// outcome; the caller decides whether that fails the file or is forced
// through.
//
// The work happens in three phases over the hunk body: a plan walk that
// records deletions and insertion cursors, deletions in descending index
// order so pending indices stay valid, and a second walk that performs
// insertions with a running offset compensating for the removals.
func Apply(lines []string, h diff.Hunk) ([]string, Outcome) {
	var out Outcome

	// Hunk headers are 1-based; the cursor is a 0-based buffer index.
	start := h.OldStart - 1
	if start < 0 {
		start = 0
	}

	// Plan phase: find every deletion's index in the untouched buffer.
	var dels []deletion
	cursor := start
	for _, l := range h.Lines {
		switch l.Op {
		case diff.OpContext:
			cursor++
		case diff.OpDelete:
			dels = append(dels, deletion{index: cursor, expected: l.Text})
			cursor++
		case diff.OpAdd:
			// Adds are not part of the pre-image; the cursor stays put.
		}
	}

	buf := make([]string, len(lines))
	copy(buf, lines)

	// Delete phase, highest index first.
	for i := len(dels) - 1; i >= 0; i-- {
		d := dels[i]
		if d.index >= len(buf) {
			out.Mismatches = append(out.Mismatches, Mismatch{Index: d.index, Expected: d.expected})
			continue
		}
		if !linesEqual(buf[d.index], d.expected) {
			out.Mismatches = append(out.Mismatches, Mismatch{
				Index:    d.index,
				Expected: d.expected,
				Actual:   buf[d.index],
			})
			continue
		}
		buf = append(buf[:d.index], buf[d.index+1:]...)
	}

	// Insert phase: the buffer length changed, so insertion positions are
	// recomputed from a fresh walk plus a running offset.
	cursor = start
	offset := 0
	for _, l := range h.Lines {
		switch l.Op {
		case diff.OpContext:
			cursor++
		case diff.OpDelete:
			offset--
			cursor++
		case diff.OpAdd:
			pos := cursor + offset
			if pos >= 0 && pos < len(buf) {
				buf = append(buf[:pos], append([]string{l.Text}, buf[pos:]...)...)
			} else {
				buf = append(buf, l.Text)
			}
			offset++
		}
	}

	return buf, out
}

// ApplyAll applies a file's hunks to lines. Hunks are applied in
// descending OldStart order so that a lower hunk's line numbers still
// refer to unmodified content when its turn comes; the input slice is
// not reordered.
func ApplyAll(lines []string, hunks []diff.Hunk) ([]string, Outcome) {
	ordered := make([]diff.Hunk, len(hunks))
	copy(ordered, hunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OldStart > ordered[j].OldStart
	})

	var out Outcome
	buf := lines
	for _, h := range ordered {
		var res Outcome
		buf, res = Apply(buf, h)
		out.Mismatches = append(out.Mismatches, res.Mismatches...)
	}
	return buf, out
}

// linesEqual compares two lines ignoring trailing whitespace, which
// tolerates editors and diff tools that strip or keep it inconsistently.
func linesEqual(a, b string) bool {
	return strings.TrimRight(a, " \t\r") == strings.TrimRight(b, " \t\r")
}
