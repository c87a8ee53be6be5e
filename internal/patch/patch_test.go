package patch

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sokinpui/dpatch/internal/diff"
)

func hunk(oldStart, oldCount, newStart, newCount int, body ...string) diff.Hunk {
	h := diff.Hunk{OldStart: oldStart, OldCount: oldCount, NewStart: newStart, NewCount: newCount}
	for _, l := range body {
		h.Lines = append(h.Lines, diff.Line{Op: diff.Op(l[0]), Text: l[1:]})
	}
	return h
}

func TestApplyReplaceLine(t *testing.T) {
	lines := []string{"a", "b", "c"}
	h := hunk(1, 3, 1, 3, " a", "-b", "+B", " c")

	got, out := Apply(lines, h)
	if !out.Applied() {
		t.Fatalf("unexpected mismatches: %+v", out.Mismatches)
	}
	if diff := cmp.Diff([]string{"a", "B", "c"}, got); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyNewFile(t *testing.T) {
	h := hunk(0, 0, 1, 2, "+x", "+y")
	got, out := Apply(nil, h)
	if !out.Applied() {
		t.Fatalf("unexpected mismatches: %+v", out.Mismatches)
	}
	if diff := cmp.Diff([]string{"x", "y"}, got); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyContextOnlyIsNoop(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}
	h := hunk(2, 2, 2, 2, " b", " c")
	got, out := Apply(lines, h)
	if !out.Applied() {
		t.Fatalf("unexpected mismatches: %+v", out.Mismatches)
	}
	if diff := cmp.Diff(lines, got); diff != "" {
		t.Errorf("context-only hunk changed the buffer (-want +got):\n%s", diff)
	}
}

// Resulting line count must be original − deletes + adds.
func TestApplyLineCountArithmetic(t *testing.T) {
	lines := []string{"1", "2", "3", "4", "5", "6"}
	h := hunk(2, 4, 2, 3, " 2", "-3", "-4", "+three", " 5")

	got, out := Apply(lines, h)
	if !out.Applied() {
		t.Fatalf("unexpected mismatches: %+v", out.Mismatches)
	}
	want := len(lines) - 2 + 1
	if len(got) != want {
		t.Errorf("len = %d, want %d (%v)", len(got), want, got)
	}
	wantLines := []string{"1", "2", "three", "5", "6"}
	if diff := cmp.Diff(wantLines, got); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyMismatchIsReportedNotFatal(t *testing.T) {
	lines := []string{"a", "DIFFERENT", "c"}
	h := hunk(1, 3, 1, 3, " a", "-b", "+B", " c")

	got, out := Apply(lines, h)
	if out.Applied() {
		t.Fatal("expected a mismatch")
	}
	m := out.Mismatches[0]
	if m.Index != 1 || m.Expected != "b" || m.Actual != "DIFFERENT" {
		t.Errorf("mismatch = %+v", m)
	}
	// The mismatched line stays; the insertion still happens.
	if len(got) != 4 {
		t.Errorf("buffer = %v", got)
	}
}

func TestApplyTrailingWhitespaceInsensitive(t *testing.T) {
	lines := []string{"a", "b   ", "c"}
	h := hunk(1, 3, 1, 3, " a", "-b", "+B", " c")
	got, out := Apply(lines, h)
	if !out.Applied() {
		t.Fatalf("trailing whitespace should not cause a mismatch: %+v", out.Mismatches)
	}
	if diff := cmp.Diff([]string{"a", "B", "c"}, got); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyAllDescendingOrder(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e", "f"}
	// Hunks given in ascending order, as a parser produces them.
	hunks := []diff.Hunk{
		hunk(2, 1, 2, 1, "-b", "+B"),
		hunk(5, 1, 5, 1, "-e", "+E"),
	}

	got, out := ApplyAll(lines, hunks)
	if !out.Applied() {
		t.Fatalf("unexpected mismatches: %+v", out.Mismatches)
	}
	want := []string{"a", "B", "c", "d", "E", "f"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ApplyAll() mismatch (-want +got):\n%s", diff)
	}
}

// Applying hunks high-to-low on one buffer must equal applying them
// low-to-high while shifting each later hunk by the accumulated line
// delta. The offset-adjusted run is the cross-check oracle.
func TestApplyAllMatchesOffsetOracle(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = fmt.Sprintf("line-%d", i+1)
	}
	hunks := []diff.Hunk{
		hunk(3, 2, 3, 3, " line-3", "-line-4", "+four-a", "+four-b"),
		hunk(10, 3, 11, 2, "-line-10", "-line-11", "+ten", " line-12"),
		hunk(18, 1, 18, 1, "-line-18", "+eighteen"),
	}

	got, out := ApplyAll(lines, hunks)
	if !out.Applied() {
		t.Fatalf("unexpected mismatches: %+v", out.Mismatches)
	}

	// Oracle: low-to-high with explicit start offsets.
	oracle := lines
	delta := 0
	for _, h := range hunks {
		shifted := h
		shifted.OldStart += delta
		var res Outcome
		oracle, res = Apply(oracle, shifted)
		if !res.Applied() {
			t.Fatalf("oracle mismatch for %s: %+v", h.Header(), res.Mismatches)
		}
		delta += h.NewCount - h.OldCount
	}

	if diff := cmp.Diff(oracle, got); diff != "" {
		t.Errorf("descending apply disagrees with offset oracle (-oracle +got):\n%s", diff)
	}
}
