package diff

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

// apply rebuilds the new side from an edit script.
func apply(ops []Op) string {
	var lines []string
	for _, op := range ops {
		if op.Type != OpDeletion {
			lines = append(lines, op.Content)
		}
	}
	return strings.Join(lines, "\n")
}

// applyOld rebuilds the old side from an edit script.
func applyOld(ops []Op) string {
	var lines []string
	for _, op := range ops {
		if op.Type != OpAddition {
			lines = append(lines, op.Content)
		}
	}
	return strings.Join(lines, "\n")
}

var roundTripCases = []struct {
	name     string
	old, new string
}{
	{"both empty", "", ""},
	{"create", "", "hello"},
	{"delete", "hello", ""},
	{"substitute", "a\nb\nc", "a\nX\nc"},
	{"embedded empty lines", "a\n\nb\n\n", "a\n\n\nb"},
	{"trailing newline added", "a\nb", "a\nb\n"},
	{"only newlines", "\n\n", "\n"},
	{"reorder", "1\n2\n3\n4\n5", "5\n4\n3\n2\n1"},
	{"append", "x", "x\ny\nz"},
}

func TestDiffersRoundTrip(t *testing.T) {
	for _, differ := range []Differ{LCSDiffer{}, MyersDiffer{}} {
		for _, tc := range roundTripCases {
			t.Run(tc.name, func(t *testing.T) {
				ops := differ.Ops(SplitLines(&tc.old), SplitLines(&tc.new))
				if got := apply(ops); got != tc.new {
					t.Errorf("%T: new side = %q, want %q", differ, got, tc.new)
				}
				if got := applyOld(ops); got != tc.old {
					t.Errorf("%T: old side = %q, want %q", differ, got, tc.old)
				}
			})
		}
	}
}

func TestIdenticalContentHasNoChanges(t *testing.T) {
	content := "package main\n\nfunc main() {}\n"
	fc := ComputeFileChange(LCSDiffer{}, "main.go", &content, &content)
	if fc.Additions != 0 || fc.Deletions != 0 {
		t.Errorf("expected no changes, got +%d -%d", fc.Additions, fc.Deletions)
	}
	if len(fc.Hunks) != 0 {
		t.Errorf("expected zero hunks, got %d", len(fc.Hunks))
	}
}

func TestSplitLines(t *testing.T) {
	if got := SplitLines(nil); len(got) != 0 {
		t.Errorf("nil content should have no lines, got %q", got)
	}
	empty := ""
	if got := SplitLines(&empty); len(got) != 0 {
		t.Errorf("empty content should have no lines, got %q", got)
	}
	s := "a\n"
	if got := SplitLines(&s); len(got) != 2 || got[1] != "" {
		t.Errorf("expected trailing empty line, got %q", got)
	}
}

func TestLCSPrefersDeletionOnTie(t *testing.T) {
	ops := LCSDiffer{}.Ops([]string{"a", "c", "d"}, []string{"a", "X", "d"})
	want := []Op{
		{OpContext, "a"},
		{OpDeletion, "c"},
		{OpAddition, "X"},
		{OpContext, "d"},
	}
	if len(ops) != len(want) {
		t.Fatalf("ops = %+v", ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op[%d] = %+v, want %+v", i, ops[i], want[i])
		}
	}
}

func TestHunkWindowShortFile(t *testing.T) {
	old := "a\nb\nc\nd\ne\nf\ng"
	new := "a\nb\nX\nd\ne\nf\ng"
	fc := ComputeFileChange(LCSDiffer{}, "f.txt", &old, &new)

	if fc.Additions != 1 || fc.Deletions != 1 {
		t.Fatalf("expected +1 -1, got +%d -%d", fc.Additions, fc.Deletions)
	}
	if len(fc.Hunks) != 1 {
		t.Fatalf("expected one hunk, got %d", len(fc.Hunks))
	}
	h := fc.Hunks[0]
	if h.OldStart != 1 || h.NewStart != 1 {
		t.Errorf("starts = %d/%d, want 1/1", h.OldStart, h.NewStart)
	}
	wantContent := []string{" a", " b", "-c", "+X", " d", " e", " f"}
	if len(h.Lines) != len(wantContent) {
		t.Fatalf("hunk lines = %+v", h.Lines)
	}
	for i, want := range wantContent {
		if h.Lines[i].Content != want {
			t.Errorf("line %d = %q, want %q", i, h.Lines[i].Content, want)
		}
	}
	if h.FilePath != "f.txt" {
		t.Errorf("file path = %q", h.FilePath)
	}
}

func TestHunkLineNumbers(t *testing.T) {
	old := "a\nb\nc"
	new := "a\nX\nc"
	h := ComputeFileChange(LCSDiffer{}, "f", &old, &new).Hunks[0]

	del := h.Lines[1]
	if del.Type != LineDeletion || del.OldLineNumber == nil || *del.OldLineNumber != 2 || del.NewLineNumber != nil {
		t.Errorf("deletion line = %+v", del)
	}
	add := h.Lines[2]
	if add.Type != LineAddition || add.NewLineNumber == nil || *add.NewLineNumber != 2 || add.OldLineNumber != nil {
		t.Errorf("addition line = %+v", add)
	}
	last := h.Lines[3]
	if *last.OldLineNumber != 3 || *last.NewLineNumber != 3 {
		t.Errorf("trailing context = %+v", last)
	}
}

func TestHunksSplitAndStartOffsets(t *testing.T) {
	var oldLines, newLines []string
	for i := 0; i < 20; i++ {
		line := string(rune('a' + i))
		oldLines = append(oldLines, line)
		switch i {
		case 1:
			newLines = append(newLines, "B")
		case 15:
			// dropped
		default:
			newLines = append(newLines, line)
		}
	}
	old := strings.Join(oldLines, "\n")
	new := strings.Join(newLines, "\n")
	fc := ComputeFileChange(LCSDiffer{}, "f", &old, &new)

	if len(fc.Hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(fc.Hunks))
	}
	second := fc.Hunks[1]
	// Thirteen ops precede the second window; one is an addition and one a
	// deletion, so both sides start at line 13.
	if second.OldStart != 13 || second.NewStart != 13 {
		t.Errorf("second hunk starts = %d/%d, want 13/13", second.OldStart, second.NewStart)
	}
}

func TestHunksMergeAdjacentWindows(t *testing.T) {
	ops := []Op{
		{OpDeletion, "1"},
		{OpContext, "2"}, {OpContext, "3"}, {OpContext, "4"},
		{OpContext, "5"}, {OpContext, "6"}, {OpContext, "7"},
		{OpAddition, "8"},
	}
	// Windows [0,3] and [4,7] touch, so they merge.
	hunks := BuildHunks("f", ops, HunkContextLines)
	if len(hunks) != 1 || len(hunks[0].Lines) != len(ops) {
		t.Fatalf("expected one merged hunk, got %+v", hunks)
	}
}

func TestCreationIsAllAdditions(t *testing.T) {
	fc := ComputeFileChange(LCSDiffer{}, "new.txt", nil, strPtr("hello"))
	if fc.Additions != 1 || fc.Deletions != 0 || len(fc.Hunks) != 1 {
		t.Fatalf("unexpected change: %+v", fc)
	}
	for _, line := range fc.Hunks[0].Lines {
		if line.Type != LineAddition {
			t.Errorf("expected only additions, got %+v", line)
		}
	}
}

func TestNewDiffer(t *testing.T) {
	if _, ok := NewDiffer("myers").(MyersDiffer); !ok {
		t.Error("expected MyersDiffer")
	}
	if _, ok := NewDiffer("lcs").(LCSDiffer); !ok {
		t.Error("expected LCSDiffer")
	}
	if _, ok := NewDiffer("").(LCSDiffer); !ok {
		t.Error("expected LCS fallback")
	}
}
