package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// MyersDiffer computes the edit script with go-diff's line mode, which runs
// in roughly linear space on large inputs.
type MyersDiffer struct{}

// Ops implements Differ.
func (MyersDiffer) Ops(oldLines, newLines []string) []Op {
	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(joinTerminated(oldLines), joinTerminated(newLines))
	diffs := dmp.DiffMain(oldChars, newChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	ops := make([]Op, 0, len(oldLines)+len(newLines))
	for _, d := range diffs {
		var kind OpType
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			kind = OpContext
		case diffmatchpatch.DiffDelete:
			kind = OpDeletion
		case diffmatchpatch.DiffInsert:
			kind = OpAddition
		}
		chunk := strings.Split(d.Text, "\n")
		// Every line was terminated, so the final element is always empty.
		chunk = chunk[:len(chunk)-1]
		for _, line := range chunk {
			ops = append(ops, Op{Type: kind, Content: line})
		}
	}
	return ops
}

// joinTerminated ends every line, including the last, with "\n" so each
// go-diff line token maps to exactly one split line.
func joinTerminated(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}
