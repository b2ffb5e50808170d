package diff

// HunkContextLines is the number of unchanged lines kept on each side of a
// change.
const HunkContextLines = 3

// LineType classifies a rendered diff line.
type LineType string

const (
	LineContext  LineType = "context"
	LineAddition LineType = "addition"
	LineDeletion LineType = "deletion"
	LineHeader   LineType = "header"
)

// Line is one rendered line of a hunk. Content carries the " ", "-" or "+"
// prefix.
type Line struct {
	Type          LineType `json:"type"`
	Content       string   `json:"content"`
	OldLineNumber *int     `json:"oldLineNumber,omitempty"`
	NewLineNumber *int     `json:"newLineNumber,omitempty"`
}

// Hunk is a contiguous window of diff lines with independent old and new
// line-number tracks. OldStart and NewStart are 1-based.
type Hunk struct {
	FilePath string `json:"filePath"`
	OldStart int    `json:"oldStart"`
	NewStart int    `json:"newStart"`
	Lines    []Line `json:"lines"`
}

// FileChange is the displayable diff of one file.
type FileChange struct {
	FilePath  string `json:"filePath"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Hunks     []Hunk `json:"hunks"`
}

type opRange struct {
	start, end int
}

// BuildHunks windows an edit script into hunks with contextLines of
// surrounding context. Overlapping or adjacent windows are merged.
func BuildHunks(filePath string, ops []Op, contextLines int) []Hunk {
	var ranges []opRange
	for idx, op := range ops {
		if op.Type == OpContext {
			continue
		}
		start := max(0, idx-contextLines)
		end := min(len(ops)-1, idx+contextLines)
		if n := len(ranges); n > 0 && start <= ranges[n-1].end+1 {
			ranges[n-1].end = max(ranges[n-1].end, end)
			continue
		}
		ranges = append(ranges, opRange{start: start, end: end})
	}

	hunks := make([]Hunk, 0, len(ranges))
	for _, r := range ranges {
		oldStart, newStart := 1, 1
		for _, op := range ops[:r.start] {
			if op.Type != OpAddition {
				oldStart++
			}
			if op.Type != OpDeletion {
				newStart++
			}
		}

		oldLine, newLine := oldStart, newStart
		lines := make([]Line, 0, r.end-r.start+1)
		for _, op := range ops[r.start : r.end+1] {
			switch op.Type {
			case OpContext:
				lines = append(lines, Line{
					Type:          LineContext,
					Content:       " " + op.Content,
					OldLineNumber: intPtr(oldLine),
					NewLineNumber: intPtr(newLine),
				})
				oldLine++
				newLine++
			case OpDeletion:
				lines = append(lines, Line{
					Type:          LineDeletion,
					Content:       "-" + op.Content,
					OldLineNumber: intPtr(oldLine),
				})
				oldLine++
			case OpAddition:
				lines = append(lines, Line{
					Type:          LineAddition,
					Content:       "+" + op.Content,
					NewLineNumber: intPtr(newLine),
				})
				newLine++
			}
		}

		hunks = append(hunks, Hunk{
			FilePath: filePath,
			OldStart: oldStart,
			NewStart: newStart,
			Lines:    lines,
		})
	}
	return hunks
}

// ComputeFileChange diffs two snapshots of filePath. Nil content means the
// file did not exist on that side.
func ComputeFileChange(differ Differ, filePath string, oldContent, newContent *string) FileChange {
	if differ == nil {
		differ = LCSDiffer{}
	}
	ops := differ.Ops(SplitLines(oldContent), SplitLines(newContent))
	additions, deletions := Count(ops)
	return FileChange{
		FilePath:  filePath,
		Additions: additions,
		Deletions: deletions,
		Hunks:     BuildHunks(filePath, ops, HunkContextLines),
	}
}

func intPtr(v int) *int { return &v }
