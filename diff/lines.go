// Package diff computes line-level changes between file snapshots and
// folds per-thread change records into a single before/after view.
package diff

import "strings"

// OpType classifies one line in an edit script.
type OpType string

const (
	OpContext  OpType = "context"
	OpAddition OpType = "addition"
	OpDeletion OpType = "deletion"
)

// Op is one line of an edit script.
type Op struct {
	Type    OpType
	Content string
}

// Differ turns two line sequences into an ordered edit script. Applying the
// context and addition ops in order to the old lines yields the new lines.
type Differ interface {
	Ops(oldLines, newLines []string) []Op
}

// SplitLines splits content on "\n". Nil and empty content have no lines.
func SplitLines(content *string) []string {
	if content == nil || *content == "" {
		return nil
	}
	return strings.Split(*content, "\n")
}

// LCSDiffer computes the edit script from a longest-common-subsequence
// table. Time and space are O(m*n).
type LCSDiffer struct{}

// Ops implements Differ.
func (LCSDiffer) Ops(oldLines, newLines []string) []Op {
	m, n := len(oldLines), len(newLines)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}

	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else {
				dp[i][j] = max(dp[i+1][j], dp[i][j+1])
			}
		}
	}

	ops := make([]Op, 0, m+n)
	i, j := 0, 0
	for i < m && j < n {
		if oldLines[i] == newLines[j] {
			ops = append(ops, Op{Type: OpContext, Content: oldLines[i]})
			i++
			j++
			continue
		}
		// Ties go to deletion so removed lines precede their replacements.
		if dp[i+1][j] >= dp[i][j+1] {
			ops = append(ops, Op{Type: OpDeletion, Content: oldLines[i]})
			i++
		} else {
			ops = append(ops, Op{Type: OpAddition, Content: newLines[j]})
			j++
		}
	}
	for ; i < m; i++ {
		ops = append(ops, Op{Type: OpDeletion, Content: oldLines[i]})
	}
	for ; j < n; j++ {
		ops = append(ops, Op{Type: OpAddition, Content: newLines[j]})
	}
	return ops
}

// Count tallies additions and deletions in an edit script.
func Count(ops []Op) (additions, deletions int) {
	for _, op := range ops {
		switch op.Type {
		case OpAddition:
			additions++
		case OpDeletion:
			deletions++
		}
	}
	return additions, deletions
}

// NewDiffer returns the differ registered under name ("lcs" or "myers").
// Unknown names fall back to LCS.
func NewDiffer(name string) Differ {
	if name == "myers" {
		return MyersDiffer{}
	}
	return LCSDiffer{}
}
