package diff

// Stats summarizes a thread's net file changes.
type Stats struct {
	FileChanges    []FileChange `json:"fileChanges"`
	TotalAdditions int          `json:"totalAdditions"`
	TotalDeletions int          `json:"totalDeletions"`
	UnstagedCount  int          `json:"unstagedCount"`
	StagedCount    int          `json:"stagedCount"`
}

// BuildStats folds records and diffs every file that changed. A file that
// went from absent to empty (or back) is not counted as a change. Nothing
// is staged, so StagedCount is always zero.
func BuildStats(records []Record, differ Differ) Stats {
	stats := Stats{FileChanges: []FileChange{}}
	for _, snap := range Aggregate(records) {
		if orEmpty(snap.OldContent) == orEmpty(snap.NewContent) {
			continue
		}
		fc := ComputeFileChange(differ, snap.FilePath, snap.OldContent, snap.NewContent)
		stats.TotalAdditions += fc.Additions
		stats.TotalDeletions += fc.Deletions
		stats.FileChanges = append(stats.FileChanges, fc)
	}
	stats.UnstagedCount = len(stats.FileChanges)
	return stats
}
