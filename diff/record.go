package diff

import (
	"context"
	"sort"
	"time"
)

// ChangeType describes how a snapshot change affected its file.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeDeleted  ChangeType = "deleted"
	ChangeModified ChangeType = "modified"
)

// ClassifyChange derives the change type from which sides exist.
func ClassifyChange(oldContent, newContent *string) ChangeType {
	switch {
	case oldContent == nil && newContent != nil:
		return ChangeCreated
	case oldContent != nil && newContent == nil:
		return ChangeDeleted
	default:
		return ChangeModified
	}
}

// SnapshotChange is the before/after content of one file. A nil side means
// the file did not exist (before) or was removed (after).
type SnapshotChange struct {
	FilePath   string     `json:"filePath"`
	ChangeType ChangeType `json:"changeType,omitempty"`
	OldContent *string    `json:"oldContent"`
	NewContent *string    `json:"newContent"`
}

// Record groups the snapshot changes produced by one tool invocation.
type Record struct {
	ID        string           `json:"id"`
	ThreadID  string           `json:"threadId"`
	MessageID string           `json:"messageId,omitempty"`
	Summary   string           `json:"summary,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	Files     []SnapshotChange `json:"files"`
}

// SaveInput is the payload for Storage.Save.
type SaveInput struct {
	ThreadID  string
	MessageID string
	Summary   string
	Files     []SnapshotChange
}

// Storage persists diff records per thread.
type Storage interface {
	// Save stores a new record, assigning its id, change types, and
	// creation time.
	Save(ctx context.Context, in SaveInput) (Record, error)
	// List returns a thread's records sorted by creation time.
	List(ctx context.Context, threadID string) ([]Record, error)
	// Clear removes every record of a thread.
	Clear(ctx context.Context, threadID string) error
}

// Aggregate folds records into one snapshot per file: the earliest record's
// old content and the latest record's new content. Files with no net change
// are dropped. The result is sorted by path.
func Aggregate(records []Record) []SnapshotChange {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	byFile := make(map[string]*SnapshotChange)
	for _, rec := range sorted {
		for _, f := range rec.Files {
			existing, ok := byFile[f.FilePath]
			if !ok {
				byFile[f.FilePath] = &SnapshotChange{
					FilePath:   f.FilePath,
					OldContent: f.OldContent,
					NewContent: f.NewContent,
				}
				continue
			}
			existing.NewContent = f.NewContent
		}
	}

	out := make([]SnapshotChange, 0, len(byFile))
	for _, snap := range byFile {
		if sameContent(snap.OldContent, snap.NewContent) {
			continue
		}
		snap.ChangeType = ClassifyChange(snap.OldContent, snap.NewContent)
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

func sameContent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
