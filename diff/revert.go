package diff

import (
	"context"
	"fmt"

	"github.com/martinemde/kodit/workspace"
)

// FileWriter is the subset of the workspace executor that reverting needs.
type FileWriter interface {
	WriteFile(ctx context.Context, workspacePath, path, content string, createDirs bool) (*workspace.WriteResult, error)
	DeleteFile(ctx context.Context, workspacePath, path string, allowMissing *bool) (*workspace.DeleteResult, error)
}

// RevertAll restores every file a thread changed to its baseline content,
// deleting files the thread created, and then clears the thread's records.
// It returns the reverted paths in order.
func RevertAll(ctx context.Context, store Storage, fs FileWriter, workspacePath, threadID string) ([]string, error) {
	records, err := store.List(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("list diffs: %w", err)
	}

	allowMissing := true
	var reverted []string
	for _, snap := range Aggregate(records) {
		if snap.OldContent == nil {
			if _, err := fs.DeleteFile(ctx, workspacePath, snap.FilePath, &allowMissing); err != nil {
				return reverted, fmt.Errorf("delete %s: %w", snap.FilePath, err)
			}
		} else {
			if _, err := fs.WriteFile(ctx, workspacePath, snap.FilePath, *snap.OldContent, true); err != nil {
				return reverted, fmt.Errorf("restore %s: %w", snap.FilePath, err)
			}
		}
		reverted = append(reverted, snap.FilePath)
	}

	if err := store.Clear(ctx, threadID); err != nil {
		return reverted, fmt.Errorf("clear diffs: %w", err)
	}
	return reverted, nil
}

// StorageRecorder records single-file edits into a Storage under one
// thread.
type StorageRecorder struct {
	Store    Storage
	ThreadID string
}

// Record saves an "Edited <path>" record holding one snapshot change.
func (r StorageRecorder) Record(ctx context.Context, path, oldContent, newContent string) error {
	if r.Store == nil || r.ThreadID == "" {
		return nil
	}
	_, err := r.Store.Save(ctx, SaveInput{
		ThreadID: r.ThreadID,
		Summary:  "Edited " + path,
		Files: []SnapshotChange{{
			FilePath:   path,
			OldContent: &oldContent,
			NewContent: &newContent,
		}},
	})
	return err
}
