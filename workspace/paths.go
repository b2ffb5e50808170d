package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrOutsideWorkspace  = errors.New("path is outside workspace")
	ErrParentTraversal   = errors.New("parent directory traversal is not allowed")
	ErrPathNotFound      = errors.New("path does not exist")
	ErrNotAFile          = errors.New("path is not a file")
	ErrNotADirectory     = errors.New("workdir must be an existing directory")
	ErrParentNotFound    = errors.New("parent directory does not exist")
	ErrWorkspaceRelative = errors.New("workspace path must be absolute")
)

// CanonicalizeWorkspace resolves symlinks in an absolute, existing
// workspace path.
func CanonicalizeWorkspace(workspacePath string) (string, error) {
	if !filepath.IsAbs(workspacePath) {
		return "", ErrWorkspaceRelative
	}
	if _, err := os.Stat(workspacePath); err != nil {
		return "", fmt.Errorf("workspace path does not exist: %w", err)
	}
	root, err := filepath.EvalSymlinks(workspacePath)
	if err != nil {
		return "", fmt.Errorf("canonicalize workspace: %w", err)
	}
	return filepath.Clean(root), nil
}

// ResolvePath resolves rawPath against root. Existing paths are followed
// through symlinks and must land inside root. Missing paths are accepted
// only when allowMissing is set; they may not contain ".." and their
// nearest existing ancestor must be inside root.
func ResolvePath(root, rawPath string, allowMissing bool) (string, error) {
	candidate := rawPath
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, rawPath)
	}

	if _, err := os.Lstat(candidate); err == nil {
		canonical, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", rawPath, err)
		}
		if !within(root, canonical) {
			return "", ErrOutsideWorkspace
		}
		return canonical, nil
	}

	if !allowMissing {
		return "", ErrPathNotFound
	}

	for _, part := range strings.Split(filepath.ToSlash(rawPath), "/") {
		if part == ".." {
			return "", ErrParentTraversal
		}
	}

	current := filepath.Clean(candidate)
	for {
		if _, err := os.Stat(current); err == nil {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("could not resolve parent of %s", rawPath)
		}
		current = parent
	}

	existing, err := filepath.EvalSymlinks(current)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", rawPath, err)
	}
	if !within(root, existing) {
		return "", ErrOutsideWorkspace
	}
	return filepath.Clean(candidate), nil
}

// ResolveWorkdir resolves an optional working directory, defaulting to root.
func ResolveWorkdir(root string, workdir *string) (string, error) {
	desired := root
	if workdir != nil && *workdir != "" {
		desired = *workdir
	}
	resolved, err := ResolvePath(root, desired, false)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", ErrNotADirectory
	}
	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
