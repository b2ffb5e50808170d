package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func newWorkspace(t *testing.T) string {
	t.Helper()
	root, err := CanonicalizeWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	return root
}

func writeFixture(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadFileWindow(t *testing.T) {
	root := newWorkspace(t)
	writeFixture(t, root, "a.txt", "one\r\ntwo\nthree\nfour\n")
	l := NewLocal(nil)

	res, err := l.ReadFile(context.Background(), root, "a.txt", intPtr(1), intPtr(2))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if res.Content != "two\nthree" {
		t.Errorf("content = %q", res.Content)
	}
	if res.StartLine != 1 || res.EndLine != 3 || res.TotalLines != 4 || !res.Truncated {
		t.Errorf("window = %+v", res)
	}
	if res.Path != filepath.Join(root, "a.txt") {
		t.Errorf("path = %q", res.Path)
	}

	res, err = l.ReadFile(context.Background(), root, "a.txt", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "one\ntwo\nthree\nfour" || res.Truncated {
		t.Errorf("full read = %+v", res)
	}
}

func TestReadFileOffsetPastEnd(t *testing.T) {
	root := newWorkspace(t)
	writeFixture(t, root, "a.txt", "x\ny\n")
	res, err := NewLocal(nil).ReadFile(context.Background(), root, "a.txt", intPtr(10), intPtr(0))
	if err != nil {
		t.Fatal(err)
	}
	if res.StartLine != 2 || res.EndLine != 2 || res.Content != "" || res.Truncated {
		t.Errorf("got %+v", res)
	}
}

func TestReadFileEmpty(t *testing.T) {
	root := newWorkspace(t)
	writeFixture(t, root, "empty.txt", "")
	res, err := NewLocal(nil).ReadFile(context.Background(), root, "empty.txt", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalLines != 0 || res.Content != "" {
		t.Errorf("got %+v", res)
	}
}

func TestReadFileErrors(t *testing.T) {
	root := newWorkspace(t)
	l := NewLocal(nil)
	if _, err := l.ReadFile(context.Background(), root, "missing.txt", nil, nil); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("missing: err = %v", err)
	}
	if _, err := l.ReadFile(context.Background(), "relative/path", "a.txt", nil, nil); !errors.Is(err, ErrWorkspaceRelative) {
		t.Errorf("relative workspace: err = %v", err)
	}

	outside := t.TempDir()
	writeFixture(t, outside, "secret.txt", "s")
	if _, err := l.ReadFile(context.Background(), root, filepath.Join(outside, "secret.txt"), nil, nil); !errors.Is(err, ErrOutsideWorkspace) {
		t.Errorf("outside: err = %v", err)
	}
}

func TestReadFileSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := newWorkspace(t)
	outside := t.TempDir()
	writeFixture(t, outside, "secret.txt", "s")
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLocal(nil).ReadFile(context.Background(), root, "link.txt", nil, nil); !errors.Is(err, ErrOutsideWorkspace) {
		t.Errorf("err = %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	root := newWorkspace(t)
	l := NewLocal(nil)

	if _, err := l.WriteFile(context.Background(), root, "nested/dir/b.txt", "hi", false); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("without createDirs: err = %v", err)
	}

	res, err := l.WriteFile(context.Background(), root, "nested/dir/b.txt", "hi", true)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if res.BytesWritten != 2 {
		t.Errorf("bytes = %d", res.BytesWritten)
	}
	data, err := os.ReadFile(filepath.Join(root, "nested", "dir", "b.txt"))
	if err != nil || string(data) != "hi" {
		t.Errorf("file = %q, %v", data, err)
	}
}

func TestWriteFileRejectsTraversal(t *testing.T) {
	root := newWorkspace(t)
	_, err := NewLocal(nil).WriteFile(context.Background(), root, "../escape.txt", "x", true)
	if !errors.Is(err, ErrParentTraversal) {
		t.Errorf("err = %v", err)
	}
}

func TestDeleteFile(t *testing.T) {
	root := newWorkspace(t)
	writeFixture(t, root, "c.txt", "c")
	l := NewLocal(nil)

	res, err := l.DeleteFile(context.Background(), root, "c.txt", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Deleted {
		t.Error("expected Deleted")
	}
	if _, err := os.Stat(filepath.Join(root, "c.txt")); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}

	res, err = l.DeleteFile(context.Background(), root, "c.txt", nil)
	if err != nil {
		t.Fatalf("missing with default allowMissing: %v", err)
	}
	if res.Deleted {
		t.Error("missing file reported as deleted")
	}

	if _, err := l.DeleteFile(context.Background(), root, "c.txt", boolPtr(false)); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("strict missing: err = %v", err)
	}

	if err := os.Mkdir(filepath.Join(root, "dir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := l.DeleteFile(context.Background(), root, "dir", nil); !errors.Is(err, ErrNotAFile) {
		t.Errorf("directory: err = %v", err)
	}
}

func TestRunCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	root := newWorkspace(t)
	writeFixture(t, root, "sub/marker", "")
	l := NewLocal(nil)

	res, err := l.RunCommand(context.Background(), root, "echo out; echo err 1>&2; exit 3", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 3 || strings.TrimSpace(res.Stdout) != "out" || strings.TrimSpace(res.Stderr) != "err" || res.TimedOut {
		t.Errorf("got %+v", res)
	}
	if res.Workdir != root {
		t.Errorf("workdir = %q", res.Workdir)
	}

	res, err = l.RunCommand(context.Background(), root, "ls", strPtr("sub"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(res.Stdout) != "marker" {
		t.Errorf("ls in sub = %q", res.Stdout)
	}

	if _, err := l.RunCommand(context.Background(), root, "true", strPtr("sub/marker"), nil); !errors.Is(err, ErrNotADirectory) {
		t.Errorf("file workdir: err = %v", err)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	root := newWorkspace(t)
	res, err := NewLocal(nil).RunCommand(context.Background(), root, "sleep 5", nil, intPtr(150))
	if err != nil {
		t.Fatal(err)
	}
	if !res.TimedOut || res.ExitCode != TimeoutExitCode {
		t.Errorf("got %+v", res)
	}
}

func TestRunCommandFiltersSecrets(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	t.Setenv("KODIT_TEST_API_KEY", "sk-leak")
	root := newWorkspace(t)
	res, err := NewLocal(nil).RunCommand(context.Background(), root, "echo \"[$KODIT_TEST_API_KEY]\"", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(res.Stdout) != "[]" {
		t.Errorf("secret leaked: %q", res.Stdout)
	}
}

func TestClampTimeout(t *testing.T) {
	tests := []struct {
		in   *int
		want int
	}{
		{nil, DefaultCommandTimeoutMs},
		{intPtr(5), MinCommandTimeoutMs},
		{intPtr(1_000_000), MaxCommandTimeoutMs},
		{intPtr(5000), 5000},
	}
	for _, tt := range tests {
		if got := ClampTimeout(tt.in); got != tt.want {
			t.Errorf("ClampTimeout(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCommandEnvironment(t *testing.T) {
	got := commandEnvironment([]string{
		"PATH=/bin",
		"OPENAI_API_KEY=x",
		"GITHUB_TOKEN=y",
		"EDITOR=vi",
		"malformed",
	})
	want := []string{"PATH=/bin", "EDITOR=vi"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}
