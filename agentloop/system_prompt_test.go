package agentloop

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildSystemPromptIncludesProjectDocs(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "AGENTS.md"), []byte("Always run make lint."), 0o644); err != nil {
		t.Fatal(err)
	}

	prompt := BuildSystemPrompt(ws, "test-model")
	if !strings.HasPrefix(prompt, KoditSystemPrompt) {
		t.Error("prompt should start with the base instructions")
	}
	for _, want := range []string{"<environment>", "Workspace: " + ws, "Model: test-model", "Always run make lint."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestCollectPathHierarchy(t *testing.T) {
	root := filepath.Join("/", "repo")
	got := collectPathHierarchy(root, filepath.Join(root, "a", "b"))
	want := []string{root, filepath.Join(root, "a"), filepath.Join(root, "a", "b")}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dir %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
