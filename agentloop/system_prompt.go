package agentloop

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024

// KoditSystemPrompt is the base instruction given to the model.
const KoditSystemPrompt = `You are Kodit, an agentic coding assistant in Kodit CLI.

You are precise, safe, and concise. Solve coding tasks by using available tools when needed.

Tool policy:
- Use read_file to inspect relevant files before proposing edits.
- Use edit for focused changes only.
- Use shell for diagnostics, build, test, and git checks.
- Keep command workdir inside the project workspace.
- Never run destructive commands unless the user explicitly requests them.
- Track multi-step work with todo_write and todo_read.
- Use question when a requirement is ambiguous instead of guessing.

When uncertain, prefer reading files or running safe checks over guessing.
Explain outcomes briefly and clearly.`

// projectDocNames are loaded from every directory between the git root and
// the workspace.
var projectDocNames = []string{"AGENTS.md", "KODIT.md"}

// BuildSystemPrompt joins the base prompt, an environment block and any
// project instruction files found for workspacePath.
func BuildSystemPrompt(workspacePath, model string) string {
	parts := []string{KoditSystemPrompt, BuildEnvironmentContext(workspacePath, model)}
	if docs := DiscoverProjectDocs(workspacePath); docs != "" {
		parts = append(parts, "# Project Instructions\n\n"+docs)
	}
	return strings.Join(parts, "\n\n")
}

// BuildEnvironmentContext generates the structured environment context block.
func BuildEnvironmentContext(workspacePath, model string) string {
	branch := ""
	isGitRepo := isGitRepository(workspacePath)
	if isGitRepo {
		branch = gitBranch(workspacePath)
	}

	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Workspace: %s\n", workspacePath)
	fmt.Fprintf(&sb, "Is git repository: %v\n", isGitRepo)
	if branch != "" {
		fmt.Fprintf(&sb, "Git branch: %s\n", branch)
	}
	fmt.Fprintf(&sb, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

// DiscoverProjectDocs loads project instruction files from the git root
// (or the workspace when it is not a repository) down to the workspace.
// The combined size is capped at 32KB.
func DiscoverProjectDocs(workspacePath string) string {
	root := gitRoot(workspacePath)
	if root == "" {
		root = workspacePath
	}

	var docs []string
	totalBytes := 0
	for _, dir := range collectPathHierarchy(root, workspacePath) {
		for _, name := range projectDocNames {
			content, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				continue
			}

			remaining := maxProjectDocBytes - totalBytes
			if remaining <= 0 {
				docs = append(docs, "[Project instructions truncated at 32KB]")
				return strings.Join(docs, "\n\n---\n\n")
			}

			text := string(content)
			if len(text) > remaining {
				text = text[:remaining] + "\n[Project instructions truncated at 32KB]"
			}
			docs = append(docs, fmt.Sprintf("## %s (from %s)\n\n%s", name, dir, text))
			totalBytes += len(text)
		}
	}
	return strings.Join(docs, "\n\n---\n\n")
}

// collectPathHierarchy returns directories from root to target, inclusive.
func collectPathHierarchy(root, target string) []string {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if root == target {
		return []string{root}
	}

	dirs := []string{root}
	rel, err := filepath.Rel(root, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return dirs
	}
	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." {
			continue
		}
		current = filepath.Join(current, part)
		dirs = append(dirs, current)
	}
	return dirs
}

func isGitRepository(dir string) bool {
	return strings.TrimSpace(runGit(dir, "rev-parse", "--is-inside-work-tree")) == "true"
}

func gitRoot(dir string) string {
	return strings.TrimSpace(runGit(dir, "rev-parse", "--show-toplevel"))
}

func gitBranch(dir string) string {
	return strings.TrimSpace(runGit(dir, "rev-parse", "--abbrev-ref", "HEAD"))
}

func runGit(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}
