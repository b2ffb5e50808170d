package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/martinemde/kodit/agentloop"
	"github.com/martinemde/kodit/diff"
	"github.com/martinemde/kodit/todo"
)

// turnPrinter streams a turn to the terminal: assistant text on out, tool
// progress and todos on status.
type turnPrinter struct {
	out      io.Writer
	status   io.Writer
	printed  int
	midLine  bool
	statuses map[string]agentloop.ToolCallStatus
}

func newTurnPrinter(out, status io.Writer) *turnPrinter {
	return &turnPrinter{out: out, status: status, statuses: map[string]agentloop.ToolCallStatus{}}
}

func (p *turnPrinter) callbacks() agentloop.TurnCallbacks {
	return agentloop.TurnCallbacks{
		OnText:      p.text,
		OnToolCalls: p.toolCalls,
		OnTodos: func(items []todo.Item) {
			p.statusLine("todos: %s", todo.Summarize(items))
		},
	}
}

// text receives the accumulated text so far and prints only the new tail.
func (p *turnPrinter) text(total string) {
	if len(total) <= p.printed {
		return
	}
	chunk := total[p.printed:]
	p.printed = len(total)
	fmt.Fprint(p.out, chunk)
	p.midLine = !strings.HasSuffix(chunk, "\n")
}

func (p *turnPrinter) toolCalls(calls []agentloop.ToolCall) {
	for _, c := range calls {
		if p.statuses[c.ID] == c.Status {
			continue
		}
		p.statuses[c.ID] = c.Status
		switch c.Status {
		case agentloop.ToolCallCompleted:
			p.statusLine("✓ %s", c.Name)
		case agentloop.ToolCallFailed:
			p.statusLine("✗ %s: %s", c.Name, c.Result)
		}
	}
}

func (p *turnPrinter) statusLine(format string, args ...any) {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
	fmt.Fprintf(p.status, "  "+format+"\n", args...)
}

func (p *turnPrinter) finish() {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}

// printStats renders diff stats as unified-style hunks.
func printStats(w io.Writer, stats diff.Stats) {
	for _, fc := range stats.FileChanges {
		fmt.Fprintf(w, "%s  +%d -%d\n", fc.FilePath, fc.Additions, fc.Deletions)
		for _, h := range fc.Hunks {
			fmt.Fprintf(w, "@@ -%d +%d @@\n", h.OldStart, h.NewStart)
			for _, line := range h.Lines {
				fmt.Fprintln(w, line.Content)
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d file(s) changed, +%d -%d\n", stats.UnstagedCount, stats.TotalAdditions, stats.TotalDeletions)
}
