package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/martinemde/kodit/question"
)

// answerQuestions resolves every question set the bridge publishes. When
// interactive, each question is printed to out and answered from in;
// otherwise questions get empty answers so the turn can continue. The
// returned function stops answering.
func answerQuestions(ctx context.Context, bridge *question.Bridge, in io.Reader, out io.Writer, interactive bool) func() {
	changed := make(chan struct{}, 1)
	unsubscribe := bridge.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	reader := bufio.NewReader(in)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-changed:
			}

			id, pending := bridge.PendingSet()
			if pending == nil {
				continue
			}
			answers := make([]question.Answer, len(pending))
			for i, q := range pending {
				answers[i] = question.Answer{Question: q.Question, Answers: []string{}}
				if interactive {
					answers[i].Answers = promptQuestion(reader, out, q)
				}
			}
			if !bridge.AnswerSet(id, answers) {
				// The set was replaced or cleared while we were reading.
				select {
				case changed <- struct{}{}:
				default:
				}
			}
		}
	}()

	return func() {
		unsubscribe()
		close(done)
	}
}

func promptQuestion(r *bufio.Reader, out io.Writer, q question.Input) []string {
	fmt.Fprintln(out)
	if q.Header != "" {
		fmt.Fprintf(out, "[%s] ", q.Header)
	}
	fmt.Fprintln(out, q.Question)
	for i, opt := range q.Options {
		if opt.Description != "" {
			fmt.Fprintf(out, "  %d. %s - %s\n", i+1, opt.Label, opt.Description)
		} else {
			fmt.Fprintf(out, "  %d. %s\n", i+1, opt.Label)
		}
	}
	fmt.Fprint(out, answerHint(q))

	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return []string{}
	}
	return parseAnswer(q, line)
}

func answerHint(q question.Input) string {
	var ways []string
	if len(q.Options) > 0 {
		if q.AllowsMultiple() {
			ways = append(ways, "numbers separated by commas")
		} else {
			ways = append(ways, "a number")
		}
	}
	if q.AllowsCustom() {
		ways = append(ways, "your own answer")
	}
	if len(ways) == 0 {
		return "> "
	}
	return "Answer with " + strings.Join(ways, " or ") + ": "
}

// parseAnswer maps option numbers to their labels. Anything else is kept
// verbatim when custom answers are allowed and dropped otherwise.
func parseAnswer(q question.Input, line string) []string {
	line = strings.TrimSpace(line)
	answers := []string{}
	if line == "" {
		return answers
	}

	if !q.AllowsMultiple() {
		if label, ok := optionLabel(q, line); ok {
			return append(answers, label)
		}
		if q.AllowsCustom() {
			return append(answers, line)
		}
		return answers
	}

	for _, field := range strings.Split(line, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if label, ok := optionLabel(q, field); ok {
			answers = append(answers, label)
		} else if q.AllowsCustom() {
			answers = append(answers, field)
		}
	}
	return answers
}

func optionLabel(q question.Input, s string) (string, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > len(q.Options) {
		return "", false
	}
	return q.Options[n-1].Label, true
}
