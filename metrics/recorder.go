// Package metrics records agent turn, model step and tool call metrics.
package metrics

import "time"

// Recorder receives observations from the agent runtime.
type Recorder interface {
	// ObserveStep records one model call of the tool loop.
	ObserveStep(model, finishReason string, inputTokens, outputTokens int, duration time.Duration)
	// ObserveToolCall records one tool execution; status is "completed"
	// or "failed".
	ObserveToolCall(tool, status string, duration time.Duration)
	// ObserveTurn records a finished turn; status is "ok", "error" or
	// "cancelled".
	ObserveTurn(status string, duration time.Duration)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

// Nop returns a recorder for when metrics are disabled.
func Nop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) ObserveStep(_, _ string, _, _ int, _ time.Duration) {}

func (NoopRecorder) ObserveToolCall(_, _ string, _ time.Duration) {}

func (NoopRecorder) ObserveTurn(_ string, _ time.Duration) {}
