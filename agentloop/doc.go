// Package agentloop runs a coding agent against a workspace.
//
// A turn has two halves connected by an unbuffered channel of Part values.
// The ToolLoopAgent is the producer: it streams a model response through
// unifiedllm.Client, executes the tool calls the model asked for one at a
// time, feeds the results back and repeats until the model answers without
// tools or the step budget is spent. The Runtime is the consumer: it folds
// the parts into the turn's text, reasoning and ToolCall list and reports
// every change through TurnCallbacks and the session EventEmitter.
//
// Session ties the two together for one thread. It owns the todo.Store and
// question.Bridge the workspace tools close over, persists the user and
// agent messages, and always releases a pending question when a turn ends.
//
//	sess := agentloop.NewSession(agentloop.SessionConfig{
//	    Provider:      "openrouter",
//	    Model:         "anthropic/claude-sonnet-4",
//	    WorkspacePath: "/path/to/project",
//	}, agentloop.Dependencies{
//	    Client:   client,
//	    Executor: workspace.NewLocal(logger),
//	})
//	defer sess.Close()
//
//	result, err := sess.Submit(ctx, "Add a README", agentloop.TurnCallbacks{
//	    OnText: func(text string) { fmt.Print("\r", text) },
//	})
package agentloop
