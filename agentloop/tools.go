package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/martinemde/kodit/unifiedllm"
)

// ToolExecutor runs a tool with its raw JSON arguments. The returned value
// is JSON-encoded before it is sent back to the model unless it is already
// a string.
type ToolExecutor func(ctx context.Context, arguments json.RawMessage) (any, error)

// RegisteredTool pairs a tool definition with its executor.
type RegisteredTool struct {
	Definition unifiedllm.ToolDefinition
	Executor   ToolExecutor
}

// ToolRegistry manages tool registration and lookup. Definitions are
// returned in registration order so requests are stable across steps.
type ToolRegistry struct {
	tools map[string]*RegisteredTool
	order []string
	mu    sync.RWMutex
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*RegisteredTool),
	}
}

// Register adds or replaces a tool in the registry.
func (r *ToolRegistry) Register(tool RegisteredTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Definition.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = &tool
}

// Get returns a registered tool by name, or nil if not found.
func (r *ToolRegistry) Get(name string) *RegisteredTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns all tool definitions for sending to the model.
func (r *ToolRegistry) Definitions() []unifiedllm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]unifiedllm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Names returns the names of all registered tools.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// GetStringArg extracts a string argument from parsed tool arguments.
func GetStringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// decodeArgs unmarshals tool arguments into T. Empty arguments decode to
// the zero value.
func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

var schemaReflector = &jsonschema.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
}

// inputSchema reflects T into the JSON Schema object used as a tool's
// parameters.
func inputSchema[T any]() map[string]any {
	schema := schemaReflector.Reflect(new(T))
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("agentloop: reflect tool schema: %v", err))
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		panic(fmt.Sprintf("agentloop: decode tool schema: %v", err))
	}
	delete(params, "$schema")
	delete(params, "$id")
	if _, ok := params["properties"]; !ok {
		params["properties"] = map[string]any{}
	}
	return params
}
