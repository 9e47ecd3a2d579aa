package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool parameter limits, preventing resource exhaustion from a malicious
// or malfunctioning LLM response (grounded on
// internal/agent/tool_registry.go's MaxToolNameLength/MaxToolParamsSize).
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20 // 10MB
)

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Tool is one entry in the catalog spec.md §4.2 describes: a name, a
// description, a JSON-Schema-shaped argument description, and an
// executor function. Concrete tools are defined in builtin_tools.go.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolRegistry is the thread-safe catalog of tools available to a run,
// grounded on internal/agent/tool_registry.go's map+RWMutex shape, with
// JSON-Schema validation of arguments added before dispatch (spec.md
// §4.6 Tool Executor step 1, "parse arguments_json").
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool, replacing any existing tool of the same name,
// and compiles its schema for later argument validation. A tool whose
// schema fails to compile is still registered; validation is then
// skipped for it so a malformed schema never makes the tool itself
// unreachable.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool

	if raw := tool.Schema(); len(raw) > 0 {
		compiler := jsonschema.NewCompiler()
		resourceName := tool.Name() + ".schema.json"
		if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err == nil {
			if schema, err := compiler.Compile(resourceName); err == nil {
				r.schemas[tool.Name()] = schema
			}
		}
	}
}

// Unregister removes a tool by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schemas, name)
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool, for passing to an LLM request as
// its available tool list.
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// ValidateArgs parses and schema-validates a tool call's raw JSON
// arguments, returning the classified E.parse error on failure (spec.md
// §4.6 step 1 / §7 E.parse).
func (r *ToolRegistry) ValidateArgs(name string, params json.RawMessage) error {
	if len(name) > MaxToolNameLength {
		return fmt.Errorf("%w: tool name exceeds %d characters", ErrParse, MaxToolNameLength)
	}
	if len(params) > MaxToolParamsSize {
		return fmt.Errorf("%w: tool parameters exceed %d bytes", ErrParse, MaxToolParamsSize)
	}

	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()

	var decoded any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &decoded); err != nil {
			return fmt.Errorf("%w: %v", ErrParse, err)
		}
	}
	if !ok {
		return nil
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("%w: arguments do not match schema: %v", ErrParse, err)
	}
	return nil
}

// Execute runs a tool by name with validated JSON parameters.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (*ToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: tool not found: %s", ErrParse, name)
	}
	return tool.Execute(ctx, params)
}
