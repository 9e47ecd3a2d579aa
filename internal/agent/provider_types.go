package agent

import "context"

// LLMProvider is C7's contract (spec.md §4.7): encapsulate one
// backend's wire protocol behind a single streaming call, accumulating
// deltas into content/reasoning/tool_calls and delivering exactly one
// terminal ChatWithToolsResult through onDone, or exactly one error
// through onError. Grounded on the teacher's
// internal/agent/provider_types.go LLMProvider shape, generalized from
// a channel-returning Complete() to the spec's explicit
// callback-driven ChatWithToolsStream (closer to the wire protocol
// spec.md §6 describes: SSE choice-deltas accumulated by index).
type LLMProvider interface {
	// Name identifies the backend ("anthropic", "openai", "bedrock").
	Name() string

	// ChatWithToolsStream streams one completion. onChunk is called for
	// every partial text/reasoning delta; onToolCalls is called once,
	// immediately before onDone, with the fully-accumulated tool call
	// list (empty if none); onDone delivers the final result exactly
	// once; onError delivers a classified error exactly once instead
	// of onDone. The returned cancel func aborts the in-flight request
	// (spec.md §5 "cancellation... instructs the LLM client to cancel
	// its in-flight request").
	ChatWithToolsStream(
		ctx context.Context,
		req CompletionRequest,
		onChunk func(delta StreamDelta),
		onToolCalls func(calls []ToolCall),
		onDone func(result ChatWithToolsResult),
		onError func(err error),
	) (cancel func(), err error)
}

// CompletionRequest is one C7 request: the conversation so far, the
// tool catalog the model may call, and generation parameters.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
	Temperature float64
}

// ToolSpec is the LLM-facing shape of a tool: name, description, and
// JSON Schema, handed to the provider so it can advertise the tool to
// the model (distinct from the agent.Tool executor interface in
// tool_registry.go, which additionally knows how to run the tool).
type ToolSpec struct {
	Name        string
	Description string
	Schema      []byte
}

// StreamDelta is one incremental update delivered through onChunk.
type StreamDelta struct {
	Text      string
	Reasoning string
}

// ChatWithToolsResult is C7's single terminal delivery (spec.md §4.7):
// `{ content, reasoning?, tool_calls[] }`.
type ChatWithToolsResult struct {
	Content   string
	Reasoning string
	ToolCalls []ToolCall

	// InputTokens/OutputTokens feed the memory-compression token
	// accounting's sanity checks and telemetry; zero when a provider
	// doesn't report them.
	InputTokens  int
	OutputTokens int
}

// ProviderModel describes one model a provider exposes, primarily for
// config validation and context-length lookups (memory compression's
// 80%-of-context-length budget, spec.md §4.8.1).
type ProviderModel struct {
	ID          string
	ContextSize int
}
