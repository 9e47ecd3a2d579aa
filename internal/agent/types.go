// Package agent implements the Agent Core run loop: it streams a task
// through an LLM, interprets tool calls, risk-gates and dispatches them
// against a terminal session, and tracks reflection state across the
// run. See SPEC_FULL.md for the full component breakdown (C6, C7, C8).
package agent

import (
	"encoding/json"
	"time"
)

// Role is the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one LLM-requested tool invocation, carried on an
// assistant Message.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry in the run's conversation history (spec.md §3).
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	// Reasoning is an opaque blob some providers require echoed back on
	// the next turn (spec.md §3 Message).
	Reasoning string `json:"reasoning,omitempty"`
}

// StepKind distinguishes AgentStep variants.
type StepKind string

const (
	StepThinking       StepKind = "thinking"
	StepMessage        StepKind = "message"
	StepToolCall       StepKind = "tool_call"
	StepToolResult     StepKind = "tool_result"
	StepConfirm        StepKind = "confirm"
	StepUserSupplement StepKind = "user_supplement"
	StepError          StepKind = "error"
)

// AgentStep is one append-only observability record (spec.md §3,
// invariant I1: monotonically timestamped, never mutated in meaning).
type AgentStep struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Kind        StepKind  `json:"kind"`
	Content     string    `json:"content"`
	ToolName    string    `json:"tool_name,omitempty"`
	ToolArgs    string    `json:"tool_args,omitempty"`
	ToolResult  string    `json:"tool_result,omitempty"`
	RiskLevel   string    `json:"risk_level,omitempty"`
	IsStreaming bool      `json:"is_streaming,omitempty"`
}

// ConfirmationDecision is the outcome of resolving a PendingConfirmation.
type ConfirmationDecision struct {
	Approved     bool
	ModifiedArgs json.RawMessage
}

// PendingConfirmation represents the single in-flight confirmation a run
// may have at any instant (spec.md §3 invariant I2).
type PendingConfirmation struct {
	AgentID    string
	ToolCallID string
	ToolName   string
	ToolArgs   json.RawMessage
	RiskLevel  string

	resolved chan ConfirmationDecision
}

// NewPendingConfirmation creates a confirmation awaiting exactly one
// resolution.
func NewPendingConfirmation(agentID, toolCallID, toolName string, args json.RawMessage, riskLevel string) *PendingConfirmation {
	return &PendingConfirmation{
		AgentID:    agentID,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		ToolArgs:   args,
		RiskLevel:  riskLevel,
		resolved:   make(chan ConfirmationDecision, 1),
	}
}

// Resolve delivers the human decision. Safe to call at most once.
func (p *PendingConfirmation) Resolve(d ConfirmationDecision) {
	p.resolved <- d
}

// Wait blocks until Resolve is called.
func (p *PendingConfirmation) Wait() ConfirmationDecision {
	return <-p.resolved
}

// Strategy biases the wording of reflection prompts; it never changes
// the tool set or the risk classifier (spec.md glossary).
type Strategy string

const (
	StrategyDefault      Strategy = "default"
	StrategyConservative Strategy = "conservative"
	StrategyAggressive   Strategy = "aggressive"
	StrategyDiagnostic   Strategy = "diagnostic"
)

// StrategySwitch records one strategy transition for the
// frequent_strategy_changes issue detector.
type StrategySwitch struct {
	At       time.Time
	From, To Strategy
	Reason   string
}

// QualityScore is the telemetry triad recomputed after every tool call
// (spec.md §4.8.2).
type QualityScore struct {
	SuccessRate  float64
	Efficiency   float64
	Adaptability float64
	Overall      float64
}

// ReflectionState tracks the run's self-monitoring counters (spec.md §3).
type ReflectionState struct {
	ToolCallCount       int
	ConsecutiveFailures int
	TotalFailures       int
	SuccessCount        int
	RecentCommands      []string // ring buffer, capacity 5
	LastReflectionAt    int      // tool_call_count at last reflection
	CurrentStrategy     Strategy
	StrategySwitches    []StrategySwitch
	DetectedIssues      []string
	AppliedFixes        []string
	Quality             QualityScore
}

// NewReflectionState returns a ReflectionState in the default strategy.
func NewReflectionState() *ReflectionState {
	return &ReflectionState{CurrentStrategy: StrategyDefault}
}

// RunConfig is the agent's mutable runtime configuration (spec.md §6).
type RunConfig struct {
	Enabled             bool
	MaxSteps            int // 0 = unbounded, spec.md Q2
	CommandTimeout      time.Duration
	AutoExecuteSafe     bool
	AutoExecuteModerate bool
	StrictMode          bool

	// ReflectionEvery and StrategyCooldown are the policy knobs spec.md
	// Q3 leaves unspecified; defaults match the numbers spec.md itself
	// names (every 10 tool calls, 30s cooldown). The loop passes
	// ReflectionEvery to ShouldReflect; StrategyCooldown is not read, and
	// MaybeSwitchStrategy always applies the fixed 30s reflectionCooldown.
	ReflectionEvery  int
	StrategyCooldown time.Duration
}

// DefaultRunConfig mirrors spec.md §6's stated defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Enabled:             true,
		MaxSteps:            0,
		CommandTimeout:      30 * time.Second,
		AutoExecuteSafe:     true,
		AutoExecuteModerate: true,
		StrictMode:          false,
		ReflectionEvery:     10,
		StrategyCooldown:    30 * time.Second,
	}
}

// RunStatus is the lifecycle phase of an AgentRun.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunFailed    RunStatus = "failed"
)

// AgentRun is the lifecycle container for one task (spec.md §3).
type AgentRun struct {
	ID         string
	TerminalID string
	Status     RunStatus

	Messages []Message
	Steps    []AgentStep

	Aborted             bool
	PendingConfirmation *PendingConfirmation
	PendingUserMessages []string

	Config     RunConfig
	Reflection *ReflectionState

	RealtimeOutputBuffer []byte
}

// NewAgentRun creates a run in the running state with a fresh
// reflection state and the given configuration.
func NewAgentRun(id, terminalID string, cfg RunConfig) *AgentRun {
	return &AgentRun{
		ID:         id,
		TerminalID: terminalID,
		Status:     RunRunning,
		Config:     cfg,
		Reflection: NewReflectionState(),
	}
}
