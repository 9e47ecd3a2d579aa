package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentcore/shellpilot/internal/terminal"
)

type mockTool struct {
	name     string
	schema   json.RawMessage
	execFunc func(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

func (m *mockTool) Name() string            { return m.name }
func (m *mockTool) Description() string     { return "mock tool" }
func (m *mockTool) Schema() json.RawMessage { return m.schema }
func (m *mockTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, params)
	}
	return &ToolResult{Content: "ok"}, nil
}

func newTestRun(cfg RunConfig) *AgentRun {
	return &AgentRun{ID: "run-1", Config: cfg, Reflection: NewReflectionState()}
}

func collectingCallbacks() (Callbacks, *[]AgentStep) {
	steps := &[]AgentStep{}
	return Callbacks{
		AppendStep: func(s AgentStep) { *steps = append(*steps, s) },
		HostID:     func() string { return "host-1" },
		IsAborted:  func() bool { return false },
	}, steps
}

func TestDispatch_PlainToolRoutesThroughRegistry(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&mockTool{name: "remember_info", schema: json.RawMessage(`{}`)})
	exec := NewExecutor(registry, &RunEnvironment{})

	run := newTestRun(DefaultRunConfig())
	cb, steps := collectingCallbacks()

	result := exec.Dispatch(context.Background(), run, ToolCall{ID: "c1", Name: "remember_info", Arguments: json.RawMessage(`{}`)}, cb)
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if result.Content != "ok" {
		t.Errorf("Content = %q, want ok", result.Content)
	}

	var sawCall, sawResult bool
	for _, s := range *steps {
		if s.Kind == StepToolCall {
			sawCall = true
		}
		if s.Kind == StepToolResult {
			sawResult = true
		}
	}
	if !sawCall || !sawResult {
		t.Errorf("expected both tool_call and tool_result steps, got %+v", *steps)
	}
}

func TestDispatch_AbortedRunShortCircuits(t *testing.T) {
	registry := NewToolRegistry()
	exec := NewExecutor(registry, &RunEnvironment{})
	run := newTestRun(DefaultRunConfig())

	cb := Callbacks{IsAborted: func() bool { return true }}
	result := exec.Dispatch(context.Background(), run, ToolCall{ID: "c1", Name: "anything"}, cb)
	if !result.IsError {
		t.Error("expected an error result for an aborted run")
	}
}

func TestDispatch_ExecuteCommandParseFailure(t *testing.T) {
	registry := NewToolRegistry()
	exec := NewExecutor(registry, &RunEnvironment{})
	run := newTestRun(DefaultRunConfig())
	cb, _ := collectingCallbacks()

	result := exec.Dispatch(context.Background(), run, ToolCall{ID: "c1", Name: "execute_command", Arguments: json.RawMessage(`not json`)}, cb)
	if !result.IsError {
		t.Error("expected a parse-failure error result")
	}
}

func TestDispatch_WriteFileAlwaysRequestsConfirmation(t *testing.T) {
	registry := NewToolRegistry()
	exec := NewExecutor(registry, &RunEnvironment{})
	run := newTestRun(DefaultRunConfig()) // auto_execute_safe/moderate both true

	var requested bool
	cb := Callbacks{
		AppendStep: func(AgentStep) {},
		IsAborted:  func() bool { return false },
		HostID:     func() string { return "host-1" },
		RequestConfirmation: func(pc *PendingConfirmation) ConfirmationDecision {
			requested = true
			if pc.ToolName != "write_file" {
				t.Errorf("confirmation raised for %q, want write_file", pc.ToolName)
			}
			return ConfirmationDecision{Approved: false}
		},
	}

	result := exec.Dispatch(context.Background(), run, ToolCall{ID: "c1", Name: "write_file", Arguments: json.RawMessage(`{"path":"a.txt","content":"hi"}`)}, cb)
	if !requested {
		t.Error("write_file must always request confirmation, even with permissive config")
	}
	if !result.IsError {
		t.Error("rejected write_file should return an error result")
	}
}

func TestDispatch_SafeCommandSkipsConfirmationByDefault(t *testing.T) {
	registry := NewToolRegistry()
	env := &RunEnvironment{}
	exec := NewExecutor(registry, env)
	run := newTestRun(DefaultRunConfig())

	var requested bool
	cb := Callbacks{
		AppendStep: func(AgentStep) {},
		IsAborted:  func() bool { return false },
		RequestConfirmation: func(pc *PendingConfirmation) ConfirmationDecision {
			requested = true
			return ConfirmationDecision{Approved: true}
		},
	}

	result := exec.Dispatch(context.Background(), run, ToolCall{ID: "c1", Name: "execute_command", Arguments: json.RawMessage(`{"command":"ls -la"}`)}, cb)
	if requested {
		t.Error("a safe command under default config should not require confirmation")
	}
	_ = result
}

func TestDispatch_StrictModeAlwaysConfirms(t *testing.T) {
	registry := NewToolRegistry()
	exec := NewExecutor(registry, &RunEnvironment{})
	cfg := DefaultRunConfig()
	cfg.StrictMode = true
	run := newTestRun(cfg)

	var requested bool
	cb := Callbacks{
		AppendStep: func(AgentStep) {},
		IsAborted:  func() bool { return false },
		RequestConfirmation: func(pc *PendingConfirmation) ConfirmationDecision {
			requested = true
			return ConfirmationDecision{Approved: true}
		},
	}

	exec.Dispatch(context.Background(), run, ToolCall{ID: "c1", Name: "execute_command", Arguments: json.RawMessage(`{"command":"ls -la"}`)}, cb)
	if !requested {
		t.Error("strict_mode must require confirmation even for a safe command")
	}
}

func TestNeedsConfirmation_Formula(t *testing.T) {
	base := DefaultRunConfig()

	strict := base
	strict.StrictMode = true
	if !needsConfirmation(strict, "safe") {
		t.Error("strict_mode should always confirm")
	}

	if !needsConfirmation(base, "dangerous") {
		t.Error("dangerous should always confirm")
	}

	permissive := base
	if needsConfirmation(permissive, "moderate") {
		t.Error("moderate with auto_execute_moderate=true should not confirm")
	}
	permissive.AutoExecuteModerate = false
	if !needsConfirmation(permissive, "moderate") {
		t.Error("moderate with auto_execute_moderate=false should confirm")
	}

	if needsConfirmation(base, "safe") {
		t.Error("safe with auto_execute_safe=true should not confirm")
	}
}

func TestExecutor_ApprovalStoreRecordsDecision(t *testing.T) {
	registry := NewToolRegistry()
	exec := NewExecutor(registry, &RunEnvironment{})
	store := NewMemoryApprovalStore()
	exec.SetApprovalStore(store)

	cfg := DefaultRunConfig()
	cfg.StrictMode = true
	run := newTestRun(cfg)

	cb := Callbacks{
		AppendStep: func(AgentStep) {},
		IsAborted:  func() bool { return false },
		HostID:     func() string { return "host-1" },
		RequestConfirmation: func(pc *PendingConfirmation) ConfirmationDecision {
			return ConfirmationDecision{Approved: true}
		},
	}

	exec.Dispatch(context.Background(), run, ToolCall{ID: "c1", Name: "execute_command", Arguments: json.RawMessage(`{"command":"ls -la"}`)}, cb)

	pending, err := store.ListPending(context.Background(), "host-1")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected the approved request to no longer be pending, got %+v", pending)
	}
}

func TestDispatch_PanicIsRecoveredAsInternalError(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&mockTool{
		name: "boom",
		execFunc: func(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
			panic("kaboom")
		},
	})
	exec := NewExecutor(registry, &RunEnvironment{})
	run := newTestRun(DefaultRunConfig())
	cb, _ := collectingCallbacks()

	result := exec.Dispatch(context.Background(), run, ToolCall{ID: "c1", Name: "boom"}, cb)
	if !result.IsError {
		t.Fatal("expected panic to be converted into an error result")
	}
}

func TestExecutor_CommandTimeoutDefaultsWhenUnset(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.CommandTimeout = 0
	run := newTestRun(cfg)
	if run.Config.CommandTimeout != 0 {
		t.Fatal("sanity: test setup expected zero timeout")
	}

	driver := &timeoutRecordingDriver{}
	exec := NewExecutor(NewToolRegistry(), &RunEnvironment{Driver: driver})
	cb, _ := collectingCallbacks()
	result := exec.Dispatch(context.Background(), run, ToolCall{ID: "c1", Name: "execute_command", Arguments: json.RawMessage(`{"command":"ls"}`)}, cb)
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if driver.gotTimeout != 30*time.Second {
		t.Errorf("timeout passed to driver = %v, want 30s", driver.gotTimeout)
	}
}

// timeoutRecordingDriver is a terminal.Driver that records the timeout
// ExecuteInTerminal receives.
type timeoutRecordingDriver struct {
	gotTimeout time.Duration
}

func (d *timeoutRecordingDriver) Kind() terminal.Kind                  { return terminal.KindLocal }
func (d *timeoutRecordingDriver) SessionID() string                    { return "session-1" }
func (d *timeoutRecordingDriver) Write(context.Context, []byte) error { return nil }
func (d *timeoutRecordingDriver) Resize(int, int) error                { return nil }
func (d *timeoutRecordingDriver) OnData(terminal.DataHandler) terminal.Unsubscribe {
	return func() {}
}
func (d *timeoutRecordingDriver) ExecuteInTerminal(_ context.Context, _ string, timeout time.Duration) (terminal.ExecResult, error) {
	d.gotTimeout = timeout
	return terminal.ExecResult{}, nil
}
func (d *timeoutRecordingDriver) GetCWD(context.Context) (string, bool)           { return "", false }
func (d *timeoutRecordingDriver) GetTerminalStatus(context.Context) (bool, error) { return true, nil }
func (d *timeoutRecordingDriver) GetRemoteProcesses(context.Context) (terminal.RemoteProcesses, error) {
	return terminal.RemoteProcesses{}, nil
}
func (d *timeoutRecordingDriver) SendControl(context.Context, string) error { return nil }
func (d *timeoutRecordingDriver) Dispose() error                            { return nil }
