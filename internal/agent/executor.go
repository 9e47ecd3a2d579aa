package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/agentcore/shellpilot/internal/risk"
)

// Executor is the Tool Executor (spec.md §4.6): it receives one tool
// call at a time, risk-gates execute_command and write_file through
// confirmation, applies AutoFix rewrites, dispatches to the terminal or
// to a built-in tool's raw Execute, and appends the AgentStep records
// that make the run observable.
//
// Grounded on the teacher's internal/agent/executor.go
// executeWithTimeout panic-recovery pattern, stripped of its
// parallel-semaphore/retry machinery — spec.md frames the executor as
// a single-call-at-a-time orchestrator holding direct callback access
// to steps, confirmation, host id, the abort flag, and the terminal
// driver, not a generic parallel dispatcher.
type Executor struct {
	registry *ToolRegistry
	env      *RunEnvironment
	cmdTool  *ExecuteCommandTool
	store    ApprovalStore
	metrics  *ExecutorMetrics
}

// NewExecutor builds an Executor around a populated tool registry and
// the run's live environment handles.
func NewExecutor(registry *ToolRegistry, env *RunEnvironment) *Executor {
	return &Executor{
		registry: registry,
		env:      env,
		cmdTool:  &ExecuteCommandTool{env: env},
	}
}

// SetApprovalStore attaches a durable audit log for confirmations this
// executor raises. Optional — requestConfirmation works without one.
func (e *Executor) SetApprovalStore(store ApprovalStore) {
	e.store = store
}

// SetMetrics attaches Prometheus instrumentation to this executor.
// Optional — Dispatch works without one.
func (e *Executor) SetMetrics(metrics *ExecutorMetrics) {
	e.metrics = metrics
}

// Callbacks bundles the hooks spec.md §4.6 says the executor needs:
// appending observability steps, blocking on a human confirmation
// decision, reading the current host id, and checking whether the run
// has been aborted mid-dispatch.
type Callbacks struct {
	AppendStep  func(AgentStep)
	HostID      func() string
	IsAborted   func() bool
	// RequestConfirmation installs pc as the run's single in-flight
	// PendingConfirmation and blocks until it is resolved.
	RequestConfirmation func(pc *PendingConfirmation) ConfirmationDecision
}

// Dispatch runs one tool call to completion and returns the ToolResult
// destined for the next tool-role Message. It never returns a Go error:
// every failure, including an abort and an argument parse failure, is
// reported as an IsError ToolResult per spec.md's normal error-channel
// convention.
func (e *Executor) Dispatch(ctx context.Context, run *AgentRun, call ToolCall, cb Callbacks) *ToolResult {
	if cb.IsAborted != nil && cb.IsAborted() {
		return &ToolResult{ToolCallID: call.ID, Content: "aborted by user", IsError: true}
	}

	start := time.Now()
	defer e.metrics.observeLatency(call.Name, start)

	switch call.Name {
	case "execute_command":
		return e.dispatchExecuteCommand(ctx, run, call, cb)
	case "write_file":
		return e.dispatchWriteFile(ctx, run, call, cb)
	case "read_file":
		return e.dispatchReadFile(ctx, call, cb)
	default:
		return e.dispatchPlain(ctx, call, cb, risk.Safe)
	}
}

func (e *Executor) dispatchExecuteCommand(ctx context.Context, run *AgentRun, call ToolCall, cb Callbacks) *ToolResult {
	var args executeCommandArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return e.parseFailure(call, cb, err)
	}
	command := args.Command

	level, handling := risk.Classify(command)
	e.metrics.observeRiskLevel(level)
	cb.appendStep(AgentStep{
		Kind:      StepToolCall,
		ToolName:  call.Name,
		ToolArgs:  string(call.Arguments),
		RiskLevel: string(level),
		Content:   fmt.Sprintf("execute_command: %s", command),
	})

	if handling.Kind == risk.HandlingBlock || level == risk.Blocked {
		msg := handling.Reason
		if msg == "" {
			msg = ErrBlocked.Error()
		}
		if handling.Hint != "" {
			msg += " (" + handling.Hint + ")"
		}
		cb.appendStep(AgentStep{Kind: StepError, ToolName: call.Name, Content: msg, RiskLevel: string(level)})
		return &ToolResult{ToolCallID: call.ID, Content: msg, IsError: true}
	}

	if handling.Kind == risk.HandlingAutoFix {
		cb.appendStep(AgentStep{
			Kind:     StepToolCall,
			ToolName: call.Name,
			Content:  fmt.Sprintf("auto-fixed %q -> %q", command, handling.Rewritten),
		})
		command = handling.Rewritten
	}

	if needsConfirmation(run.Config, level) {
		decision, rejected := e.requestConfirmation(run, call, string(level), cb)
		if rejected {
			cb.appendStep(AgentStep{Kind: StepConfirm, ToolName: call.Name, Content: "⛔ rejected"})
			return &ToolResult{ToolCallID: call.ID, Content: "command rejected by user", IsError: true}
		}
		if len(decision.ModifiedArgs) > 0 {
			var modified executeCommandArgs
			if err := json.Unmarshal(decision.ModifiedArgs, &modified); err == nil && modified.Command != "" {
				command = modified.Command
			}
		}
	}

	timeout := run.Config.CommandTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	result, err := e.safeRun(ctx, call, func() (*ToolResult, error) {
		return e.cmdTool.runRaw(ctx, command, timeout)
	})
	if err != nil {
		cb.appendStep(AgentStep{Kind: StepToolResult, ToolName: call.Name, ToolResult: err.Error(), RiskLevel: string(level)})
		return &ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	result.Content = SanitizeToolResult(result.Content)
	cb.appendStep(AgentStep{Kind: StepToolResult, ToolName: call.Name, ToolResult: result.Content, RiskLevel: string(level)})
	result.ToolCallID = call.ID
	return result
}

func (e *Executor) dispatchWriteFile(ctx context.Context, run *AgentRun, call ToolCall, cb Callbacks) *ToolResult {
	cb.appendStep(AgentStep{
		Kind:      StepToolCall,
		ToolName:  call.Name,
		ToolArgs:  string(call.Arguments),
		RiskLevel: string(risk.Moderate),
	})

	decision, rejected := e.requestConfirmation(run, call, string(risk.Moderate), cb)
	if rejected {
		cb.appendStep(AgentStep{Kind: StepConfirm, ToolName: call.Name, Content: "⛔ rejected"})
		return &ToolResult{ToolCallID: call.ID, Content: "write rejected by user", IsError: true}
	}

	args := call.Arguments
	if len(decision.ModifiedArgs) > 0 {
		args = decision.ModifiedArgs
	}

	tool := &WriteFileTool{}
	result, err := e.safeRun(ctx, call, func() (*ToolResult, error) { return tool.Execute(ctx, args) })
	if err != nil {
		cb.appendStep(AgentStep{Kind: StepToolResult, ToolName: call.Name, ToolResult: err.Error(), RiskLevel: string(risk.Moderate)})
		return &ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	result.Content = SanitizeToolResult(result.Content)
	cb.appendStep(AgentStep{Kind: StepToolResult, ToolName: call.Name, ToolResult: result.Content, RiskLevel: string(risk.Moderate)})
	result.ToolCallID = call.ID
	return result
}

func (e *Executor) dispatchReadFile(ctx context.Context, call ToolCall, cb Callbacks) *ToolResult {
	cb.appendStep(AgentStep{Kind: StepToolCall, ToolName: call.Name, ToolArgs: string(call.Arguments), RiskLevel: string(risk.Safe)})

	tool := &ReadFileTool{}
	result, err := e.safeRun(ctx, call, func() (*ToolResult, error) { return tool.Execute(ctx, call.Arguments) })
	if err != nil {
		cb.appendStep(AgentStep{Kind: StepToolResult, ToolName: call.Name, ToolResult: err.Error(), RiskLevel: string(risk.Safe)})
		return &ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}

	result.Content = SanitizeToolResult(result.Content)
	display := result.Content
	if len(display) > MaxReadFileStepDisplayChars {
		display = display[:MaxReadFileStepDisplayChars] + "… [truncated]"
	}
	cb.appendStep(AgentStep{Kind: StepToolResult, ToolName: call.Name, ToolResult: display, RiskLevel: string(risk.Safe)})
	result.ToolCallID = call.ID
	return result
}

// dispatchPlain handles get_terminal_context, check_terminal_status,
// send_control_key, and remember_info: all are classified safe, never
// require confirmation, and route straight through the registry's
// already-validated Tool.Execute.
func (e *Executor) dispatchPlain(ctx context.Context, call ToolCall, cb Callbacks, level risk.Level) *ToolResult {
	cb.appendStep(AgentStep{Kind: StepToolCall, ToolName: call.Name, ToolArgs: string(call.Arguments), RiskLevel: string(level)})

	result, err := e.safeRun(ctx, call, func() (*ToolResult, error) {
		return e.registry.Execute(ctx, call.Name, call.Arguments)
	})
	if err != nil {
		cb.appendStep(AgentStep{Kind: StepToolResult, ToolName: call.Name, ToolResult: err.Error(), RiskLevel: string(level)})
		return &ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	result.Content = SanitizeToolResult(result.Content)
	cb.appendStep(AgentStep{Kind: StepToolResult, ToolName: call.Name, ToolResult: result.Content, RiskLevel: string(level)})
	result.ToolCallID = call.ID
	return result
}

// needsConfirmation implements spec.md §4.6 item 2's boolean formula.
func needsConfirmation(cfg RunConfig, level risk.Level) bool {
	switch {
	case cfg.StrictMode:
		return true
	case level == risk.Dangerous:
		return true
	case level == risk.Moderate:
		return !cfg.AutoExecuteModerate
	case level == risk.Safe:
		return !cfg.AutoExecuteSafe
	default:
		return true
	}
}

// requestConfirmation publishes a PendingConfirmation on the run and
// blocks via cb.RequestConfirmation until it resolves.
func (e *Executor) requestConfirmation(run *AgentRun, call ToolCall, level string, cb Callbacks) (ConfirmationDecision, bool) {
	hostID := ""
	if cb.HostID != nil {
		hostID = cb.HostID()
	}
	pc := NewPendingConfirmation(run.ID, call.ID, call.Name, call.Arguments, level)
	run.PendingConfirmation = pc

	ctx := context.Background()
	record := &ApprovalRequest{
		ID:         call.ID + "-approval",
		ToolCallID: call.ID,
		ToolName:   call.Name,
		ToolArgs:   call.Arguments,
		RiskLevel:  level,
		AgentID:    hostID,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(DefaultApprovalTTL),
		Decision:   ApprovalPending,
	}
	if e.store != nil {
		_ = e.store.Create(ctx, record)
	}

	var decision ConfirmationDecision
	if cb.RequestConfirmation != nil {
		decision = cb.RequestConfirmation(pc)
	} else {
		decision = pc.Wait()
	}
	run.PendingConfirmation = nil
	if !decision.Approved {
		e.metrics.observeRejection(call.Name)
	}

	if e.store != nil {
		record.DecidedAt = time.Now()
		if decision.Approved {
			record.Decision = ApprovalAllowed
		} else {
			record.Decision = ApprovalDenied
		}
		_ = e.store.Update(ctx, record)
	}

	return decision, !decision.Approved
}

func (e *Executor) parseFailure(call ToolCall, cb Callbacks, err error) *ToolResult {
	msg := fmt.Sprintf("arguments parse failed: %v", err)
	cb.appendStep(AgentStep{Kind: StepError, ToolName: call.Name, Content: msg})
	return &ToolResult{ToolCallID: call.ID, Content: msg, IsError: true}
}

// safeRun recovers a panicking Tool.Execute into a classified error, so
// one misbehaving tool cannot take down the run loop's goroutine.
func (e *Executor) safeRun(ctx context.Context, call ToolCall, fn func() (*ToolResult, error)) (result *ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v\n%s", ErrInternal, call.Name, r, debug.Stack())
		}
	}()
	return fn()
}

// appendStep is a nil-safe convenience so every dispatch branch can
// call cb.appendStep without checking for a nil callback first.
func (cb Callbacks) appendStep(step AgentStep) {
	if cb.AppendStep != nil {
		cb.AppendStep(step)
	}
}
