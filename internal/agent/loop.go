package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/shellpilot/internal/eventbridge"
)

// Loop is the Agent Run Loop (C8, spec.md §4.8): it drives one
// AgentRun's LLM/tool-dispatch cycle to completion, applying memory
// compression (§4.8.1) and reflection (§4.8.2) along the way.
//
// Grounded on the teacher's internal/agent/loop.go step-loop shape
// (stream → accumulate → dispatch tools → append messages), stripped
// of the teacher's job-queue/branch-store/async-tool machinery that
// has no SPEC_FULL.md component to bind to, and driven instead by this
// module's Executor/LLMProvider/ReflectionState/Compact.
type Loop struct {
	provider LLMProvider
	executor *Executor
	registry *ToolRegistry
	bridge   *eventbridge.Bridge
	env      *RunEnvironment

	// ContextLength feeds memory compression's 80%-of-context budget
	// (spec.md §4.8.1); defaults to DefaultContextLength when zero.
	ContextLength int
}

// NewLoop wires one run loop around a provider, the tool executor built
// for this run's environment, and the event bridge steps are published
// through.
func NewLoop(provider LLMProvider, executor *Executor, registry *ToolRegistry, bridge *eventbridge.Bridge, env *RunEnvironment) *Loop {
	return &Loop{provider: provider, executor: executor, registry: registry, bridge: bridge, env: env}
}

// Run drives run to completion: on normal exit it publishes on_complete
// and returns the final assistant text; on user abort it publishes
// nothing further and returns ErrAbortByUser; on an LLM error after
// substantial content was already streamed, that error is treated as
// completion per spec.md §4.8/§7.
func (l *Loop) Run(ctx context.Context, run *AgentRun, systemPrompt string, tools []ToolSpec) (string, error) {
	stepCount := 0
	var finalText string

	for !run.Aborted {
		if run.Config.MaxSteps > 0 && stepCount >= run.Config.MaxSteps {
			break
		}

		l.drainPendingUserMessages(run)

		if stepCount > 3 {
			contextLength := l.ContextLength
			if contextLength <= 0 {
				contextLength = DefaultContextLength
			}
			run.Messages = Compact(run.Messages, contextLength)
		}

		result, err := l.invoke(ctx, run, systemPrompt, tools)
		if err != nil {
			if run.Aborted {
				return finalText, ErrAbortByUser
			}
			l.bridge.PublishError(run.ID, err)
			run.Status = RunFailed
			return "", err
		}

		if len(result.ToolCalls) == 0 {
			run.Messages = append(run.Messages, Message{Role: RoleAssistant, Content: result.Content, Reasoning: result.Reasoning})
			finalText = result.Content
			break
		}

		run.Messages = append(run.Messages, Message{
			Role:      RoleAssistant,
			Content:   result.Content,
			Reasoning: result.Reasoning,
			ToolCalls: result.ToolCalls,
		})

		for _, call := range result.ToolCalls {
			if run.Aborted {
				break
			}
			l.dispatchOne(ctx, run, call)
		}

		l.reflect(run)

		stepCount++
	}

	if run.Aborted {
		return finalText, ErrAbortByUser
	}

	run.Status = RunCompleted
	l.bridge.PublishComplete(run.ID, finalText)
	return finalText, nil
}

// drainPendingUserMessages implements spec.md §4.8 step 1: each queued
// message becomes both a user_supplement step and a bracketed user
// message.
func (l *Loop) drainPendingUserMessages(run *AgentRun) {
	if len(run.PendingUserMessages) == 0 {
		return
	}
	for _, msg := range run.PendingUserMessages {
		l.appendStep(run, AgentStep{Kind: StepUserSupplement, Content: msg})
		run.Messages = append(run.Messages, Message{Role: RoleUser, Content: "[user supplement] " + msg})
	}
	run.PendingUserMessages = nil
}

// invoke streams one completion, publishing a single is_streaming
// message step that flips to false on completion (spec.md §4.8 step
// 3), and blocks until the provider's single-shot onDone/onError call.
func (l *Loop) invoke(ctx context.Context, run *AgentRun, systemPrompt string, tools []ToolSpec) (ChatWithToolsResult, error) {
	stepID := uuid.NewString()
	step := AgentStep{ID: stepID, Timestamp: time.Now(), Kind: StepMessage, IsStreaming: true}
	run.Steps = append(run.Steps, step)
	stepIdx := len(run.Steps) - 1
	l.bridge.PublishStep(run.ID, run.Steps[stepIdx])

	type outcome struct {
		result ChatWithToolsResult
		err    error
	}
	done := make(chan outcome, 1)

	req := CompletionRequest{System: systemPrompt, Messages: run.Messages, Tools: tools}

	_, err := l.provider.ChatWithToolsStream(ctx, req,
		func(delta StreamDelta) {
			run.Steps[stepIdx].Content += delta.Text
			l.bridge.PublishStep(run.ID, run.Steps[stepIdx])
		},
		func(calls []ToolCall) {},
		func(result ChatWithToolsResult) {
			done <- outcome{result: result}
		},
		func(err error) {
			done <- outcome{err: err}
		},
	)
	if err != nil {
		run.Steps[stepIdx].IsStreaming = false
		return ChatWithToolsResult{}, err
	}

	select {
	case <-ctx.Done():
		run.Steps[stepIdx].IsStreaming = false
		return ChatWithToolsResult{}, ctx.Err()
	case out := <-done:
		run.Steps[stepIdx].IsStreaming = false
		l.bridge.PublishStep(run.ID, run.Steps[stepIdx])
		if out.err != nil {
			return ChatWithToolsResult{}, out.err
		}
		return out.result, nil
	}
}

// dispatchOne parses and dispatches one tool call through the executor
// and appends the resulting tool-role message (spec.md §4.8 step 5).
func (l *Loop) dispatchOne(ctx context.Context, run *AgentRun, call ToolCall) {
	cb := Callbacks{
		AppendStep: func(step AgentStep) { l.appendStep(run, step) },
		HostID: func() string {
			if l.env != nil && l.env.Profile != nil {
				return l.env.Profile.HostID
			}
			return ""
		},
		IsAborted: func() bool { return run.Aborted },
		RequestConfirmation: func(pc *PendingConfirmation) ConfirmationDecision {
			l.bridge.PublishNeedConfirm(run.ID, pc)
			return pc.Wait()
		},
	}

	result := l.executor.Dispatch(ctx, run, call, cb)

	failed := result.IsError
	command := ""
	if call.Name == "execute_command" && len(call.Arguments) > 0 {
		var args executeCommandArgs
		_ = json.Unmarshal(call.Arguments, &args)
		command = args.Command
	}
	RecordToolOutcome(run.Reflection, call.Name, command, failed)

	content := result.Content
	if failed {
		content = "error: " + result.Content
	}
	run.Messages = append(run.Messages, Message{Role: RoleTool, ToolCallID: call.ID, Content: content})
}

// reflect implements spec.md §4.8 step 6 / §4.8.2: detect issues,
// maybe switch strategy, and append a reflection prompt when
// warranted.
func (l *Loop) reflect(run *AgentRun) {
	now := time.Now()
	issues := DetectIssues(run.Reflection, now)
	run.Reflection.DetectedIssues = issues

	if sw := MaybeSwitchStrategy(run.Reflection, issues, now); sw != nil {
		run.Reflection.AppliedFixes = append(run.Reflection.AppliedFixes, fmt.Sprintf("%s -> %s (%s)", sw.From, sw.To, sw.Reason))
	}

	if !ShouldReflect(run.Reflection, issues, run.Config.ReflectionEvery) {
		return
	}

	prompt := ReflectionPrompt(run.Reflection, issues)
	run.Messages = append(run.Messages, Message{Role: RoleUser, Content: prompt})
}

func (l *Loop) appendStep(run *AgentRun, step AgentStep) {
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now()
	}
	run.Steps = append(run.Steps, step)
	l.bridge.PublishStep(run.ID, step)
}
