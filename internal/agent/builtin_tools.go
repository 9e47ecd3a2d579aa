package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Fixed tool catalog (spec.md §4.2). Each tool's Execute performs the
// raw action only; risk classification, confirmation, and AutoFix
// substitution for execute_command live in the Tool Executor (C6,
// executor.go), which calls ExecuteCommandTool.runRaw directly rather
// than routing through the generic Tool interface so it can intercept
// the command text before it reaches the terminal.

// BuildBuiltinTools returns the fixed tool catalog wired against one
// run's RunEnvironment.
func BuildBuiltinTools(env *RunEnvironment) []Tool {
	return []Tool{
		&ExecuteCommandTool{env: env},
		&GetTerminalContextTool{env: env},
		&CheckTerminalStatusTool{env: env},
		&SendControlKeyTool{env: env},
		&ReadFileTool{},
		&WriteFileTool{},
		&RememberInfoTool{env: env},
	}
}

// -- execute_command --------------------------------------------------

type ExecuteCommandTool struct{ env *RunEnvironment }

func (t *ExecuteCommandTool) Name() string { return "execute_command" }
func (t *ExecuteCommandTool) Description() string {
	return "Run a shell command in the visible terminal and return its output."
}
func (t *ExecuteCommandTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": { "command": { "type": "string" } },
		"required": ["command"]
	}`)
}

type executeCommandArgs struct {
	Command string `json:"command"`
}

// Execute runs the command as-is, with no risk gating — direct calls
// bypass C6's confirmation/AutoFix flow, so only the Tool Executor's
// Dispatch should be used from the run loop.
func (t *ExecuteCommandTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var args executeCommandArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return t.runRaw(ctx, args.Command, 30*time.Second)
}

func (t *ExecuteCommandTool) runRaw(ctx context.Context, command string, timeout time.Duration) (*ToolResult, error) {
	if t.env.Tracker != nil {
		t.env.Tracker.StartCommandExecution(t.env.Driver.SessionID(), command)
	}
	result, err := t.env.Driver.ExecuteInTerminal(ctx, command, timeout)
	if err != nil {
		if t.env.Tracker != nil {
			t.env.Tracker.CompleteCommandExecution(t.env.Driver.SessionID(), -1)
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if t.env.Tracker != nil {
		t.env.Tracker.AppendOutput(t.env.Driver.SessionID(), result.Output)
		t.env.Tracker.CompleteCommandExecution(t.env.Driver.SessionID(), result.ExitCode)
	}
	content := result.Output
	if result.TimedOut {
		content += "\n[timed out]"
	}
	return &ToolResult{Content: content}, nil
}

// -- get_terminal_context ----------------------------------------------

type GetTerminalContextTool struct{ env *RunEnvironment }

func (t *GetTerminalContextTool) Name() string { return "get_terminal_context" }
func (t *GetTerminalContextTool) Description() string {
	return "Return the last N captured output lines from the terminal (default 50)."
}
func (t *GetTerminalContextTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": { "lines": { "type": "integer", "minimum": 1 } }
	}`)
}

type terminalContextArgs struct {
	Lines int `json:"lines"`
}

func (t *GetTerminalContextTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	args := terminalContextArgs{Lines: 50}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
	}
	if args.Lines <= 0 {
		args.Lines = 50
	}

	var buf []byte
	if t.env.RealtimeBuffer != nil {
		buf = t.env.RealtimeBuffer()
	}
	return &ToolResult{Content: lastNLines(string(buf), args.Lines)}, nil
}

func lastNLines(text string, n int) string {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// -- check_terminal_status ---------------------------------------------

type CheckTerminalStatusTool struct{ env *RunEnvironment }

func (t *CheckTerminalStatusTool) Name() string { return "check_terminal_status" }
func (t *CheckTerminalStatusTool) Description() string {
	return "Return the current Input/Output/Process awareness for the terminal session."
}
func (t *CheckTerminalStatusTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *CheckTerminalStatusTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	if t.env.Awareness == nil {
		return &ToolResult{Content: "{}"}, nil
	}
	awareness, err := t.env.Awareness(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	data, err := json.Marshal(awareness)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return &ToolResult{Content: string(data)}, nil
}

// -- send_control_key ----------------------------------------------------

type SendControlKeyTool struct{ env *RunEnvironment }

func (t *SendControlKeyTool) Name() string { return "send_control_key" }
func (t *SendControlKeyTool) Description() string {
	return "Send one control key (ctrl+c, ctrl+d, ctrl+z, q, space, enter) to the terminal session."
}
func (t *SendControlKeyTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": { "key": { "type": "string", "enum": ["ctrl+c", "ctrl+d", "ctrl+z", "q", "space", "enter"] } },
		"required": ["key"]
	}`)
}

type sendControlKeyArgs struct {
	Key string `json:"key"`
}

func (t *SendControlKeyTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var args sendControlKeyArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := t.env.Driver.SendControl(ctx, args.Key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return &ToolResult{Content: "sent " + args.Key}, nil
}

// -- read_file -----------------------------------------------------------

// MaxReadFileStepDisplayChars bounds the tool_result step's displayed
// content (spec.md §4.6 item 4); the LLM still receives the full
// content in ToolResult.Content.
const MaxReadFileStepDisplayChars = 500

type ReadFileTool struct{}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read a UTF-8 file from the host running the core." }
func (t *ReadFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": { "path": { "type": "string" } },
		"required": ["path"]
	}`)
}

type readFileArgs struct {
	Path string `json:"path"`
}

func (t *ReadFileTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var args readFileArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	data, err := os.ReadFile(args.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return &ToolResult{Content: string(data)}, nil
}

// -- write_file ------------------------------------------------------------

type WriteFileTool struct{}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Create or overwrite a UTF-8 file on the host running the core, creating parent directories as needed."
}
func (t *WriteFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": { "type": "string" },
			"content": { "type": "string" }
		},
		"required": ["path", "content"]
	}`)
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *WriteFileTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var args writeFileArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if dir := filepath.Dir(args.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	if err := os.WriteFile(args.Path, []byte(args.Content), 0o644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return &ToolResult{Content: fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path)}, nil
}

// -- remember_info -----------------------------------------------------

// dynamicInfoPatterns rejects facts whose truth value changes run to
// run (spec.md §4.2: "port, pid, status, percentage, connection") —
// the host profile is meant to accumulate durable path facts, not a
// snapshot of transient process state.
var dynamicInfoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bport\s*:?\s*\d+\b`),
	regexp.MustCompile(`(?i)\bpid\s*:?\s*\d+\b`),
	regexp.MustCompile(`(?i)\bstatus\s*:?\s*(running|stopped|active|inactive|failed|exited)\b`),
	regexp.MustCompile(`\b\d{1,3}(\.\d{1,3}){3}(:\d+)?\b`),
	regexp.MustCompile(`\b\d+(\.\d+)?\s*%`),
	regexp.MustCompile(`(?i)\b(established|listen(ing)?|time_wait|close_wait)\b`),
}

var pathLikeText = regexp.MustCompile(`[/\\]`)

type RememberInfoTool struct{ env *RunEnvironment }

func (t *RememberInfoTool) Name() string { return "remember_info" }
func (t *RememberInfoTool) Description() string {
	return "Append a durable path fact about this host to its profile notes."
}
func (t *RememberInfoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": { "info": { "type": "string" } },
		"required": ["info"]
	}`)
}

type rememberInfoArgs struct {
	Info string `json:"info"`
}

func (t *RememberInfoTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var args rememberInfoArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	info := strings.TrimSpace(args.Info)
	if !pathLikeText.MatchString(info) {
		return &ToolResult{Content: "skipped: info does not look like a path fact (no / or \\)"}, nil
	}
	for _, p := range dynamicInfoPatterns {
		if p.MatchString(info) {
			return &ToolResult{Content: "skipped: info looks like transient process state, not a durable fact"}, nil
		}
	}

	if t.env != nil && t.env.Profile != nil {
		t.env.Profile.AddNote(info)
	}
	return &ToolResult{Content: "remembered: " + info}, nil
}
