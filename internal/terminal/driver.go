// Package terminal provides the Terminal Driver (spec.md §4.3): a
// shared abstraction over a local PTY-ish shell and an SSH shell, with
// write/resize/execute-and-collect/control-key/probe primitives. Two
// concrete backends share one Driver contract (local.go, ssh.go).
package terminal

import (
	"context"
	"time"
)

// Kind distinguishes the two Driver backends.
type Kind string

const (
	KindLocal Kind = "local"
	KindSSH   Kind = "ssh"
)

// ExecResult is the outcome of ExecuteInTerminal.
type ExecResult struct {
	Output    string
	Duration  time.Duration
	TimedOut  bool
	ExitCode  int
}

// RemoteProcesses reports the shell's foreground child, when known
// (SSH only; spec.md §4.3 get_remote_processes).
type RemoteProcesses struct {
	ShellPID int
	Children []ChildProcess
}

// ChildProcess is one process reported by a remote `ps` probe.
type ChildProcess struct {
	PID     int
	State   string
	Command string
}

// DataHandler receives every byte written to the session's output
// stream, in order (spec.md §4.3's "single logical stream per session,
// in order" concurrency contract). Returning from on_data must be safe
// to call concurrently with Unsubscribe from another goroutine.
type DataHandler func(data []byte)

// Unsubscribe removes a previously registered DataHandler. Calling it
// more than once, or after the driver is disposed, is a no-op.
type Unsubscribe func()

// Driver is the contract both local and SSH terminal backends satisfy.
type Driver interface {
	Kind() Kind
	SessionID() string

	// Write sends raw bytes to the terminal's stdin, as if typed.
	Write(ctx context.Context, data []byte) error

	// Resize informs the terminal of a new column/row size.
	Resize(cols, rows int) error

	// OnData registers a fan-out subscriber for output bytes. Multiple
	// subscribers (UI, state tracker, realtime buffer) may be
	// registered simultaneously; each receives every byte.
	OnData(h DataHandler) Unsubscribe

	// ExecuteInTerminal writes command+newline, waits for a detected
	// shell prompt at the end of the buffer or for timeout to elapse,
	// and returns the captured output (spec.md §4.3).
	ExecuteInTerminal(ctx context.Context, command string, timeout time.Duration) (ExecResult, error)

	// GetCWD best-effort reports the current working directory. Local
	// drivers can usually answer this directly; SSH drivers often
	// cannot and return ("", false), pushing CWD tracking onto C4's
	// path-resolution fallback.
	GetCWD(ctx context.Context) (path string, ok bool)

	// GetTerminalStatus reports whether the driver believes its child
	// process is idle, independent of C5's higher-level synthesis.
	GetTerminalStatus(ctx context.Context) (isIdle bool, err error)

	// GetRemoteProcesses probes the foreground process tree. Local
	// drivers return an empty result; it is meaningful only over SSH.
	GetRemoteProcesses(ctx context.Context) (RemoteProcesses, error)

	// SendControl sends one control key (e.g. "ctrl+c", "ctrl+d",
	// "ctrl+z", "q", "space", "enter") to the session.
	SendControl(ctx context.Context, key string) error

	// Dispose releases the underlying process or SSH session. Any
	// DataHandler removed via its Unsubscribe, or still registered at
	// Dispose time, must never be called again afterward.
	Dispose() error
}
