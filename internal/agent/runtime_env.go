package agent

import (
	"context"

	"github.com/agentcore/shellpilot/internal/hostprofile"
	"github.com/agentcore/shellpilot/internal/sensor"
	"github.com/agentcore/shellpilot/internal/termstate"
	"github.com/agentcore/shellpilot/internal/terminal"
)

// RunEnvironment bundles the per-run handles the Tool Executor (C6)
// needs to reach the rest of the system (spec.md §4.6: "the executor
// receives callbacks to append steps, request a confirmation, query
// the current host id, check the abort flag, and reach the terminal
// driver"). One RunEnvironment is constructed per AgentRun by the
// Agent Run Loop (C8) and shared by the built-in tools and the
// executor so both dispatch against the same live terminal session.
type RunEnvironment struct {
	Driver  terminal.Driver
	Tracker *termstate.Tracker
	Profile *hostprofile.Profile

	// Awareness computes C5's current synthesized verdict for this
	// session, delegated to by check_terminal_status.
	Awareness func(ctx context.Context) (sensor.Awareness, error)

	// RealtimeBuffer returns the session's captured output buffer, used
	// by get_terminal_context to slice the last N lines.
	RealtimeBuffer func() []byte
}
