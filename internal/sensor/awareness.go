package sensor

import "time"

// EnvironmentContext carries the ambient facts the awareness synthesis
// folds in alongside ProcessState and InputWaitingState (spec.md §4.5).
type EnvironmentContext struct {
	SessionID       string
	CWD             string
	RecentExitCode  int
	HasExitCode     bool
	LastCommandText string
}

// Awareness is C5's final synthesized verdict for one terminal, handed
// to the Tool Executor / Agent Run Loop on check_terminal_status.
type Awareness struct {
	Process     ProcessState
	InputWaiting InputWaitingState
	Environment EnvironmentContext
	Summary     string
	ComputedAt  time.Time
}

// Synthesize combines a process probe, a screen analysis, and
// environment context into one overall awareness verdict. When the
// screen analyzer believes input is being waited on, that verdict
// overrides the coarser process status (spec.md §4.5: "waiting_input
// takes priority over any other inferred status").
func Synthesize(proc ProcessState, input InputWaitingState, env EnvironmentContext) Awareness {
	if input.Waiting {
		proc.Status = StatusWaitingInput
	}

	return Awareness{
		Process:      proc,
		InputWaiting: input,
		Environment:  env,
		Summary:      summarize(proc, input, env),
		ComputedAt:   time.Now(),
	}
}

func summarize(proc ProcessState, input InputWaitingState, env EnvironmentContext) string {
	switch proc.Status {
	case StatusIdle:
		return "terminal is idle at " + env.CWD
	case StatusWaitingInput:
		return "foreground process appears to be waiting for " + string(input.Kind) + " input: " + input.Prompt
	case StatusPossiblyStuck:
		return "foreground process '" + proc.ForegroundProcess + "' has produced no output for " + proc.RunningTime.Round(time.Second).String() + "; " + proc.Suggestion
	case StatusRunningStreaming:
		return "foreground process '" + proc.ForegroundProcess + "' is streaming output continuously"
	case StatusRunningInteractive:
		return "foreground process '" + proc.ForegroundProcess + "' is an interactive full-screen program"
	default:
		return "foreground process '" + proc.ForegroundProcess + "' is running (" + proc.RunningTime.Round(time.Second).String() + ")"
	}
}
