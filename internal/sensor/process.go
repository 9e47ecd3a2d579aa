// Package sensor implements the Process & Input Sensor (spec.md §4.5):
// inference of what a terminal is currently doing from child-process
// probes, output-rate tracking, and screen analysis, synthesized into
// one overall awareness status.
package sensor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agentcore/shellpilot/internal/terminal"
)

// Status is the coarse process state spec.md §4.5 defines.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusRunningInteractive Status = "running_interactive"
	StatusRunningStreaming   Status = "running_streaming"
	StatusRunningSilent      Status = "running_silent"
	StatusPossiblyStuck      Status = "possibly_stuck"
	StatusWaitingInput       Status = "waiting_input"
)

// StuckThreshold is the default "running with no output" duration
// before a normal command is considered possibly stuck (spec.md §4.5).
const StuckThreshold = 30 * time.Second

// ProcessState is C5's primary output for one terminal session.
type ProcessState struct {
	Status              Status
	ForegroundProcess    string
	PID                  int
	RunningTime          time.Duration
	LastOutputTime       time.Time
	OutputRateLinesPerSec float64
	DataRateBytesPerSec  float64
	Suggestion           string
	IsKnownLongRunning   bool
}

// Command classification lists (spec.md §4.5).
var (
	interactiveCommands = prefixSet("vim", "vi", "nvim", "nano", "emacs", "top", "htop", "btop", "less", "more", "tmux", "screen", "mc", "ranger")
	streamingCommands   = prefixSet("tail -f", "tail -F", "docker logs -f", "kubectl logs -f", "npm run dev", "journalctl", "watch")
	silentCommands      = prefixSet("git clone", "make", "cargo build", "npm install", "npm ci", "yarn install", "pip install", "tar", "apt-get install", "apt install", "dnf install", "yum install", "rsync", "scp")
)

func prefixSet(prefixes ...string) []string { return prefixes }

func matchesAny(command string, prefixes []string) bool {
	c := strings.ToLower(strings.TrimSpace(command))
	for _, p := range prefixes {
		if strings.HasPrefix(c, p) {
			return true
		}
	}
	return false
}

// IsInteractiveCommand reports whether command belongs to the
// known-interactive list.
func IsInteractiveCommand(command string) bool { return matchesAny(command, interactiveCommands) }

// IsStreamingCommand reports whether command belongs to the
// known-streaming list.
func IsStreamingCommand(command string) bool { return matchesAny(command, streamingCommands) }

// IsSilentCommand reports whether command belongs to the known-silent
// list. A silent command is never classified as stuck regardless of
// silence duration (spec.md §4.5).
func IsSilentCommand(command string) bool { return matchesAny(command, silentCommands) }

// sample is one point in the 10-second sliding output-rate window.
type sample struct {
	at    time.Time
	lines int
	bytes int
}

// RateWindow maintains a sliding 10-second window of output samples
// for one session, used to compute lines/s and bytes/s.
type RateWindow struct {
	mu      sync.Mutex
	samples []sample
}

// NewRateWindow creates an empty window.
func NewRateWindow() *RateWindow { return &RateWindow{} }

// Observe records len(data) bytes and the number of newline-terminated
// lines they contain, arriving now.
func (w *RateWindow) Observe(data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, sample{
		at:    time.Now(),
		lines: strings.Count(string(data), "\n"),
		bytes: len(data),
	})
	w.prune()
}

func (w *RateWindow) prune() {
	cutoff := time.Now().Add(-10 * time.Second)
	i := 0
	for i < len(w.samples) && w.samples[i].at.Before(cutoff) {
		i++
	}
	w.samples = w.samples[i:]
}

// Rates returns the current lines/s and bytes/s averaged over the
// trailing 10-second window, and the time of the last observed sample.
func (w *RateWindow) Rates() (linesPerSec, bytesPerSec float64, lastAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune()
	if len(w.samples) == 0 {
		return 0, 0, time.Time{}
	}
	var lines, bytesN int
	for _, s := range w.samples {
		lines += s.lines
		bytesN += s.bytes
	}
	span := time.Since(w.samples[0].at).Seconds()
	if span < 1 {
		span = 1
	}
	return float64(lines) / span, float64(bytesN) / span, w.samples[len(w.samples)-1].at
}

// LocalProcessState infers ProcessState for a local session, given the
// driver's own idle flag, the command currently running (if any), its
// start time, and its output-rate window (spec.md §4.5 "for local
// sessions").
func LocalProcessState(ctx context.Context, driver terminal.Driver, currentCommand string, startedAt time.Time, window *RateWindow) (ProcessState, error) {
	isIdle, err := driver.GetTerminalStatus(ctx)
	if err != nil {
		return ProcessState{}, err
	}
	if isIdle {
		return ProcessState{Status: StatusIdle}, nil
	}

	linesPerSec, bytesPerSec, lastOutput := window.Rates()
	runningTime := time.Since(startedAt)

	state := ProcessState{
		ForegroundProcess:     currentCommand,
		RunningTime:           runningTime,
		LastOutputTime:        lastOutput,
		OutputRateLinesPerSec: linesPerSec,
		DataRateBytesPerSec:   bytesPerSec,
		IsKnownLongRunning:    IsSilentCommand(currentCommand) || IsStreamingCommand(currentCommand),
	}

	switch {
	case IsInteractiveCommand(currentCommand):
		state.Status = StatusRunningInteractive
		return state, nil
	case IsStreamingCommand(currentCommand):
		state.Status = StatusRunningStreaming
		state.Suggestion = "this command streams continuously; poll and stop it with send_control_key when done watching"
		return state, nil
	case IsSilentCommand(currentCommand):
		state.Status = StatusRunningSilent
		return state, nil
	}

	hasOutputRate := linesPerSec > 0 || bytesPerSec > 0
	timeSinceOutput := time.Since(lastOutput)
	if runningTime < StuckThreshold || hasOutputRate {
		state.Status = StatusRunningSilent
		return state, nil
	}
	if timeSinceOutput > StuckThreshold && !hasOutputRate {
		state.Status = StatusPossiblyStuck
		state.Suggestion = "no output for a while; consider check_terminal_status again or send_control_key(ctrl+c) if this looks hung"
		return state, nil
	}
	state.Status = StatusRunningSilent
	return state, nil
}

// RemoteProcessState infers ProcessState for an SSH session, preferring
// the out-of-band ps probe and falling back to output-rate activity
// detection when the exec channel fails (spec.md §4.5 "for SSH
// sessions").
func RemoteProcessState(ctx context.Context, driver terminal.Driver, currentCommand string, startedAt time.Time, window *RateWindow) (ProcessState, bool /* wasIdleAutoCompleted */, error) {
	procs, err := driver.GetRemoteProcesses(ctx)
	if err != nil {
		linesPerSec, bytesPerSec, lastOutput := window.Rates()
		state := ProcessState{
			ForegroundProcess:     currentCommand,
			RunningTime:           time.Since(startedAt),
			LastOutputTime:        lastOutput,
			OutputRateLinesPerSec: linesPerSec,
			DataRateBytesPerSec:   bytesPerSec,
		}
		if linesPerSec > 0 || bytesPerSec > 0 {
			state.Status = StatusRunningSilent
		} else {
			idle, _ := driver.GetTerminalStatus(ctx)
			if idle {
				state.Status = StatusIdle
			} else {
				state.Status = StatusRunningSilent
			}
		}
		return state, false, nil
	}

	if len(procs.Children) == 0 {
		return ProcessState{Status: StatusIdle}, true, nil
	}

	child := procs.Children[0]
	return ProcessState{
		Status:            StatusRunningSilent,
		ForegroundProcess: child.Command,
		PID:               child.PID,
		RunningTime:       time.Since(startedAt),
	}, false, nil
}
