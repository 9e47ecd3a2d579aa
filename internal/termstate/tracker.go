// Package termstate implements the Terminal State Tracker (spec.md
// §4.4): per-session CWD, last command, bounded execution history, and
// idle tracking, plus CWD prediction when the driver can't report it.
//
// Grounded on internal/shell/process_registry.go's bounded-ring-buffer
// session bookkeeping and TTL sweep pattern (see sweep.go), adapted from
// tracking background shell jobs to tracking one live terminal session's
// command-execution state.
package termstate

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	// MaxExecutionHistory bounds TerminalState.ExecutionHistory
	// (spec.md §4.4: "at most 20 executions").
	MaxExecutionHistory = 20

	// MaxOutputChars truncates a command's captured output (spec.md
	// §4.4: "output buffer truncated to 5 000 characters").
	MaxOutputChars = 5000

	truncatedSentinel = "\n… [truncated]"

	// PwdCheckInterval rate-limits active CWD refreshes (spec.md §4.4:
	// "one per 5 s per session").
	PwdCheckInterval = 5 * time.Second
)

// CWDTrigger is one of the three events spec.md invariant I6 permits to
// update a TerminalState's CWD.
type CWDTrigger string

const (
	TriggerInitial  CWDTrigger = "initial"
	TriggerCommand  CWDTrigger = "command"
	TriggerPwdCheck CWDTrigger = "pwd_check"
)

// Execution is one completed (or in-flight) command record.
type Execution struct {
	Command   string
	Output    string
	StartedAt time.Time
	EndedAt   time.Time
	ExitCode  int
	Completed bool
}

// SessionKind mirrors terminal.Kind without importing it, keeping
// termstate a leaf package.
type SessionKind string

const (
	SessionLocal SessionKind = "local"
	SessionSSH   SessionKind = "ssh"
)

// TerminalState is the per-session runtime state spec.md §3 describes.
type TerminalState struct {
	ID            string
	Kind          SessionKind
	CWD           string
	CWDUpdatedAt  time.Time
	LastCommand   string
	LastExitCode  int
	IsIdle        bool
	LastActivity  time.Time

	CurrentExecution *Execution
	ExecutionHistory []Execution // ring buffer, capacity MaxExecutionHistory

	lastPwdCheck time.Time
}

// CWDChangeHandler observes a CWD update.
type CWDChangeHandler func(sessionID, newCWD string, trigger CWDTrigger)

// CommandExecutionHandler observes a command execution lifecycle event.
type CommandExecutionHandler func(sessionID string, exec Execution, started bool)

// Tracker owns one TerminalState per live session.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*TerminalState

	onCWDChange      []CWDChangeHandler
	onCommandExecute []CommandExecutionHandler
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*TerminalState)}
}

// OnCWDChange registers a subscriber notified after every CWD update.
func (t *Tracker) OnCWDChange(h CWDChangeHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCWDChange = append(t.onCWDChange, h)
}

// OnCommandExecution registers a subscriber notified on command start
// and completion.
func (t *Tracker) OnCommandExecution(h CommandExecutionHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCommandExecute = append(t.onCommandExecute, h)
}

// Register creates tracking state for a new session, seeded from an
// initial CWD probe (spec.md invariant I6 trigger "initial").
func (t *Tracker) Register(sessionID string, kind SessionKind, initialCWD string) *TerminalState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := &TerminalState{
		ID:           sessionID,
		Kind:         kind,
		CWD:          initialCWD,
		CWDUpdatedAt: time.Now(),
		IsIdle:       true,
		LastActivity: time.Now(),
	}
	t.sessions[sessionID] = st
	return st
}

// Get returns the tracked state for a session.
func (t *Tracker) Get(sessionID string) (*TerminalState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.sessions[sessionID]
	return st, ok
}

// Remove drops tracking for a disposed session.
func (t *Tracker) Remove(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// cwdChangingCommand matches the command families spec.md §4.4 names as
// CWD-changing: cd, pushd, popd, z, j, builtin cd.
var cwdChangingCommand = regexp.MustCompile(`^\s*(builtin\s+cd|cd|pushd|popd|z|j)\b\s*(.*)$`)

// HandleInput inspects raw input for a CWD-changing command. If one is
// found, it calls probeCWD (a callback onto the driver's GetCWD, given
// after the spec's 500ms settle delay) and falls back to path
// resolution against the argument when the probe can't answer —
// typical on Windows and over SSH (spec.md §4.4).
func (t *Tracker) HandleInput(sessionID, raw string, probeCWD func() (string, bool)) {
	m := cwdChangingCommand.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return
	}
	arg := strings.TrimSpace(m[2])

	go func() {
		time.Sleep(500 * time.Millisecond)

		t.mu.Lock()
		st, ok := t.sessions[sessionID]
		t.mu.Unlock()
		if !ok {
			return
		}

		if cwd, ok := probeCWD(); ok {
			t.updateCWD(st, cwd, TriggerCommand)
			return
		}

		target := arg
		if m[1] == "pushd" || m[1] == "popd" {
			// pushd/popd without an argument don't move relative to a
			// simple target; only resolve when an explicit path/arg is
			// given.
			if target == "" {
				return
			}
		}
		resolved := ResolveCWDPath(st.CWD, target)
		t.updateCWD(st, resolved, TriggerCommand)
	}()
}

// RefreshCWD issues a rate-limited active pwd_check, never writing to a
// visible SSH terminal (spec.md §4.4: SSH refreshes rely entirely on
// input prediction, so probeCWD should be a no-op/false for SSH
// sessions).
func (t *Tracker) RefreshCWD(sessionID string, probeCWD func() (string, bool)) {
	t.mu.Lock()
	st, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return
	}
	if time.Since(st.lastPwdCheck) < PwdCheckInterval {
		t.mu.Unlock()
		return
	}
	st.lastPwdCheck = time.Now()
	t.mu.Unlock()

	if cwd, ok := probeCWD(); ok {
		t.updateCWD(st, cwd, TriggerPwdCheck)
	}
}

func (t *Tracker) updateCWD(st *TerminalState, newCWD string, trigger CWDTrigger) {
	t.mu.Lock()
	st.CWD = newCWD
	st.CWDUpdatedAt = time.Now()
	handlers := append([]CWDChangeHandler(nil), t.onCWDChange...)
	t.mu.Unlock()

	for _, h := range handlers {
		h(st.ID, newCWD, trigger)
	}
}

// StartCommandExecution records the start of one command (spec.md
// invariant I5: current_execution is set at most once until completed).
func (t *Tracker) StartCommandExecution(sessionID, command string) {
	t.mu.Lock()
	st, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return
	}
	exec := Execution{Command: command, StartedAt: time.Now()}
	st.CurrentExecution = &exec
	st.LastCommand = command
	st.IsIdle = false
	st.LastActivity = time.Now()
	handlers := append([]CommandExecutionHandler(nil), t.onCommandExecute...)
	t.mu.Unlock()

	for _, h := range handlers {
		h(sessionID, exec, true)
	}
}

// AppendOutput extends the in-flight execution's captured output,
// truncating at MaxOutputChars with the spec's sentinel.
func (t *Tracker) AppendOutput(sessionID string, chunk string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.sessions[sessionID]
	if !ok || st.CurrentExecution == nil {
		return
	}
	st.CurrentExecution.Output += chunk
	st.LastActivity = time.Now()
	if len(st.CurrentExecution.Output) > MaxOutputChars {
		keep := MaxOutputChars - len(truncatedSentinel)
		if keep < 0 {
			keep = 0
		}
		st.CurrentExecution.Output = st.CurrentExecution.Output[len(st.CurrentExecution.Output)-keep:] + truncatedSentinel
	}
}

// CompleteCommandExecution moves the in-flight execution into bounded
// history.
func (t *Tracker) CompleteCommandExecution(sessionID string, exitCode int) {
	t.mu.Lock()
	st, ok := t.sessions[sessionID]
	if !ok || st.CurrentExecution == nil {
		t.mu.Unlock()
		return
	}
	exec := *st.CurrentExecution
	exec.EndedAt = time.Now()
	exec.ExitCode = exitCode
	exec.Completed = true

	st.ExecutionHistory = append(st.ExecutionHistory, exec)
	if len(st.ExecutionHistory) > MaxExecutionHistory {
		st.ExecutionHistory = st.ExecutionHistory[len(st.ExecutionHistory)-MaxExecutionHistory:]
	}
	st.CurrentExecution = nil
	st.LastExitCode = exitCode
	st.IsIdle = true
	handlers := append([]CommandExecutionHandler(nil), t.onCommandExecute...)
	t.mu.Unlock()

	for _, h := range handlers {
		h(sessionID, exec, false)
	}
}
