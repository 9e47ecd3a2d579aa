package sensor

import (
	"testing"
	"time"
)

func TestCommandClassification(t *testing.T) {
	if !IsInteractiveCommand("vim main.go") {
		t.Error("vim should be interactive")
	}
	if !IsStreamingCommand("tail -f /var/log/syslog") {
		t.Error("tail -f should be streaming")
	}
	if !IsSilentCommand("npm install") {
		t.Error("npm install should be silent")
	}
	if IsInteractiveCommand("ls -la") {
		t.Error("ls should not be interactive")
	}
}

func TestRateWindow(t *testing.T) {
	w := NewRateWindow()
	w.Observe([]byte("line1\nline2\n"))
	lines, bytesN, lastAt := w.Rates()
	if lines <= 0 || bytesN <= 0 {
		t.Errorf("expected positive rates, got lines=%v bytes=%v", lines, bytesN)
	}
	if lastAt.IsZero() {
		t.Error("expected non-zero lastAt")
	}
}

func TestRateWindow_Empty(t *testing.T) {
	w := NewRateWindow()
	lines, bytesN, lastAt := w.Rates()
	if lines != 0 || bytesN != 0 || !lastAt.IsZero() {
		t.Errorf("expected zero-value rates for empty window")
	}
}

func TestAnalyzer_Password(t *testing.T) {
	a := NewAnalyzer()
	state := a.Analyze("s1", "Enter your password: ")
	if !state.Waiting || state.Kind != InputPassword {
		t.Errorf("expected password prompt, got %+v", state)
	}
}

func TestAnalyzer_YesNo(t *testing.T) {
	a := NewAnalyzer()
	state := a.Analyze("s1", "Do you want to continue? [y/N] ")
	if !state.Waiting || state.Kind != InputYesNo {
		t.Errorf("expected yes/no prompt, got %+v", state)
	}
}

func TestAnalyzer_NoPrompt(t *testing.T) {
	a := NewAnalyzer()
	state := a.Analyze("s1", "build succeeded\n")
	if state.Waiting {
		t.Errorf("expected no input wait, got %+v", state)
	}
}

func TestAnalyzer_Cache(t *testing.T) {
	a := NewAnalyzer()
	text := "Password: "
	first := a.Analyze("s1", text)
	second := a.Analyze("s1", text)
	if first != second {
		t.Errorf("expected cached result to match: %+v vs %+v", first, second)
	}
}

func TestSynthesize_WaitingInputOverridesStatus(t *testing.T) {
	proc := ProcessState{Status: StatusRunningSilent, ForegroundProcess: "sudo apt install foo"}
	input := InputWaitingState{Waiting: true, Kind: InputPassword, Prompt: "Password:"}
	env := EnvironmentContext{SessionID: "s1", CWD: "/home/me"}

	aw := Synthesize(proc, input, env)
	if aw.Process.Status != StatusWaitingInput {
		t.Errorf("expected waiting_input to override, got %v", aw.Process.Status)
	}
	if aw.Summary == "" {
		t.Error("expected non-empty summary")
	}
}

func TestSynthesize_Idle(t *testing.T) {
	aw := Synthesize(ProcessState{Status: StatusIdle}, InputWaitingState{}, EnvironmentContext{CWD: "/tmp"})
	if aw.Process.Status != StatusIdle {
		t.Errorf("expected idle, got %v", aw.Process.Status)
	}
	if aw.ComputedAt.After(time.Now()) {
		t.Error("ComputedAt should not be in the future")
	}
}
