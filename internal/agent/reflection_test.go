package agent

import (
	"testing"
	"time"
)

func TestRecordToolOutcome_TracksCounters(t *testing.T) {
	rs := NewReflectionState()
	RecordToolOutcome(rs, "execute_command", "ls -la", false)
	RecordToolOutcome(rs, "execute_command", "ls -la", true)

	if rs.ToolCallCount != 2 {
		t.Errorf("ToolCallCount = %d, want 2", rs.ToolCallCount)
	}
	if rs.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", rs.SuccessCount)
	}
	if rs.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", rs.ConsecutiveFailures)
	}
	if rs.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1", rs.TotalFailures)
	}
	if len(rs.RecentCommands) != 2 {
		t.Errorf("RecentCommands len = %d, want 2", len(rs.RecentCommands))
	}
}

func TestDetectIssues_CommandLoop(t *testing.T) {
	rs := NewReflectionState()
	rs.RecentCommands = []string{"ls -la", "ls -la", "ls -la"}
	issues := DetectIssues(rs, time.Now())
	if !contains(issues, "command_loop") {
		t.Errorf("expected command_loop in %v", issues)
	}
}

func TestDetectIssues_ABABLoop(t *testing.T) {
	rs := NewReflectionState()
	rs.RecentCommands = []string{"ls", "pwd", "ls", "pwd"}
	issues := DetectIssues(rs, time.Now())
	if !contains(issues, "command_loop") {
		t.Errorf("expected command_loop for A-B-A-B pattern, got %v", issues)
	}
}

func TestDetectIssues_ConsecutiveFailures(t *testing.T) {
	rs := NewReflectionState()
	rs.ConsecutiveFailures = 3
	issues := DetectIssues(rs, time.Now())
	if !contains(issues, "consecutive_failures") {
		t.Errorf("expected consecutive_failures in %v", issues)
	}
}

func TestDetectIssues_HighFailureRate(t *testing.T) {
	rs := NewReflectionState()
	rs.SuccessCount = 1
	rs.TotalFailures = 4
	issues := DetectIssues(rs, time.Now())
	if !contains(issues, "high_failure_rate") {
		t.Errorf("expected high_failure_rate in %v", issues)
	}
}

func TestMaybeSwitchStrategy_ConsecutiveFailuresGoesConservative(t *testing.T) {
	rs := NewReflectionState()
	now := time.Now()
	sw := MaybeSwitchStrategy(rs, []string{"consecutive_failures"}, now)
	if sw == nil {
		t.Fatal("expected a strategy switch")
	}
	if sw.To != StrategyConservative {
		t.Errorf("To = %v, want conservative", sw.To)
	}
	if rs.CurrentStrategy != StrategyConservative {
		t.Errorf("CurrentStrategy = %v, want conservative", rs.CurrentStrategy)
	}
}

func TestMaybeSwitchStrategy_RespectsCooldown(t *testing.T) {
	rs := NewReflectionState()
	now := time.Now()
	MaybeSwitchStrategy(rs, []string{"consecutive_failures"}, now)

	sw := MaybeSwitchStrategy(rs, []string{"command_loop"}, now.Add(5*time.Second))
	if sw != nil {
		t.Errorf("expected no switch within cooldown, got %+v", sw)
	}
}

func TestShouldReflect_EveryNCalls(t *testing.T) {
	rs := NewReflectionState()
	rs.ToolCallCount = 10
	if !ShouldReflect(rs, nil, 10) {
		t.Error("expected reflection after 10 tool calls with no issues")
	}
}

func TestShouldReflect_OnIssue(t *testing.T) {
	rs := NewReflectionState()
	if !ShouldReflect(rs, []string{"command_loop"}, 10) {
		t.Error("expected reflection when an issue is present regardless of count")
	}
}

func TestReflectionPrompt_ResetsConsecutiveFailures(t *testing.T) {
	rs := NewReflectionState()
	rs.ConsecutiveFailures = 3
	rs.ToolCallCount = 7
	_ = ReflectionPrompt(rs, []string{"consecutive_failures"})
	if rs.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want reset to 0", rs.ConsecutiveFailures)
	}
	if rs.LastReflectionAt != 7 {
		t.Errorf("LastReflectionAt = %d, want 7", rs.LastReflectionAt)
	}
}
