package agent

import (
	"fmt"
	"strings"
	"time"
)

// recentCommandRing bounds ReflectionState.RecentCommands (spec.md
// §4.8.2: "push the command onto a 5-slot ring buffer").
const recentCommandRing = 5

// strategySwitchWindow is the lookback window for the
// frequent_strategy_changes issue detector.
const strategySwitchWindow = 60 * time.Second

// reflectionCooldown is the minimum gap between two strategy switches
// (spec.md §4.8.2: "no switch within 30s of the last one").
const reflectionCooldown = 30 * time.Second

// RecordToolOutcome updates a run's reflection counters after one tool
// call completes (spec.md §4.8.2, first paragraph).
func RecordToolOutcome(rs *ReflectionState, toolName, command string, failed bool) {
	rs.ToolCallCount++
	if failed {
		rs.ConsecutiveFailures++
		rs.TotalFailures++
	} else {
		rs.SuccessCount++
		rs.ConsecutiveFailures = 0
	}

	if toolName == "execute_command" && command != "" {
		rs.RecentCommands = append(rs.RecentCommands, command)
		if len(rs.RecentCommands) > recentCommandRing {
			rs.RecentCommands = rs.RecentCommands[len(rs.RecentCommands)-recentCommandRing:]
		}
	}

	rs.Quality = computeQuality(rs)
}

func computeQuality(rs *ReflectionState) QualityScore {
	total := rs.SuccessCount + rs.TotalFailures
	var successRate float64
	if total > 0 {
		successRate = float64(rs.SuccessCount) / float64(total)
	} else {
		successRate = 1
	}

	efficiency := 1.0
	if rs.ToolCallCount > 0 {
		efficiency = 1 - float64(rs.TotalFailures)/float64(rs.ToolCallCount)
	}

	adaptability := 1.0
	if len(rs.StrategySwitches) > 0 {
		adaptability = 0.8
	}

	overall := (successRate + efficiency + adaptability) / 3
	return QualityScore{
		SuccessRate:  successRate,
		Efficiency:   efficiency,
		Adaptability: adaptability,
		Overall:      overall,
	}
}

// DetectIssues runs spec.md §4.8.2's four issue detectors against the
// current reflection state, evaluated after every tool call.
func DetectIssues(rs *ReflectionState, now time.Time) []string {
	var issues []string

	if commandLoop(rs.RecentCommands) {
		issues = append(issues, "command_loop")
	}
	if rs.ConsecutiveFailures >= 3 {
		issues = append(issues, "consecutive_failures")
	}
	total := rs.SuccessCount + rs.TotalFailures
	if total >= 5 && float64(rs.TotalFailures)/float64(total) > 0.6 {
		issues = append(issues, "high_failure_rate")
	}
	if recentSwitchCount(rs.StrategySwitches, now) >= 3 {
		issues = append(issues, "frequent_strategy_changes")
	}

	return issues
}

func commandLoop(recent []string) bool {
	n := len(recent)
	if n >= 3 && recent[n-1] == recent[n-2] && recent[n-2] == recent[n-3] {
		return true
	}
	if n >= 4 && recent[n-1] == recent[n-3] && recent[n-2] == recent[n-4] && recent[n-1] != recent[n-2] {
		return true
	}
	return false
}

func recentSwitchCount(switches []StrategySwitch, now time.Time) int {
	count := 0
	for _, s := range switches {
		if now.Sub(s.At) <= strategySwitchWindow {
			count++
		}
	}
	return count
}

// MaybeSwitchStrategy applies spec.md §4.8.2's strategy-switch
// decision table, respecting the 30s cooldown. Returns the switch it
// applied, or nil if none.
func MaybeSwitchStrategy(rs *ReflectionState, issues []string, now time.Time) *StrategySwitch {
	if len(rs.StrategySwitches) > 0 {
		last := rs.StrategySwitches[len(rs.StrategySwitches)-1]
		if now.Sub(last.At) < reflectionCooldown {
			return nil
		}
	}

	has := func(issue string) bool {
		for _, i := range issues {
			if i == issue {
				return true
			}
		}
		return false
	}

	var next Strategy
	var reason string
	switch {
	case has("consecutive_failures") && rs.CurrentStrategy != StrategyConservative:
		next, reason = StrategyConservative, "consecutive_failures"
	case has("command_loop") && rs.CurrentStrategy != StrategyDiagnostic:
		next, reason = StrategyDiagnostic, "command_loop"
	case has("high_failure_rate") && rs.CurrentStrategy == StrategyAggressive:
		next, reason = StrategyConservative, "high_failure_rate"
	case len(issues) == 0 && rs.CurrentStrategy == StrategyConservative && rs.SuccessCount >= 3 && rs.TotalFailures == 0:
		next, reason = StrategyDefault, "recovered"
	default:
		return nil
	}

	sw := StrategySwitch{At: now, From: rs.CurrentStrategy, To: next, Reason: reason}
	rs.StrategySwitches = append(rs.StrategySwitches, sw)
	rs.CurrentStrategy = next
	return &sw
}

// ShouldReflect reports whether the loop should emit a reflection
// prompt this step: any issue was detected, or 10 tool calls have
// passed since the last reflection (spec.md §4.8.2, ReflectionEvery).
func ShouldReflect(rs *ReflectionState, issues []string, every int) bool {
	if len(issues) > 0 {
		return true
	}
	if every <= 0 {
		every = 10
	}
	return rs.ToolCallCount-rs.LastReflectionAt >= every
}

// ReflectionPrompt builds the user-role message appended when
// ShouldReflect holds, parameterized by strategy and issue set
// (spec.md §4.8.2).
func ReflectionPrompt(rs *ReflectionState, issues []string) string {
	var b strings.Builder
	b.WriteString("[reflection] ")

	switch {
	case contains(issues, "command_loop") && rs.CurrentStrategy == StrategyDiagnostic:
		b.WriteString("You have repeated the same command(s) without progress. Stop and perform root-cause analysis: what assumption is wrong, and what single diagnostic step would confirm it?")
	case contains(issues, "command_loop"):
		b.WriteString("You appear to be repeating the same command. Try a different approach instead of retrying it.")
	case contains(issues, "consecutive_failures"):
		b.WriteString(fmt.Sprintf("The last %d tool calls failed in a row. Reassess the plan before continuing; consider a safer, smaller step.", rs.ConsecutiveFailures))
	case contains(issues, "high_failure_rate"):
		b.WriteString("Failures are outweighing successes in this run. Slow down and verify assumptions before the next action.")
	case contains(issues, "frequent_strategy_changes"):
		b.WriteString("The approach has changed several times recently. Settle on one plan and see it through before switching again.")
	default:
		b.WriteString("Take stock of progress so far and decide whether to continue the current approach or try something different.")
	}

	rs.LastReflectionAt = rs.ToolCallCount
	rs.ConsecutiveFailures = 0
	return b.String()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
