package agent

import (
	"strings"
	"testing"
)

func TestEstimateTokens_WeightsCJKHigher(t *testing.T) {
	ascii := EstimateTokens("abcd")
	cjk := EstimateTokens("一二三四")
	if cjk <= ascii {
		t.Errorf("expected CJK estimate %v > ascii estimate %v", cjk, ascii)
	}
	if got, want := EstimateTokens("abcd"), 4*0.25; got != want {
		t.Errorf("ascii estimate = %v, want %v", got, want)
	}
}

func TestGroupTurns_KeepsToolCallsWithResponses(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "do it"},
		{Role: RoleAssistant, Content: "", ToolCalls: []ToolCall{{ID: "1", Name: "execute_command"}}},
		{Role: RoleTool, ToolCallID: "1", Content: "ok"},
		{Role: RoleUser, Content: "next"},
	}

	groups := groupTurns(messages)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups (system, turn1, turn2), got %d", len(groups))
	}
	if !groups[0].isSystem {
		t.Error("first group should be the system message")
	}
	if len(groups[1].messages) != 3 {
		t.Fatalf("expected the user/assistant/tool turn to stay together, got %d messages", len(groups[1].messages))
	}
}

func TestCompact_NoopUnderBudget(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi"},
	}
	out := Compact(messages, DefaultContextLength)
	if len(out) != len(messages) {
		t.Fatalf("expected no compaction under budget, got %d messages, want %d", len(out), len(messages))
	}
}

func TestCompact_TruncatesLongToolContent(t *testing.T) {
	var lines []string
	for i := 0; i < 500; i++ {
		lines = append(lines, strings.Repeat("x", 20))
	}
	longOutput := strings.Join(lines, "\n")

	messages := []Message{
		{Role: RoleSystem, Content: "sys"},
	}
	for i := 0; i < 50; i++ {
		messages = append(messages,
			Message{Role: RoleUser, Content: "run a big command"},
			Message{Role: RoleAssistant, Content: "", ToolCalls: []ToolCall{{ID: "t", Name: "execute_command"}}},
			Message{Role: RoleTool, ToolCallID: "t", Content: longOutput},
		)
	}

	out := Compact(messages, 2000)
	for _, m := range out {
		if m.Role == RoleTool && len(m.Content) > maxToolContentChars+200 {
			t.Errorf("tool message not truncated, len=%d", len(m.Content))
		}
	}
}

func TestCompact_PreservesGroupIntegrity(t *testing.T) {
	messages := []Message{{Role: RoleSystem, Content: "sys"}}
	for i := 0; i < 20; i++ {
		messages = append(messages,
			Message{Role: RoleUser, Content: strings.Repeat("task ", 200)},
			Message{Role: RoleAssistant, Content: "", ToolCalls: []ToolCall{{ID: "t", Name: "execute_command"}}},
			Message{Role: RoleTool, ToolCallID: "t", Content: strings.Repeat("output ", 500)},
		)
	}

	out := Compact(messages, 500)

	for i, m := range out {
		if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
			if i+1 >= len(out) || out[i+1].Role != RoleTool {
				t.Fatalf("assistant-with-tool-calls at %d not immediately followed by its tool response", i)
			}
		}
	}
}
