package providers

import (
	"encoding/json"
	"testing"

	"github.com/agentcore/shellpilot/internal/agent"
)

func TestNewAnthropicProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewAnthropicProvider_DefaultsModel(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "anthropic" {
		t.Errorf("Name() = %q, want anthropic", p.Name())
	}
	if p.getModel("") == "" {
		t.Error("expected a default model")
	}
	if got := p.getModel("claude-x"); got != "claude-x" {
		t.Errorf("getModel override = %q, want claude-x", got)
	}
}

func TestAnthropicProvider_ConvertMessages(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := []agent.Message{
		{Role: agent.RoleSystem, Content: "ignored"},
		{Role: agent.RoleUser, Content: "hello"},
		{
			Role: agent.RoleAssistant,
			ToolCalls: []agent.ToolCall{
				{ID: "call-1", Name: "execute_command", Arguments: json.RawMessage(`{"command":"ls"}`)},
			},
		},
		{Role: agent.RoleTool, ToolCallID: "call-1", Content: "file1\nfile2"},
	}

	converted, err := p.convertMessages(msgs)
	if err != nil {
		t.Fatalf("convertMessages failed: %v", err)
	}
	if len(converted) != 3 {
		t.Fatalf("expected 3 converted messages (system dropped), got %d", len(converted))
	}
}

func TestNewOpenAIProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIProvider("", "", ""); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestOpenAIProvider_ConvertMessages(t *testing.T) {
	p, err := NewOpenAIProvider("test-key", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := []agent.Message{
		{Role: agent.RoleUser, Content: "hi"},
		{
			Role: agent.RoleAssistant,
			ToolCalls: []agent.ToolCall{
				{ID: "call-1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a.txt"}`)},
			},
		},
		{Role: agent.RoleTool, ToolCallID: "call-1", Content: "contents"},
	}

	converted := p.convertMessages(msgs, "be helpful")
	if len(converted) != 4 {
		t.Fatalf("expected system + 3 messages, got %d", len(converted))
	}
	if converted[0].Role != "system" {
		t.Errorf("expected first message to be system, got %q", converted[0].Role)
	}
}

func TestOpenAIProvider_ConvertTools_InvalidSchemaFallsBack(t *testing.T) {
	p, err := NewOpenAIProvider("test-key", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tools := p.convertTools([]agent.ToolSpec{{Name: "broken", Description: "d", Schema: json.RawMessage(`not json`)}})
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if tools[0].Function.Parameters == nil {
		t.Error("expected a fallback schema, got nil")
	}
}

func TestNewBedrockProvider_DefaultsRegionAndModel(t *testing.T) {
	// NewBedrockProvider loads AWS config via the default credential
	// chain; this only exercises the pre-client defaulting logic that
	// runs before any network call, since config.LoadDefaultConfig
	// succeeds even with no credentials present (the client itself
	// still needs real credentials at call time).
	p, err := NewBedrockProvider(BedrockConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "bedrock" {
		t.Errorf("Name() = %q, want bedrock", p.Name())
	}
	if p.defaultModel == "" {
		t.Error("expected a default model")
	}
}
